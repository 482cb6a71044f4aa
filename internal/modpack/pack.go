package modpack

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/datallboy/gomodpack/internal/domain"
)

const (
	ManifestName     = "manifest.json"
	DefaultOverrides = "overrides"
)

var (
	ErrNotZip          = errors.New("modpack is not a zip archive")
	ErrNoManifest      = errors.New("manifest.json not found in modpack")
	ErrInvalidManifest = errors.New("invalid manifest")
)

// ZIP file signatures (magic bytes)
var zipSignatures = [][]byte{
	{0x50, 0x4B, 0x03, 0x04}, // Standard ZIP
	{0x50, 0x4B, 0x05, 0x06}, // Empty ZIP
	{0x50, 0x4B, 0x07, 0x08}, // Spanned ZIP
}

type ModLoader struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}

type Minecraft struct {
	Version    string      `json:"version"`
	ModLoaders []ModLoader `json:"modLoaders"`
}

type ManifestFile struct {
	ProjectID int  `json:"projectID"`
	FileID    int  `json:"fileID"`
	Required  bool `json:"required"`
}

// Manifest is the CurseForge modpack manifest.json.
type Manifest struct {
	Minecraft       Minecraft      `json:"minecraft"`
	ManifestType    string         `json:"manifestType"`
	ManifestVersion int            `json:"manifestVersion"`
	Name            string         `json:"name"`
	Version         string         `json:"version"`
	Author          string         `json:"author"`
	Files           []ManifestFile `json:"files"`
	Overrides       string         `json:"overrides"`
}

// PrimaryLoader returns the loader flagged primary, or the first one listed.
func (m *Manifest) PrimaryLoader() string {
	for _, l := range m.Minecraft.ModLoaders {
		if l.Primary {
			return l.ID
		}
	}
	if len(m.Minecraft.ModLoaders) > 0 {
		return m.Minecraft.ModLoaders[0].ID
	}
	return ""
}

func (m *Manifest) validate() error {
	for i, f := range m.Files {
		if f.ProjectID <= 0 || f.FileID <= 0 {
			return fmt.Errorf("%w: files[%d] has projectID=%d fileID=%d", ErrInvalidManifest, i, f.ProjectID, f.FileID)
		}
	}
	if m.Overrides == "" {
		m.Overrides = DefaultOverrides
	}
	m.Overrides = strings.Trim(m.Overrides, "/")
	return nil
}

// Pack is an opened modpack archive. Close releases the underlying file.
type Pack struct {
	Path     string
	Manifest Manifest

	zr *zip.ReadCloser
}

// Open checks the archive signature, then loads and validates its manifest.
func Open(path string) (*Pack, error) {
	isZip, err := hasZipSignature(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open modpack: %w", err)
	}
	if !isZip {
		return nil, fmt.Errorf("%w: %s", ErrNotZip, path)
	}

	// Insecure entry names are filtered during extraction, so the reader is still usable.
	zr, err := zip.OpenReader(path)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %v", ErrNotZip, err)
	}

	p := &Pack{Path: path, zr: zr}
	if err := p.loadManifest(); err != nil {
		zr.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pack) loadManifest() error {
	f, err := p.zr.Open(ManifestName)
	if err != nil {
		return ErrNoManifest
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&p.Manifest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return p.Manifest.validate()
}

// Name is the archive file name without extension. It names the install directory.
func (p *Pack) Name() string {
	base := filepath.Base(p.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Items lists the manifest's files in order.
func (p *Pack) Items() []domain.ItemIdentity {
	items := make([]domain.ItemIdentity, 0, len(p.Manifest.Files))
	for _, f := range p.Manifest.Files {
		items = append(items, domain.ItemIdentity{ProjectID: f.ProjectID, FileID: f.FileID})
	}
	return items
}

func (p *Pack) Close() error {
	return p.zr.Close()
}

// hasZipSignature checks if the file has a valid ZIP magic byte signature
func hasZipSignature(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(file, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}

	for _, sig := range zipSignatures {
		if bytes.Equal(header, sig) {
			return true, nil
		}
	}

	return false, nil
}
