package modpack

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/datallboy/gomodpack/internal/domain"
	"github.com/datallboy/gomodpack/internal/files"
)

const testManifest = `{
  "minecraft": {
    "version": "1.20.1",
    "modLoaders": [{"id": "forge-47.2.0", "primary": true}]
  },
  "manifestType": "minecraftModpack",
  "manifestVersion": 1,
  "name": "Test Pack",
  "version": "1.0.0",
  "author": "someone",
  "files": [
    {"projectID": 238222, "fileID": 4712866, "required": true},
    {"projectID": 32274, "fileID": 4583524, "required": true}
  ],
  "overrides": "overrides"
}`

func writeZip(t *testing.T, name string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for n, content := range entries {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen(t *testing.T) {
	path := writeZip(t, "Test Pack-1.0.0.zip", map[string]string{ManifestName: testManifest})

	p, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if p.Name() != "Test Pack-1.0.0" {
		t.Errorf("unexpected name %q", p.Name())
	}
	m := p.Manifest
	if m.Name != "Test Pack" || m.Version != "1.0.0" || m.Author != "someone" {
		t.Errorf("unexpected manifest header %+v", m)
	}
	if m.Minecraft.Version != "1.20.1" {
		t.Errorf("unexpected minecraft version %q", m.Minecraft.Version)
	}
	if m.PrimaryLoader() != "forge-47.2.0" {
		t.Errorf("unexpected loader %q", m.PrimaryLoader())
	}

	items := p.Items()
	want := []domain.ItemIdentity{{ProjectID: 238222, FileID: 4712866}, {ProjectID: 32274, FileID: 4583524}}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d: got %v want %v", i, items[i], want[i])
		}
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	notZip := filepath.Join(dir, "pack.zip")
	if err := os.WriteFile(notZip, []byte("definitely not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.zip")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"not a zip", notZip, ErrNotZip},
		{"empty file", empty, ErrNotZip},
		{"no manifest", writeZip(t, "a.zip", map[string]string{"readme.txt": "hi"}), ErrNoManifest},
		{"bad json", writeZip(t, "b.zip", map[string]string{ManifestName: "{"}), ErrInvalidManifest},
		{"zero project id", writeZip(t, "c.zip", map[string]string{
			ManifestName: `{"name":"x","files":[{"projectID":0,"fileID":5}]}`,
		}), ErrInvalidManifest},
		{"negative file id", writeZip(t, "d.zip", map[string]string{
			ManifestName: `{"name":"x","files":[{"projectID":1,"fileID":-5}]}`,
		}), ErrInvalidManifest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Open(tt.path)
			if err == nil {
				p.Close()
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Open(filepath.Join(dir, "missing.zip")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestDefaultOverridesFolder(t *testing.T) {
	path := writeZip(t, "p.zip", map[string]string{ManifestName: `{"name":"x","files":[]}`})
	p, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if p.Manifest.Overrides != DefaultOverrides {
		t.Errorf("expected default overrides folder, got %q", p.Manifest.Overrides)
	}
	if len(p.Items()) != 0 {
		t.Error("expected no items")
	}
}

func TestExtractOverrides(t *testing.T) {
	path := writeZip(t, "p.zip", map[string]string{
		ManifestName:                      testManifest,
		"overrides/config/jei.toml":       "jei = true",
		"overrides/options.txt":           "fov:70",
		"overrides/../escape.txt":         "nope",
		"overrides/config/../../up.txt":   "nope",
		"other/ignored.txt":               "ignored",
		"overrides/resourcepacks/a/b.png": "png",
	})

	p, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	root := t.TempDir()
	dest := filepath.Join(root, "pack")
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatal(err)
	}
	// existing files are replaced by the pack's version
	if err := os.WriteFile(filepath.Join(dest, "options.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if !p.HasOverrides() {
		t.Error("expected overrides to be detected")
	}

	res, err := p.ExtractOverrides(context.Background(), dest, files.NewWriter(t.TempDir()))
	if err != nil {
		t.Fatalf("ExtractOverrides: %v", err)
	}
	if res.Extracted != 3 {
		t.Errorf("expected 3 files extracted, got %d", res.Extracted)
	}
	if len(res.Skipped) != 2 {
		t.Errorf("expected 2 skipped entries, got %v", res.Skipped)
	}

	for rel, want := range map[string]string{
		"config/jei.toml":       "jei = true",
		"options.txt":           "fov:70",
		"resourcepacks/a/b.png": "png",
	} {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		if err != nil {
			t.Errorf("%s: %v", rel, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s: got %q want %q", rel, got, want)
		}
	}

	for _, f := range []string{filepath.Join(root, "escape.txt"), filepath.Join(root, "up.txt"), filepath.Join(dest, "ignored.txt")} {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Errorf("%s should not exist", f)
		}
	}
}

func TestExtractOverridesMissingFolder(t *testing.T) {
	path := writeZip(t, "p.zip", map[string]string{ManifestName: testManifest})
	p, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if p.HasOverrides() {
		t.Error("expected no overrides")
	}

	dest := t.TempDir()
	res, err := p.ExtractOverrides(context.Background(), dest, files.NewWriter(""))
	if err != nil {
		t.Fatalf("missing overrides must not fail: %v", err)
	}
	if res.Extracted != 0 {
		t.Errorf("expected nothing extracted, got %d", res.Extracted)
	}
}

func TestExtractOverridesCancelled(t *testing.T) {
	path := writeZip(t, "p.zip", map[string]string{
		ManifestName:            testManifest,
		"overrides/options.txt": "fov:70",
	})
	p, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.ExtractOverrides(ctx, t.TempDir(), files.NewWriter("")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
