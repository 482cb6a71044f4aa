package domain

import (
	"fmt"
	"strings"
)

// WebAPIURL is the public CurseForge site API. Download links handed back to
// users always point here since they work without an API key.
const WebAPIURL = "https://www.curseforge.com/api/v1/"

// ItemIdentity names one remote artifact within a batch.
// It is comparable and is used directly as a map key.
type ItemIdentity struct {
	ProjectID int `json:"projectID"`
	FileID    int `json:"fileID"`
}

func (id ItemIdentity) String() string {
	return fmt.Sprintf("%d/%d", id.ProjectID, id.FileID)
}

// DownloadLink reconstructs the manual download link for this item.
func (id ItemIdentity) DownloadLink() string {
	return DownloadLink(WebAPIURL, id)
}

// DownloadLink builds <base>/mods/{project}/files/{file}/download.
func DownloadLink(base string, id ItemIdentity) string {
	return fmt.Sprintf("%s/mods/%d/files/%d/download", strings.TrimRight(base, "/"), id.ProjectID, id.FileID)
}
