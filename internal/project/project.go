package project

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Project is a stored submission with ownership, moderation, and
// popularity metadata.
type Project struct {
	// ID is the decimal form of the allocated project number.
	ID string `json:"projectId"`

	// FileRef points at the externally hosted file.
	FileRef string `json:"fileRef"`

	// DisplayName is the human-readable project name.
	DisplayName string `json:"displayName"`

	// OwnerName is the display name of the submitting user.
	OwnerName string `json:"ownerName"`

	// OwnerID identifies the submitting user and authorizes deletion.
	OwnerID string `json:"ownerId"`

	// Verified is set by moderators only.
	Verified bool `json:"verified"`

	// ContactEmail is optional.
	ContactEmail string `json:"contactEmail"`

	// DownloadCount is persisted as a decimal string.
	DownloadCount uint64 `json:"downloadCount,string"`
}

// Info is the public view of a project: everything except the file
// reference and contact email.
type Info struct {
	ID            string `json:"projectId"`
	DisplayName   string `json:"displayName"`
	OwnerName     string `json:"ownerName"`
	OwnerID       string `json:"ownerId"`
	Verified      bool   `json:"verified"`
	DownloadCount uint64 `json:"downloadCount,string"`
}

// Info returns the public view of p.
func (p *Project) Info() Info {
	return Info{
		ID:            p.ID,
		DisplayName:   p.DisplayName,
		OwnerName:     p.OwnerName,
		OwnerID:       p.OwnerID,
		Verified:      p.Verified,
		DownloadCount: p.DownloadCount,
	}
}

// Submission holds the caller-supplied fields of a new project.
type Submission struct {
	FileRef      string
	DisplayName  string
	OwnerName    string
	OwnerID      string
	Verified     bool
	ContactEmail string
}

// Validate checks that every required field is present.
func (s Submission) Validate() error {
	switch {
	case strings.TrimSpace(s.FileRef) == "":
		return invalid(ErrEmptyFileRef)
	case strings.TrimSpace(s.DisplayName) == "":
		return invalid(ErrEmptyName)
	case strings.TrimSpace(s.OwnerName) == "":
		return invalid(ErrEmptyOwnerName)
	case strings.TrimSpace(s.OwnerID) == "":
		return invalid(ErrEmptyOwnerID)
	}
	return nil
}

func newProject(id uint64, s Submission) *Project {
	return &Project{
		ID:            strconv.FormatUint(id, 10),
		FileRef:       s.FileRef,
		DisplayName:   s.DisplayName,
		OwnerName:     s.OwnerName,
		OwnerID:       s.OwnerID,
		Verified:      s.Verified,
		ContactEmail:  s.ContactEmail,
		DownloadCount: 0,
	}
}

func encodeProject(p *Project) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: encode project %s: %v", ErrStorage, p.ID, err)
	}
	return data, nil
}

// decodeProject parses a stored record. The key is authoritative for the ID.
func decodeProject(id string, data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: decode project %s: %v", ErrStorage, id, err)
	}
	p.ID = id
	return &p, nil
}

// compareIDs orders project IDs newest first: numeric IDs by descending
// value, ahead of any non-numeric IDs, which sort in descending lexical
// order among themselves. It returns a negative number when a sorts before b.
func compareIDs(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na > nb:
			return -1
		case na < nb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(b, a)
}
