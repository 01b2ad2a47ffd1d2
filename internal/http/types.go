package http

import "github.com/fyrsmithlabs/projectd/internal/project"

// Response status values.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// CreateRequest is the request body for POST /api/v1/projects and POST /save.
//
// Legacy field names (url, projectName, username, uid,
// email) are accepted as well; canonical names win when both are set.
type CreateRequest struct {
	FileRef      string `json:"fileRef"`
	DisplayName  string `json:"displayName"`
	OwnerName    string `json:"ownerName"`
	OwnerID      string `json:"ownerId"`
	Verified     bool   `json:"verified"`
	ContactEmail string `json:"contactEmail"`

	URL         string `json:"url"`
	ProjectName string `json:"projectName"`
	Username    string `json:"username"`
	UID         string `json:"uid"`
	Email       string `json:"email"`
}

// Submission converts the request into a store submission.
func (r CreateRequest) Submission() project.Submission {
	return project.Submission{
		FileRef:      firstNonEmpty(r.FileRef, r.URL),
		DisplayName:  firstNonEmpty(r.DisplayName, r.ProjectName),
		OwnerName:    firstNonEmpty(r.OwnerName, r.Username),
		OwnerID:      firstNonEmpty(r.OwnerID, r.UID),
		Verified:     r.Verified,
		ContactEmail: firstNonEmpty(r.ContactEmail, r.Email),
	}
}

// CreateResponse is the response body for a successful create.
type CreateResponse struct {
	Status    string `json:"status"`
	ProjectID string `json:"projectId"`
}

// RenameRequest is the request body for PATCH /api/v1/projects/:id/name.
type RenameRequest struct {
	NewName string `json:"newName"`
}

// DeleteRequest carries the caller identity for DELETE /api/v1/projects/:id.
// CallerID may also be passed as the callerId query parameter.
type DeleteRequest struct {
	CallerID string `json:"callerId" query:"callerId"`
}

// LegacyDeleteRequest is the request body for DELETE /delete.
type LegacyDeleteRequest struct {
	ProjectID string `json:"projectId"`
	UID       string `json:"uid"`
}

// ListResponse is the response body for paginated listings.
type ListResponse struct {
	Status         string             `json:"status"`
	Projects       []*project.Project `json:"projects"`
	Total          int                `json:"total"`
	NextStartAfter string             `json:"nextStartAfter,omitempty"`
}

// ProjectsResponse is the response body for unpaginated listings.
type ProjectsResponse struct {
	Status   string             `json:"status"`
	Projects []*project.Project `json:"projects"`
}

// InfoResponse is the response body for GET /api/v1/projects/:id.
type InfoResponse struct {
	Status  string        `json:"status"`
	Project *project.Info `json:"project"`
}

// DownloadResponse is the response body for download increments.
type DownloadResponse struct {
	Status        string `json:"status"`
	DownloadCount string `json:"downloadCount"`
}

// LegacyDownloadResponse is the response body for GET /increase.
type LegacyDownloadResponse struct {
	Status   string `json:"status"`
	Download string `json:"download"`
}

// BansResponse is the response body for GET /api/v1/bans.
type BansResponse struct {
	Status string   `json:"status"`
	Users  []string `json:"users"`
}

// PurgeResponse is the response body for purges.
type PurgeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

// MessageResponse is the response body for operations with no payload.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the response body for every failure.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version,omitempty"`
	Counts  StatusCounts `json:"counts"`
}

// StatusCounts contains count information for stored resources.
// A value of -1 means the count could not be determined.
type StatusCounts struct {
	Projects      int   `json:"projects"`
	BannedUsers   int   `json:"bannedUsers"`
	NextProjectID int64 `json:"nextProjectId"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
