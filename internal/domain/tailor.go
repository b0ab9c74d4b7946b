package domain

import (
	"context"
	"io"
	"time"
)

// Suggestion holds the tailoring advice for one resume section.
type Suggestion struct {
	SuggestedImprovements string   `json:"suggested_improvements"`
	RecommendedChanges    []string `json:"recommended_changes"`
}

// TextSuggestions groups suggestions by resume section. Sections the API
// did not analyse are nil.
type TextSuggestions struct {
	Experience *Suggestion `json:"experience,omitempty"`
	Projects   *Suggestion `json:"projects,omitempty"`
}

// DownloadInfo points at the generated document.
type DownloadInfo struct {
	FileID           string `json:"file_id"`
	DownloadURL      string `json:"download_url"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// TailorData is the payload of a tailoring response.
type TailorData struct {
	TextSuggestions TextSuggestions `json:"text_suggestions"`
	DownloadInfo    DownloadInfo    `json:"download_info"`
}

// TailorResponse mirrors the JSON returned by the tailoring API.
type TailorResponse struct {
	Success        bool       `json:"success"`
	Message        string     `json:"message"`
	ProcessingTime float64    `json:"processing_time"`
	Data           TailorData `json:"data"`
}

// Upload is a resume document plus the job description it should be tailored to.
type Upload struct {
	Filename       string
	Content        []byte
	JobDescription string
}

// TailorRun records one tailoring request made by a user.
type TailorRun struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	FileID         string    `json:"fileId"`
	Filename       string    `json:"filename"`
	JobTitle       string    `json:"jobTitle"`
	Message        string    `json:"message"`
	ProcessingTime float64   `json:"processingTime"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Tailor is the port for the external tailoring API.
type Tailor interface {
	Tailor(ctx context.Context, up Upload, progress func(status string)) (*TailorResponse, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// TailorRunRepository is the port for tailoring history persistence.
type TailorRunRepository interface {
	AddRun(ctx context.Context, run *TailorRun) error
	ListRecentRuns(ctx context.Context, userID string, limit int) ([]TailorRun, error)
}

// DownloadGrants remembers which user may fetch a generated file.
type DownloadGrants interface {
	Grant(fileID, userID string, ttl time.Duration) error
	Allowed(fileID, userID string) bool
}

// ResumeArchive keeps a copy of uploaded resumes.
type ResumeArchive interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}
