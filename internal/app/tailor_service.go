package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"trimfit/internal/domain"
	"trimfit/internal/logutil"

	"github.com/google/uuid"
)

// MaxResumeSize is the largest accepted upload.
const MaxResumeSize = 5 << 20

var (
	// ErrEmptyJobDescription is returned when no job description was submitted.
	ErrEmptyJobDescription = errors.New("job description is required")
	// ErrResumeTooLarge is returned for uploads over MaxResumeSize.
	ErrResumeTooLarge = errors.New("resume exceeds 5MB")
	// ErrNotDocx is returned when the upload is not a .docx file.
	ErrNotDocx = errors.New("only .docx files are supported")
	// ErrUnreadableResume is returned when the document has no readable text.
	ErrUnreadableResume = errors.New("resume could not be read")
	// ErrTailorFailed is returned when the API reports an unsuccessful run.
	ErrTailorFailed = errors.New("tailoring failed")
	// ErrDownloadNotAllowed is returned when a user asks for a file they did
	// not produce, or after the grant expired.
	ErrDownloadNotAllowed = errors.New("download not allowed")
)

// TailorService runs the resume tailoring workflow for signed-in users.
type TailorService struct {
	api      domain.Tailor
	runs     domain.TailorRunRepository
	grants   domain.DownloadGrants
	archive  domain.ResumeArchive
	grantTTL time.Duration
	now      func() time.Time
	newID    func() string
}

// NewTailorService creates a TailorService. archive may be nil. grantTTL is
// used when the API does not say how long a file stays available.
func NewTailorService(api domain.Tailor, runs domain.TailorRunRepository, grants domain.DownloadGrants, archive domain.ResumeArchive, grantTTL time.Duration) *TailorService {
	return &TailorService{
		api:      api,
		runs:     runs,
		grants:   grants,
		archive:  archive,
		grantTTL: grantTTL,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Validate checks an upload before it is sent anywhere.
func (s *TailorService) Validate(up domain.Upload) error {
	return ValidateUpload(up)
}

// ValidateUpload rejects uploads the tailoring API would refuse.
func ValidateUpload(up domain.Upload) error {
	if strings.TrimSpace(up.JobDescription) == "" {
		return ErrEmptyJobDescription
	}
	if len(up.Content) > MaxResumeSize {
		return ErrResumeTooLarge
	}
	if !strings.EqualFold(path.Ext(up.Filename), ".docx") {
		return ErrNotDocx
	}
	text, err := ExtractDocxText(up.Content)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadableResume, err)
	}
	if text == "" {
		return ErrUnreadableResume
	}
	return nil
}

// Tailor sends up to the tailoring API on behalf of userID, records the run
// and grants the user access to the generated file.
func (s *TailorService) Tailor(ctx context.Context, userID string, up domain.Upload, progress func(string)) (*domain.TailorResponse, error) {
	if err := s.Validate(up); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(string) {}
	}
	log := logutil.GetOrDefault(ctx)

	resp, err := s.api.Tailor(ctx, up, progress)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return resp, fmt.Errorf("%w: %s", ErrTailorFailed, resp.Message)
	}

	info := resp.Data.DownloadInfo
	if info.FileID != "" {
		ttl := time.Duration(info.ExpiresInSeconds) * time.Second
		if ttl <= 0 {
			ttl = s.grantTTL
		}
		if err := s.grants.Grant(info.FileID, userID, ttl); err != nil {
			log.Error().Err(err).Str("file_id", info.FileID).Msg("grant download")
		}
	}

	run := &domain.TailorRun{
		ID:             s.newID(),
		UserID:         userID,
		FileID:         info.FileID,
		Filename:       up.Filename,
		JobTitle:       JobTitle(up.JobDescription),
		Message:        resp.Message,
		ProcessingTime: resp.ProcessingTime,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.runs.AddRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	if s.archive != nil {
		key := ArchiveKey(userID, s.now(), s.newID())
		if err := s.archive.Put(ctx, key, DocxContentType, up.Content); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("archive resume")
		}
	}

	log.Info().Str("user_id", userID).Str("file_id", info.FileID).
		Float64("processing_time", resp.ProcessingTime).Msg("resume tailored")
	return resp, nil
}

// Download streams a generated file to the user that produced it.
func (s *TailorService) Download(ctx context.Context, userID, fileID string) (io.ReadCloser, error) {
	if fileID == "" || !s.grants.Allowed(fileID, userID) {
		return nil, ErrDownloadNotAllowed
	}
	return s.api.Download(ctx, fileID)
}

// History returns the user's most recent runs, newest first.
func (s *TailorService) History(ctx context.Context, userID string, limit int) ([]domain.TailorRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.runs.ListRecentRuns(ctx, userID, limit)
}

// JobTitle returns the first non-blank line of a job description, shortened
// for display.
func JobTitle(jd string) string {
	for _, line := range strings.Split(jd, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > 80 {
			return string(r[:80])
		}
		return line
	}
	return ""
}

// ArchiveKey is the object key an upload is stored under.
func ArchiveKey(userID string, at time.Time, id string) string {
	at = at.UTC()
	return fmt.Sprintf("resumes/%s/%04d/%02d/%02d/%s.docx", userID, at.Year(), int(at.Month()), at.Day(), id)
}
