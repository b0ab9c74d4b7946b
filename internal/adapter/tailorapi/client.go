// Package tailorapi is a client for the external resume tailoring API.
package tailorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"trimfit/internal/domain"
)

const (
	tailorPath   = "/api/v1/tailor/tailor-resume-json-and-docx"
	downloadPath = "/api/v1/tailor/download/"

	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Progress messages reported while a tailoring request runs.
const (
	StatusUploading  = "Uploading resume..."
	StatusProcessing = "Processing with AI...(max - 20secs)"
	StatusFinalizing = "Finalizing results..."
)

// Client talks to the tailoring API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ domain.Tailor = (*Client)(nil)

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:8000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError is a non-200 answer from the tailoring API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	return e.Message
}

// DownloadURL returns the API address of a generated file.
func (c *Client) DownloadURL(fileID string) string {
	return c.baseURL + downloadPath + url.PathEscape(fileID)
}

// Tailor uploads a resume and job description and returns the suggestions.
// progress is called as the request moves through its stages.
func (c *Client) Tailor(ctx context.Context, up domain.Upload, progress func(string)) (*domain.TailorResponse, error) {
	if progress == nil {
		progress = func(string) {}
	}
	progress(StatusUploading)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="resume_file"; filename=%q`, up.Filename))
	h.Set("Content-Type", docxContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(up.Content); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.WriteField("job_description", up.JobDescription); err != nil {
		return nil, fmt.Errorf("write form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tailorPath, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	progress(StatusProcessing)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}

	var out domain.TailorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	progress(StatusFinalizing)
	return &out, nil
}

// Download fetches a generated document. The caller closes the reader.
func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(fileID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", docxContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, APIError{Status: resp.StatusCode, Message: "Failed to download file"}
	}
	return resp.Body, nil
}

func extractError(body io.Reader) string {
	const fallback = "An error occurred"
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return fallback
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fallback
	}
	if len(payload.Detail) > 0 && string(payload.Detail) != "null" {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		} else {
			return string(payload.Detail)
		}
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	return fallback
}
