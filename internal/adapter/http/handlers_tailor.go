package adapthttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"trimfit/internal/adapter/tailorapi"
	"trimfit/internal/app"
	"trimfit/internal/domain"
	"trimfit/internal/logutil"

	"github.com/julienschmidt/httprouter"
)

// maxUploadBody leaves room for the job description and multipart overhead.
const maxUploadBody = app.MaxResumeSize + 1<<20

var (
	errUnauthorized = errors.New("unauthorized")
	errBadUpload    = errors.New("invalid upload")
)

func downloadPath(fileID string) string {
	return "/api/tailor/download/" + url.PathEscape(fileID)
}

// readUpload pulls the resume and job description out of a multipart request.
func readUpload(w http.ResponseWriter, r *http.Request) (domain.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return domain.Upload{}, app.ErrResumeTooLarge
		}
		return domain.Upload{}, fmt.Errorf("%w: %v", errBadUpload, err)
	}
	up := domain.Upload{JobDescription: r.FormValue("job_description")}

	f, hdr, err := r.FormFile("resume_file")
	if err != nil {
		return up, fmt.Errorf("%w: resume_file is required", errBadUpload)
	}
	defer f.Close()
	up.Filename = hdr.Filename
	up.Content, err = io.ReadAll(io.LimitReader(f, app.MaxResumeSize+1))
	if err != nil {
		return up, fmt.Errorf("read resume: %w", err)
	}
	return up, nil
}

func tailorStatus(err error) int {
	var apiErr tailorapi.APIError
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errBadUpload):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrResumeTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, app.ErrNotDocx):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, app.ErrEmptyJobDescription), errors.Is(err, app.ErrUnreadableResume):
		return http.StatusUnprocessableEntity
	case errors.As(err, &apiErr), errors.Is(err, app.ErrTailorFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// runTailor validates the upload, calls the service and rewrites the download
// link so it goes through this server.
func (s *Server) runTailor(w http.ResponseWriter, r *http.Request) (*domain.TailorResponse, domain.Upload, []string, error) {
	st := s.sessions.Verify(r)
	if !st.IsAuth {
		return nil, domain.Upload{}, nil, errUnauthorized
	}
	up, err := readUpload(w, r)
	if err != nil {
		return nil, up, nil, err
	}

	log := logutil.GetOrDefault(r.Context())
	var progress []string
	resp, err := s.tailor.Tailor(r.Context(), st.UserID, up, func(status string) {
		progress = append(progress, status)
		log.Debug().Str("status", status).Msg("tailor progress")
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", st.UserID).Msg("tailor failed")
		return nil, up, progress, err
	}
	if id := resp.Data.DownloadInfo.FileID; id != "" {
		resp.Data.DownloadInfo.DownloadURL = downloadPath(id)
	}
	return resp, up, progress, nil
}

func (s *Server) handleAPITailor(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resp, _, _, err := s.runTailor(w, r)
	if err != nil {
		writeJSON(w, tailorStatus(err), map[string]any{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAPIDownload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	st := s.sessions.Verify(r)
	if !st.IsAuth {
		writeError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}
	fileID := ps.ByName("file_id")

	rc, err := s.tailor.Download(r.Context(), st.UserID, fileID)
	if errors.Is(err, app.ErrDownloadNotAllowed) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("file_id", fileID).Msg("download")
		writeError(w, http.StatusBadGateway, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", app.DocxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="tailored_resume.docx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Warn().Err(err).Str("file_id", fileID).Msg("stream download")
	}
}

func (s *Server) handleTailorPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageTailor, pageData{Title: "Tailor your resume"})
}

func (s *Server) handleTailorSubmit(w http.ResponseWriter, r *http.Request) {
	resp, up, progress, err := s.runTailor(w, r)
	data := pageData{Title: "Tailor your resume", JobDescription: up.JobDescription, Progress: progress}
	if err != nil {
		if errors.Is(err, errUnauthorized) {
			http.Redirect(w, r, SignInPath, http.StatusSeeOther)
			return
		}
		data.Error = err.Error()
		s.render(w, r, tailorStatus(err), pageTailor, data)
		return
	}
	data.Result = resp
	data.DownloadURL = resp.Data.DownloadInfo.DownloadURL
	s.render(w, r, http.StatusOK, pageTailor, data)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	st := s.sessions.Verify(r)
	if !st.IsAuth {
		http.Redirect(w, r, SignInPath, http.StatusSeeOther)
		return
	}
	runs, err := s.tailor.History(r.Context(), st.UserID, intQuery(r, "limit", 20))
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Msg("list runs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
		return
	}
	s.render(w, r, http.StatusOK, pageConversations, pageData{Title: "History", Runs: runs})
}
