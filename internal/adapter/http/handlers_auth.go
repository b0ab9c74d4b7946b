// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"errors"
	"net/http"

	"trimfit/internal/app"
	"trimfit/internal/logutil"

	"github.com/julienschmidt/httprouter"
)

type authForm struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// readAuthForm accepts either a JSON body or a regular form post.
func readAuthForm(w http.ResponseWriter, r *http.Request) (authForm, error) {
	var f authForm
	if isJSONBody(r) {
		err := parseJSON(w, r, &f)
		return f, err
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return f, err
	}
	f.FirstName = r.PostForm.Get("firstName")
	f.LastName = r.PostForm.Get("lastName")
	f.Email = r.PostForm.Get("email")
	f.Password = r.PostForm.Get("password")
	return f, nil
}

// formValues returns the submitted fields that are safe to echo back.
func formValues(r *http.Request) map[string]string {
	if isJSONBody(r) {
		return nil
	}
	_ = r.ParseForm()
	return map[string]string{
		"firstName": r.PostForm.Get("firstName"),
		"lastName":  r.PostForm.Get("lastName"),
		"email":     r.PostForm.Get("email"),
	}
}

func formPageFor(route string) string {
	if route == "/signup" {
		return pageSignUp
	}
	return pageSignIn
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidCredentials), errors.Is(err, app.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrUserNotFound), errors.Is(err, app.ErrInvalidPassword):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrUserExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) renderFormError(w http.ResponseWriter, r *http.Request, status int, page, msg string, details any, values map[string]string) {
	fs := &app.FormState{Error: msg, Details: details}
	if wantsJSON(r) {
		writeJSON(w, status, fs)
		return
	}
	s.render(w, r, status, page, pageData{Title: titleFor(page), Form: fs, Values: values})
}

func resultLabel(err error) string {
	for _, sentinel := range []error{
		app.ErrInvalidCredentials, app.ErrValidationFailed, app.ErrUserNotFound,
		app.ErrInvalidPassword, app.ErrUserExists,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return app.ErrSomethingWentWrong.Error()
}

func titleFor(page string) string {
	if page == pageSignUp {
		return "Sign up"
	}
	return "Sign in"
}

// finish turns an action result into a response: a session cookie plus a
// redirect on success, the form with its error otherwise.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, action, page string, res app.Result, f authForm) {
	if !res.OK() {
		s.metrics.authResults.WithLabelValues(action, resultLabel(res.Err)).Inc()
		fs := res.FormState(!s.production)
		values := map[string]string{"firstName": f.FirstName, "lastName": f.LastName, "email": f.Email}
		s.renderFormError(w, r, statusFor(res.Err), page, fs.Error, fs.Details, values)
		return
	}

	if err := s.sessions.Create(w, res.UserID); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("user_id", res.UserID).Msg("create session")
		var details any
		if !s.production {
			details = err.Error()
		}
		s.renderFormError(w, r, http.StatusInternalServerError, page, app.Message(app.ErrSomethingWentWrong), details, nil)
		return
	}
	s.metrics.authResults.WithLabelValues(action, "ok").Inc()

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"redirectTo": res.To})
		return
	}
	http.Redirect(w, r, res.To, http.StatusSeeOther)
}

func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageSignIn, pageData{Title: "Sign in"})
}

func (s *Server) handleSignUpPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageSignUp, pageData{Title: "Sign up"})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	f, err := readAuthForm(w, r)
	if err != nil {
		s.renderFormError(w, r, http.StatusBadRequest, pageSignIn, "invalid request", nil, nil)
		return
	}
	res := s.auth.Login(r.Context(), app.LoginInput{Email: f.Email, Password: f.Password})
	s.finish(w, r, "signin", pageSignIn, res, f)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	f, err := readAuthForm(w, r)
	if err != nil {
		s.renderFormError(w, r, http.StatusBadRequest, pageSignUp, "invalid request", nil, nil)
		return
	}
	res := s.auth.Register(r.Context(), app.RegisterInput{
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Email:     f.Email,
		Password:  f.Password,
	})
	s.finish(w, r, "signup", pageSignUp, res, f)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(w)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	http.Redirect(w, r, SignInPath, http.StatusSeeOther)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enabled": s.oidc != nil,
	})
}
