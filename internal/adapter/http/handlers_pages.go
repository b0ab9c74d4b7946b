package adapthttp

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"trimfit/internal/app"
	"trimfit/internal/domain"
	"trimfit/internal/logutil"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageHome          = "home.html"
	pageSignIn        = "signin.html"
	pageSignUp        = "signup.html"
	pageTailor        = "tailor.html"
	pageConversations = "conversations.html"
	pageNotFound      = "notfound.html"
)

type pages struct {
	byName map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("Jan 2, 2006 15:04") },
	"seconds": func(f float64) string {
		return time.Duration(f * float64(time.Second)).Round(100 * time.Millisecond).String()
	},
}

func mustParsePages() *pages {
	p := &pages{byName: map[string]*template.Template{}}
	for _, name := range []string{pageHome, pageSignIn, pageSignUp, pageTailor, pageConversations, pageNotFound} {
		t := template.Must(template.New("layout.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name))
		p.byName[name] = t
	}
	return p
}

type plan struct {
	Name     string
	Price    string
	Features []string
}

type faq struct {
	Question string
	Answer   string
}

var pricingPlans = []plan{
	{Name: "Free", Price: "$0", Features: []string{"3 tailored resumes per month", "Experience and project suggestions", "DOCX download"}},
	{Name: "Pro", Price: "$9/mo", Features: []string{"Unlimited tailored resumes", "Priority processing", "History of every run"}},
	{Name: "Team", Price: "$29/mo", Features: []string{"Everything in Pro", "Up to 5 seats", "Shared job description library"}},
}

var faqs = []faq{
	{Question: "Which file formats are supported?", Answer: "Upload your resume as a .docx file up to 5MB."},
	{Question: "How long does tailoring take?", Answer: "Most resumes are processed in under 20 seconds."},
	{Question: "Do you keep my resume?", Answer: "Generated files are available for download for a limited time after each run."},
	{Question: "Will it invent experience?", Answer: "No. Suggestions rephrase and reorder what is already in your resume to match the job description."},
}

type pageData struct {
	Title      string
	User       *domain.User
	SSOEnabled bool

	Form   *app.FormState
	Values map[string]string

	Plans []plan
	FAQs  []faq

	JobDescription string
	Result         *domain.TailorResponse
	DownloadURL    string
	Progress       []string
	Error          string

	Runs []domain.TailorRun
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	t, ok := s.pages.byName[name]
	if !ok {
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}
	data.SSOEnabled = s.oidc != nil
	if data.User == nil {
		data.User = s.currentUser(r)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("page", name).Msg("render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// currentUser returns the signed-in user, or nil.
func (s *Server) currentUser(r *http.Request) *domain.User {
	st := s.sessions.Verify(r)
	if !st.IsAuth {
		return nil
	}
	u, err := s.auth.User(r.Context(), st.UserID)
	if err != nil {
		return nil
	}
	return u
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageHome, pageData{
		Title: "Tailor your resume to every job",
		Plans: pricingPlans,
		FAQs:  faqs,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	s.render(w, r, http.StatusNotFound, pageNotFound, pageData{Title: "Not found"})
}
