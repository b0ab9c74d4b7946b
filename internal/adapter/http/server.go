package adapthttp

import (
	"net/http"
	"time"

	"trimfit/internal/adapter/ratelimit"
	"trimfit/internal/app"
	"trimfit/internal/session"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options wires a Server to its collaborators.
type Options struct {
	Auth     *app.AuthService
	Tailor   *app.TailorService
	Sessions *session.Manager
	// Limiter throttles the sign-in and sign-up forms. Nil disables limiting.
	Limiter        ratelimit.Limiter
	AuthRateLimit  int
	AuthRateWindow time.Duration
	// OIDC enables single sign-on when non-nil.
	OIDC *OIDCConfig
	// Registry receives the server metrics. A private registry is created
	// when nil.
	Registry   *prometheus.Registry
	Log        zerolog.Logger
	WebDir     string
	Production bool
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth     *app.AuthService
	tailor   *app.TailorService
	sessions *session.Manager
	limiter  ratelimit.Limiter
	oidc     *OIDCConfig
	log      zerolog.Logger
	metrics  *metrics
	pages    *pages
	webDir   string

	authRateLimit  int
	authRateWindow time.Duration
	production     bool
}

// New creates a Server wired to the given application services.
func New(o Options) *Server {
	reg := o.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{
		auth:           o.Auth,
		tailor:         o.Tailor,
		sessions:       o.Sessions,
		limiter:        o.Limiter,
		oidc:           o.OIDC,
		log:            o.Log,
		metrics:        newMetrics(reg),
		pages:          mustParsePages(),
		webDir:         o.WebDir,
		authRateLimit:  o.AuthRateLimit,
		authRateWindow: o.AuthRateWindow,
		production:     o.Production,
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := httprouter.New()
	api.GET("/health", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	api.GET("/config", s.handleConfig)
	api.POST("/tailor", s.handleAPITailor)
	api.GET("/tailor/download/:file_id", s.handleAPIDownload)

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	root.HandleFunc("GET /{$}", s.handleHome)
	root.HandleFunc("GET /chat", s.handleTailorPage)
	root.HandleFunc("POST /chat", s.handleTailorSubmit)
	root.HandleFunc("GET /tailor", s.handleTailorPage)
	root.HandleFunc("GET /conversations", s.handleConversations)

	root.HandleFunc("GET /signin", s.handleSignInPage)
	root.HandleFunc("POST /signin", s.withAuthRateLimit("/signin", s.handleSignIn))
	root.HandleFunc("GET /signup", s.handleSignUpPage)
	root.HandleFunc("POST /signup", s.withAuthRateLimit("/signup", s.handleSignUp))
	root.HandleFunc("POST /signout", s.handleSignOut)

	root.HandleFunc("GET /auth/sso/login", s.handleSSOLogin)
	root.HandleFunc("GET /auth/sso/callback", s.handleSSOCallback)

	root.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	root.Handle("GET /static/", staticFromDisk(s.webDir))
	root.Handle("GET /favicon.ico", staticFromDisk(s.webDir))
	root.HandleFunc("/", s.handleNotFound)

	guard := NewGuard(s.sessions, s.log, s.metrics.guardDecisions)
	return s.loggingMiddleware(s.metrics.middleware(guard.Wrap(withNoCache(root))))
}
