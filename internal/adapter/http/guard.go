package adapthttp

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"trimfit/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// RouteClass groups paths by how the guard treats them.
type RouteClass int

const (
	// RouteOther paths are forwarded untouched.
	RouteOther RouteClass = iota
	// RouteProtected paths need a valid session.
	RouteProtected
	// RoutePublic paths are the auth forms, which signed-in users skip.
	RoutePublic
	// RouteBypass paths never reach the guard logic.
	RouteBypass
)

func (c RouteClass) String() string {
	switch c {
	case RouteProtected:
		return "protected"
	case RoutePublic:
		return "public"
	case RouteBypass:
		return "bypass"
	default:
		return "other"
	}
}

var (
	protectedRoutes = []string{"/", "/chat", "/conversations"}
	publicRoutes    = []string{"/signin", "/signup"}
	bypassPrefixes  = []string{"api", "_next/static", "_next/image", "favicon.ico"}
)

// SignInPath is where unauthenticated visitors of protected pages are sent.
const SignInPath = "/signin"

// Classify returns the class of path.
func Classify(path string) RouteClass {
	rest := strings.TrimPrefix(path, "/")
	for _, p := range bypassPrefixes {
		if strings.HasPrefix(rest, p) {
			return RouteBypass
		}
	}
	for _, p := range protectedRoutes {
		if path == p {
			return RouteProtected
		}
	}
	for _, p := range publicRoutes {
		if path == p {
			return RoutePublic
		}
	}
	return RouteOther
}

// SessionReader is what the guard needs from the session manager.
type SessionReader interface {
	Decode(r *http.Request) (session.Payload, bool)
	Update(r *http.Request) (*session.Renewal, error)
	Cookie(token string, expires time.Time) *http.Cookie
}

// Guard redirects requests based on the session cookie.
type Guard struct {
	sessions  SessionReader
	log       zerolog.Logger
	decisions *prometheus.CounterVec
}

// NewGuard creates a Guard. decisions may be nil.
func NewGuard(sessions SessionReader, log zerolog.Logger, decisions *prometheus.CounterVec) *Guard {
	return &Guard{sessions: sessions, log: log, decisions: decisions}
}

type verdict struct {
	redirect string
	cookie   *http.Cookie
	decision string
}

// Wrap applies the guard to next. Errors while deciding let the request
// through unchanged.
func (g *Guard) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := Classify(r.URL.Path)
		if class == RouteBypass {
			next.ServeHTTP(w, r)
			return
		}

		v, err := g.evaluate(r, class)
		if err != nil {
			g.log.Error().Err(err).Str("path", r.URL.Path).Msg("route guard failed, allowing request")
			g.count(class, "error")
			next.ServeHTTP(w, r)
			return
		}
		g.count(class, v.decision)

		if v.redirect != "" {
			http.Redirect(w, r, v.redirect, http.StatusFound)
			return
		}
		if v.cookie != nil {
			http.SetCookie(w, v.cookie)
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) evaluate(r *http.Request, class RouteClass) (v verdict, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			v, err = verdict{}, fmt.Errorf("panic: %v", rec)
		}
	}()

	_, valid := g.sessions.Decode(r)

	switch {
	case class == RouteProtected && !valid:
		return verdict{redirect: SignInPath, decision: "redirect_signin"}, nil
	case class == RouteProtected:
		renewal, err := g.sessions.Update(r)
		if err != nil {
			return verdict{}, fmt.Errorf("renew session: %w", err)
		}
		if renewal == nil {
			return verdict{decision: "forward"}, nil
		}
		return verdict{cookie: g.sessions.Cookie(renewal.Token, renewal.Expires), decision: "renew"}, nil
	case class == RoutePublic && valid && r.URL.Path != "/":
		return verdict{redirect: "/", decision: "redirect_home"}, nil
	default:
		return verdict{decision: "forward"}, nil
	}
}

func (g *Guard) count(class RouteClass, decision string) {
	if g.decisions == nil {
		return
	}
	g.decisions.WithLabelValues(class.String(), decision).Inc()
}
