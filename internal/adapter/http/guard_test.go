package adapthttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trimfit/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		want RouteClass
	}{
		{"/", RouteProtected},
		{"/chat", RouteProtected},
		{"/conversations", RouteProtected},
		{"/signin", RoutePublic},
		{"/signup", RoutePublic},
		{"/api/health", RouteBypass},
		{"/api", RouteBypass},
		{"/_next/static/chunk.js", RouteBypass},
		{"/_next/image", RouteBypass},
		{"/favicon.ico", RouteBypass},
		{"/chat/123", RouteOther},
		{"/signin/", RouteOther},
		{"/pricing", RouteOther},
		{"/static/app.css", RouteOther},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.path))
		})
	}
}

// stubSessions implements SessionReader with function fields.
type stubSessions struct {
	decodeFn func(r *http.Request) (session.Payload, bool)
	updateFn func(r *http.Request) (*session.Renewal, error)
}

func (s *stubSessions) Decode(r *http.Request) (session.Payload, bool) {
	if s.decodeFn != nil {
		return s.decodeFn(r)
	}
	return session.Payload{}, false
}

func (s *stubSessions) Update(r *http.Request) (*session.Renewal, error) {
	if s.updateFn != nil {
		return s.updateFn(r)
	}
	return nil, nil
}

func (s *stubSessions) Cookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{Name: session.CookieName, Value: token, Expires: expires}
}

func validSession(*http.Request) (session.Payload, bool) {
	return session.Payload{UserID: "u1"}, true
}

func serveGuard(t *testing.T, g *Guard, path string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	w := httptest.NewRecorder()
	g.Wrap(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w, reached
}

func TestGuard_FailsOpenOnError(t *testing.T) {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "d"}, []string{"class", "decision"})
	g := NewGuard(&stubSessions{
		decodeFn: validSession,
		updateFn: func(*http.Request) (*session.Renewal, error) { return nil, errors.New("signing failed") },
	}, zerolog.Nop(), decisions)

	w, reached := serveGuard(t, g, "/chat")
	require.True(t, reached)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Values("Set-Cookie"))
	require.Equal(t, 1.0, testutil.ToFloat64(decisions.WithLabelValues("protected", "error")))
}

func TestGuard_FailsOpenOnPanic(t *testing.T) {
	g := NewGuard(&stubSessions{
		decodeFn: func(*http.Request) (session.Payload, bool) { panic("boom") },
	}, zerolog.Nop(), nil)

	w, reached := serveGuard(t, g, "/")
	require.True(t, reached)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGuard_Decisions(t *testing.T) {
	expires := time.Now().Add(session.TTL)
	renewing := &stubSessions{
		decodeFn: validSession,
		updateFn: func(*http.Request) (*session.Renewal, error) {
			return &session.Renewal{Token: "fresh", Expires: expires}, nil
		},
	}

	t.Run("protected without session", func(t *testing.T) {
		w, reached := serveGuard(t, NewGuard(&stubSessions{}, zerolog.Nop(), nil), "/conversations")
		require.False(t, reached)
		require.Equal(t, http.StatusFound, w.Code)
		require.Equal(t, SignInPath, w.Header().Get("Location"))
	})

	t.Run("protected with session", func(t *testing.T) {
		w, reached := serveGuard(t, NewGuard(renewing, zerolog.Nop(), nil), "/")
		require.True(t, reached)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, "fresh", cookies[0].Value)
	})

	t.Run("public with session", func(t *testing.T) {
		w, reached := serveGuard(t, NewGuard(renewing, zerolog.Nop(), nil), "/signup")
		require.False(t, reached)
		require.Equal(t, "/", w.Header().Get("Location"))
	})

	t.Run("public without session", func(t *testing.T) {
		_, reached := serveGuard(t, NewGuard(&stubSessions{}, zerolog.Nop(), nil), "/signin")
		require.True(t, reached)
	})

	t.Run("bypass never decodes", func(t *testing.T) {
		g := NewGuard(&stubSessions{
			decodeFn: func(*http.Request) (session.Payload, bool) {
				t.Fatal("decode called for bypassed path")
				return session.Payload{}, false
			},
		}, zerolog.Nop(), nil)
		_, reached := serveGuard(t, g, "/api/tailor")
		require.True(t, reached)
	})

	t.Run("other routes are not renewed", func(t *testing.T) {
		w, reached := serveGuard(t, NewGuard(renewing, zerolog.Nop(), nil), "/pricing")
		require.True(t, reached)
		require.Empty(t, w.Result().Cookies())
	})
}
