package adapthttp

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"trimfit/internal/logutil"

	"github.com/google/uuid"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) code() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}

// loggingMiddleware attaches a request scoped logger to the context and logs
// every request once it completes.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		log := s.log.With().Str("request_id", reqID).Logger()
		r = r.WithContext(logutil.WithLogger(r.Context(), log))

		rec := &statusRecorder{ResponseWriter: w}
		rec.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(rec, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.code()).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return host
}

func (s *Server) withAuthRateLimit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.authRateLimit <= 0 {
			next(w, r)
			return
		}
		key := "ip:" + clientIP(r) + ":" + route
		d := s.limiter.Allow(r.Context(), key, s.authRateLimit, s.authRateWindow)
		if !d.Allowed {
			s.metrics.rateLimited.WithLabelValues(route).Inc()
			if retry := int(time.Until(d.WindowEnd).Seconds()); retry > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
			}
			s.renderFormError(w, r, http.StatusTooManyRequests, formPageFor(route), "Too many attempts, try again later", nil, formValues(r))
			return
		}
		next(w, r)
	}
}
