// Package httpserver runs an http.Handler until its context is cancelled.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"trimfit/internal/logutil"
)

// ShutdownTimeout bounds how long in-flight requests may take once shutdown starts.
var ShutdownTimeout = 30 * time.Second

func newServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler: handler,
		// Uploads and tailoring calls can take a while.
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       5 * time.Minute,
	}
}

// Serve listens on bind and serves handler until ctx is done, then shuts
// down gracefully. A nil error means the server was stopped by ctx.
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, handler)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler) error {
	server := newServer(handler)
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", ln.Addr().String()).Logger()

	errc := make(chan error, 1)
	go func() {
		log.Info().Msg("starting http server")
		errc <- server.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("shutdown completed")
	return nil
}
