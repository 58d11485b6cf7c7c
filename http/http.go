package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
)

const DefaultShutdownTimeout = time.Second * 10

// Server is an HTTP server named in logs and errors.
type Server struct {
	Name string
	*http.Server
}

// ListenAndServe runs the given servers until ctx is done or one of them stops
// on its own. The remaining servers are then shut down, with shutdownTimeout
// to drain their connections.
//
// It returns the first error of a server that stopped unexpectedly or failed
// to shut down.
func ListenAndServe(ctx context.Context, shutdownTimeout time.Duration, servers ...Server) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2*len(servers))
	var wg sync.WaitGroup

	for _, s := range servers {
		wg.Add(1)

		go func(s Server) {
			defer wg.Done()

			logs.WithTag("server", s.Name).
				WithTag("addr", s.Addr).
				Info("starting server")

			if err := s.ListenAndServe(); err != http.ErrServerClosed {
				errs <- errors.New("server stopped").
					WithTag("server", s.Name).
					WithTag("addr", s.Addr).
					Wrap(err)
				cancel()
				return
			}

			logs.WithTag("server", s.Name).
				WithTag("addr", s.Addr).
				Info("stopping server")
		}(s)
	}

	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			errs <- errors.New("shutting down server failed").
				WithTag("server", s.Name).
				WithTag("addr", s.Addr).
				Wrap(err)
		}
	}

	wg.Wait()
	close(errs)
	return <-errs
}

// MetricsPathFormatter returns a path formatter that reports only the given
// paths. Any other path, and routing errors (301, 400, 404 or 405), are
// reported with an empty path.
func MetricsPathFormatter(paths ...string) metrics.PathFormater {
	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}

	return func(statusCode int, path string) string {
		switch statusCode {
		case http.StatusMovedPermanently,
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusMethodNotAllowed:
			return ""
		}

		if _, ok := known[path]; !ok {
			return ""
		}
		return path
	}
}
