// Package dashboard serves the generated report with a small static
// viewer page. The viewer fetches report.json relative to itself, so
// serving the report directory is all that is needed.
package dashboard

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

//go:embed index.html
var indexHTML []byte

// Server hosts the directory containing a written report file.
type Server struct {
	addr string
	dir  string
}

// New creates a Server for the directory holding reportPath.
func New(addr string, reportPath string) *Server {
	return &Server{
		addr: addr,
		dir:  filepath.Dir(reportPath),
	}
}

// WriteIndex places the viewer page next to the report file.
func (s *Server) WriteIndex() error {
	path := filepath.Join(s.dir, "index.html")
	if err := os.WriteFile(path, indexHTML, 0o644); err != nil {
		return fmt.Errorf("write dashboard page: %w", err)
	}

	return nil
}

// Handler serves the report directory.
func (s *Server) Handler() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}

// ListenAndServe blocks until the context ends or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
