package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/integrations/gallery"
)

const shutdownTimeout = 5 * time.Second

// Server serves a feed directory over the NuGet v2 subset the gallery
// client uses:
//
//	GET /FindPackagesById()?id='Name'
//	GET /package/{id}/{version}
//	GET /index.json
//	GET /healthz
//
// The index is reloaded on every listing request, so a feed rebuilt while
// the server runs is picked up without a restart.
type Server struct {
	dir    string
	logger *log.Logger
	router chi.Router
}

// NewServer creates a Server for the feed in dir.
func NewServer(dir string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{dir: dir, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))
	r.Use(s.logRequests)

	r.Get("/FindPackagesById()", s.handleFindPackagesByID)
	r.Get("/FindPackagesById", s.handleFindPackagesByID)
	r.Get("/package/{id}/{version}", s.handlePackage)
	r.Get("/"+IndexFile, s.handleIndex)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("serving feed", "dir", s.dir, "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleFindPackagesByID(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimSpace(r.URL.Query().Get("id")), "'\"")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	ix, err := LoadIndex(s.dir, s.logger)
	if err != nil {
		s.logger.Error("load index", "dir", s.dir, "err", err)
		http.Error(w, "index unavailable", http.StatusInternalServerError)
		return
	}

	entries := ix.Versions(id)
	versions := make([]gallery.Version, 0, len(entries))
	latestSet := false
	for _, e := range entries {
		pre := strings.Contains(e.Version, "-")
		v := gallery.Version{ID: e.Name, Version: e.Version, IsPrerelease: pre}
		if !pre && !latestSet {
			v.IsLatest, latestSet = true, true
		}
		versions = append(versions, v)
	}

	w.Header().Set("Content-Type", "application/atom+xml;type=feed;charset=utf-8")
	if err := gallery.WriteFeed(w, baseURL(r), versions); err != nil {
		s.logger.Warn("write feed", "err", err)
	}
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	id, version := chi.URLParam(r, "id"), chi.URLParam(r, "version")
	if perrors.ValidatePackageName(id) != nil || perrors.ValidateVersion(version) != nil {
		http.Error(w, "invalid package identity", http.StatusBadRequest)
		return
	}
	ix, err := LoadIndex(s.dir, s.logger)
	if err != nil {
		http.Error(w, "index unavailable", http.StatusInternalServerError)
		return
	}
	e, ok := ix.Lookup(id, version)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+e.File+`"`)
	http.ServeFile(w, r, filepath.Join(s.dir, filepath.Base(e.File)))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ix, err := LoadIndex(s.dir, s.logger)
	if err != nil {
		http.Error(w, "index unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(ix)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"req_id", middleware.GetReqID(r.Context()),
		)
	})
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}
