// Package server provides the HTTP server for the signcam live view.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/signcam/internal/app"
	"github.com/ayusman/signcam/internal/server/api"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const (
	// DefaultPollInterval is how often the index page polls /text.
	DefaultPollInterval = 200 * time.Millisecond
	// DefaultStreamRetry is how long the index page waits before reopening
	// /video after the image fails to load.
	DefaultStreamRetry = time.Second
)

// Config holds the server configuration.
type Config struct {
	App          *app.App
	Title        string
	PollInterval time.Duration
	StreamRetry  time.Duration
}

// Server is the HTTP front end of the live view.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Title == "" {
		config.Title = "Sign Language Detection"
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.StreamRetry <= 0 {
		config.StreamRetry = DefaultStreamRetry
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/text", s.handleText)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/video", NewStreamHandler(s.config.App))
	s.mux.Handle("/ws/status", NewStatusHandler(s.config.App.Status()))

	// Session journal is optional
	if st := s.config.App.Store(); st != nil {
		sessions := api.NewSessionsHandler(st)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type indexData struct {
	Title       string
	Status      string
	Policy      string
	PollMillis  int64
	RetryMillis int64
}

// handleIndex renders the live view page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := indexData{
		Title:       s.config.Title,
		Status:      s.config.App.Status().Get(),
		Policy:      string(s.config.App.Policy()),
		PollMillis:  s.config.PollInterval.Milliseconds(),
		RetryMillis: s.config.StreamRetry.Milliseconds(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Printf("index template error: %v", err)
	}
}

// handleText returns the current status string as plain text.
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(s.config.App.Status().Get()))
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":      "ok",
		"uptime":      time.Since(s.start).String(),
		"camera_open": s.config.App.CameraOpen(),
		"streaming":   s.config.App.Streaming(),
		"policy":      string(s.config.App.Policy()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// Open streams are cancelled as soon as shutdown begins so they do not hold
// the server for the full timeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve is like Run but uses an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on http://%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	cancelStreams()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return err
	}
	return nil
}
