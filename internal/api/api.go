// Package api provides HTTP handlers and the main API server logic for
// ModalPipe.
//
// It exposes the engine's public command surface (show, hide, hide-all,
// force-close, reset-frequency, status, dev-mode) and an event ingestion
// surface through which an out-of-process host adapter feeds scroll,
// click, pointer, key, and submit activity into the page bus.
//
// Diagnostic logging can be toggled at runtime: a `debug` query parameter
// on any request flips the process log level, mirroring the original
// URL-parameter debug switch. The toggle affects diagnostics only, never
// behavior.
package api

import (
	"log/slog"
	"net/http"

	"github.com/BTreeMap/ModalPipe/internal/page"
	"github.com/BTreeMap/ModalPipe/internal/registry"
)

// DefaultAddr is the default API listen address.
const DefaultAddr = ":8080"

// Opts holds configuration applied by Option functions.
type Opts struct {
	Addr     string
	LogLevel *slog.LevelVar
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithLogLevel provides the level var toggled by the debug query parameter.
func WithLogLevel(level *slog.LevelVar) Option {
	return func(o *Opts) { o.LogLevel = level }
}

// Server exposes the engine over HTTP.
type Server struct {
	registry *registry.Registry
	bus      *page.Bus
	host     *page.HeadlessHost
	logLevel *slog.LevelVar
}

// NewServer creates an API server over the given engine components.
func NewServer(reg *registry.Registry, bus *page.Bus, host *page.HeadlessHost, logLevel *slog.LevelVar) *Server {
	return &Server{registry: reg, bus: bus, host: host, logLevel: logLevel}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/modals", s.modalsHandler)
	mux.HandleFunc("/modals/", s.modalCommandHandler)
	mux.HandleFunc("/events", s.eventsHandler)
	mux.HandleFunc("/events/", s.eventIngestHandler)
	return s.debugToggle(mux)
}

// debugToggle flips the process log level when a request carries a debug
// query parameter. Diagnostics only; behavior is unchanged.
func (s *Server) debugToggle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.logLevel != nil {
			switch r.URL.Query().Get("debug") {
			case "1", "true":
				s.logLevel.Set(slog.LevelDebug)
			case "0", "false":
				s.logLevel.Set(slog.LevelInfo)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the API server and blocks until it exits.
func Run(reg *registry.Registry, bus *page.Bus, host *page.HeadlessHost, opts ...Option) error {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	server := NewServer(reg, bus, host, cfg.LogLevel)
	slog.Info("ModalPipe API running", "addr", addr)
	return http.ListenAndServe(addr, server.Handler())
}
