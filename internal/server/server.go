// Package server exposes an [editor.Editor] over HTTP.
//
// The raster is served as PNG, the editor state as JSON, and every control
// as a small POST endpoint. A WebSocket at /ws accepts input events and
// pushes state snapshots and marker changes, which is what the bundled page
// at / uses.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/wavecue/internal/decoder"
	"github.com/MrWong99/wavecue/internal/editor"
	"github.com/MrWong99/wavecue/internal/health"
	"github.com/MrWong99/wavecue/internal/observe"
)

// Option configures a [Server].
type Option func(*Server)

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth mounts /healthz and /readyz from h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at /metrics, typically promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithProvider sets how POST /api/open fetches sources by key.
// Default: [decoder.AutoProvider].
func WithProvider(p decoder.BytesProvider) Option {
	return func(s *Server) { s.provider = p }
}

// WithPushInterval sets how often WebSocket clients are checked for a
// changed snapshot. Default: 50ms.
func WithPushInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pushEvery = d
		}
	}
}

// WithMaxUpload bounds the body of POST /api/upload. Default: 256 MiB.
func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// Server serves one editor.
type Server struct {
	ed             *editor.Editor
	metrics        *observe.Metrics
	health         *health.Handler
	metricsHandler http.Handler
	provider       decoder.BytesProvider
	pushEvery      time.Duration
	maxUpload      int64

	handler http.Handler

	mu   sync.Mutex
	subs map[chan float64]struct{}
}

// New creates a server for ed and registers for its marker changes.
func New(ed *editor.Editor, opts ...Option) *Server {
	s := &Server{
		ed:        ed,
		provider:  decoder.AutoProvider{},
		pushEvery: 50 * time.Millisecond,
		maxUpload: 256 << 20,
		subs:      make(map[chan float64]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = observe.Middleware(s.metrics)(mux)

	ed.OnStartPointChange(s.broadcastMarker)
	return s
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /frame.png", s.handleFrame)
	mux.HandleFunc("GET /api/state", s.handleState)

	mux.HandleFunc("POST /api/open", s.handleOpen)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/zoom-in", s.control(func(*http.Request) error { s.ed.ZoomIn(); return nil }))
	mux.HandleFunc("POST /api/zoom-out", s.control(func(*http.Request) error { s.ed.ZoomOut(); return nil }))
	mux.HandleFunc("POST /api/focus-marker", s.control(func(*http.Request) error { s.ed.FocusOnMarker(); return nil }))
	mux.HandleFunc("POST /api/set-marker", s.control(s.setMarker))
	mux.HandleFunc("POST /api/nudge", s.control(s.nudge))
	mux.HandleFunc("POST /api/seek", s.control(s.seek))
	mux.HandleFunc("POST /api/time-entry", s.control(s.timeEntry))
	mux.HandleFunc("POST /api/play", s.control(s.play))
	mux.HandleFunc("POST /api/pause", s.control(func(*http.Request) error { return s.ed.Pause() }))
	mux.HandleFunc("POST /api/toggle", s.control(func(r *http.Request) error { return s.ed.TogglePlay(r.Context()) }))
	mux.HandleFunc("POST /api/follow", s.control(s.follow))

	mux.HandleFunc("GET /ws", s.handleWS)

	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	slog.Info("server: listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return fmt.Errorf("server: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// subscribe returns a channel receiving marker changes until unsubscribe.
func (s *Server) subscribe() chan float64 {
	ch := make(chan float64, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan float64) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

// broadcastMarker fans a marker change out to WebSocket clients. Slow
// clients miss intermediate values; the next snapshot carries the latest.
func (s *Server) broadcastMarker(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- seconds:
		default:
		}
	}
}
