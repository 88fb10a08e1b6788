// Package server exposes an evaluated MD5 model over HTTP for browser
// previews: JSON endpoints for single frames and a websocket that streams
// playback at the clip frame rate.
package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/md5skel/internal/engine/model"
	"github.com/Faultbox/md5skel/internal/engine/texture"
	"github.com/Faultbox/md5skel/internal/logger"
)

// Options configures a Server.
type Options struct {
	Settings    model.Settings // Base settings, query parameters override per request
	Textures    texture.Loader // Optional, enables texture lookups
	TextureType texture.Type
}

// Server serves one model and its animation.
type Server struct {
	builder *model.Builder
	opts    Options
	router  *mux.Router
	log     *zap.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*playClient
}

// New creates a server for the model held by b.
func New(b *model.Builder, opts Options) *Server {
	if opts.TextureType == "" {
		opts.TextureType = texture.Diffuse
	}

	s := &Server{
		builder: b,
		opts:    opts,
		router:  mux.NewRouter(),
		log:     logger.Named("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
		clients: make(map[uuid.UUID]*playClient),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/model", s.handleModel).Methods(http.MethodGet)
	api.HandleFunc("/bind", s.handleBind).Methods(http.MethodGet)
	api.HandleFunc("/frame/{frame}", s.handleFrame).Methods(http.MethodGet)
	api.HandleFunc("/texture/{mesh:[0-9]+}", s.handleTexture).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/play", s.handlePlay)

	return s
}

// Handler returns the router wrapped in recovery and request logging.
func (s *Server) Handler() http.Handler {
	h := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.log)),
		handlers.PrintRecoveryStack(true),
	)(s.router)

	return handlers.CustomLoggingHandler(io.Discard, h, func(_ io.Writer, p handlers.LogFormatterParams) {
		s.log.Debug("request",
			zap.String("method", p.Request.Method),
			zap.String("path", p.URL.Path),
			zap.Int("status", p.StatusCode),
			zap.Int("size", p.Size))
	})
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("shutdown failed", zap.Error(err))
		}
		s.closeClients()
	}()

	s.log.Info("starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "serving on %s", addr)
	}
	return nil
}

// Clients returns the number of open playback connections.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) register(c *playClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *Server) unregister(c *playClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c.id)
}

// closeClients closes hijacked websocket connections, which Shutdown does
// not track.
func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.conn.Close()
	}
}
