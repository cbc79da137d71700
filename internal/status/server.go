// Package status serves a small read-only HTTP view of a running battle
// node, next to the UDP socket the battle itself runs on.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pokeduel/internal/peer"
)

// SnapshotFunc returns the current session state.
type SnapshotFunc func() peer.Snapshot

// Server exposes GET /healthz and GET /status.
type Server struct {
	snapshot SnapshotFunc
	logger   *slog.Logger
	srv      *http.Server
	started  time.Time
}

// NewServer builds the HTTP server on the given port.
func NewServer(port int, snapshot SnapshotFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		snapshot: snapshot,
		logger:   logger.With("component", "status"),
		started:  time.Now(),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.health)
	router.GET("/status", s.status)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status api listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status api failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}
