// File: internal/server/server.go
// Description: Thin HTTP surface over the healer. Sessions start with a
// POST, state reads come from the store, and live progress is mirrored over
// SSE and websocket from the broadcast registry.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/config"
	"github.com/xkilldash9x/mendbot/internal/healer"
	"github.com/xkilldash9x/mendbot/internal/progress"
)

// Server exposes the healing API.
type Server struct {
	cfg      config.ServerConfig
	healer   *healer.Healer
	store    schemas.SessionStore
	registry *progress.Registry
	logger   *zap.Logger
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

// New wires the routes. The registry must be the same instance the healer
// publishes to.
func New(cfg config.ServerConfig, h *healer.Healer, store schemas.SessionStore, registry *progress.Registry, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		healer:   h,
		store:    store,
		registry: registry,
		logger:   logger.Named("server"),
		engine:   gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The API is same-credential automation, not a browser app.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	v1 := s.engine.Group("/api/v1")
	v1.POST("/heal", s.handleHeal)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.GET("/sessions/:id/events", s.handleEvents)
	v1.GET("/sessions/:id/ws", s.handleWebsocket)
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	return s
}

// Run serves until ctx is cancelled, then drains within the configured
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("HTTP server listening.", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Request handled.",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) handleHeal(c *gin.Context) {
	var req healer.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	id, err := s.healer.StartHealing(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, schemas.ErrInvalidURL) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session_id": id})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, schemas.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// handleEvents streams the session's progress as server-sent events until
// the channel is torn down or the client disconnects.
func (s *Server) handleEvents(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.Get(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	events, cancel := s.registry.Subscribe(id)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// handleWebsocket mirrors the event stream over a websocket. Client frames
// are read and discarded so control messages keep flowing.
func (s *Server) handleWebsocket(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.Get(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed.", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := s.registry.Subscribe(id)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				deadline := time.Now().Add(time.Second)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"), deadline)
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
