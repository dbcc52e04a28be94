package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/comms"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/config"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/room"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type BroadcastChannel chan Request

// Server stores all connection dependencies for the websocket server.
type Server struct {
	log    *zap.Logger
	config *config.Config

	// connections and registry are only mutated by the dispatcher goroutine.
	connections *comms.ConnectionStore
	registry    *room.Registry

	broadcast      BroadcastChannel
	done           chan struct{}
	socketUpgrader websocket.Upgrader
}

// NewServer constructs a new Server instance.
func NewServer(log *zap.Logger, cfg *config.Config) *Server {
	connections := &comms.ConnectionStore{}
	s := &Server{
		log:         log,
		config:      cfg,
		connections: connections,
		registry:    room.NewRegistry(log.Named("rooms"), connections),
		broadcast:   make(BroadcastChannel),
		done:        make(chan struct{}),
	}
	s.socketUpgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.checkOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// checkOrigin returns true if the origin is valid. Requests without an
// Origin header come from non-browser clients and are let through. With no
// frontend host configured every browser origin is refused.
func (s *Server) checkOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	return s.config.FrontendHost != "" && strings.Contains(origin, s.config.FrontendHost)
}

// Handler returns the HTTP surface: the websocket endpoint, a health check,
// a read-only room lookup and, if configured, static assets.
func (s *Server) Handler() http.Handler {
	if !s.config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log.Named("http")))
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: s.checkOrigin,
		AllowMethods:    []string{"GET", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/ws", s.connectionHandler)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/rooms/:id", s.roomHandler)

	if s.config.StaticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.config.StaticDir))))
	}
	return r
}

// Start runs the dispatcher and serves HTTP on the configured port until ctx
// is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.config.Port)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			s.log.Error("Port is busy, terminating", zap.String("port", s.config.Port))
		} else {
			s.log.Error("Unable to listen", zap.String("port", s.config.Port), zap.Error(err))
		}
		return err
	}

	go s.RunDispatcher(ctx)

	httpServer := &http.Server{Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.WriteWait)
		defer cancel()
		// Hijacked websocket connections are not tracked by http.Server.
		s.connections.CloseAll()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("Unclean HTTP shutdown", zap.Error(err))
		}
	}()

	s.log.Info("Started server", zap.String("port", s.config.Port))
	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("Server failed during Serve", zap.Error(err))
		return err
	}
	return nil
}

// roomHandler serves a room's membership snapshot.
func (s *Server) roomHandler(c *gin.Context) {
	reply := make(chan roomQueryReply, 1)
	if !s.submit(Request{Type: roomQueryRequest, RoomID: c.Param("id"), Reply: reply}) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
		return
	}
	select {
	case r := <-reply:
		if !r.ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room does not exist"})
			return
		}
		c.JSON(http.StatusOK, r.info)
	case <-c.Request.Context().Done():
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
