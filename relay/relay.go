// Package relay is the remote hosting relay. Clients and hosts join a room
// over a websocket; the relay forwards requests to the members of the
// opposite type and responses back to the caller, and tells clients when
// their hosts come and go.
package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Path of the websocket endpoint.
const NamespacePath = "/bio-namespace"

type Config struct {
	Addr string
	// RateLimit is the sustained number of routed events per second and
	// member. Burst is the bucket size.
	RateLimit      rate.Limit
	Burst          int
	SendBuffer     int
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		Addr:           ":3000",
		RateLimit:      200,
		Burst:          400,
		SendBuffer:     256,
		MaxMessageSize: 4 << 20,
	}
}

type Server struct {
	cfg      Config
	hub      *Hub
	log      *zap.Logger
	upgrader websocket.Upgrader
	engine   *gin.Engine

	mu      sync.Mutex
	members map[*Member]struct{}
	wg      sync.WaitGroup
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

func New(cfg Config, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	s := &Server{
		cfg:     cfg,
		log:     zap.NewNop(),
		members: make(map[*Member]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(NamespacePath, s.handleWebSocket)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.hub.Rooms())
	})
	s.engine = r
	return s
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	m := newMember(conn, s.cfg)
	s.mu.Lock()
	s.members[m] = struct{}{}
	s.wg.Add(2)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		m.writePump()
	}()
	go func() {
		defer s.wg.Done()
		m.readPump(s.hub, s.cfg.MaxMessageSize, s.log)
		s.mu.Lock()
		delete(s.members, m)
		s.mu.Unlock()
	}()
}

// Close disconnects every member and waits for their pumps to exit.
func (s *Server) Close() {
	s.mu.Lock()
	for m := range s.members {
		m.close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Run serves on cfg.Addr until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("relay listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if lerr := <-errCh; lerr != nil && !errors.Is(lerr, http.ErrServerClosed) {
		return lerr
	}
	return err
}
