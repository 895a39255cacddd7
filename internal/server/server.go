package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/thruflo/stagehand/internal/auth"
	"github.com/thruflo/stagehand/internal/config"
	"github.com/thruflo/stagehand/internal/logging"
	"github.com/thruflo/stagehand/internal/render"
	"github.com/thruflo/stagehand/internal/stage"
)

// Server serves one stage.
type Server struct {
	stage        *stage.Stage
	port         int
	passwordHash string
	render       render.Options
	log          *logging.Logger

	tokens   *auth.Tokens
	limiter  *auth.Limiter
	upgrader websocket.Upgrader
	engine   *gin.Engine

	// lifetime bounds runs started over HTTP and open websockets; request
	// contexts end with the request.
	lifetime context.Context
	cancel   context.CancelFunc

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	started  bool
}

// Config holds server configuration options.
type Config struct {
	Port         int
	PasswordHash string // empty disables authentication
	Render       render.Options
	Limits       auth.LimitConfig
	Logger       *logging.Logger
}

// New creates a Server for st.
func New(st *stage.Stage, cfg Config) (*Server, error) {
	if st == nil {
		return nil, errors.New("stage is required")
	}
	if cfg.PasswordHash != "" {
		if err := auth.ValidateHash(cfg.PasswordHash); err != nil {
			return nil, fmt.Errorf("invalid password hash: %w", err)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Render.BoxSize <= 0 {
		cfg.Render.BoxSize = st.BoxSize()
	}

	lifetime, cancel := context.WithCancel(context.Background())
	s := &Server{
		stage:        st,
		port:         cfg.Port,
		passwordHash: cfg.PasswordHash,
		render:       cfg.Render,
		log:          cfg.Logger.With("component", "server"),
		tokens:       auth.NewTokens(auth.DefaultTokenTTL),
		limiter:      auth.NewLimiter(cfg.Limits),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
			Error:           upgradeError,
		},
		lifetime: lifetime,
		cancel:   cancel,
	}
	s.engine = s.routes()
	return s, nil
}

// NewFromConfig creates a Server from the server section of a config file.
func NewFromConfig(st *stage.Stage, cfg config.ServerConfig, logger *logging.Logger) (*Server, error) {
	return New(st, Config{
		Port:         cfg.Port,
		PasswordHash: cfg.PasswordHash,
		Logger:       logger,
	})
}

// Handler returns the router, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// AuthRequired reports whether a password hash is configured.
func (s *Server) AuthRequired() bool {
	return s.passwordHash != ""
}

// Start listens and serves until Stop is called. Token and limiter sweeps
// run until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:     s.engine,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.started = true
	s.mu.Unlock()

	go s.tokens.SweepEvery(ctx, time.Hour)
	go s.sweepLimiter(ctx)

	s.log.Info("listening", "addr", listener.Addr().String(), "auth", s.AuthRequired())
	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts the server down, closing websockets and cancelling runs it
// started.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.started = false
	return nil
}

// ListenAddr returns the address the server is listening on, or "" if not
// started. Useful with port 0.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Sweep()
		}
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	if s.AuthRequired() {
		r.POST("/auth", s.handleAuth)
	}

	api := r.Group("/")
	api.Use(s.requireToken())

	api.GET("/sprites", s.handleSprites)
	api.POST("/sprites", s.handleAddSprite)
	api.DELETE("/sprites/:id", s.handleRemoveSprite)
	api.POST("/sprites/:id/select", s.handleSelect)
	api.POST("/sprites/:id/hero", s.handleToggleHero)
	api.POST("/sprites/:id/position", s.handlePosition)

	api.POST("/blocks", s.handleDropBlock)
	api.POST("/blocks/reorder", s.handleReorder)
	api.PUT("/blocks/:index", s.handleUpdateBlock)
	api.DELETE("/blocks/:index", s.handleRemoveBlock)
	api.POST("/blocks/:index/sub", s.handleAppendSubBlock)

	api.POST("/run", s.handleRun)
	api.POST("/reset", s.handleReset)
	api.GET("/collisions", s.handleCollisions)
	api.GET("/render.png", s.handleRender)
	api.GET("/ws", s.handleWebsocket)

	return r
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// requireToken rejects requests without a valid token when authentication
// is configured.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.AuthRequired() {
			c.Next()
			return
		}

		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		if !s.tokens.Valid(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}

type authRequest struct {
	Password string `json:"password" form:"password" binding:"required"`
}

// handleAuth handles POST /auth. JSON and form bodies are accepted.
func (s *Server) handleAuth(c *gin.Context) {
	client := auth.ClientIP(c.Request)
	if d := s.limiter.Allow(client); !d.Allowed {
		c.Header("Retry-After", fmt.Sprint(int(d.RetryAfter.Seconds()+0.999)))
		msg := "rate limit exceeded"
		if d.Blocked {
			msg = "too many failed attempts"
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": msg})
		return
	}

	var req authRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}

	valid, err := auth.VerifyPassword(req.Password, s.passwordHash)
	if err != nil {
		s.log.Error("password verification failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !valid {
		s.limiter.Failed(client)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid password"})
		return
	}
	s.limiter.Succeeded(client)

	token, err := s.tokens.Issue()
	if err != nil {
		s.log.Error("token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
