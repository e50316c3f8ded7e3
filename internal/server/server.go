package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/internal/config"
	"github.com/kapu/sitcom-match-go/internal/constants"
	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/service/ai"
	"github.com/kapu/sitcom-match-go/internal/service/analysis"
	"github.com/kapu/sitcom-match-go/internal/service/auth"
)

type Analyzer interface {
	Analyze(ctx context.Context, req analysis.AnalyzeRequest) (*analysis.Outcome, error)
	DefaultStrategy() domain.Strategy
}

type BundleCollector interface {
	Collect(ctx context.Context, fid int64) (*domain.UserData, error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, token, audience string) (*auth.Identity, error)
	Audience(requestHost string) string
}

type LLMStatus interface {
	Status() ai.Status
}

type Config struct {
	Port            int
	Mode            string
	Diagnostics     bool
	AllowedOrigins  []string
	FallbackEnabled bool
}

type Dependencies struct {
	Analyzer  Analyzer
	Fallback  *analysis.FallbackGenerator
	Collector BundleCollector
	Verifier  TokenVerifier
	// LLM is nil when the fixture completer is in use.
	LLM          LLMStatus
	CatalogSize  int
	KeyReport    func() []config.KeyStatus
	FixtureModes []string
}

// Server owns the gin engine and the HTTP listener.
type Server struct {
	cfg        Config
	deps       Dependencies
	policy     analysisPolicy
	router     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
}

func New(cfg Config, deps Dependencies, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		cfg:  cfg,
		deps: deps,
		policy: analysisPolicy{
			fallback: deps.Fallback,
			enabled:  cfg.FallbackEnabled && deps.Fallback != nil,
			logger:   logger,
		},
		logger: logger,
	}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: constants.ServerConfig.ReadHeaderTimeout,
		WriteTimeout:      constants.ServerConfig.WriteTimeout,
	}
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(
		requestID(),
		requestLogger(s.logger),
		s.recovery(),
		cors.New(corsConfig(s.cfg.AllowedOrigins)),
		limitBody(constants.ServerConfig.MaxBodyBytes),
	)

	r.GET("/healthz", s.handleHealth)

	for _, path := range []string{"/analyze", "/api/analyze"} {
		r.POST(path, s.handleAnalyze)
	}
	for _, path := range []string{"/connect", "/api/farcaster/connect"} {
		r.POST(path, s.handleConnect)
	}
	for _, path := range []string{"/me", "/api/farcaster/me"} {
		r.GET(path, s.handleMe)
	}

	if s.cfg.Diagnostics {
		for _, path := range []string{"/debug/env", "/api/test-env"} {
			r.GET(path, s.handleEnv)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{
			Error:     "Route not found",
			Code:      "NOT_FOUND",
			Timestamp: timestamp(),
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening",
			zap.String("addr", s.httpServer.Addr),
			zap.Bool("diagnostics", s.cfg.Diagnostics),
			zap.Bool("fallback", s.policy.enabled),
		)
		if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerConfig.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
