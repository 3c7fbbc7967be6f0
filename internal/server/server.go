package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/internal/analysis"
	"github.com/Hanishchow/Biocore-agent/internal/store"
)

const (
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
	maxBodyBytes    = 10 << 20
)

// Analyzer runs analyses and describes the model behind them.
type Analyzer interface {
	Run(ctx context.Context, req analysis.Request) (*analysis.Response, error)
	Model() string
	APIKeySet() bool
}

// ReportFinder reads archived analyses back.
type ReportFinder interface {
	FindAnalysisBySlug(ctx context.Context, slug string) (store.Analysis, error)
	ListAnalysesByPDBID(ctx context.Context, pdbID string, limit int) ([]store.Analysis, error)
}

type Server struct {
	Engine *gin.Engine

	analyzer Analyzer
	reports  ReportFinder
	log      *zap.Logger
}

// NewServer builds the router. reports may be nil, in which case the
// /reports routes are not registered.
func NewServer(analyzer Analyzer, reports ReportFinder, log *zap.Logger) *Server {
	e := gin.New()
	e.HandleMethodNotAllowed = true

	s := &Server{
		Engine:   e,
		analyzer: analyzer,
		reports:  reports,
		log:      log.Named("http"),
	}
	s.Engine.Use(s.requestMiddleware())
	s.Engine.Use(gin.CustomRecovery(s.handlePanic))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.Engine.POST("/biocore", s.handleBiocore)
	s.Engine.GET("/health", s.handleHealth)
	s.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.reports != nil {
		s.Engine.GET("/reports", s.handleListReports)
		s.Engine.GET("/reports/:slug", s.handleGetReport)
	}
}

// requestMiddleware tags every request with an ID, attaches a logger
// carrying it and writes one access line when the request is done.
func (s *Server) requestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		log := s.log.With(zap.String("request_id", requestID))
		c.Set(loggerKey, log)

		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) handlePanic(c *gin.Context, recovered any) {
	requestLogger(c, s.log).Error("panic while handling request", zap.Any("panic", recovered))
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(fmt.Sprint(recovered)))
}

func requestLogger(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := c.Get(loggerKey); ok {
		if log, ok := l.(*zap.Logger); ok {
			return log
		}
	}
	return fallback
}

func errorBody(message string) gin.H {
	return gin.H{"status": "error", "message": message}
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
