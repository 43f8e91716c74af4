// Package api exposes reframing runs over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forPelevin/shortify/internal/pipeline"
	"github.com/forPelevin/shortify/internal/runstore"
	"github.com/forPelevin/shortify/internal/usecase"
)

// Runner prepares and executes jobs. *pipeline.Pipeline implements it.
type Runner interface {
	Prepare(ctx context.Context, req pipeline.Request) (pipeline.Job, error)
	Execute(ctx context.Context, job pipeline.Job) (usecase.Result, error)
}

// Ledger reads recorded runs. *runstore.Store implements it.
type Ledger interface {
	Get(ctx context.Context, id string) (runstore.Run, error)
	List(ctx context.Context, limit int) ([]runstore.Run, error)
}

type Options struct {
	Runner Runner
	Ledger Ledger
	// UploadDir holds uploaded sources until their run ends.
	UploadDir      string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server runs uploaded videos in the background and reports on them.
type Server struct {
	opts Options
	log  *slog.Logger

	// base is cancelled by Shutdown and parents every background run.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	base, cancel := context.WithCancel(context.Background())
	return &Server{opts: opts, log: log, base: base, cancel: cancel}
}

// Handler returns the gin engine serving the API.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		gin.CustomRecovery(func(c *gin.Context, err any) {
			s.log.ErrorContext(c.Request.Context(), "panic", "err", err, "stack", string(debug.Stack()))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		s.requestLogger(),
	)
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	registerRuns(r.Group("/api"), s)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then stops accepting requests
// and cancels runs still in flight.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("api listening", slog.String("addr", addr))

	select {
	case err := <-errc:
		s.Shutdown()
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Shutdown()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown cancels background runs and waits for them to clean up.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
