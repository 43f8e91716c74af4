package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/forPelevin/shortify/internal/pipeline"
	"github.com/forPelevin/shortify/internal/runstore"
	"github.com/forPelevin/shortify/internal/usecase"
)

const defaultListLimit = 50

func registerRuns(g gin.IRouter, s *Server) {
	g.POST("/runs", s.createRun)
	g.GET("/runs", s.listRuns)
	g.GET("/runs/:id", s.getRun)
	g.GET("/runs/:id/output", s.downloadOutput)
}

type createRunResponse struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Output string `json:"output"`
}

func (s *Server) createRun(c *gin.Context) {
	if s.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	}
	fh, err := c.FormFile("video")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"video\" is required"})
		return
	}

	req := pipeline.Request{
		ID:       uuid.NewString(),
		Color:    strings.TrimSpace(c.PostForm("color")),
		Language: strings.TrimSpace(c.PostForm("language")),
	}
	if v := strings.TrimSpace(c.PostForm("captions")); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("captions: %q is not a boolean", v)})
			return
		}
		req.Captions = &on
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = ".mp4"
	}
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		s.internalError(c, err)
		return
	}
	req.InputMP4 = filepath.Join(s.opts.UploadDir, req.ID+ext)
	if err := saveUpload(fh, req.InputMP4); err != nil {
		s.internalError(c, err)
		return
	}

	job, err := s.opts.Runner.Prepare(c.Request.Context(), req)
	if err != nil {
		_ = os.Remove(req.InputMP4)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.wg.Add(1)
	go s.execute(job)

	c.JSON(http.StatusAccepted, createRunResponse{ID: job.ID, State: string(usecase.Idle), Output: job.OutMP4})
}

func (s *Server) execute(job pipeline.Job) {
	defer s.wg.Done()
	defer func() {
		if err := os.Remove(job.InputMP4); err != nil && !os.IsNotExist(err) {
			s.log.Warn("remove upload", slog.String("run_id", job.ID), slog.Any("error", err))
		}
	}()
	if _, err := s.opts.Runner.Execute(s.base, job); err != nil {
		s.log.Error("run failed", slog.String("run_id", job.ID), slog.Any("error", err))
	}
}

func (s *Server) listRuns(c *gin.Context) {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	runs, err := s.opts.Ledger.List(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if runs == nil {
		runs = []runstore.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) downloadOutput(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	if run.State != string(usecase.Done) {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("run is %s", run.State)})
		return
	}
	if _, err := os.Stat(run.Output); err != nil {
		c.JSON(http.StatusGone, gin.H{"error": "output no longer exists"})
		return
	}
	c.FileAttachment(run.Output, filepath.Base(run.Output))
}

func (s *Server) lookup(c *gin.Context) (runstore.Run, bool) {
	run, err := s.opts.Ledger.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, runstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return runstore.Run{}, false
	}
	if err != nil {
		s.internalError(c, err)
		return runstore.Run{}, false
	}
	return run, true
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.log.ErrorContext(c.Request.Context(), "api error", slog.String("path", c.FullPath()), slog.Any("error", err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write upload: %w", err)
	}
	return f.Close()
}
