package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/forPelevin/shortify/internal/pipeline"
	"github.com/forPelevin/shortify/internal/runstore"
	"github.com/forPelevin/shortify/internal/usecase"
)

type fakeRunner struct {
	mu         sync.Mutex
	prepareErr error
	requests   []pipeline.Request
	uploads    []string
	executed   []string
}

func (f *fakeRunner) Prepare(_ context.Context, req pipeline.Request) (pipeline.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	b, _ := os.ReadFile(req.InputMP4)
	f.uploads = append(f.uploads, string(b))
	if f.prepareErr != nil {
		return pipeline.Job{}, f.prepareErr
	}
	return pipeline.Job{ID: req.ID, InputMP4: req.InputMP4, OutMP4: "/out/Short_" + req.ID[:6] + ".mp4"}, nil
}

func (f *fakeRunner) Execute(_ context.Context, job pipeline.Job) (usecase.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, job.ID)
	return usecase.Result{Output: job.OutMP4}, nil
}

type fakeLedger struct {
	runs map[string]runstore.Run
}

func (l *fakeLedger) Get(_ context.Context, id string) (runstore.Run, error) {
	r, ok := l.runs[id]
	if !ok {
		return runstore.Run{}, fmt.Errorf("%w: %s", runstore.ErrNotFound, id)
	}
	return r, nil
}

func (l *fakeLedger) List(_ context.Context, limit int) ([]runstore.Run, error) {
	var out []runstore.Run
	for _, r := range l.runs {
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestServer(t *testing.T, r *fakeRunner, l *fakeLedger) (*Server, http.Handler) {
	t.Helper()
	s := New(Options{Runner: r, Ledger: l, UploadDir: filepath.Join(t.TempDir(), "uploads"), MaxUploadBytes: 1 << 20})
	return s, s.Handler()
}

func multipartBody(t *testing.T, video []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if video != nil {
		fw, err := w.CreateFormFile("video", "clip.mp4")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(video); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func TestCreateRun(t *testing.T) {
	runner := &fakeRunner{}
	s, h := newTestServer(t, runner, &fakeLedger{})

	body, ct := multipartBody(t, []byte("video-bytes"), map[string]string{
		"captions": "false",
		"color":    "red",
		"language": "ur",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/runs", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp createRunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID == "" || resp.State != "idle" || !strings.HasPrefix(filepath.Base(resp.Output), "Short_") {
		t.Fatalf("unexpected response %+v", resp)
	}

	s.Shutdown()
	if len(runner.requests) != 1 {
		t.Fatalf("prepare calls = %d", len(runner.requests))
	}
	got := runner.requests[0]
	if got.Captions == nil || *got.Captions || got.Color != "red" || got.Language != "ur" {
		t.Fatalf("form fields not forwarded: %+v", got)
	}
	if runner.uploads[0] != "video-bytes" {
		t.Fatalf("upload content = %q", runner.uploads[0])
	}
	if len(runner.executed) != 1 || runner.executed[0] != resp.ID {
		t.Fatalf("executed = %v", runner.executed)
	}
	if _, err := os.Stat(got.InputMP4); !os.IsNotExist(err) {
		t.Fatalf("upload should be removed after the run, stat err=%v", err)
	}
}

func TestCreateRunRejects(t *testing.T) {
	cases := []struct {
		name       string
		video      []byte
		fields     map[string]string
		prepareErr error
	}{
		{name: "missing video", fields: map[string]string{"color": "red"}},
		{name: "bad captions flag", video: []byte("v"), fields: map[string]string{"captions": "maybe"}},
		{name: "prepare fails", video: []byte("v"), prepareErr: errors.New(`invalid colour "#zz"`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{prepareErr: tc.prepareErr}
			s, h := newTestServer(t, runner, &fakeLedger{})
			body, ct := multipartBody(t, tc.video, tc.fields)
			req := httptest.NewRequest(http.MethodPost, "/api/runs", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			s.Shutdown()

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			if len(runner.executed) != 0 {
				t.Fatalf("nothing should run")
			}
			for _, r := range runner.requests {
				if _, err := os.Stat(r.InputMP4); !os.IsNotExist(err) {
					t.Fatalf("rejected upload should be removed")
				}
			}
		})
	}
}

func TestGetAndListRuns(t *testing.T) {
	ledger := &fakeLedger{runs: map[string]runstore.Run{
		"r1": {ID: "r1", State: "transcribing", Message: "Transcribing audio..."},
	}}
	_, h := newTestServer(t, &fakeRunner{}, ledger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/r1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var run runstore.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	if run.State != "transcribing" || run.Message != "Transcribing audio..." {
		t.Fatalf("unexpected run %+v", run)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=10", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"r1"`) {
		t.Fatalf("list status = %d body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rec.Code)
	}
}

func TestDownloadOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "Short_abc123.mp4")
	if err := os.WriteFile(out, []byte("mp4-data"), 0o644); err != nil {
		t.Fatal(err)
	}
	ledger := &fakeLedger{runs: map[string]runstore.Run{
		"done":    {ID: "done", State: "done", Output: out},
		"running": {ID: "running", State: "exporting", Output: out},
		"gone":    {ID: "gone", State: "done", Output: out + ".missing"},
	}}
	_, h := newTestServer(t, &fakeRunner{}, ledger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/done/output", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "mp4-data" {
		t.Fatalf("download status = %d body %q", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Short_abc123.mp4") {
		t.Fatalf("content disposition = %q", cd)
	}

	for id, want := range map[string]int{"running": http.StatusConflict, "gone": http.StatusGone, "nope": http.StatusNotFound} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+id+"/output", nil))
		if rec.Code != want {
			t.Fatalf("%s: status = %d, want %d", id, rec.Code, want)
		}
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, &fakeRunner{}, &fakeLedger{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
