package whisperhttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeWav(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(p, []byte("RIFF....WAVE"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestTranscribe_ParsesVerboseJSON(t *testing.T) {
	var gotLang, gotModel, gotAuth string
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLang = r.FormValue("language")
		gotModel = r.FormValue("model")
		gotAuth = r.Header.Get("Authorization")
		f, _, err := r.FormFile("file")
		if err == nil {
			gotFile, _ = io.ReadAll(f)
			f.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":" hello world ","language":"english","segments":[{"start":1.0,"end":3.0,"text":" hello world"}]}`)
	}))
	defer srv.Close()

	a := New("sk-test", "", srv.URL)
	tr, err := a.Transcribe(context.Background(), writeWav(t), "en")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if gotLang != "en" || gotModel != defaultModel || gotAuth != "Bearer sk-test" {
		t.Fatalf("request fields: lang=%q model=%q auth=%q", gotLang, gotModel, gotAuth)
	}
	if string(gotFile) != "RIFF....WAVE" {
		t.Fatalf("uploaded file = %q", gotFile)
	}
	if tr.Language != "en" {
		t.Fatalf("language = %q, want en", tr.Language)
	}
	if tr.Text != "hello world" || len(tr.Segments) != 1 {
		t.Fatalf("transcript = %+v", tr)
	}
	if s := tr.Segments[0]; s.Start != 1 || s.End != 3 || s.Text != "hello world" {
		t.Fatalf("segment = %+v", s)
	}
}

func TestTranscribe_AutoLanguageOmitted(t *testing.T) {
	var hasLang bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		_, hasLang = r.MultipartForm.Value["language"]
		_, _ = io.WriteString(w, `{"text":"","segments":[]}`)
	}))
	defer srv.Close()

	tr, err := New("", "", srv.URL).Transcribe(context.Background(), writeWav(t), "auto")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if hasLang {
		t.Fatalf("language field should be omitted for auto")
	}
	if tr.FullText() != "" {
		t.Fatalf("expected empty transcript, got %+v", tr)
	}
}

func TestTranscribe_ErrorStatusIsRedacted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `bad key sk-secret-123; Authorization: Bearer sk-secret-123`)
	}))
	defer srv.Close()

	_, err := New("sk-secret-123", "", srv.URL).Transcribe(context.Background(), writeWav(t), "en")
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	if strings.Contains(msg, "sk-secret-123") {
		t.Fatalf("api key leaked: %q", msg)
	}
	if !strings.Contains(msg, "status 401") {
		t.Fatalf("expected status in error: %q", msg)
	}
}

func TestRedactSecrets(t *testing.T) {
	apiKey := "sk-super-secret"
	in := `status 401; Authorization: Bearer sk-super-secret; api_key=sk-super-secret`
	got := redactSecrets(in, apiKey)

	if strings.Contains(got, apiKey) {
		t.Fatalf("expected API key to be redacted, got: %q", got)
	}
	if !strings.Contains(got, "api_key=[REDACTED]") {
		t.Fatalf("expected api_key field to be redacted, got: %q", got)
	}
}
