package whisperhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/forPelevin/shortify/internal/language"
	"github.com/forPelevin/shortify/internal/types"
)

// Adapter talks to an OpenAI-compatible /v1/audio/transcriptions endpoint
// (OpenAI, whisper.cpp server, faster-whisper servers). One Adapter and its
// HTTP client are shared by all runs.
type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
}

const (
	requestTimeout = 30 * time.Minute
	defaultModel   = "whisper-1"
)

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = defaultModel
	}
	return &Adapter{
		key:     apiKey,
		model:   model,
		baseURL: normalizeBaseURL(baseURL),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type verboseResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, lang string) (types.Transcript, error) {
	body, contentType, err := a.buildForm(wavPath, lang)
	if err != nil {
		return types.Transcript{}, err
	}
	url := a.baseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return types.Transcript{}, err
	}
	if a.key != "" {
		req.Header.Set("Authorization", "Bearer "+a.key)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.Transcript{}, fmt.Errorf("transcription timeout (model=%s)", a.model)
		}
		return types.Transcript{}, fmt.Errorf("transcription request: %s", redactSecrets(err.Error(), a.key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr != nil {
			return types.Transcript{}, fmt.Errorf("transcription status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return types.Transcript{}, fmt.Errorf("transcription status %d: %s", resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return types.Transcript{}, fmt.Errorf("decode transcription: %w", err)
	}
	return toTranscript(raw), nil
}

func (a *Adapter) buildForm(wavPath, lang string) (io.Reader, string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	fields := [][2]string{
		{"model", a.model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if lang != "" && lang != language.Auto {
		fields = append(fields, [2]string{"language", lang})
	}
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func toTranscript(raw verboseResponse) types.Transcript {
	tr := types.Transcript{Text: strings.TrimSpace(raw.Text), Language: raw.Language}
	if code, ok := language.Detected(raw.Language); ok {
		tr.Language = code
	}
	for _, s := range raw.Segments {
		tr.Segments = append(tr.Segments, types.Segment{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
	}
	return tr
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

var (
	reAuthHeader = regexp.MustCompile(`(?i)authorization:\s*bearer\s+\S+`)
	reAPIKey     = regexp.MustCompile(`(?i)(api[_-]?key["'\s:=]+)[^\s"',;]+`)
)

func redactSecrets(s, apiKey string) string {
	if apiKey != "" {
		s = strings.ReplaceAll(s, apiKey, "[REDACTED]")
	}
	s = reAuthHeader.ReplaceAllString(s, "Authorization: [REDACTED]")
	s = reAPIKey.ReplaceAllString(s, "${1}[REDACTED]")
	return s
}
