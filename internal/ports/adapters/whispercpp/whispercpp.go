package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/shortify/internal/types"
)

type Adapter struct {
	bin   string
	model string
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, language string) (types.Transcript, error) {
	m, err := Shared(a.bin, a.model)
	if err != nil {
		return types.Transcript{}, err
	}
	if language == "" {
		language = "auto"
	}
	outPrefix := strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ".whisper"
	args := []string{
		"-m", m.Path(),
		"-f", wavPath,
		"-l", language,
		"-oj",
		"-of", outPrefix,
		"-np",
	}
	cmd := exec.CommandContext(ctx, m.Bin(), args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	defer os.Remove(outPrefix + ".json")
	return parseOutput(jb)
}

type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseOutput(b []byte) (types.Transcript, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("parse whisper.cpp json: %w", err)
	}
	tr := types.Transcript{Language: out.Result.Language}
	for _, s := range out.Transcription {
		tr.Segments = append(tr.Segments, types.Segment{
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	tr.Text = tr.FullText()
	return tr, nil
}
