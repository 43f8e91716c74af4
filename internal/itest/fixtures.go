//go:build integration

package itest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/forPelevin/shortify/internal/ports/adapters/cascade"
)

// makeFixture renders a lavfi test pattern of the given size, optionally with
// a sine tone as audio.
func makeFixture(t *testing.T, dir string, w, h int, seconds float64, audio bool) string {
	t.Helper()
	out := filepath.Join(dir, fmt.Sprintf("fixture-%dx%d-audio-%v.mp4", w, h, audio))
	args := []string{"-y", "-f", "lavfi", "-i", fmt.Sprintf("testsrc=s=%dx%d:d=%g:r=24", w, h, seconds)}
	if audio {
		args = append(args, "-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=440:duration=%g", seconds), "-shortest", "-c:a", "aac")
	}
	args = append(args, "-c:v", "libx264", "-pix_fmt", "yuv420p", out)
	if b, err := exec.Command("ffmpeg", args...).CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}
	return out
}

func requireTools(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
	if _, err := os.Stat(cascadeModel()); err != nil {
		t.Skipf("face cascade not available: %v", err)
	}
}

func cascadeModel() string {
	if p := os.Getenv("SHORTIFY_CASCADE"); p != "" {
		return p
	}
	return cascade.DefaultModel
}

func writeConfig(t *testing.T, dir string, extra string) string {
	t.Helper()
	body := fmt.Sprintf(`[paths]
cache_dir = %q
output_dir = %q
state_db = %q

[faces]
cascade = %q

[video]
fps = 12
`, filepath.Join(dir, "cache"), filepath.Join(dir, "out"), filepath.Join(dir, "runs.db"), cascadeModel())
	path := filepath.Join(dir, "shortify.toml")
	if err := os.WriteFile(path, []byte(body+extra), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
