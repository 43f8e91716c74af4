package whispercpp

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// Model is a resolved whisper.cpp binary and model file. It is immutable once
// loaded and shared by every run in the process.
type Model struct {
	bin  string
	path string
	size int64
}

func (m *Model) Bin() string  { return m.bin }
func (m *Model) Path() string { return m.path }
func (m *Model) Size() int64  { return m.size }

var models sync.Map // bin + "\x00" + path -> func() (*Model, error)

// Shared returns the process-wide handle for (bin, path), loading it on first
// use. A failed load is cached too; fix the paths and restart.
func Shared(bin, path string) (*Model, error) {
	key := bin + "\x00" + path
	v, _ := models.LoadOrStore(key, sync.OnceValues(func() (*Model, error) {
		return load(bin, path)
	}))
	return v.(func() (*Model, error))()
}

func load(bin, path string) (*Model, error) {
	if path == "" {
		return nil, fmt.Errorf("whisper model path is required")
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("whisper model: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("whisper model %s is a directory", path)
	}
	if bin == "" {
		bin = "whisper-cli"
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp binary: %w", err)
	}
	return &Model{bin: resolved, path: path, size: st.Size()}, nil
}
