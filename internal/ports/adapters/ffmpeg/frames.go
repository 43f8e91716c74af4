package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/forPelevin/shortify/internal/ports"
	"github.com/forPelevin/shortify/internal/types"
)

// frameReader decodes a file to RGBA frames at a fixed rate through a
// rawvideo pipe.
type frameReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	r      *bufio.Reader
	stderr *tailBuffer
	size   types.Size
	fps    int
	index  int
	done   bool
	once   sync.Once
}

func (a *Adapter) OpenFrames(ctx context.Context, inMP4 string, size types.Size, fps int) (ports.FrameSource, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("ffmpeg frames: invalid size %dx%d", size.Width, size.Height)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("ffmpeg frames: invalid fps %d", fps)
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-hide_banner",
		"-loglevel", "error",
		"-i", inMP4,
		"-an",
		"-vf", "fps="+strconv.Itoa(fps),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", size.Width, size.Height),
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frames stdout: %w", err)
	}
	stderr := newTailBuffer(8 << 10)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg decoder: %w", err)
	}
	frameSize := size.Width * size.Height * 4
	return &frameReader{
		cmd:    cmd,
		stdout: stdout,
		r:      bufio.NewReaderSize(stdout, frameSize),
		stderr: stderr,
		size:   size,
		fps:    fps,
	}, nil
}

func (f *frameReader) Next() (types.Frame, error) {
	if f.done {
		return types.Frame{}, io.EOF
	}
	img := image.NewRGBA(image.Rect(0, 0, f.size.Width, f.size.Height))
	if _, err := io.ReadFull(f.r, img.Pix); err != nil {
		f.done = true
		if errors.Is(err, io.EOF) {
			if werr := f.wait(); werr != nil {
				return types.Frame{}, werr
			}
			return types.Frame{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			if werr := f.wait(); werr != nil {
				return types.Frame{}, werr
			}
			return types.Frame{}, fmt.Errorf("ffmpeg decode: truncated frame %d", f.index)
		}
		return types.Frame{}, fmt.Errorf("ffmpeg decode: read frame %d: %w", f.index, err)
	}
	fr := types.Frame{
		Image: img,
		Index: f.index,
		Time:  time.Duration(f.index) * time.Second / time.Duration(f.fps),
	}
	f.index++
	return fr, nil
}

func (f *frameReader) wait() error {
	var err error
	f.once.Do(func() {
		if werr := f.cmd.Wait(); werr != nil {
			err = fmt.Errorf("ffmpeg decode: %w\n%s", werr, f.stderr.String())
		}
	})
	return err
}

func (f *frameReader) Close() error {
	f.done = true
	_ = f.stdout.Close()
	if f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}
	f.once.Do(func() { _ = f.cmd.Wait() })
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer { return &tailBuffer{max: max} }

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
