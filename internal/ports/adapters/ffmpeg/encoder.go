package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/forPelevin/shortify/internal/ports"
)

// frameWriter encodes RGBA frames piped on stdin into an H.264/AAC MP4.
type frameWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	out    string
	w, h   int
	closed bool
}

func (a *Adapter) OpenEncoder(ctx context.Context, spec ports.EncodeSpec) (ports.FrameSink, error) {
	if spec.Size.Width <= 0 || spec.Size.Height <= 0 {
		return nil, fmt.Errorf("ffmpeg encode: invalid size %dx%d", spec.Size.Width, spec.Size.Height)
	}
	if spec.FPS <= 0 {
		return nil, fmt.Errorf("ffmpeg encode: invalid fps %d", spec.FPS)
	}
	if spec.OutMP4 == "" {
		return nil, fmt.Errorf("ffmpeg encode: output path is empty")
	}
	cmd := exec.CommandContext(ctx, a.ffmpeg, encodeArgs(spec)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg encode stdin: %w", err)
	}
	stderr := newTailBuffer(8 << 10)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg encoder: %w", err)
	}
	return &frameWriter{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		out:    spec.OutMP4,
		w:      spec.Size.Width,
		h:      spec.Size.Height,
	}, nil
}

func encodeArgs(spec ports.EncodeSpec) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", spec.Size.Width, spec.Size.Height),
		"-r", strconv.Itoa(spec.FPS),
		"-i", "pipe:0",
	}
	if spec.AudioFrom != "" {
		args = append(args,
			"-i", spec.AudioFrom,
			"-map", "0:v:0",
			"-map", "1:a:0?",
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
	)
	if spec.AudioFrom != "" {
		args = append(args,
			"-c:a", "aac",
			"-b:a", "192k",
		)
	}
	return append(args, "-movflags", "+faststart", "-f", "mp4", spec.OutMP4)
}

func (f *frameWriter) WriteFrame(img *image.RGBA) error {
	if f.closed {
		return fmt.Errorf("ffmpeg encode: write after close")
	}
	b := img.Bounds()
	if b.Dx() != f.w || b.Dy() != f.h {
		return fmt.Errorf("ffmpeg encode: frame %dx%d, want %dx%d", b.Dx(), b.Dy(), f.w, f.h)
	}
	if img.Stride == 4*f.w && b.Min == (image.Point{}) {
		if _, err := f.stdin.Write(img.Pix[:4*f.w*f.h]); err != nil {
			return fmt.Errorf("ffmpeg encode: %w\n%s", err, f.stderr.String())
		}
		return nil
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		if _, err := f.stdin.Write(img.Pix[off : off+4*f.w]); err != nil {
			return fmt.Errorf("ffmpeg encode: %w\n%s", err, f.stderr.String())
		}
	}
	return nil
}

func (f *frameWriter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if err := f.stdin.Close(); err != nil {
		_ = f.cmd.Wait()
		return fmt.Errorf("ffmpeg encode: close stdin: %w", err)
	}
	if err := f.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode: %w\n%s", err, f.stderr.String())
	}
	return nil
}

func (f *frameWriter) Abort() error {
	if !f.closed {
		f.closed = true
		_ = f.stdin.Close()
		if f.cmd.Process != nil {
			_ = f.cmd.Process.Kill()
		}
		_ = f.cmd.Wait()
	}
	if err := os.Remove(f.out); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
