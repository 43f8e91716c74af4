package ports

import (
	"context"
	"image"

	"github.com/forPelevin/shortify/internal/types"
)

type VideoTool interface {
	Probe(ctx context.Context, inMP4 string) (types.MediaInfo, error)
	ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error
	OpenFrames(ctx context.Context, inMP4 string, size types.Size, fps int) (FrameSource, error)
	OpenEncoder(ctx context.Context, spec EncodeSpec) (FrameSink, error)
}

// FrameSource yields frames in presentation order and returns io.EOF when drained.
type FrameSource interface {
	Next() (types.Frame, error)
	Close() error
}

// FrameSink consumes output frames. Close finalizes the file; Abort discards it.
type FrameSink interface {
	WriteFrame(img *image.RGBA) error
	Close() error
	Abort() error
}

type EncodeSpec struct {
	// AudioFrom is muxed as the audio track when non-empty.
	AudioFrom string
	OutMP4    string
	Size      types.Size
	FPS       int
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, language string) (types.Transcript, error)
}

type FaceDetector interface {
	Detect(frame *image.RGBA) ([]types.BoundingBox, error)
	Close() error
}
