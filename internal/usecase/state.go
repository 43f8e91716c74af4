package usecase

import "fmt"

type State string

const (
	Idle            State = "idle"
	ExtractingAudio State = "extracting_audio"
	Transcribing    State = "transcribing"
	Reframing       State = "reframing"
	Compositing     State = "compositing"
	Exporting       State = "exporting"
	Done            State = "done"
	Failed          State = "failed"
)

func (s State) Terminal() bool { return s == Done || s == Failed }

var stageNotice = map[State]string{
	Idle:            "Preparing source video...",
	ExtractingAudio: "Extracting audio...",
	Transcribing:    "Transcribing audio...",
	Reframing:       "Tracking face and reframing...",
	Compositing:     "Rendering stylized captions...",
	Exporting:       "Rendering final MP4...",
	Done:            "Done.",
}

// StageError is a failure inside one pipeline state. The wrapped error is the
// collaborator's error, unchanged.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.State, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }
