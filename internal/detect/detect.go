// Package detect defines the narrow contracts between the orchestration layer
// and the opaque speech and vision detectors, plus the verdict shapes they
// return. Timestamps are local to the media the detector was given.
package detect

import (
	"context"
	"strings"

	"aegis/internal/tracking"
)

// Word is one transcribed word with chunk-local timing. Start and End are
// zero when the transcriber could not align the word.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Timed reports whether the word carries usable alignment.
func (w Word) Timed() bool {
	return w.End > w.Start
}

// Transcript is the audio detector output.
type Transcript struct {
	Text  string
	Words []Word
}

// FullText returns Text, or the joined words when Text is empty.
func (t Transcript) FullText() string {
	if strings.TrimSpace(t.Text) != "" {
		return t.Text
	}
	parts := make([]string, 0, len(t.Words))
	for _, w := range t.Words {
		if s := strings.TrimSpace(w.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// FrameVerdict is the video detector output for one still.
type FrameVerdict struct {
	Timestamp float64              `json:"timestamp"`
	Blocked   bool                 `json:"blocked"`
	Reason    string               `json:"reason,omitempty"`
	Width     int                  `json:"width,omitempty"`
	Height    int                  `json:"height,omitempty"`
	Objects   []tracking.Detection `json:"objects,omitempty"`
}

// AudioDetector transcribes an audio file.
type AudioDetector interface {
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}

// VideoDetector classifies a single image.
type VideoDetector interface {
	Classify(ctx context.Context, imagePath string) (FrameVerdict, error)
}

// AudioDetectorFunc adapts a function to AudioDetector.
type AudioDetectorFunc func(ctx context.Context, audioPath string) (Transcript, error)

func (f AudioDetectorFunc) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	return f(ctx, audioPath)
}

// VideoDetectorFunc adapts a function to VideoDetector.
type VideoDetectorFunc func(ctx context.Context, imagePath string) (FrameVerdict, error)

func (f VideoDetectorFunc) Classify(ctx context.Context, imagePath string) (FrameVerdict, error) {
	return f(ctx, imagePath)
}
