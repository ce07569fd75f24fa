package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"aegis/internal/detect"
	"aegis/internal/interval"
	"aegis/internal/logging"
	"aegis/internal/moderation"
)

// AudioExtractor produces a speech-ready WAV from any media file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, source, dest string, hasAudio bool, duration float64) error
}

// AudioResult is the outcome of analysing one audio span.
type AudioResult struct {
	// Intervals are mute spans on the caller's timeline (offset applied).
	Intervals []interval.Interval
	Text      moderation.TextResult
}

// AudioOptions tune AudioAnalyzer.
type AudioOptions struct {
	Rules    moderation.TextRules
	Segments moderation.SegmentOptions
	// Buffer, when set, accumulates transcript context across calls.
	Buffer  *moderation.TranscriptBuffer
	WorkDir string
}

// AudioAnalyzer turns transcripts into mute intervals.
type AudioAnalyzer struct {
	detector  detect.AudioDetector
	extractor AudioExtractor
	opts      AudioOptions
	logger    *slog.Logger
}

// NewAudioAnalyzer wires an analyzer.
func NewAudioAnalyzer(detector detect.AudioDetector, extractor AudioExtractor, opts AudioOptions, logger *slog.Logger) *AudioAnalyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AudioAnalyzer{
		detector:  detector,
		extractor: extractor,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "audio-analysis"),
	}
}

// AnalyzeMedia extracts speech audio from source and analyses it. offset
// places the result on the caller's timeline; duration bounds the
// whole-span fallback and the silent track used when hasAudio is false.
func (a *AudioAnalyzer) AnalyzeMedia(ctx context.Context, source string, hasAudio bool, offset, duration float64) (AudioResult, error) {
	dir, err := os.MkdirTemp(a.opts.WorkDir, "audio-")
	if err != nil {
		return AudioResult{}, fmt.Errorf("audio analysis: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))+".wav")
	if err := a.extractor.ExtractAudio(ctx, source, wav, hasAudio, duration); err != nil {
		return AudioResult{}, err
	}
	return a.Analyze(ctx, wav, offset, duration)
}

// Analyze transcribes audioPath and derives mute intervals. Every listed
// word with timing is muted individually. When the transcript blocks but
// carries no word timing the whole span is muted.
func (a *AudioAnalyzer) Analyze(ctx context.Context, audioPath string, offset, duration float64) (AudioResult, error) {
	transcript, err := a.detector.Transcribe(ctx, audioPath)
	if err != nil {
		return AudioResult{}, err
	}
	logger := logging.WithContext(ctx, a.logger)

	text := strings.TrimSpace(transcript.FullText())
	var result AudioResult
	if text != "" {
		result.Text = a.opts.Rules.Analyze(text)
		var window string
		if a.opts.Buffer != nil {
			a.opts.Buffer.Add(offset, text)
			window = a.opts.Buffer.Text(offset)
		}
		if result.Text.Block {
			logger.Info("transcript blocked",
				logging.EventType("transcript_blocked"),
				logging.Int("bad_words", result.Text.Count),
				logging.Int("severity", result.Text.Severity),
				logging.String("matches", strings.Join(result.Text.BadWords, ",")),
				logging.String("context", window),
			)
		}
	}

	timed := false
	for _, w := range transcript.Words {
		if w.Timed() {
			timed = true
			break
		}
	}
	switch {
	case timed:
		local := moderation.ToxicSegments(transcript.Words, a.opts.Rules.Lexicon, a.opts.Segments)
		result.Intervals = interval.Merge(interval.Shift(local, offset), 0)
	case result.Text.Block && duration > 0:
		result.Intervals = []interval.Interval{{Start: offset, End: offset + duration}}
	}
	if len(result.Intervals) > 0 {
		logger.Debug("mute intervals",
			logging.Int("count", len(result.Intervals)),
			logging.Float64("muted_seconds", interval.Total(result.Intervals)),
		)
	}
	return result, nil
}
