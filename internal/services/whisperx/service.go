package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"aegis/internal/detect"
	"aegis/internal/services"
)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Transcribe runs WhisperX over audioPath and returns the word-aligned
// transcript in file-local seconds.
func (s *Service) Transcribe(ctx context.Context, audioPath string) (detect.Transcript, error) {
	if strings.TrimSpace(audioPath) == "" {
		return detect.Transcript{}, services.Wrap(services.ErrValidation, "whisperx", "transcribe", "audio path required", nil)
	}
	outputDir, err := os.MkdirTemp(s.cfg.WorkDir, "whisperx-")
	if err != nil {
		return detect.Transcript{}, services.Wrap(services.ErrConfiguration, "whisperx", "transcribe", "create output dir", err)
	}
	defer os.RemoveAll(outputDir)

	if err := s.run(ctx, UVXCommand, s.buildArgs(audioPath, outputDir)...); err != nil {
		if ctx.Err() != nil {
			return detect.Transcript{}, services.Wrap(services.ErrTimeout, "whisperx", "transcribe", "", err)
		}
		return detect.Transcript{}, services.Wrap(services.ErrExternalTool, "whisperx", "transcribe", "", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	segments, err := LoadSegments(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return detect.Transcript{}, services.Wrap(services.ErrExternalTool, "whisperx", "load output", "", err)
	}
	return TranscriptFromSegments(segments), nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := LanguageCode(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// LanguageCode reduces a BCP 47 tag such as "en-US" or "eng" to the two
// letter base code WhisperX expects. Unknown, undetermined or empty tags
// yield "".
func LanguageCode(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, "auto") {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	// Base guesses a language for "und" and region-only tags; only an
	// explicit language subtag is trusted.
	base, confidence := parsed.Base()
	if confidence < language.High {
		return ""
	}
	code := base.String()
	if len(code) != 2 {
		return ""
	}
	return code
}

// Word represents a single word with timing from WhisperX output. Words
// WhisperX could not align (numerals, symbols) carry no start or end.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

// TranscriptFromSegments flattens segments into a transcript. Unaligned
// words are kept with zero timing so text-level checks still see them.
func TranscriptFromSegments(segments []Segment) detect.Transcript {
	var (
		parts []string
		words []detect.Word
	)
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
		for _, w := range seg.Words {
			word := detect.Word{Text: strings.TrimSpace(w.Word)}
			if w.Start != nil && w.End != nil {
				word.Start, word.End = *w.Start, *w.End
			}
			words = append(words, word)
		}
	}
	return detect.Transcript{Text: strings.Join(parts, " "), Words: words}
}
