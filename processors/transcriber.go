package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"videoJudge/config"
	"videoJudge/core"
)

// Transcriber converts an audio or video file into a timestamped transcript.
// Failures propagate; the pipeline decides whether to degrade.
type Transcriber interface {
	Transcribe(path string) (core.Transcript, error)
}

// ExtractAudio pulls the audio track out of a video as 16 kHz mono wav,
// the sample format the speech models expect.
func ExtractAudio(inputPath, audioOut string) error {
	args := []string{"-y", "-i", inputPath, "-vn", "-ac", "1", "-ar", "16000", "-f", "wav", audioOut}
	return runFFmpeg(args)
}

// WhisperAPITranscriber calls an OpenAI-compatible transcription endpoint
// and requests verbose JSON so segment timestamps come back.
type WhisperAPITranscriber struct {
	cli   *openai.Client
	model string
}

func NewWhisperAPITranscriber() (*WhisperAPITranscriber, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cli, err := config.NewOpenAIClient()
	if err != nil {
		return nil, err
	}
	return &WhisperAPITranscriber{cli: cli, model: cfg.WhisperModel}, nil
}

func (w *WhisperAPITranscriber) Transcribe(path string) (core.Transcript, error) {
	if _, err := os.Stat(path); err != nil {
		return core.Transcript{}, fmt.Errorf("%w: %s", core.ErrNotFound, path)
	}

	resp, err := w.cli.CreateTranscription(context.Background(), openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return core.Transcript{}, err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return core.Transcript{}, core.ErrNoSpeech
	}

	segments := make([]core.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, core.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	if len(segments) == 0 {
		// Some endpoints return plain text without segments.
		dur, _ := probeDuration(path)
		segments = []core.Segment{{Start: 0, End: dur, Text: text}}
	}

	return core.Transcript{Text: text, Segments: segments}, nil
}

// LocalWhisperTranscriber shells out to the whisper CLI, keeping the service
// usable without an API key.
type LocalWhisperTranscriber struct {
	model string
}

func NewLocalWhisperTranscriber() *LocalWhisperTranscriber {
	model := os.Getenv("WHISPER_MODEL_SIZE")
	if model == "" {
		model = "base"
	}
	return &LocalWhisperTranscriber{model: model}
}

func (l *LocalWhisperTranscriber) Transcribe(path string) (core.Transcript, error) {
	if _, err := os.Stat(path); err != nil {
		return core.Transcript{}, fmt.Errorf("%w: %s", core.ErrNotFound, path)
	}

	outDir, err := os.MkdirTemp("", "whisper-")
	if err != nil {
		return core.Transcript{}, fmt.Errorf("create whisper output dir: %v", err)
	}
	defer os.RemoveAll(outDir)

	cmd := exec.Command("whisper", path,
		"--model", l.model,
		"--output_format", "json",
		"--output_dir", outDir,
		"--verbose", "False")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return core.Transcript{}, fmt.Errorf("run whisper: %v", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return core.Transcript{}, fmt.Errorf("read whisper output: %v", err)
	}

	var parsed struct {
		Text     string `json:"text"`
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return core.Transcript{}, fmt.Errorf("parse whisper output: %v", err)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return core.Transcript{}, core.ErrNoSpeech
	}

	segments := make([]core.Segment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		segments = append(segments, core.Segment{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
	}

	return core.Transcript{Text: text, Segments: segments}, nil
}

// MockTranscriber fabricates placeholder segments from the file duration.
type MockTranscriber struct{}

func (m MockTranscriber) Transcribe(path string) (core.Transcript, error) {
	dur, err := probeDuration(path)
	if err != nil {
		return core.Transcript{}, err
	}
	segLen := 15.0
	var segments []core.Segment
	for start := 0.0; start < dur; start += segLen {
		end := start + segLen
		if end > dur {
			end = dur
		}
		segments = append(segments, core.Segment{
			Start: start,
			End:   end,
			Text:  fmt.Sprintf("Placeholder transcript from %.0fs to %.0fs", start, end),
		})
	}
	var texts []string
	for _, s := range segments {
		texts = append(texts, s.Text)
	}
	return core.Transcript{Text: strings.Join(texts, " "), Segments: segments}, nil
}

// PickTranscriber selects a provider from the ASR environment variable:
// "mock", "api-whisper" or "local". The default uses the API when
// configured, otherwise the local whisper CLI.
func PickTranscriber() Transcriber {
	asr := strings.ToLower(strings.TrimSpace(os.Getenv("ASR")))

	if asr == "mock" {
		return MockTranscriber{}
	}

	if asr == "local" {
		return NewLocalWhisperTranscriber()
	}

	cfg, err := config.Load()
	if asr == "api-whisper" || (err == nil && cfg.HasValidAPI()) {
		if t, apiErr := NewWhisperAPITranscriber(); apiErr == nil {
			return t
		}
		fmt.Println("Warning: API configuration not found for whisper, using local whisper CLI")
	}

	return NewLocalWhisperTranscriber()
}
