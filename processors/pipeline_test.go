package processors

import (
	"fmt"
	"testing"

	"videoJudge/core"
)

type stubSampler struct {
	frames []core.Frame
	meta   core.VideoMetadata
}

func (s stubSampler) ExtractKeyframes(videoPath, framesDir string, maxFrames int) ([]core.Frame, []float64, error) {
	timestamps := make([]float64, len(s.frames))
	for i, f := range s.frames {
		timestamps[i] = f.TimestampSec
	}
	return s.frames, timestamps, nil
}

func (s stubSampler) GetVideoMetadata(videoPath string) (core.VideoMetadata, error) {
	return s.meta, nil
}

type stubTranscriber struct {
	transcript core.Transcript
	err        error
}

func (s stubTranscriber) Transcribe(path string) (core.Transcript, error) {
	return s.transcript, s.err
}

type stubStore struct {
	frameVideoID string
	frameCount   int
	segmentCalls int
}

func (s *stubStore) UpsertFrameEmbeddings(videoID string, embeddings [][]float32, timestamps []float64, metadata []map[string]string) error {
	s.frameVideoID = videoID
	s.frameCount = len(embeddings)
	return nil
}

func (s *stubStore) UpsertSegmentEmbeddings(videoID string, embeddings [][]float32, segments []core.Segment, metadata []map[string]string) error {
	s.segmentCalls++
	return nil
}

func (s *stubStore) SearchFrames(embedding []float32, k int, videoID string) ([]core.Hit, error) {
	return nil, nil
}

func (s *stubStore) SearchSegments(embedding []float32, k int, videoID string) ([]core.Hit, error) {
	return nil, nil
}

func testFrames(n int) []core.Frame {
	frames := make([]core.Frame, n)
	for i := range frames {
		frames[i] = core.Frame{TimestampSec: float64(i), Path: fmt.Sprintf("frames/%05d.jpg", i+1)}
	}
	return frames
}

func TestAnalyzeTranscriptionFailureDegrades(t *testing.T) {
	p := &Pipeline{
		Sampler:     stubSampler{},
		Classifier:  MockClassifier{},
		Transcriber: stubTranscriber{err: fmt.Errorf("whisper unavailable")},
		Judge:       NewRubricJudge(),
	}

	result, err := p.Analyze(ResolvedInput{Path: "talk.mp3", AudioOnly: true}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if result.Transcript.Available() {
		t.Error("transcript should be the unavailable sentinel")
	}
	if result.Transcript.Text != core.TranscriptUnavailable {
		t.Errorf("transcript text = %q, want sentinel", result.Transcript.Text)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a degradation warning")
	}
	if result.Report == nil {
		t.Fatal("report missing on degraded run")
	}
	// All gated categories unscored, bonus still scores zero.
	if result.Report.TotalScore != 0 {
		t.Errorf("total = %d, want 0 from sentinel transcript", result.Report.TotalScore)
	}
}

func TestAnalyzeProgressMonotone(t *testing.T) {
	p := &Pipeline{
		Sampler:     stubSampler{frames: testFrames(4), meta: core.VideoMetadata{DurationSec: 12}},
		Classifier:  MockClassifier{},
		Transcriber: stubTranscriber{err: fmt.Errorf("no backend")},
		Judge:       NewRubricJudge(),
		BatchSize:   2,
	}

	var percents []int
	_, err := p.Analyze(ResolvedInput{Path: "clip.mp4"}, t.TempDir(), func(status string, percent int) {
		percents = append(percents, percent)
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(percents) == 0 {
		t.Fatal("no progress reported")
	}
	if percents[0] != 0 {
		t.Errorf("first percent = %d, want 0", percents[0])
	}
	if percents[len(percents)-1] != 100 {
		t.Errorf("last percent = %d, want 100", percents[len(percents)-1])
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress went backwards: %d after %d", percents[i], percents[i-1])
		}
	}
}

func TestAnalyzeClassifierFailureFatal(t *testing.T) {
	p := &Pipeline{
		Sampler:     stubSampler{frames: testFrames(2)},
		Classifier:  &flakyClassifier{failAt: "frames/00002.jpg"},
		Transcriber: stubTranscriber{},
		Judge:       NewRubricJudge(),
	}

	result, err := p.Analyze(ResolvedInput{Path: "clip.mp4"}, t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected classification failure to abort the run")
	}
	if result != nil {
		t.Error("result should be nil after a fatal stage")
	}
}

func TestAnalyzeAudioOnlyScoresTranscript(t *testing.T) {
	p := &Pipeline{
		Sampler:     stubSampler{},
		Classifier:  MockClassifier{},
		Transcriber: stubTranscriber{transcript: core.Transcript{
			Text: "we demo a novel a2a agent payment",
			Segments: []core.Segment{
				{Start: 0, End: 10, Text: "we demo a novel a2a agent payment"},
			},
		}},
		Judge: NewRubricJudge(),
	}

	result, err := p.Analyze(ResolvedInput{Path: "talk.wav", AudioOnly: true}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(result.Frames) != 0 {
		t.Errorf("audio-only run produced %d frame analyses", len(result.Frames))
	}
	if !result.Transcript.Available() {
		t.Fatal("transcript should be available")
	}
	if result.Report.TotalScore <= 0 {
		t.Errorf("total = %d, want positive score from A2A transcript", result.Report.TotalScore)
	}
	if result.Summary == "" {
		t.Error("summary missing")
	}
}

func TestAnalyzePersistsFrameEmbeddings(t *testing.T) {
	store := &stubStore{}
	p := &Pipeline{
		Sampler:     stubSampler{frames: testFrames(3), meta: core.VideoMetadata{DurationSec: 9}},
		Classifier:  MockClassifier{},
		Transcriber: stubTranscriber{err: fmt.Errorf("no backend")},
		Judge:       NewRubricJudge(),
		Store:       store,
	}

	result, err := p.Analyze(ResolvedInput{Path: "clip.mp4"}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if store.frameCount != 3 {
		t.Errorf("persisted %d frame embeddings, want 3", store.frameCount)
	}
	if store.frameVideoID != result.VideoID {
		t.Errorf("persisted under video ID %q, want %q", store.frameVideoID, result.VideoID)
	}
	if store.segmentCalls != 0 {
		t.Error("sentinel transcript must not be persisted")
	}
}
