package processors

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"

	"videoJudge/config"
	"videoJudge/core"
	"videoJudge/storage"
	"videoJudge/utils"
)

// ProgressFunc receives human-readable stage updates. percent is monotone
// from 0 to 100 over a run. A nil observer is valid.
type ProgressFunc func(status string, percent int)

// Pipeline orchestrates one analysis run: sample, classify, transcribe,
// score, summarize, persist. Collaborators are interfaces so stages can
// be swapped or stubbed.
type Pipeline struct {
	Sampler     KeyframeSampler
	Classifier  FrameClassifier
	Transcriber Transcriber
	Judge       *RubricJudge
	Store       storage.VectorStore
	MaxFrames   int
	BatchSize   int
	Categories  []string
}

// NewPipeline builds a pipeline with backends selected from config and
// environment, mirroring process startup.
func NewPipeline(store storage.VectorStore) *Pipeline {
	cfg, _ := config.Load()
	p := &Pipeline{
		Sampler:     NewFrameSampler(),
		Classifier:  PickClassifier(),
		Transcriber: PickTranscriber(),
		Judge:       NewRubricJudge(),
		Store:       store,
	}
	if cfg != nil {
		p.MaxFrames = cfg.MaxFrames
		p.BatchSize = cfg.BatchSize
	}
	return p
}

// Analyze runs the full pipeline over a resolved input. Sampling and
// classification failures abort the run; transcription failure degrades
// to a visual-only report with the sentinel transcript.
func (p *Pipeline) Analyze(input ResolvedInput, workDir string, progress ProgressFunc) (*core.AnalysisResult, error) {
	report := func(status string, percent int) {
		if progress != nil {
			progress(status, percent)
		}
	}

	report("Starting analysis...", 0)

	result := &core.AnalysisResult{
		VideoPath: input.Path,
		VideoID:   utils.VideoID(input.Path),
	}

	if input.AudioOnly {
		if dur, err := probeDuration(input.Path); err == nil {
			result.Metadata.DurationSec = dur
		}
	} else {
		meta, err := p.Sampler.GetVideoMetadata(input.Path)
		if err != nil {
			return nil, fmt.Errorf("video metadata: %w", err)
		}
		result.Metadata = meta

		report("Extracting video frames...", 5)
		framesDir := filepath.Join(workDir, "frames")
		frames, _, err := p.Sampler.ExtractKeyframes(input.Path, framesDir, p.MaxFrames)
		if err != nil {
			return nil, fmt.Errorf("extract keyframes: %w", err)
		}

		report("Analyzing frames...", 30)
		analyses, err := p.classifyFrames(frames, report)
		if err != nil {
			return nil, err
		}
		result.Frames = analyses
	}

	report("Processing audio...", 50)
	transcript, warn := p.transcribe(input, workDir)
	if warn != "" {
		result.Warnings = append(result.Warnings, warn)
		report("Audio transcription failed - continuing with video analysis only", 60)
	}
	result.Transcript = transcript

	report("Generating summary...", 70)
	result.CategoryCounts = CategoryFrequency(result.Frames)
	result.DominantCategories = DominantCategories(result.CategoryCounts, 5)

	report("Generating hackathon analysis...", 80)
	judged := p.Judge.Score(transcript.Segments)
	result.Report = &judged

	report("Generating human-readable summary...", 90)
	result.Summary = NarrativeSummary(result)

	if p.Store != nil {
		for _, w := range p.persist(result) {
			result.Warnings = append(result.Warnings, w)
		}
	}

	report("Analysis complete!", 100)
	return result, nil
}

// classifyFrames classifies keyframes in batches, reporting per-batch
// progress across the 30 to 50 percent band. Any classification error is
// fatal for the run.
func (p *Pipeline) classifyFrames(frames []core.Frame, report func(string, int)) ([]core.FrameAnalysis, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = len(frames)
	}

	analyses := make([]core.FrameAnalysis, 0, len(frames))
	for start := 0; start < len(frames); start += batchSize {
		end := start + batchSize
		if end > len(frames) {
			end = len(frames)
		}
		paths := make([]string, 0, end-start)
		for _, f := range frames[start:end] {
			paths = append(paths, f.Path)
		}

		results, err := BatchClassify(p.Classifier, paths, p.Categories, batchSize)
		if err != nil {
			return nil, fmt.Errorf("classify frames: %w", err)
		}
		for i, cls := range results {
			f := frames[start+i]
			analyses = append(analyses, core.FrameAnalysis{
				TimestampSec:   f.TimestampSec,
				FramePath:      f.Path,
				Classification: cls,
			})
		}

		percent := 30 + end*20/len(frames)
		report(fmt.Sprintf("Analyzing frame %d of %d...", end, len(frames)), percent)
	}
	return analyses, nil
}

// transcribe produces a transcript or the sentinel on failure. The
// returned warning is empty on success.
func (p *Pipeline) transcribe(input ResolvedInput, workDir string) (core.Transcript, string) {
	audioPath := input.Path
	if !input.AudioOnly {
		audioPath = filepath.Join(workDir, "audio.wav")
		if err := ExtractAudio(input.Path, audioPath); err != nil {
			return core.UnavailableTranscript(), fmt.Sprintf("audio extraction failed: %v", err)
		}
	}

	transcript, err := p.Transcriber.Transcribe(audioPath)
	if err != nil {
		if errors.Is(err, core.ErrNoSpeech) {
			return core.UnavailableTranscript(), "no speech detected in audio"
		}
		return core.UnavailableTranscript(), fmt.Sprintf("transcription failed: %v", err)
	}
	return transcript, ""
}

// persist writes frame and segment embeddings to the vector store.
// Failures become warnings; the analysis result is already complete.
func (p *Pipeline) persist(result *core.AnalysisResult) []string {
	var warnings []string

	if len(result.Frames) > 0 {
		embeddings := make([][]float32, 0, len(result.Frames))
		timestamps := make([]float64, 0, len(result.Frames))
		metadata := make([]map[string]string, 0, len(result.Frames))
		for _, f := range result.Frames {
			if len(f.Embedding) == 0 {
				continue
			}
			embeddings = append(embeddings, f.Embedding)
			timestamps = append(timestamps, f.TimestampSec)
			meta := map[string]string{"frame_path": f.FramePath}
			if len(f.TopCategories) > 0 {
				meta["top_category"] = f.TopCategories[0]
			}
			metadata = append(metadata, meta)
		}
		if len(embeddings) > 0 {
			if err := p.Store.UpsertFrameEmbeddings(result.VideoID, embeddings, timestamps, metadata); err != nil {
				warnings = append(warnings, fmt.Sprintf("frame embedding persistence failed: %v", err))
			}
		}
	}

	if result.Transcript.Available() && len(result.Transcript.Segments) > 0 {
		embeddings, err := embedSegments(result.Transcript.Segments)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("segment embedding failed: %v", err))
		} else if err := p.Store.UpsertSegmentEmbeddings(result.VideoID, embeddings, result.Transcript.Segments, nil); err != nil {
			warnings = append(warnings, fmt.Sprintf("segment embedding persistence failed: %v", err))
		}
	}

	return warnings
}

// embedSegments fetches text embeddings for transcript segments through
// the configured API.
func embedSegments(segments []core.Segment) ([][]float32, error) {
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	return EmbedTexts(texts)
}

// EmbedTexts fetches embeddings for a batch of texts through the
// configured API. Also used by the search endpoint for query embedding.
func EmbedTexts(texts []string) ([][]float32, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cfg.HasValidAPI() {
		return nil, fmt.Errorf("no embedding API configured")
	}
	cli, err := config.NewOpenAIClient()
	if err != nil {
		return nil, err
	}

	resp, err := cli.CreateEmbeddings(context.Background(), openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(cfg.EmbeddingModel),
		Input:      texts,
		Dimensions: cfg.EmbeddingDim,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}
