package processors

import (
	"reflect"
	"strings"
	"testing"

	"videoJudge/core"
)

func analysisWithTop(tops ...[]string) []core.FrameAnalysis {
	frames := make([]core.FrameAnalysis, len(tops))
	for i, top := range tops {
		frames[i] = core.FrameAnalysis{
			TimestampSec:   float64(i),
			Classification: core.Classification{TopCategories: top},
		}
	}
	return frames
}

func TestCategoryFrequency(t *testing.T) {
	frames := analysisWithTop(
		[]string{"text", "indoor scene", "person"},
		[]string{"text", "person", "object"},
		[]string{"text", "object", "action"},
	)

	counts := CategoryFrequency(frames)
	want := map[string]int{
		"text": 3, "person": 2, "object": 2,
		"indoor scene": 1, "action": 1,
	}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}
}

func TestDominantCategoriesOrdering(t *testing.T) {
	counts := map[string]int{"text": 3, "person": 2, "object": 2, "action": 1}

	got := DominantCategories(counts, 3)
	// person and object tie at 2; alphabetical order breaks the tie.
	want := []string{"text", "object", "person"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dominant = %v, want %v", got, want)
	}
}

func TestDominantCategoriesEmpty(t *testing.T) {
	if got := DominantCategories(nil, 5); len(got) != 0 {
		t.Errorf("dominant over empty counts = %v", got)
	}
}

func TestNarrativeSummaryDegradedRun(t *testing.T) {
	report := core.JudgingReport{TotalScore: 0, CategoriesScored: 1}
	result := &core.AnalysisResult{
		Metadata:   core.VideoMetadata{DurationSec: 90},
		Transcript: core.UnavailableTranscript(),
		Report:     &report,
	}

	summary := NarrativeSummary(result)
	if !strings.Contains(summary, "90-second") {
		t.Errorf("summary missing duration: %q", summary)
	}
	if !strings.Contains(summary, "transcription was unavailable") {
		t.Errorf("summary missing degradation note: %q", summary)
	}
}

func TestNarrativeSummaryFullRun(t *testing.T) {
	report := core.JudgingReport{TotalScore: 7, CategoriesScored: 3}
	result := &core.AnalysisResult{
		Metadata: core.VideoMetadata{DurationSec: 120},
		Frames: analysisWithTop(
			[]string{"text"},
			[]string{"text"},
		),
		CategoryCounts:     map[string]int{"text": 2},
		DominantCategories: []string{"text"},
		Transcript: core.Transcript{
			Text:     "hello",
			Segments: []core.Segment{{Start: 0, End: 5, Text: "hello"}},
		},
		Report: &report,
	}

	summary := NarrativeSummary(result)
	if !strings.Contains(summary, "text (2)") {
		t.Errorf("summary missing dominant category: %q", summary)
	}
	if !strings.Contains(summary, "7 points across 3 scored categories") {
		t.Errorf("summary missing rubric outcome: %q", summary)
	}
}
