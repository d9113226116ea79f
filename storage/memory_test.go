package storage

import (
	"errors"
	"testing"

	"videoJudge/core"
)

func unitVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func TestMemoryStoreRejectsLengthMismatch(t *testing.T) {
	s := NewMemoryVectorStore()

	err := s.UpsertFrameEmbeddings("vid", [][]float32{unitVec(4, 0)}, []float64{0, 1}, nil)
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("frame mismatch error = %v, want ErrInvalidInput", err)
	}

	err = s.UpsertSegmentEmbeddings("vid", [][]float32{unitVec(4, 0), unitVec(4, 1)},
		[]core.Segment{{Start: 0, End: 5}}, nil)
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("segment mismatch error = %v, want ErrInvalidInput", err)
	}

	// The failed upserts must not have written anything.
	hits, err := s.SearchFrames(unitVec(4, 0), 5, "vid")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("found %d hits after rejected upserts", len(hits))
	}
}

func TestMemoryStoreMetadataLengthValidated(t *testing.T) {
	s := NewMemoryVectorStore()
	err := s.UpsertFrameEmbeddings("vid", [][]float32{unitVec(4, 0)}, []float64{0},
		[]map[string]string{{"a": "1"}, {"b": "2"}})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("metadata mismatch error = %v, want ErrInvalidInput", err)
	}
}

func TestMemoryStoreSearchAscendingDistance(t *testing.T) {
	s := NewMemoryVectorStore()
	embeddings := [][]float32{
		{1, 0, 0, 0},
		{0.9, 0.1, 0, 0},
		{0, 1, 0, 0},
	}
	if err := s.UpsertFrameEmbeddings("vid", embeddings, []float64{0, 1, 2}, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := s.SearchFrames([]float32{1, 0, 0, 0}, 3, "vid")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Errorf("hits not in ascending distance: %v after %v", hits[i].Distance, hits[i-1].Distance)
		}
	}
	if hits[0].TimestampSec != 0 {
		t.Errorf("closest hit timestamp = %v, want 0", hits[0].TimestampSec)
	}
}

func TestMemoryStoreVideoIsolation(t *testing.T) {
	s := NewMemoryVectorStore()
	if err := s.UpsertFrameEmbeddings("a", [][]float32{unitVec(4, 0)}, []float64{0}, nil); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := s.UpsertFrameEmbeddings("b", [][]float32{unitVec(4, 1)}, []float64{0}, nil); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	hits, err := s.SearchFrames(unitVec(4, 0), 5, "a")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits scoped to video a, want 1", len(hits))
	}
	if hits[0].ID != "a_frame_0" {
		t.Errorf("hit ID = %q, want a_frame_0", hits[0].ID)
	}

	all, err := s.SearchFrames(unitVec(4, 0), 5, "")
	if err != nil {
		t.Fatalf("search all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d unscoped hits, want 2", len(all))
	}
}

func TestMemoryStoreUpsertReplaces(t *testing.T) {
	s := NewMemoryVectorStore()
	first := [][]float32{unitVec(4, 0), unitVec(4, 1)}
	if err := s.UpsertFrameEmbeddings("vid", first, []float64{0, 1}, nil); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := [][]float32{unitVec(4, 2)}
	if err := s.UpsertFrameEmbeddings("vid", second, []float64{5}, nil); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	hits, err := s.SearchFrames(unitVec(4, 2), 5, "vid")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits after replacement, want 1", len(hits))
	}
	if hits[0].TimestampSec != 5 {
		t.Errorf("hit timestamp = %v, want 5", hits[0].TimestampSec)
	}
}

func TestMemoryStoreSegmentSearchCarriesText(t *testing.T) {
	s := NewMemoryVectorStore()
	segments := []core.Segment{{Start: 0, End: 10, Text: "agent to agent demo"}}
	if err := s.UpsertSegmentEmbeddings("vid", [][]float32{unitVec(4, 0)}, segments, nil); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := s.SearchSegments(unitVec(4, 0), 1, "vid")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Text != "agent to agent demo" || hits[0].End != 10 {
		t.Errorf("hit = %+v, want segment fields carried", hits[0])
	}
}
