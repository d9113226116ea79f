package storage

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"videoJudge/core"
)

// MemoryVectorStore keeps embeddings in process memory. Default backend
// and the fallback when pgvector or Milvus cannot be reached.
type MemoryVectorStore struct {
	mu       sync.RWMutex
	frames   map[string][]frameDoc
	segments map[string][]segmentDoc
}

type frameDoc struct {
	ID           string
	Embedding    []float32
	TimestampSec float64
	Metadata     map[string]string
}

type segmentDoc struct {
	ID        string
	Embedding []float32
	Segment   core.Segment
	Metadata  map[string]string
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{
		frames:   make(map[string][]frameDoc),
		segments: make(map[string][]segmentDoc),
	}
}

func (s *MemoryVectorStore) UpsertFrameEmbeddings(videoID string, embeddings [][]float32, timestamps []float64, metadata []map[string]string) error {
	if err := validateFrameUpsert(embeddings, timestamps, metadata); err != nil {
		return err
	}
	unlock := lockVideo(videoID)
	defer unlock()

	docs := make([]frameDoc, len(embeddings))
	for i := range embeddings {
		docs[i] = frameDoc{
			ID:           fmt.Sprintf("%s_frame_%d", videoID, i),
			Embedding:    embeddings[i],
			TimestampSec: timestamps[i],
		}
		if metadata != nil {
			docs[i].Metadata = metadata[i]
		}
	}

	s.mu.Lock()
	s.frames[videoID] = docs
	s.mu.Unlock()
	return nil
}

func (s *MemoryVectorStore) UpsertSegmentEmbeddings(videoID string, embeddings [][]float32, segments []core.Segment, metadata []map[string]string) error {
	if err := validateSegmentUpsert(embeddings, segments, metadata); err != nil {
		return err
	}
	unlock := lockVideo(videoID)
	defer unlock()

	docs := make([]segmentDoc, len(embeddings))
	for i := range embeddings {
		docs[i] = segmentDoc{
			ID:        fmt.Sprintf("%s_segment_%d", videoID, i),
			Embedding: embeddings[i],
			Segment:   segments[i],
		}
		if metadata != nil {
			docs[i].Metadata = metadata[i]
		}
	}

	s.mu.Lock()
	s.segments[videoID] = docs
	s.mu.Unlock()
	return nil
}

func (s *MemoryVectorStore) SearchFrames(embedding []float32, k int, videoID string) ([]core.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []core.Hit
	for vid, docs := range s.frames {
		if videoID != "" && vid != videoID {
			continue
		}
		for _, d := range docs {
			hits = append(hits, core.Hit{
				ID:           d.ID,
				Distance:     cosineDistance(embedding, d.Embedding),
				TimestampSec: d.TimestampSec,
				Metadata:     d.Metadata,
			})
		}
	}
	return topHits(hits, k), nil
}

func (s *MemoryVectorStore) SearchSegments(embedding []float32, k int, videoID string) ([]core.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []core.Hit
	for vid, docs := range s.segments {
		if videoID != "" && vid != videoID {
			continue
		}
		for _, d := range docs {
			hits = append(hits, core.Hit{
				ID:       d.ID,
				Distance: cosineDistance(embedding, d.Embedding),
				Start:    d.Segment.Start,
				End:      d.Segment.End,
				Text:     d.Segment.Text,
				Metadata: d.Metadata,
			})
		}
	}
	return topHits(hits, k), nil
}

func topHits(hits []core.Hit, k int) []core.Hit {
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k <= 0 {
		k = 5
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// cosineDistance returns 1 - cosine similarity; zero vectors are treated
// as maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
