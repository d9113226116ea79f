package storage

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"videoJudge/config"
	"videoJudge/core"
)

// VectorStore abstracts the embedding storage backend. Upserts validate
// paired slice lengths before touching the backend; searches return hits
// in ascending cosine distance.
type VectorStore interface {
	UpsertFrameEmbeddings(videoID string, embeddings [][]float32, timestamps []float64, metadata []map[string]string) error
	UpsertSegmentEmbeddings(videoID string, embeddings [][]float32, segments []core.Segment, metadata []map[string]string) error
	SearchFrames(embedding []float32, k int, videoID string) ([]core.Hit, error)
	SearchSegments(embedding []float32, k int, videoID string) ([]core.Hit, error)
}

var globalStore VectorStore

// videoLocks serializes writes per video ID across all backends. Reads do
// not take these locks.
var videoLocks sync.Map

func lockVideo(videoID string) func() {
	mu, _ := videoLocks.LoadOrStore(videoID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func validateFrameUpsert(embeddings [][]float32, timestamps []float64, metadata []map[string]string) error {
	if len(embeddings) != len(timestamps) {
		return fmt.Errorf("%w: %d embeddings for %d timestamps", core.ErrInvalidInput, len(embeddings), len(timestamps))
	}
	if metadata != nil && len(metadata) != len(embeddings) {
		return fmt.Errorf("%w: %d metadata entries for %d embeddings", core.ErrInvalidInput, len(metadata), len(embeddings))
	}
	return nil
}

func validateSegmentUpsert(embeddings [][]float32, segments []core.Segment, metadata []map[string]string) error {
	if len(embeddings) != len(segments) {
		return fmt.Errorf("%w: %d embeddings for %d segments", core.ErrInvalidInput, len(embeddings), len(segments))
	}
	if metadata != nil && len(metadata) != len(embeddings) {
		return fmt.Errorf("%w: %d metadata entries for %d embeddings", core.ErrInvalidInput, len(metadata), len(embeddings))
	}
	return nil
}

// InitVectorStore selects the backend from the STORE env var (memory,
// pgvector, milvus). Backend failures fall back to the in-memory store
// with a warning rather than aborting startup.
func InitVectorStore() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Warning: failed to load config (%v), using memory store\n", err)
		globalStore = NewMemoryVectorStore()
		return nil
	}

	kind := strings.ToLower(strings.TrimSpace(os.Getenv("STORE")))
	switch kind {
	case "milvus":
		s, err := newMilvusVectorStore(cfg)
		if err != nil {
			fmt.Printf("Warning: failed to initialize Milvus store (%v), falling back to memory store\n", err)
			globalStore = NewMemoryVectorStore()
			return nil
		}
		globalStore = s
	case "pgvector":
		s, err := newPgVectorStore(cfg)
		if err != nil {
			fmt.Printf("Warning: failed to initialize PgVector store (%v), falling back to memory store\n", err)
			globalStore = NewMemoryVectorStore()
			return nil
		}
		globalStore = s
	default:
		globalStore = NewMemoryVectorStore()
	}
	return nil
}

// Global returns the process-wide store selected by InitVectorStore.
func Global() VectorStore {
	if globalStore == nil {
		globalStore = NewMemoryVectorStore()
	}
	return globalStore
}
