package processors

import (
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"sort"
	"strings"

	"videoJudge/config"
	"videoJudge/core"
)

// BaseCategories is the default label set for zero-shot frame classification.
var BaseCategories = []string{
	"person", "vehicle", "animal", "food", "object",
	"indoor scene", "outdoor scene", "text", "action",
	"emotion", "event",
}

// FrameClassifier scores a frame against a set of category labels and
// produces an embedding. A nil or empty category list means BaseCategories.
// Implementations do not cache across calls; callers needing caching wrap
// the classifier.
type FrameClassifier interface {
	Classify(framePath string, categories []string) (core.Classification, error)
}

// BatchClassify partitions frames into fixed-size chunks and classifies each
// chunk in order. Chunking only bounds model memory use; result order always
// matches input order. The first failure aborts the whole batch.
func BatchClassify(c FrameClassifier, framePaths []string, categories []string, batchSize int) ([]core.Classification, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	results := make([]core.Classification, 0, len(framePaths))
	for start := 0; start < len(framePaths); start += batchSize {
		end := min(start+batchSize, len(framePaths))
		for _, path := range framePaths[start:end] {
			cl, err := c.Classify(path, categories)
			if err != nil {
				return nil, &core.ClassificationError{FramePath: path, Err: err}
			}
			results = append(results, cl)
		}
	}
	return results, nil
}

// PickClassifier selects a provider from the CLASSIFIER environment
// variable: "mock", "clip" (local ONNX) or "api". The default prefers the
// API when configured and falls back to the local model, then to mock.
func PickClassifier() FrameClassifier {
	kind := strings.ToLower(strings.TrimSpace(os.Getenv("CLASSIFIER")))

	if kind == "mock" {
		return MockClassifier{}
	}

	if kind == "clip" {
		c, err := NewClipClassifier()
		if err != nil {
			fmt.Printf("Warning: local CLIP classifier unavailable (%v), using mock classifier\n", err)
			return MockClassifier{}
		}
		return c
	}

	cfg, err := config.Load()
	if kind == "api" || (err == nil && cfg.HasValidAPI()) {
		c, apiErr := NewEmbeddingClassifier()
		if apiErr == nil {
			return c
		}
		fmt.Printf("Warning: API classifier unavailable (%v), trying local CLIP\n", apiErr)
	}

	if c, clipErr := NewClipClassifier(); clipErr == nil {
		return c
	}
	fmt.Println("Warning: no classifier backend available, using mock classifier")
	return MockClassifier{}
}

// resolveCategories returns the effective label set. The scored label set is
// exactly the input set; base and custom labels are never merged.
func resolveCategories(categories []string) []string {
	if len(categories) == 0 {
		return BaseCategories
	}
	return categories
}

// topCategories returns the n highest-scoring labels in descending order.
// Ties keep the input label order so results stay deterministic.
func topCategories(scores map[string]float64, categories []string, n int) []string {
	order := make([]string, len(categories))
	copy(order, categories)
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	if n > len(order) {
		n = len(order)
	}
	return order[:n]
}

func cosine32(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MockClassifier produces deterministic pseudo-scores derived from the frame
// path and label. It stands in when no model backend is configured.
type MockClassifier struct{}

func (m MockClassifier) Classify(framePath string, categories []string) (core.Classification, error) {
	cats := resolveCategories(categories)

	scores := make(map[string]float64, len(cats))
	for _, cat := range cats {
		scores[cat] = mockScore(framePath, cat)
	}

	dim := 512
	if cfg, err := config.Load(); err == nil {
		dim = cfg.EmbeddingDim
	}
	embedding := make([]float32, dim)
	for i := range embedding {
		embedding[i] = float32(mockScore(framePath, fmt.Sprintf("dim-%d", i))*2 - 1)
	}

	return core.Classification{
		Embedding:     embedding,
		Scores:        scores,
		TopCategories: topCategories(scores, cats, 3),
	}, nil
}

func mockScore(framePath, label string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(framePath))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(label))
	return float64(h.Sum32()%1000) / 999.0
}
