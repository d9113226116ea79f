package processors

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"videoJudge/core"
)

func TestMockClassifierDeterministic(t *testing.T) {
	m := MockClassifier{}

	first, err := m.Classify("frames/00001.jpg", nil)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	second, err := m.Classify("frames/00001.jpg", nil)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}

	if !reflect.DeepEqual(first.Scores, second.Scores) {
		t.Error("scores differ across identical calls")
	}
	if !reflect.DeepEqual(first.TopCategories, second.TopCategories) {
		t.Error("top categories differ across identical calls")
	}
}

func TestMockClassifierUsesExactLabelSet(t *testing.T) {
	m := MockClassifier{}
	labels := []string{"whiteboard", "slide", "terminal"}

	cl, err := m.Classify("frames/00002.jpg", labels)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}

	if len(cl.Scores) != len(labels) {
		t.Fatalf("got %d scores, want %d", len(cl.Scores), len(labels))
	}
	for _, l := range labels {
		if _, ok := cl.Scores[l]; !ok {
			t.Errorf("missing score for label %q", l)
		}
	}
	for _, top := range cl.TopCategories {
		if _, ok := cl.Scores[top]; !ok {
			t.Errorf("top category %q not in scored labels", top)
		}
	}
}

func TestMockClassifierDefaultsToBaseCategories(t *testing.T) {
	m := MockClassifier{}
	cl, err := m.Classify("frames/00003.jpg", nil)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(cl.Scores) != len(BaseCategories) {
		t.Errorf("got %d scores, want %d base categories", len(cl.Scores), len(BaseCategories))
	}
}

func TestTopCategoriesOrderAndTies(t *testing.T) {
	scores := map[string]float64{"a": 0.2, "b": 0.9, "c": 0.2, "d": 0.5}
	got := topCategories(scores, []string{"a", "b", "c", "d"}, 3)

	// b first, then d, then the tie between a and c resolved by input order.
	want := []string{"b", "d", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("top categories = %v, want %v", got, want)
	}
}

func TestTopCategoriesShortLabelSet(t *testing.T) {
	scores := map[string]float64{"a": 0.3, "b": 0.1}
	got := topCategories(scores, []string{"a", "b"}, 3)
	if len(got) != 2 {
		t.Errorf("got %d categories, want 2", len(got))
	}
}

type flakyClassifier struct {
	failAt string
	calls  []string
}

func (f *flakyClassifier) Classify(framePath string, categories []string) (core.Classification, error) {
	f.calls = append(f.calls, framePath)
	if framePath == f.failAt {
		return core.Classification{}, fmt.Errorf("model exploded")
	}
	return core.Classification{TopCategories: []string{framePath}}, nil
}

func TestBatchClassifyPreservesOrder(t *testing.T) {
	c := &flakyClassifier{}
	paths := []string{"f1", "f2", "f3", "f4", "f5"}

	results, err := BatchClassify(c, paths, nil, 2)
	if err != nil {
		t.Fatalf("batch classify: %v", err)
	}
	if len(results) != len(paths) {
		t.Fatalf("got %d results, want %d", len(results), len(paths))
	}
	for i, r := range results {
		if r.TopCategories[0] != paths[i] {
			t.Errorf("result[%d] = %q, want %q", i, r.TopCategories[0], paths[i])
		}
	}
}

func TestBatchClassifyAbortsOnFirstError(t *testing.T) {
	c := &flakyClassifier{failAt: "f3"}
	paths := []string{"f1", "f2", "f3", "f4"}

	results, err := BatchClassify(c, paths, nil, 2)
	if err == nil {
		t.Fatal("expected error from failing frame")
	}
	if results != nil {
		t.Error("partial results returned after failure")
	}

	var clsErr *core.ClassificationError
	if !errors.As(err, &clsErr) {
		t.Fatalf("error type = %T, want *core.ClassificationError", err)
	}
	if clsErr.FramePath != "f3" {
		t.Errorf("failing frame = %q, want f3", clsErr.FramePath)
	}
	if len(c.calls) != 3 {
		t.Errorf("classifier called %d times, want 3 (abort at failure)", len(c.calls))
	}
}
