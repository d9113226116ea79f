package processors

import (
	"fmt"
	"sort"
	"strings"

	"videoJudge/core"
)

// CategoryFrequency counts how often each category appears among the
// per-frame top categories.
func CategoryFrequency(frames []core.FrameAnalysis) map[string]int {
	counts := make(map[string]int)
	for _, f := range frames {
		for _, cat := range f.Classification.TopCategories {
			counts[cat]++
		}
	}
	return counts
}

// DominantCategories returns up to n categories ordered by descending
// frequency, ties broken alphabetically so the ordering is stable.
func DominantCategories(counts map[string]int, n int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

// NarrativeSummary renders a short human-readable description of an
// analysis run for display and for the JSON response.
func NarrativeSummary(result *core.AnalysisResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The video is a %.0f-second presentation.\n", result.Metadata.DurationSec)
	fmt.Fprintf(&b, "Analyzed %d keyframes.\n", len(result.Frames))

	if len(result.DominantCategories) > 0 {
		parts := make([]string, 0, len(result.DominantCategories))
		for _, cat := range result.DominantCategories {
			parts = append(parts, fmt.Sprintf("%s (%d)", cat, result.CategoryCounts[cat]))
		}
		fmt.Fprintf(&b, "Dominant visual content: %s.\n", strings.Join(parts, ", "))
	}

	if result.Transcript.Available() {
		fmt.Fprintf(&b, "Transcript covers %d segments.\n", len(result.Transcript.Segments))
	} else {
		b.WriteString("Audio transcription was unavailable; scoring is based on visuals only.\n")
	}

	if result.Report != nil {
		fmt.Fprintf(&b, "Rubric result: %d points across %d scored categories.\n",
			result.Report.TotalScore, result.Report.CategoriesScored)
	}

	return b.String()
}
