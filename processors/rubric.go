package processors

import (
	"fmt"
	"sort"
	"strings"

	"videoJudge/core"
)

// Keyword sets for the A2A hackathon rubric. Matching is case-insensitive
// substring containment over transcript segment text.
var a2aKeywords = []string{
	"agent to agent", "a2a", "agent-to-agent",
	"between agents", "agent transaction", "agent transfer",
	"autonomous agent", "agent payment", "agent interaction",
}

var innovationKeywords = []string{
	"novel", "unique", "innovative", "creative", "new approach", "unconventional",
	"future of a2a", "agent innovation", "agent automation",
}

var prototypeKeywords = []string{
	"demo", "demonstration", "transaction", "working", "prototype", "live",
	"agent demo", "agent transaction demo", "a2a transfer",
}

var technicalKeywords = []string{
	"implementation", "architecture", "integration", "api", "backend", "security",
	"authentication", "database", "infrastructure", "technical", "agent protocol",
	"agent communication", "agent interface",
}

var businessKeywords = []string{
	"market", "problem", "solution", "opportunity", "customer", "user",
	"business case", "roi", "implementation path", "adoption",
	"agent economy", "agent marketplace", "agent use case",
}

var presentationKeywords = []string{
	"clear", "organized", "structure", "story", "professional",
	"explanation", "walkthrough", "demonstration",
}

var partnerKeywords = map[string][]string{
	"story":    {"story integration", "integrated with story", "using story", "story platform"},
	"fxn":      {"fxn integration", "integrated with fxn", "using fxn", "fxn platform"},
	"alliance": {"alliance integration", "integrated with alliance", "using alliance", "alliance platform"},
	"masumi":   {"masumi network integration", "integrated with masumi", "using masumi network", "masumi platform"},
}

// Categories whose evidence only counts inside segments that also mention
// agent-to-agent transactions, and whose score collapses to zero without
// an overall A2A focus.
var a2aGatedCategories = []core.RubricCategory{
	core.CategoryInnovation,
	core.CategoryPrototype,
	core.CategoryTechnical,
	core.CategoryBusiness,
}

// RubricJudge scores transcript segments against the hackathon rubric.
// Zero value is ready to use; Score is a pure function of its input.
type RubricJudge struct{}

func NewRubricJudge() *RubricJudge { return &RubricJudge{} }

// Score evaluates segments and produces a per-category report. Categories
// without observable evidence keep a nil score and are excluded from the
// total; bonus_integration always scores, counting matched partners.
func (j *RubricJudge) Score(segments []core.Segment) core.JudgingReport {
	categories := make(map[core.RubricCategory]*core.CategoryResult)
	evidence := make(map[core.RubricCategory][]string)
	for _, name := range core.RubricCategories() {
		categories[name] = &core.CategoryResult{}
	}

	hasA2AFocus := false
	var a2aEvidence []string
	partners := make(map[string]bool)

	for _, seg := range segments {
		text := strings.ToLower(seg.Text)
		stamp := fmt.Sprintf("[%ds]", int(seg.Start))

		segmentA2A := matchesAny(text, a2aKeywords)
		if segmentA2A {
			hasA2AFocus = true
			a2aEvidence = append(a2aEvidence, stamp+" "+text)
		}

		if matchesAny(text, innovationKeywords) && segmentA2A {
			categories[core.CategoryInnovation].Observable = true
			evidence[core.CategoryInnovation] = append(evidence[core.CategoryInnovation], stamp+" "+text)
		}

		if matchesAny(text, prototypeKeywords) {
			if segmentA2A {
				categories[core.CategoryPrototype].Observable = true
				evidence[core.CategoryPrototype] = append(evidence[core.CategoryPrototype], stamp+" "+text)
			} else {
				categories[core.CategoryPrototype].Feedback = append(categories[core.CategoryPrototype].Feedback,
					stamp+" Demo shown but not focused on A2A transactions")
			}
		}

		if matchesAny(text, technicalKeywords) && segmentA2A {
			categories[core.CategoryTechnical].Observable = true
			evidence[core.CategoryTechnical] = append(evidence[core.CategoryTechnical], stamp+" "+text)
		}

		if matchesAny(text, businessKeywords) && segmentA2A {
			categories[core.CategoryBusiness].Observable = true
			evidence[core.CategoryBusiness] = append(evidence[core.CategoryBusiness], stamp+" "+text)
		}

		if matchesAny(text, presentationKeywords) {
			categories[core.CategoryPresentation].Observable = true
			evidence[core.CategoryPresentation] = append(evidence[core.CategoryPresentation], stamp+" "+text)
		}

		for _, partner := range sortedPartners() {
			if matchesAny(text, partnerKeywords[partner]) {
				categories[core.CategoryBonus].Observable = true
				partners[partner] = true
				evidence[core.CategoryBonus] = append(evidence[core.CategoryBonus],
					fmt.Sprintf("%s Integration with %s: %s", stamp, partner, text))
			}
		}
	}

	if !hasA2AFocus {
		for _, name := range a2aGatedCategories {
			categories[name].Feedback = append(categories[name].Feedback,
				"WARNING: No clear focus on A2A (Agent-to-Agent) transactions detected")
		}
	} else {
		fb := []string{"A2A transaction focus detected:"}
		fb = append(fb, firstN(a2aEvidence, 2)...)
		categories[core.CategoryPrototype].Feedback = append(categories[core.CategoryPrototype].Feedback, fb...)
	}

	for _, name := range core.RubricCategories() {
		cat := categories[name]
		if name == core.CategoryBonus {
			// Partner bonus always yields a score, zero when nothing matched.
			score := len(partners)
			cat.Score = &score
			if score == 0 {
				cat.Feedback = []string{"No clear integration with event partners detected"}
			} else {
				cat.Feedback = append(cat.Feedback,
					fmt.Sprintf("Integrated with %d partners: %s", score, strings.Join(matchedPartners(partners), ", ")))
			}
			continue
		}
		if !cat.Observable {
			cat.Feedback = append(cat.Feedback, "No observable evidence in video")
			continue
		}
		count := len(evidence[name])
		if count == 0 {
			cat.Feedback = append(cat.Feedback, "Insufficient evidence for scoring")
			continue
		}
		score := count
		if score > 5 {
			score = 5
		}
		if isA2AGated(name) {
			if !hasA2AFocus {
				score = 0
				cat.Feedback = append(cat.Feedback, "Score: 0 - Project does not demonstrate A2A transactions")
			} else {
				cat.Feedback = append(cat.Feedback, fmt.Sprintf("Score: %d - Shows A2A transaction focus", score))
			}
		}
		cat.Score = &score
		for _, e := range firstN(evidence[name], 3) {
			cat.Feedback = append(cat.Feedback, "Evidence found: "+e)
		}
	}

	report := core.JudgingReport{Categories: categories}
	for _, cat := range categories {
		if cat.Score != nil {
			report.TotalScore += *cat.Score
			report.CategoriesScored++
		}
	}
	return report
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func sortedPartners() []string {
	names := make([]string, 0, len(partnerKeywords))
	for name := range partnerKeywords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func matchedPartners(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func isA2AGated(name core.RubricCategory) bool {
	for _, g := range a2aGatedCategories {
		if g == name {
			return true
		}
	}
	return false
}
