package core

// ========== Video structures ==========

type Frame struct {
	TimestampSec float64 `json:"timestamp_sec"`
	Path         string  `json:"path"`
}

type VideoMetadata struct {
	FPS         float64 `json:"fps"`
	FrameCount  int     `json:"frame_count"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	DurationSec float64 `json:"duration_sec"`
}

// ========== Transcript structures ==========

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// TranscriptUnavailable is the sentinel text substituted when the speech
// engine fails or returns no speech. The pipeline still produces a
// visual-only report in that case.
const TranscriptUnavailable = "[Audio transcription unavailable]"

func UnavailableTranscript() Transcript {
	return Transcript{Text: TranscriptUnavailable, Segments: nil}
}

func (t Transcript) Available() bool {
	return t.Text != TranscriptUnavailable
}

// ========== Classification structures ==========

type Classification struct {
	Embedding     []float32          `json:"embedding"`
	Scores        map[string]float64 `json:"scores"`
	TopCategories []string           `json:"top_categories"`
}

// FrameAnalysis pairs a sampled frame with its classification result.
type FrameAnalysis struct {
	TimestampSec   float64 `json:"timestamp_sec"`
	FramePath      string  `json:"frame_path"`
	Classification `json:"classification"`
}

// ========== Judging structures ==========

type RubricCategory string

const (
	CategoryInnovation   RubricCategory = "innovation_and_creativity"
	CategoryPrototype    RubricCategory = "functioning_prototype"
	CategoryTechnical    RubricCategory = "technical_complexity"
	CategoryBusiness     RubricCategory = "business_utility"
	CategoryPresentation RubricCategory = "presentation_quality"
	CategoryBonus        RubricCategory = "bonus_integration"
)

// RubricCategories returns the fixed category set in scoring order.
func RubricCategories() []RubricCategory {
	return []RubricCategory{
		CategoryInnovation,
		CategoryPrototype,
		CategoryTechnical,
		CategoryBusiness,
		CategoryPresentation,
		CategoryBonus,
	}
}

// CategoryResult holds one category's outcome for a single scoring pass.
// Score stays nil when the category could not be scored; a nil score
// contributes to neither the total nor the scored count.
type CategoryResult struct {
	Score      *int     `json:"score"`
	Feedback   []string `json:"feedback"`
	Observable bool     `json:"observable"`
}

type JudgingReport struct {
	Categories       map[RubricCategory]*CategoryResult `json:"categories"`
	TotalScore       int                                `json:"total_score"`
	CategoriesScored int                                `json:"categories_scored"`
}

func (r *JudgingReport) Category(c RubricCategory) *CategoryResult {
	return r.Categories[c]
}

// ========== Pipeline result ==========

type AnalysisResult struct {
	VideoPath          string          `json:"video_path"`
	VideoID            string          `json:"video_id"`
	Metadata           VideoMetadata   `json:"metadata"`
	Frames             []FrameAnalysis `json:"frames"`
	Transcript         Transcript      `json:"transcript"`
	CategoryCounts     map[string]int  `json:"category_counts"`
	DominantCategories []string        `json:"dominant_categories"`
	Report             *JudgingReport  `json:"report"`
	Summary            string          `json:"summary"`
	Warnings           []string        `json:"warnings,omitempty"`
}

// ========== Vector store structures ==========

type Hit struct {
	ID           string            `json:"id"`
	Distance     float64           `json:"distance"`
	TimestampSec float64           `json:"timestamp_sec,omitempty"`
	Start        float64           `json:"start,omitempty"`
	End          float64           `json:"end,omitempty"`
	Text         string            `json:"text,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
