package types

// EntityMention is one occurrence of a configured brand name in a cleaned
// response text.
type EntityMention struct {
	Name         string `json:"name"`
	IsCompetitor bool   `json:"is_competitor"`
	Offset       int    `json:"offset"`
	Context      string `json:"context"`
}

// GeoFeatures carries the document-level features consumed by the brand
// scoring heuristics. "Brand" here is the brand the record's task asked
// about, not necessarily the execution's main brand.
type GeoFeatures struct {
	Length                int      `json:"length"`
	SentenceCount         int      `json:"sentence_count"`
	Language              string   `json:"language"` // zh, en, unknown
	HasNumbers            bool     `json:"has_numbers"`
	HasURLs               bool     `json:"has_urls"`
	BrandMentioned        bool     `json:"brand_mentioned"`
	BrandRank             int      `json:"brand_rank"` // 1-based by first occurrence, 0 = absent
	Sentiment             float64  `json:"sentiment"`
	SentimentValid        bool     `json:"sentiment_valid"`
	CitedSources          []string `json:"cited_sources,omitempty"`
	CompetitorIntercepted bool     `json:"competitor_intercepted"`
	MentionPositions      []int    `json:"mention_positions,omitempty"`
}

// CleanedRecord is the structured, scored output of the cleaning pipeline
// for one task result. It is immutable once produced and owned by the
// aggregator. Failed tasks still produce a placeholder record with Failed
// set so completeness can be computed downstream.
type CleanedRecord struct {
	Question string `json:"question"`
	Model    string `json:"model"`
	Brand    string `json:"brand"`

	Text          string `json:"text"`
	ContentHash   string `json:"content_hash,omitempty"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	NearDuplicate bool   `json:"near_duplicate,omitempty"`

	Mentions           []EntityMention `json:"mentions,omitempty"`
	BrandMentions      int             `json:"brand_mentions"`
	CompetitorMentions int             `json:"competitor_mentions"`

	Geo *GeoFeatures `json:"geo,omitempty"`

	QualityScore float64  `json:"quality_score"`
	IsValid      bool     `json:"is_valid"`
	Issues       []string `json:"issues,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`

	Failed       bool   `json:"failed,omitempty"`
	FailureKind  string `json:"failure_kind,omitempty"`
	FailureError string `json:"failure_error,omitempty"`

	LatencyMs int64 `json:"latency_ms"`

	// Intermediate holds each pipeline step's contribution keyed by step
	// name so callers can inspect a step without re-running it. Excluded
	// from persisted snapshots.
	Intermediate map[string]any `json:"-"`
}

// Key returns the record's matrix key.
func (r *CleanedRecord) Key() TaskKey {
	return TaskKey{Question: r.Question, Model: r.Model, Brand: r.Brand}
}

// AddWarning appends a warning message to the record.
func (r *CleanedRecord) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddIssue appends an issue message to the record.
func (r *CleanedRecord) AddIssue(msg string) {
	r.Issues = append(r.Issues, msg)
}

// SetStepOutput records a pipeline step's output under its name.
func (r *CleanedRecord) SetStepOutput(step string, out any) {
	if r.Intermediate == nil {
		r.Intermediate = make(map[string]any)
	}
	r.Intermediate[step] = out
}
