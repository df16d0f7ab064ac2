package types

import "time"

// BrandRanking is one row of the per-brand ranking list.
type BrandRanking struct {
	Rank         int     `json:"rank"`
	Brand        string  `json:"brand"`
	IsMain       bool    `json:"is_main"`
	MentionCount int     `json:"mention_count"`
	MentionRate  float64 `json:"mention_rate"` // percentage of responses mentioning the brand
	AvgRank      float64 `json:"avg_rank"`     // average first-occurrence rank, 0 when never ranked
	AvgSentiment float64 `json:"avg_sentiment"`
}

// LatencySummary summarizes adapter latency for one model.
type LatencySummary struct {
	Count int64 `json:"count"`
	AvgMs int64 `json:"avg_ms"`
	P95Ms int64 `json:"p95_ms"`
	P99Ms int64 `json:"p99_ms"`
}

// AggregatedReport is the incrementally-built diagnosis output. It is
// servable mid-execution as a stub and finalized when the execution reaches
// a terminal state.
type AggregatedReport struct {
	ExecutionID string `json:"execution_id"`
	MainBrand   string `json:"main_brand"`

	Rankings     []BrandRanking     `json:"rankings"`
	ShareOfVoice map[string]float64 `json:"share_of_voice"`
	AvgSentiment float64            `json:"avg_sentiment"`
	HealthScore  float64            `json:"health_score"`

	Records []*CleanedRecord `json:"records,omitempty"`

	TotalTasks       int     `json:"total_tasks"`
	TotalResponses   int     `json:"total_responses"`
	SuccessResponses int     `json:"success_responses"`
	DataCompleteness float64 `json:"data_completeness"` // percentage
	IsStub           bool    `json:"is_stub"`

	ModelLatencies map[string]*LatencySummary `json:"model_latencies,omitempty"`
	Warnings       []string                   `json:"warnings,omitempty"`
	GeneratedAt    time.Time                  `json:"generated_at"`
}
