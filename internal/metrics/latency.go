package metrics

import (
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// Latency thresholds in milliseconds tracked per model. 3 significant
// digits keeps the histograms small while percentiles stay accurate.
const (
	minLatencyMs = 1
	maxLatencyMs = 120_000
	sigFigures   = 3
)

// LatencyRecorder keeps one HDR histogram per model so the report can show
// where each platform spends its time.
type LatencyRecorder struct {
	mu    sync.Mutex
	hists map[string]*hdrhistogram.Histogram
}

// NewLatencyRecorder creates an empty recorder.
func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{hists: make(map[string]*hdrhistogram.Histogram)}
}

// Record adds one observation. Values outside the tracked range are clamped
// rather than dropped.
func (r *LatencyRecorder) Record(model string, latencyMs int64) {
	if latencyMs < minLatencyMs {
		latencyMs = minLatencyMs
	}
	if latencyMs > maxLatencyMs {
		latencyMs = maxLatencyMs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hists[model]
	if !ok {
		h = hdrhistogram.New(minLatencyMs, maxLatencyMs, sigFigures)
		r.hists[model] = h
	}
	_ = h.RecordValue(latencyMs)
}

// Summaries returns the per-model percentile summary for the report.
func (r *LatencyRecorder) Summaries() map[string]*types.LatencySummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*types.LatencySummary, len(r.hists))
	for model, h := range r.hists {
		if h.TotalCount() == 0 {
			continue
		}
		out[model] = &types.LatencySummary{
			Count: h.TotalCount(),
			AvgMs: int64(h.Mean()),
			P95Ms: h.ValueAtQuantile(95),
			P99Ms: h.ValueAtQuantile(99),
		}
	}
	return out
}
