package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// brandStat accumulates per-brand counters across records.
type brandStat struct {
	mentionRecords int // records whose text mentions the brand
	rankSum        int
	rankCount      int
	sentimentSum   float64
	sentimentCount int
}

// Aggregator folds cleaned records into a running report. Adding records is
// commutative: any arrival order of the same record set produces the same
// report. It performs no deduplication of its own; feeding the same record
// twice changes the result, callers own at-most-once delivery per matrix
// cell.
//
// Not safe for concurrent use; the engine's aggregation goroutine owns it.
type Aggregator struct {
	execID     string
	cfg        *types.ExecutionConfig
	totalTasks int

	records []*types.CleanedRecord
	stats   map[string]*brandStat

	totalResponses   int
	successResponses int

	invalidSentiments int
}

// New creates an aggregator for one execution.
func New(execID string, cfg *types.ExecutionConfig) *Aggregator {
	a := &Aggregator{
		execID:     execID,
		cfg:        cfg,
		totalTasks: cfg.TotalTasks(),
		stats:      make(map[string]*brandStat),
	}
	for _, b := range cfg.Brands() {
		a.stats[b] = &brandStat{}
	}
	return a
}

// AddResult folds one cleaned record into the running state.
func (a *Aggregator) AddResult(rec *types.CleanedRecord) {
	a.records = append(a.records, rec)
	a.totalResponses++
	if rec.Failed {
		return
	}
	a.successResponses++

	mentioned := make(map[string]bool, len(a.stats))
	for _, m := range rec.Mentions {
		mentioned[m.Name] = true
	}
	for brand, st := range a.stats {
		if mentioned[brand] {
			st.mentionRecords++
		}
	}

	// Rank and sentiment attach to the record's own task brand.
	if st, ok := a.stats[rec.Brand]; ok && rec.Geo != nil {
		if rec.Geo.BrandRank > 0 {
			st.rankSum += rec.Geo.BrandRank
			st.rankCount++
		}
		if rec.Geo.BrandMentioned {
			if rec.Geo.SentimentValid && rec.Geo.Sentiment >= -1 && rec.Geo.Sentiment <= 1 {
				st.sentimentSum += rec.Geo.Sentiment
				st.sentimentCount++
			} else {
				a.invalidSentiments++
			}
		}
	}
}

// Counts returns (successes, total responses folded so far).
func (a *Aggregator) Counts() (success, total int) {
	return a.successResponses, a.totalResponses
}

// Report builds the report from the current state. final=false marks the
// report as a stub, served while the execution is still running.
func (a *Aggregator) Report(final bool, includeRecords bool) *types.AggregatedReport {
	rep := &types.AggregatedReport{
		ExecutionID:      a.execID,
		MainBrand:        a.cfg.MainBrand,
		ShareOfVoice:     make(map[string]float64, len(a.stats)),
		TotalTasks:       a.totalTasks,
		TotalResponses:   a.totalResponses,
		SuccessResponses: a.successResponses,
		IsStub:           !final,
		GeneratedAt:      time.Now(),
	}
	if includeRecords {
		rep.Records = a.records
	}

	if a.totalTasks > 0 {
		rep.DataCompleteness = float64(a.successResponses) / float64(a.totalTasks) * 100
	}

	rep.Rankings = a.rankings()
	for _, r := range rep.Rankings {
		rep.ShareOfVoice[r.Brand] = r.MentionRate
	}

	if main, ok := a.stats[a.cfg.MainBrand]; ok && main.sentimentCount > 0 {
		rep.AvgSentiment = main.sentimentSum / float64(main.sentimentCount)
	}

	if a.invalidSentiments > 0 {
		rep.Warnings = append(rep.Warnings, "some responses had no usable sentiment and were excluded")
	}

	rep.HealthScore = a.healthScore()
	return rep
}

// rankings sorts brands by mention rate desc, then avg rank asc (0 = never
// ranked sorts last), then name for stability.
func (a *Aggregator) rankings() []types.BrandRanking {
	out := make([]types.BrandRanking, 0, len(a.stats))
	for brand, st := range a.stats {
		r := types.BrandRanking{
			Brand:        brand,
			IsMain:       brand == a.cfg.MainBrand,
			MentionCount: st.mentionRecords,
		}
		if a.totalResponses > 0 {
			r.MentionRate = float64(st.mentionRecords) / float64(a.totalResponses) * 100
		}
		if st.rankCount > 0 {
			r.AvgRank = float64(st.rankSum) / float64(st.rankCount)
		}
		if st.sentimentCount > 0 {
			r.AvgSentiment = st.sentimentSum / float64(st.sentimentCount)
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MentionRate != out[j].MentionRate {
			return out[i].MentionRate > out[j].MentionRate
		}
		ri, rj := out[i].AvgRank, out[j].AvgRank
		if ri == 0 {
			ri = 1 << 20
		}
		if rj == 0 {
			rj = 1 << 20
		}
		if ri != rj {
			return ri < rj
		}
		return strings.Compare(out[i].Brand, out[j].Brand) < 0
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// healthScore blends completion rate, data completeness, cited-source
// richness and sentiment validity into a 0-100 indicator of how trustworthy
// the diagnosis data is.
func (a *Aggregator) healthScore() float64 {
	if a.totalResponses == 0 {
		return 0
	}

	completionRate := 0.0
	if a.totalTasks > 0 {
		completionRate = float64(a.totalResponses) / float64(a.totalTasks)
	}
	dataCompleteness := 0.0
	if a.totalTasks > 0 {
		dataCompleteness = float64(a.successResponses) / float64(a.totalTasks)
	}

	sources := make(map[string]struct{})
	validSentiments := 0
	mentionedRecords := 0
	for _, rec := range a.records {
		if rec.Failed || rec.Geo == nil {
			continue
		}
		for _, s := range rec.Geo.CitedSources {
			sources[s] = struct{}{}
		}
		if rec.Geo.BrandMentioned {
			mentionedRecords++
			if rec.Geo.SentimentValid {
				validSentiments++
			}
		}
	}

	sourceRichness := float64(len(sources)) / 5.0
	if sourceRichness > 1 {
		sourceRichness = 1
	}
	sentimentValidity := 0.0
	if mentionedRecords > 0 {
		sentimentValidity = float64(validSentiments) / float64(mentionedRecords)
	}

	score := 0.4*completionRate + 0.3*dataCompleteness + 0.15*sourceRichness + 0.15*sentimentValidity
	return score * 100
}
