package aggregate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

func twoBrandConfig() *types.ExecutionConfig {
	return &types.ExecutionConfig{
		MainBrand:        "Acme",
		CompetitorBrands: []string{"Globex"},
		Questions:        []string{"q1", "q2"},
		SelectedModels:   []string{"m1"},
	}
}

func record(brand string, mentionsAcme, mentionsGlobex bool, rank int, sentiment float64) *types.CleanedRecord {
	rec := &types.CleanedRecord{
		Question: "q1",
		Model:    "m1",
		Brand:    brand,
		Text:     "some cleaned text",
		IsValid:  true,
		Geo: &types.GeoFeatures{
			BrandRank:      rank,
			BrandMentioned: rank > 0,
			Sentiment:      sentiment,
			SentimentValid: true,
		},
	}
	if mentionsAcme {
		rec.Mentions = append(rec.Mentions, types.EntityMention{Name: "Acme"})
	}
	if mentionsGlobex {
		rec.Mentions = append(rec.Mentions, types.EntityMention{Name: "Globex", IsCompetitor: true})
	}
	return rec
}

func failedRecord(brand string) *types.CleanedRecord {
	return &types.CleanedRecord{
		Question:    "q2",
		Model:       "m1",
		Brand:       brand,
		Failed:      true,
		FailureKind: "network",
	}
}

func TestShareOfVoiceIsMentionRate(t *testing.T) {
	a := New("diag_test", twoBrandConfig())
	a.AddResult(record("Acme", true, true, 1, 0.5))
	a.AddResult(record("Acme", true, false, 1, 0.5))
	a.AddResult(record("Globex", false, true, 1, 0.0))
	a.AddResult(record("Globex", false, false, 0, 0.0))

	rep := a.Report(true, false)
	assert.InDelta(t, 50.0, rep.ShareOfVoice["Acme"], 1e-9)
	assert.InDelta(t, 50.0, rep.ShareOfVoice["Globex"], 1e-9)
}

func TestRankingsOrder(t *testing.T) {
	a := New("diag_test", twoBrandConfig())
	// Acme mentioned in 2 of 3, Globex in 1 of 3.
	a.AddResult(record("Acme", true, true, 2, 0.2))
	a.AddResult(record("Acme", true, false, 1, 0.4))
	a.AddResult(record("Globex", false, false, 0, 0))

	rep := a.Report(true, false)
	require.Len(t, rep.Rankings, 2)
	assert.Equal(t, "Acme", rep.Rankings[0].Brand)
	assert.Equal(t, 1, rep.Rankings[0].Rank)
	assert.True(t, rep.Rankings[0].IsMain)
	assert.InDelta(t, 1.5, rep.Rankings[0].AvgRank, 1e-9)
	assert.Equal(t, "Globex", rep.Rankings[1].Brand)
	assert.Equal(t, 2, rep.Rankings[1].Rank)
}

func TestDataCompletenessCountsAgainstTotalTasks(t *testing.T) {
	cfg := &types.ExecutionConfig{
		MainBrand:      "Acme",
		Questions:      []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7", "q8", "q9", "q10"},
		SelectedModels: []string{"m1"},
	}
	a := New("diag_test", cfg)
	for i := 0; i < 6; i++ {
		a.AddResult(record("Acme", true, false, 1, 0.1))
	}
	for i := 0; i < 4; i++ {
		a.AddResult(failedRecord("Acme"))
	}

	rep := a.Report(true, false)
	assert.Equal(t, 10, rep.TotalResponses)
	assert.Equal(t, 6, rep.SuccessResponses)
	assert.InDelta(t, 60.0, rep.DataCompleteness, 1e-9)
}

func TestReportStubFlagAndRecords(t *testing.T) {
	a := New("diag_test", twoBrandConfig())
	a.AddResult(record("Acme", true, false, 1, 0.3))

	stub := a.Report(false, false)
	assert.True(t, stub.IsStub)
	assert.Nil(t, stub.Records)

	final := a.Report(true, true)
	assert.False(t, final.IsStub)
	assert.Len(t, final.Records, 1)
}

func TestOrderIndependence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "n")
		recs := make([]*types.CleanedRecord, 0, n)
		for i := 0; i < n; i++ {
			brand := "Acme"
			if i%2 == 1 {
				brand = "Globex"
			}
			if i%5 == 4 {
				recs = append(recs, failedRecord(brand))
				continue
			}
			recs = append(recs, record(brand, i%2 == 0, i%3 == 0, 1+i%3, float64(i%3)*0.3))
		}

		perm := rapid.Permutation(recs).Draw(t, "perm")

		a1 := New("diag_test", twoBrandConfig())
		for _, r := range recs {
			a1.AddResult(r)
		}
		a2 := New("diag_test", twoBrandConfig())
		for _, r := range perm {
			a2.AddResult(r)
		}

		r1 := a1.Report(true, false)
		r2 := a2.Report(true, false)
		require.Len(t, r2.Rankings, len(r1.Rankings))
		for i := range r1.Rankings {
			assert.Equal(t, r1.Rankings[i].Brand, r2.Rankings[i].Brand)
			assert.Equal(t, r1.Rankings[i].Rank, r2.Rankings[i].Rank)
			assert.Equal(t, r1.Rankings[i].MentionCount, r2.Rankings[i].MentionCount)
			assert.InDelta(t, r1.Rankings[i].AvgRank, r2.Rankings[i].AvgRank, 1e-9)
			assert.InDelta(t, r1.Rankings[i].AvgSentiment, r2.Rankings[i].AvgSentiment, 1e-9)
		}
		for brand, sov := range r1.ShareOfVoice {
			assert.InDelta(t, sov, r2.ShareOfVoice[brand], 1e-9)
		}
		assert.InDelta(t, r1.HealthScore, r2.HealthScore, 1e-9)
		assert.InDelta(t, r1.AvgSentiment, r2.AvgSentiment, 1e-9)
	})
}

func TestNoImplicitDedup(t *testing.T) {
	a1 := New("diag_test", twoBrandConfig())
	a2 := New("diag_test", twoBrandConfig())
	rec := record("Acme", true, false, 1, 0.5)

	a1.AddResult(rec)
	a2.AddResult(rec)
	a2.AddResult(rec)

	r1 := a1.Report(true, false)
	r2 := a2.Report(true, false)
	assert.NotEqual(t, r1.Rankings[0].MentionCount, r2.Rankings[0].MentionCount,
		"feeding the same record twice must change the aggregate")
}

func TestInvalidSentimentExcludedWithWarning(t *testing.T) {
	a := New("diag_test", twoBrandConfig())
	bad := record("Acme", true, false, 1, 0)
	bad.Geo.SentimentValid = false
	good := record("Acme", true, false, 1, 0.8)
	a.AddResult(bad)
	a.AddResult(good)

	rep := a.Report(true, false)
	assert.InDelta(t, 0.8, rep.AvgSentiment, 1e-9, "invalid sentiment must not dilute the average")
	assert.NotEmpty(t, rep.Warnings)
}

func TestHealthScoreFullSuccess(t *testing.T) {
	cfg := &types.ExecutionConfig{
		MainBrand:      "Acme",
		Questions:      []string{"q1"},
		SelectedModels: []string{"m1", "m2"},
	}
	a := New("diag_test", cfg)
	for i := 0; i < 2; i++ {
		rec := record("Acme", true, false, 1, 0.5)
		rec.Geo.CitedSources = []string{
			fmt.Sprintf("https://example.com/a%d", i),
			fmt.Sprintf("https://example.com/b%d", i),
			fmt.Sprintf("https://example.com/c%d", i),
		}
		a.AddResult(rec)
	}

	rep := a.Report(true, false)
	// 0.4*1 + 0.3*1 + 0.15*min(1, 6/5) + 0.15*1 = 1.0
	assert.InDelta(t, 100.0, rep.HealthScore, 1e-9)
	assert.InDelta(t, 100.0, rep.ShareOfVoice["Acme"], 1e-9)
}

func TestEmptyAggregatorReport(t *testing.T) {
	a := New("diag_test", twoBrandConfig())
	rep := a.Report(false, false)
	assert.Equal(t, 0, rep.TotalResponses)
	assert.Equal(t, 0.0, rep.HealthScore)
	assert.Equal(t, 0.0, rep.DataCompleteness)
	require.Len(t, rep.Rankings, 2, "all configured brands appear even with no data")
}
