package cleaning

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

func testConfig() *types.ExecutionConfig {
	return &types.ExecutionConfig{
		MainBrand:        "Acme",
		CompetitorBrands: []string{"Globex", "Initech"},
		Questions:        []string{"What do you think of {brandName}?"},
		SelectedModels:   []string{"gpt-4o"},
	}
}

func successResult(content string) *types.TaskResult {
	return &types.TaskResult{
		Task: &types.Task{
			Question: "What do you think of {brandName}?",
			Prompt:   "What do you think of Acme?",
			Model:    "gpt-4o",
			Brand:    "Acme",
		},
		Content:   content,
		Succeeded: true,
		LatencyMs: 120,
	}
}

func TestExtractTextStripsHTMLAndCollapsesWhitespace(t *testing.T) {
	text, warnings := ExtractText("<p>Acme   is\t\tgreat.</p>\n\n<b>Really.</b>", DefaultOptions().Limits)
	assert.Equal(t, "Acme is great.\nReally.", text)
	assert.Empty(t, warnings)
}

func TestExtractTextKeepsLoneLessThan(t *testing.T) {
	text, _ := ExtractText("latency is a < b always", DefaultOptions().Limits)
	assert.Contains(t, text, "a < b")
}

func TestExtractTextTruncatesAndWarns(t *testing.T) {
	limits := DefaultOptions().Limits
	limits.TruncateAt = 100
	text, warnings := ExtractText(strings.Repeat("x", 500), limits)
	assert.Len(t, []rune(text), 100)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "truncated")
}

func TestExtractTextWarnsOnTinyInputButNeverFails(t *testing.T) {
	_, warnings := ExtractText("", DefaultOptions().Limits)
	assert.NotEmpty(t, warnings)

	_, warnings = ExtractText("ok", DefaultOptions().Limits)
	assert.NotEmpty(t, warnings)
}

func TestDeduperFlagsReformattedDuplicate(t *testing.T) {
	d := NewDeduper(DefaultOptions())
	_, dup, _ := d.Check("Acme is great.")
	assert.False(t, dup)
	_, dup, _ = d.Check("acme  IS   great.")
	assert.True(t, dup, "case and whitespace changes are still the same answer")
	_, dup, _ = d.Check("Globex is great.")
	assert.False(t, dup)
}

func TestDeduperNearDuplicateAcrossResponses(t *testing.T) {
	opts := DefaultOptions()
	opts.NearDup.ChunkRunes = 8
	opts.NearDup.Threshold = 0.6
	d := NewDeduper(opts)

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString(fmt.Sprintf("segment%d", i))
	}
	base := sb.String()

	_, exact, near := d.Check(base)
	assert.False(t, exact)
	assert.False(t, near, "first sighting is never a near-duplicate")

	variant := strings.Replace(base, "segment9", "brandnew", 1)
	_, exact, near = d.Check(variant)
	assert.False(t, exact, "one chunk differs, not an exact duplicate")
	assert.True(t, near, "nine of ten chunks were already seen")

	_, exact, near = d.Check(base)
	assert.True(t, exact)
	assert.False(t, near, "exact duplicates are not double-flagged")

	short := "tiny"
	_, _, near = d.Check(short)
	assert.False(t, near, "texts shorter than one chunk carry no evidence")
}

func TestExtractMentionsOffsetsAndContext(t *testing.T) {
	text := "许多用户认为 Acme 优于 Globex，但 Acme 更贵。"
	mentions := ExtractMentions(text, "Acme", []string{"Globex"})
	require.Len(t, mentions, 3)

	var acme, globex int
	for _, m := range mentions {
		switch m.Name {
		case "Acme":
			acme++
			assert.False(t, m.IsCompetitor)
		case "Globex":
			globex++
			assert.True(t, m.IsCompetitor)
		}
		runes := []rune(text)
		got := string(runes[m.Offset : m.Offset+len([]rune(m.Name))])
		assert.True(t, strings.EqualFold(got, m.Name), "offset must point at the mention")
		assert.Contains(t, m.Context, m.Name)
	}
	assert.Equal(t, 2, acme)
	assert.Equal(t, 1, globex)
}

func TestExtractMentionsSkipURLSpans(t *testing.T) {
	mentions := ExtractMentions("Acme reviews: https://acme.example.com/acme", "Acme", nil)
	require.Len(t, mentions, 1, "a brand inside a link is a citation, not a mention")
	assert.Equal(t, 0, mentions[0].Offset)
}

func TestGeoFeaturesRankAndInterception(t *testing.T) {
	brands := []string{"Acme", "Globex", "Initech"}

	feats := ComputeGeoFeatures("Globex leads, then Acme follows.", "Acme", brands, nil)
	assert.True(t, feats.BrandMentioned)
	assert.Equal(t, 2, feats.BrandRank)
	assert.True(t, feats.CompetitorIntercepted, "a competitor appears first")

	feats = ComputeGeoFeatures("Acme leads, then Globex follows.", "Acme", brands, nil)
	assert.Equal(t, 1, feats.BrandRank)
	assert.False(t, feats.CompetitorIntercepted)

	feats = ComputeGeoFeatures("Only Globex is mentioned here.", "Acme", brands, nil)
	assert.False(t, feats.BrandMentioned)
	assert.Equal(t, 0, feats.BrandRank)
	assert.True(t, feats.CompetitorIntercepted, "absent while a competitor is present")

	feats = ComputeGeoFeatures("Nothing relevant at all.", "Acme", brands, nil)
	assert.False(t, feats.CompetitorIntercepted)
}

func TestGeoFeaturesLanguageAndSources(t *testing.T) {
	feats := ComputeGeoFeatures("Acme 是领先品牌，详见 https://example.com/report。", "Acme", []string{"Acme"}, nil)
	assert.Equal(t, "zh", feats.Language)
	assert.True(t, feats.HasURLs)
	require.Len(t, feats.CitedSources, 1)
	assert.Equal(t, "https://example.com/report", feats.CitedSources[0])

	feats = ComputeGeoFeatures("Acme ranked #1 in 2024 surveys.", "Acme", []string{"Acme"}, nil)
	assert.Equal(t, "en", feats.Language)
	assert.True(t, feats.HasNumbers)
	assert.False(t, feats.HasURLs)
}

func TestQualityFloorForUsableBrandedResponse(t *testing.T) {
	opts := DefaultOptions()
	// Worst case inside the usable range: minimal length, zero keyword
	// overlap, brand mentioned, all analysis fields present.
	text := strings.Repeat("z", 45) + "Acme."
	require.GreaterOrEqual(t, len([]rune(text)), opts.Limits.MinLength)

	feats := ComputeGeoFeatures(text, "Acme", []string{"Acme"}, nil)
	require.True(t, feats.BrandMentioned)

	score := ScoreQuality(text, "anything unrelated entirely", feats, false, nil, opts)
	assert.InDelta(t, 70.0, score, 1e-6)
}

func TestQualityCompletenessTracksFieldPresence(t *testing.T) {
	full := ComputeGeoFeatures("Acme makes a solid product. Many agree.", "Acme", []string{"Acme"}, nil)
	assert.InDelta(t, 1.0, completenessScore(full, false, nil), 1e-9)
	assert.InDelta(t, 0.5, completenessScore(full, true, nil), 1e-9, "truncation halves completeness")
	assert.InDelta(t, 0.5, completenessScore(full, false, []string{"a", "b"}), 1e-9, "each validation issue costs a quarter")

	// Digits only: no letters, so the language field is missing.
	noLang := ComputeGeoFeatures("12345 67890 12345.", "Acme", []string{"Acme"}, nil)
	assert.Equal(t, "unknown", noLang.Language)
	assert.InDelta(t, 0.75, completenessScore(noLang, false, nil), 1e-9)

	assert.Equal(t, 0.0, completenessScore(nil, false, nil))
}

func TestQualityScoreBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		opts := DefaultOptions()
		n := rapid.IntRange(0, 3000).Draw(t, "len")
		truncated := rapid.Bool().Draw(t, "truncated")
		issues := make([]string, rapid.IntRange(0, 3).Draw(t, "issues"))
		text := strings.Repeat("a", n)
		feats := ComputeGeoFeatures(text, "acme", []string{"acme"}, nil)

		score := ScoreQuality(text, "what about {brandName} pricing", feats, truncated, issues, opts)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	})
}

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())

	bad := opts
	bad.Weights.Length = 0.5
	assert.Error(t, bad.Validate())

	bad = opts
	bad.Limits.IdealLength = bad.Limits.MinLength
	assert.Error(t, bad.Validate())

	bad = opts
	bad.NearDup.Threshold = 1.5
	assert.Error(t, bad.Validate())
}

func TestPipelineCleanSuccess(t *testing.T) {
	p := NewPipeline(DefaultOptions())
	content := "Acme is an excellent choice. Many prefer Acme over Globex. " +
		"Reviews at https://example.com/acme rate it highly."

	rec := p.Clean(successResult(content), testConfig())
	require.NotNil(t, rec)
	assert.True(t, rec.IsValid)
	assert.False(t, rec.Failed)
	assert.Equal(t, 2, rec.BrandMentions)
	assert.Equal(t, 1, rec.CompetitorMentions)
	require.NotNil(t, rec.Geo)
	assert.True(t, rec.Geo.BrandMentioned)
	assert.Equal(t, 1, rec.Geo.BrandRank)
	assert.True(t, rec.Geo.SentimentValid)
	assert.Greater(t, rec.Geo.Sentiment, 0.0)
	assert.NotEmpty(t, rec.ContentHash)
	assert.Greater(t, rec.QualityScore, 0.0)

	// Step outputs are retained for inspection.
	assert.Contains(t, rec.Intermediate, "extract")
	assert.Contains(t, rec.Intermediate, "quality")
}

func TestPipelineCleanEmptyResponse(t *testing.T) {
	p := NewPipeline(DefaultOptions())
	rec := p.Clean(successResult(""), testConfig())
	require.NotNil(t, rec)
	assert.False(t, rec.IsValid)
	assert.False(t, rec.Failed, "an empty success is invalid data, not a task failure")
	assert.Equal(t, 0.0, rec.QualityScore)
	assert.NotEmpty(t, rec.Issues)
}

func TestPipelineCleanFailedResult(t *testing.T) {
	p := NewPipeline(DefaultOptions())
	res := successResult("")
	res.Succeeded = false
	res.Err = types.NewPlatformError(types.ErrKindRateLimit, "429", nil)
	res.ErrorKind = types.ErrKindRateLimit

	rec := p.Clean(res, testConfig())
	require.NotNil(t, rec)
	assert.True(t, rec.Failed)
	assert.False(t, rec.IsValid)
	assert.Equal(t, "rate_limit", rec.FailureKind)
	assert.Contains(t, rec.FailureError, "429")
}

func TestPipelineFlagsDuplicateWithinExecution(t *testing.T) {
	p := NewPipeline(DefaultOptions())
	first := p.Clean(successResult("Acme is great and reliable, say many reviews online today."), testConfig())
	second := p.Clean(successResult("Acme is great and reliable, say many reviews online today."), testConfig())

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.ContentHash, second.ContentHash)
}

func TestPipelineFlagsNearDuplicate(t *testing.T) {
	opts := DefaultOptions()
	opts.NearDup.ChunkRunes = 8
	opts.NearDup.Threshold = 0.5
	p := NewPipeline(opts)

	first := p.Clean(successResult("Acme is great and reliable, say many reviews online today. Truly."), testConfig())
	second := p.Clean(successResult("Acme is great and reliable, say many reviews online today. Wow!!"), testConfig())

	assert.False(t, first.NearDuplicate)
	assert.False(t, second.Duplicate, "the tail differs, so not an exact duplicate")
	assert.True(t, second.NearDuplicate)
	assert.Contains(t, strings.Join(second.Warnings, "; "), "near-duplicate")
}
