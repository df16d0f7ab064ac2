package cleaning

import (
	"fmt"
	"strings"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// Pipeline turns raw task results into scored CleanedRecords. One pipeline
// serves one execution: the deduper is scoped to it. The aggregator
// goroutine is the only caller, so Pipeline needs no locking.
type Pipeline struct {
	opts    Options
	deduper *Deduper
}

// NewPipeline creates a pipeline with validated options; invalid options
// fall back to defaults.
func NewPipeline(opts Options) *Pipeline {
	if err := opts.Validate(); err != nil {
		opts = DefaultOptions()
	}
	return &Pipeline{opts: opts, deduper: NewDeduper(opts)}
}

// Clean processes one task result into a record. Failed results produce a
// placeholder record so completeness math still sees the matrix cell; the
// pipeline itself never returns an error.
func (p *Pipeline) Clean(result *types.TaskResult, cfg *types.ExecutionConfig) *types.CleanedRecord {
	rec := &types.CleanedRecord{
		Question:  result.Task.Question,
		Model:     result.Task.Model,
		Brand:     result.Task.Brand,
		LatencyMs: result.LatencyMs,
	}

	if !result.Succeeded {
		rec.Failed = true
		rec.IsValid = false
		rec.FailureKind = string(result.ErrorKind)
		if result.Err != nil {
			rec.FailureError = result.Err.Error()
		}
		return rec
	}

	// Step 1: text extraction and normalization.
	text, warnings := ExtractText(result.Content, p.opts.Limits)
	rec.Text = text
	for _, w := range warnings {
		rec.AddWarning(w)
	}
	truncated := false
	for _, w := range warnings {
		if strings.Contains(w, "truncated") {
			truncated = true
			break
		}
	}
	rec.SetStepOutput("extract", text)

	// Step 2: validation.
	issues := ValidateText(text, p.opts.Limits)
	for _, issue := range issues {
		rec.AddIssue(issue)
	}
	rec.IsValid = len(issues) == 0
	rec.SetStepOutput("validate", issues)

	// Step 3: dedup. Duplicates are flagged, not dropped.
	hash, dup, near := p.deduper.Check(text)
	rec.ContentHash = hash
	rec.Duplicate = dup
	rec.NearDuplicate = near
	if dup {
		rec.AddWarning("duplicate of an earlier response")
	} else if near {
		rec.AddWarning("near-duplicate of earlier responses")
	}
	rec.SetStepOutput("dedup", dup)

	// Step 4: entity mentions.
	mentions := ExtractMentions(text, cfg.MainBrand, cfg.CompetitorBrands)
	rec.Mentions = mentions
	for _, m := range mentions {
		if m.IsCompetitor {
			rec.CompetitorMentions++
		} else {
			rec.BrandMentions++
		}
	}
	rec.SetStepOutput("entity", fmt.Sprintf("%d mentions", len(mentions)))

	// Step 5: feature derivation.
	geo := ComputeGeoFeatures(text, result.Task.Brand, cfg.Brands(), mentions)
	rec.Geo = geo
	rec.SetStepOutput("geo", geo)

	// Step 6: quality scoring, fed by the feature set and the validation
	// issues collected above.
	rec.QualityScore = ScoreQuality(text, result.Task.Question, geo, truncated, rec.Issues, p.opts)
	rec.SetStepOutput("quality", rec.QualityScore)

	return rec
}
