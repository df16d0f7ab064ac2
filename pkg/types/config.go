package types

import "github.com/glensun810-ai/geodiag/pkg/utils"

// BrandPlaceholder is the token substituted with a brand name when a
// question template is expanded into tasks.
const BrandPlaceholder = "{brandName}"

// ExecutionConfig is the immutable input of one diagnosis execution.
// It is created at submission time and never mutated afterwards.
type ExecutionConfig struct {
	MainBrand        string   `json:"main_brand"`
	CompetitorBrands []string `json:"competitor_brands,omitempty"`
	Questions        []string `json:"questions"`
	SelectedModels   []string `json:"selected_models"`
	UserID           int64    `json:"user_id"`
}

// Brands returns the main brand followed by all competitor brands.
// Every brand participates in the task matrix, competitors included.
func (c *ExecutionConfig) Brands() []string {
	brands := make([]string, 0, 1+len(c.CompetitorBrands))
	brands = append(brands, c.MainBrand)
	brands = append(brands, c.CompetitorBrands...)
	return brands
}

// TotalTasks returns |questions| * |models| * |brands|.
func (c *ExecutionConfig) TotalTasks() int {
	return len(c.Questions) * len(c.SelectedModels) * (1 + len(c.CompetitorBrands))
}

// Validate performs the synchronous submission checks. All AI calls happen
// asynchronously after validation passes.
func (c *ExecutionConfig) Validate() error {
	if utils.IsEmpty(c.MainBrand) {
		return NewValidationError("main_brand", "main brand cannot be empty")
	}
	if len(c.Questions) == 0 {
		return NewValidationError("questions", "at least one question is required")
	}
	for _, q := range c.Questions {
		if utils.IsEmpty(q) {
			return NewValidationError("questions", "question cannot be empty")
		}
	}
	if len(c.SelectedModels) == 0 {
		return NewValidationError("selected_models", "at least one model is required")
	}
	for _, b := range c.CompetitorBrands {
		if utils.IsEmpty(b) {
			return NewValidationError("competitor_brands", "competitor brand cannot be empty")
		}
	}
	return nil
}
