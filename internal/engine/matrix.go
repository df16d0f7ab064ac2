package engine

import (
	"fmt"
	"strings"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// ExpandMatrix builds the full task set of one execution: every question
// crossed with every model and every brand, main and competitors alike.
// Order is deterministic (question-major, then model, then brand) so task
// indexes are stable across restarts.
func ExpandMatrix(executionID string, cfg *types.ExecutionConfig) []*types.Task {
	brands := cfg.Brands()
	tasks := make([]*types.Task, 0, cfg.TotalTasks())

	idx := 0
	for _, q := range cfg.Questions {
		for _, m := range cfg.SelectedModels {
			for _, b := range brands {
				tasks = append(tasks, &types.Task{
					ID:          fmt.Sprintf("%s_task_%d", executionID, idx),
					ExecutionID: executionID,
					Question:    q,
					Prompt:      substituteBrand(q, b),
					Model:       m,
					Brand:       b,
					Index:       idx,
				})
				idx++
			}
		}
	}
	return tasks
}

// substituteBrand replaces every brand placeholder in the question. A
// question without the placeholder is sent as-is; the brand still scopes
// the record for aggregation.
func substituteBrand(question, brand string) string {
	if !strings.Contains(question, types.BrandPlaceholder) {
		return question
	}
	return strings.ReplaceAll(question, types.BrandPlaceholder, brand)
}
