package adapter

import (
	"context"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// AIAdapter sends one prompt to one model on a platform and returns the
// normalized reply. Implementations must be safe for concurrent use: the
// engine calls Send from multiple workers. Failures are returned as
// *types.PlatformError so the retry policy can classify them.
type AIAdapter interface {
	// Provider returns the platform identifier, e.g. "openai".
	Provider() string

	// Send performs one model call. It must honor ctx cancellation and
	// deadline; a cancelled call returns promptly with a classified error.
	Send(ctx context.Context, prompt, model string) (*types.Response, error)
}
