package adapter

import (
	"fmt"
	"sync"

	"github.com/glensun810-ai/geodiag/internal/config"
)

// Factory builds an adapter from one platform config block.
type Factory func(cfg *config.PlatformConfig) (AIAdapter, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a provider available to New. Called from adapter init
// functions; a duplicate provider panics to fail fast at startup.
func Register(provider string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, dup := factories[provider]; dup {
		panic("adapter: duplicate provider " + provider)
	}
	factories[provider] = f
}

// New builds an adapter for the config's provider.
func New(cfg *config.PlatformConfig) (AIAdapter, error) {
	factoryMu.RLock()
	f, ok := factories[cfg.Provider]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("adapter: unknown provider %q", cfg.Provider)
	}
	return f(cfg)
}

// Registry maps model names to the adapter responsible for them, per the
// platform configuration's Models lists.
type Registry struct {
	byModel  map[string]AIAdapter
	fallback AIAdapter
}

// NewRegistry builds adapters for every platform config and indexes them by
// model. The first platform with an empty Models list becomes the fallback
// for unlisted models.
func NewRegistry(platforms []config.PlatformConfig) (*Registry, error) {
	r := &Registry{byModel: make(map[string]AIAdapter)}
	for i := range platforms {
		pc := &platforms[i]
		a, err := New(pc)
		if err != nil {
			return nil, fmt.Errorf("adapter: platform %s: %w", pc.Provider, err)
		}
		if len(pc.Models) == 0 && r.fallback == nil {
			r.fallback = a
			continue
		}
		for _, m := range pc.Models {
			r.byModel[m] = a
		}
	}
	return r, nil
}

// ForModel returns the adapter handling the given model.
func (r *Registry) ForModel(model string) (AIAdapter, error) {
	if a, ok := r.byModel[model]; ok {
		return a, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("adapter: no platform configured for model %q", model)
}

// Models returns every explicitly configured model name.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.byModel))
	for m := range r.byModel {
		out = append(out, m)
	}
	return out
}
