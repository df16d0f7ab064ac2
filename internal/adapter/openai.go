package adapter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/glensun810-ai/geodiag/internal/config"
	"github.com/glensun810-ai/geodiag/pkg/types"
)

func init() {
	Register("openai", newOpenAIAdapter)
	Register("deepseek", newOpenAIAdapter)
	Register("azure", newOpenAIAdapter)
}

// openAIAdapter talks to any OpenAI-compatible chat completion endpoint
// through eino. Chat models are built lazily per model name and cached, so
// concurrent workers asking the same model share one client.
type openAIAdapter struct {
	cfg *config.PlatformConfig

	mu     sync.Mutex
	models map[string]model.ChatModel
}

func newOpenAIAdapter(cfg *config.PlatformConfig) (AIAdapter, error) {
	return &openAIAdapter{
		cfg:    cfg,
		models: make(map[string]model.ChatModel),
	}, nil
}

func (a *openAIAdapter) Provider() string {
	return a.cfg.Provider
}

func (a *openAIAdapter) Send(ctx context.Context, prompt, modelName string) (*types.Response, error) {
	cm, err := a.chatModel(ctx, modelName)
	if err != nil {
		return nil, types.NewPlatformError(types.ErrKindGeneric, "create chat model", err)
	}

	start := time.Now()
	msg, err := cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	resp := &types.Response{
		Content:   msg.Content,
		LatencyMs: latency,
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		total := msg.ResponseMeta.Usage.TotalTokens
		resp.TokensUsed = &total
		resp.Raw = map[string]any{
			"prompt_tokens":     msg.ResponseMeta.Usage.PromptTokens,
			"completion_tokens": msg.ResponseMeta.Usage.CompletionTokens,
			"total_tokens":      total,
			"finish_reason":     msg.ResponseMeta.FinishReason,
		}
	}
	return resp, nil
}

func (a *openAIAdapter) chatModel(ctx context.Context, modelName string) (model.ChatModel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cm, ok := a.models[modelName]; ok {
		return cm, nil
	}

	chatConfig := &openai.ChatModelConfig{
		Model:  modelName,
		APIKey: a.cfg.APIKey,
	}

	baseURL := a.cfg.BaseURL
	if baseURL == "" {
		switch a.cfg.Provider {
		case "openai":
			baseURL = "https://api.openai.com/v1"
		case "deepseek":
			baseURL = "https://api.deepseek.com/v1"
		case "azure":
			chatConfig.ByAzure = true
			if a.cfg.APIVersion == "" {
				chatConfig.APIVersion = "2024-06-01"
			} else {
				chatConfig.APIVersion = a.cfg.APIVersion
			}
		}
	}
	if baseURL != "" {
		chatConfig.BaseURL = baseURL
	}
	if a.cfg.Temperature != nil {
		chatConfig.Temperature = a.cfg.Temperature
	}
	if a.cfg.MaxTokens != nil {
		chatConfig.MaxTokens = a.cfg.MaxTokens
	}

	cm, err := openai.NewChatModel(ctx, chatConfig)
	if err != nil {
		return nil, err
	}
	a.models[modelName] = cm
	return cm, nil
}

// classifyOpenAIError maps an eino/openai SDK error to a retryability class.
// The SDK flattens HTTP status into the message, so classification falls
// back to substring matching when context errors don't apply.
func classifyOpenAIError(err error) error {
	if kind := types.KindOf(err); kind == types.ErrKindTimeout || kind == types.ErrKindCancelled {
		return types.NewPlatformError(kind, "model call aborted", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "403"):
		return types.NewPlatformError(types.ErrKindAuth, "authentication rejected", err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return types.NewPlatformError(types.ErrKindRateLimit, "rate limited", err)
	case strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "quota"):
		return types.NewPlatformError(types.ErrKindQuota, "quota exhausted", err)
	case strings.Contains(msg, "model_not_found") || strings.Contains(msg, "does not exist"):
		return types.NewPlatformError(types.ErrKindModelNotFound, "model not found", err)
	case strings.Contains(msg, "content_filter") || strings.Contains(msg, "content policy"):
		return types.NewPlatformError(types.ErrKindContentFilter, "content filtered", err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504"):
		return types.NewPlatformError(types.ErrKindServer, "platform server error", err)
	case strings.Contains(msg, "connection") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "eof") || strings.Contains(msg, "broken pipe"):
		return types.NewPlatformError(types.ErrKindNetwork, "network failure", err)
	default:
		return types.NewPlatformError(types.ErrKindGeneric, "model call failed", err)
	}
}
