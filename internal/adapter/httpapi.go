package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/valyala/fasthttp"

	"github.com/glensun810-ai/geodiag/internal/config"
	"github.com/glensun810-ai/geodiag/pkg/types"
)

func init() {
	Register("http", newHTTPAPIAdapter)
}

const defaultContentPath = "$.choices[0].message.content"

// httpAPIAdapter calls an arbitrary JSON chat API over fasthttp and extracts
// the reply text with a configurable JSONPath expression. It covers
// platforms whose wire format is close to, but not exactly, the OpenAI
// completion shape.
type httpAPIAdapter struct {
	cfg         *config.PlatformConfig
	client      *fasthttp.Client
	contentPath jp.Expr
}

func newHTTPAPIAdapter(cfg *config.PlatformConfig) (AIAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("http platform requires base_url")
	}
	pathExpr := cfg.ContentPath
	if pathExpr == "" {
		pathExpr = defaultContentPath
	}
	expr, err := jp.ParseString(pathExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid content_path %q: %w", pathExpr, err)
	}
	return &httpAPIAdapter{
		cfg:         cfg,
		contentPath: expr,
		client: &fasthttp.Client{
			MaxConnsPerHost:     256,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         2 * time.Minute,
			WriteTimeout:        30 * time.Second,
		},
	}, nil
}

func (a *httpAPIAdapter) Provider() string {
	return "http"
}

func (a *httpAPIAdapter) Send(ctx context.Context, prompt, model string) (*types.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NewPlatformError(types.KindOf(err), "model call aborted", err)
	}

	body, err := sonic.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return nil, types.NewPlatformError(types.ErrKindGeneric, "encode request", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(strings.TrimRight(a.cfg.BaseURL, "/") + "/chat/completions")
	req.Header.SetContentType("application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}
	for k, v := range a.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	deadline := time.Now().Add(2 * time.Minute)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	execErr := a.client.DoDeadline(req, resp, deadline)
	latency := time.Since(start).Milliseconds()

	if execErr != nil {
		if execErr == fasthttp.ErrTimeout || time.Now().After(deadline) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, types.NewPlatformError(types.KindOf(ctxErr), "model call aborted", ctxErr)
			}
			return nil, types.NewPlatformError(types.ErrKindTimeout, "request timed out", execErr)
		}
		return nil, types.NewPlatformError(types.ErrKindNetwork, "request failed", execErr)
	}

	status := resp.StatusCode()
	if status != fasthttp.StatusOK {
		return nil, classifyHTTPStatus(status, resp.Body())
	}

	// resp.Body() is a reference into fasthttp's buffer, copy before release.
	raw := make([]byte, len(resp.Body()))
	copy(raw, resp.Body())

	content, parsed, err := a.extractContent(raw)
	if err != nil {
		return nil, err
	}

	out := &types.Response{
		Content:   content,
		LatencyMs: latency,
	}
	if m, ok := parsed.(map[string]any); ok {
		out.Raw = m
		if total, ok := usageTotalTokens(m); ok {
			out.TokensUsed = &total
		}
	}
	return out, nil
}

func (a *httpAPIAdapter) extractContent(raw []byte) (string, any, error) {
	parsed, err := oj.Parse(raw)
	if err != nil {
		return "", nil, types.NewPlatformError(types.ErrKindParse, "response is not valid JSON", err)
	}
	results := a.contentPath.Get(parsed)
	if len(results) == 0 {
		return "", parsed, types.NewPlatformError(types.ErrKindParse,
			fmt.Sprintf("content path %s matched nothing", a.contentPath.String()), nil)
	}
	content, ok := results[0].(string)
	if !ok {
		return "", parsed, types.NewPlatformError(types.ErrKindParse,
			fmt.Sprintf("content path %s did not yield a string", a.contentPath.String()), nil)
	}
	return content, parsed, nil
}

func usageTotalTokens(m map[string]any) (int, bool) {
	usage, ok := m["usage"].(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := usage["total_tokens"].(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// classifyHTTPStatus maps HTTP status codes to error kinds so retry
// decisions don't depend on per-platform error bodies.
func classifyHTTPStatus(status int, body []byte) error {
	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	msg := fmt.Sprintf("status %d: %s", status, snippet)

	switch {
	case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
		return types.NewPlatformError(types.ErrKindAuth, msg, nil)
	case status == fasthttp.StatusTooManyRequests:
		return types.NewPlatformError(types.ErrKindRateLimit, msg, nil)
	case status == fasthttp.StatusNotFound:
		return types.NewPlatformError(types.ErrKindModelNotFound, msg, nil)
	case status == fasthttp.StatusPaymentRequired:
		return types.NewPlatformError(types.ErrKindQuota, msg, nil)
	case status >= 500:
		return types.NewPlatformError(types.ErrKindServer, msg, nil)
	default:
		return types.NewPlatformError(types.ErrKindGeneric, msg, nil)
	}
}
