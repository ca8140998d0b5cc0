// Package anthropic implements the HTTP backend, messages wire shape
// of §4.2 point 2: x-api-key auth, a separate system field, mandatory
// max_tokens, an array of typed content blocks in the response, and
// usage reported as input_tokens/output_tokens. Grounded on
// providers/anthropic/provider.go in the teacher repo.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/backend"
	"github.com/JustHereToHelp/HydraMCP/internal/fetch"
	"github.com/JustHereToHelp/HydraMCP/internal/reasoning"
	"github.com/JustHereToHelp/HydraMCP/types"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Models  []types.ModelInfo
}

type Backend struct {
	cfg    Config
	client *backend.RateLimitedClient
	logger *zap.Logger
}

func New(cfg Config, client *backend.RateLimitedClient, logger *zap.Logger) *Backend {
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	return &Backend{cfg: cfg, client: client, logger: logger}
}

func (b *Backend) HealthCheck(ctx context.Context) bool {
	endpoint := strings.TrimRight(b.cfg.BaseURL, "/") + "/v1/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	b.buildHeaders(req)
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (b *Backend) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	if len(b.cfg.Models) > 0 {
		return b.cfg.Models, nil
	}
	endpoint := strings.TrimRight(b.cfg.BaseURL, "/") + "/v1/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	b.buildHeaders(req)
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrTransport, "listing models").WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, types.BackendError("anthropic", "", resp.StatusCode, backend.ReadErrorBody(resp.Body))
	}

	var body struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewError(types.ErrTransport, "decoding model list").WithCause(err)
	}
	models := make([]types.ModelInfo, 0, len(body.Data))
	for _, m := range body.Data {
		name := m.DisplayName
		if name == "" {
			name = m.ID
		}
		models = append(models, types.ModelInfo{ID: m.ID, DisplayName: name})
	}
	return models, nil
}

type messageContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type messagesResponse struct {
	Content    []messageContent `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (b *Backend) Query(ctx context.Context, model, prompt string, opts types.QueryOptions) (types.QueryResponse, error) {
	start := time.Now()

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	timeout := b.cfg.Timeout
	if reasoning.IsReasoningModel(model) {
		maxTokens = reasoning.BoostedMaxTokens(maxTokens)
		timeout = reasoning.ExtendedTimeout(timeout)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := messagesRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: prompt}},
		System:      opts.SystemPrompt,
		MaxTokens:   maxTokens, // mandatory on this wire shape
		Temperature: opts.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.QueryResponse{}, types.NewError(types.ErrValidation, "encoding request").WithCause(err)
	}

	endpoint := strings.TrimRight(b.cfg.BaseURL, "/") + "/v1/messages"

	decoded, err := fetch.Do(reqCtx, b.logger, fetch.DefaultPolicy(), func(int) (messagesResponse, error) {
		httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return messagesResponse{}, types.NewError(types.ErrTransport, "building request").WithCause(err)
		}
		b.buildHeaders(httpReq)

		resp, err := b.client.Do(httpReq)
		if err != nil {
			if reqCtx.Err() != nil {
				return messagesResponse{}, types.NewError(types.ErrTimeout, "request timed out").WithModel(model).WithCause(err)
			}
			return messagesResponse{}, types.NewError(types.ErrTransport, "request failed").WithModel(model).WithCause(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return messagesResponse{}, (&types.Error{Code: types.ErrAuth, Message: "authentication failed", HTTPStatus: resp.StatusCode, Model: model}).WithCause(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 300 {
			return messagesResponse{}, types.BackendError("anthropic", model, resp.StatusCode, backend.ReadErrorBody(resp.Body))
		}

		var out messagesResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return messagesResponse{}, types.NewError(types.ErrTransport, "decoding response").WithModel(model).WithCause(err)
		}
		return out, nil
	})
	latency := time.Since(start)
	if err != nil {
		return types.QueryResponse{}, err
	}

	var textParts []string
	for _, c := range decoded.Content {
		if c.Type == "text" {
			textParts = append(textParts, c.Text)
		}
	}

	out := types.QueryResponse{
		Model:        model,
		Content:      strings.Join(textParts, "\n"),
		FinishReason: decoded.StopReason,
		LatencyMS:    latency.Milliseconds(),
		Usage: &types.TokenUsage{
			PromptTokens:     decoded.Usage.InputTokens,
			CompletionTokens: decoded.Usage.OutputTokens,
			TotalTokens:      decoded.Usage.InputTokens + decoded.Usage.OutputTokens,
		},
	}

	if len(strings.TrimSpace(out.Content)) < 10 {
		return types.QueryResponse{}, types.NewError(types.ErrEmptyResponse, "backend returned an empty response").WithModel(model)
	}

	return out, nil
}

func (b *Backend) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", "2023-06-01")
	if b.cfg.APIKey != "" {
		req.Header.Set("x-api-key", b.cfg.APIKey)
	}
}
