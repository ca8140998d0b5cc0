// Package openaicompat implements the HTTP backend, chat-completions
// wire shape of §4.2 point 1: bearer-token auth, a messages array,
// temperature and a token cap in the body. It serves both an
// OpenAI-family API and a local model server whose native endpoint
// reports token counts as "eval counts" (ericcurtin-model-runner's
// /api/generate shape) instead of a standard usage object.
package openaicompat

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

// Dialect selects which response shape to parse: the standard OpenAI
// "usage" object, or the local model server's eval-count fields.
type Dialect int

const (
	DialectOpenAI Dialect = iota
	DialectLocalModelServer
)

// Config configures one HTTP backend, chat-completions shape instance.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Dialect Dialect
	// Models is the static catalog this instance advertises; local
	// model servers without a discovery endpoint set this directly.
	Models []types.ModelInfo
}

type Backend struct {
	cfg    Config
	client *backend.RateLimitedClient
	logger *zap.Logger
}

func New(cfg Config, client *backend.RateLimitedClient, logger *zap.Logger) *Backend {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
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
		return nil, types.BackendError("openaicompat", "", resp.StatusCode, backend.ReadErrorBody(resp.Body))
	}

	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewError(types.ErrTransport, "decoding model list").WithCause(err)
	}
	models := make([]types.ModelInfo, 0, len(body.Data))
	for _, m := range body.Data {
		models = append(models, types.ModelInfo{ID: m.ID, DisplayName: m.ID})
	}
	return models, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         *float64      `json:"temperature,omitempty"`
	MaxTokens           int           `json:"max_tokens,omitempty"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`

	// Local model server native fields (ollama-style /api/generate).
	Response        string `json:"response"`
	EvalCount       int    `json:"eval_count"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	DoneReason      string `json:"done_reason"`
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

	messages := make([]chatMessage, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   maxTokens,
	}
	if reasoning.IsReasoningModel(model) {
		payload.MaxCompletionTokens = maxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.QueryResponse{}, types.NewError(types.ErrValidation, "encoding request").WithCause(err)
	}

	endpoint := strings.TrimRight(b.cfg.BaseURL, "/") + "/v1/chat/completions"

	decoded, err := fetch.Do(reqCtx, b.logger, fetch.DefaultPolicy(), func(int) (chatResponse, error) {
		httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return chatResponse{}, types.NewError(types.ErrTransport, "building request").WithCause(err)
		}
		b.buildHeaders(httpReq)

		resp, err := b.client.Do(httpReq)
		if err != nil {
			if reqCtx.Err() != nil {
				return chatResponse{}, types.NewError(types.ErrTimeout, "request timed out").WithModel(model).WithCause(err)
			}
			return chatResponse{}, types.NewError(types.ErrTransport, "request failed").WithModel(model).WithCause(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return chatResponse{}, (&types.Error{Code: types.ErrAuth, Message: "authentication failed", HTTPStatus: resp.StatusCode, Model: model}).WithCause(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 300 {
			return chatResponse{}, types.BackendError("openaicompat", model, resp.StatusCode, backend.ReadErrorBody(resp.Body))
		}

		var out chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return chatResponse{}, types.NewError(types.ErrTransport, "decoding response").WithModel(model).WithCause(err)
		}
		return out, nil
	})
	latency := time.Since(start)
	if err != nil {
		return types.QueryResponse{}, err
	}

	out := types.QueryResponse{Model: model, LatencyMS: latency.Milliseconds()}

	switch b.cfg.Dialect {
	case DialectLocalModelServer:
		out.Content = decoded.Response
		out.FinishReason = decoded.DoneReason
		out.Usage = &types.TokenUsage{
			PromptTokens:     decoded.PromptEvalCount,
			CompletionTokens: decoded.EvalCount,
			TotalTokens:      decoded.PromptEvalCount + decoded.EvalCount,
		}
	default:
		if len(decoded.Choices) == 0 {
			return types.QueryResponse{}, types.NewError(types.ErrEmptyResponse, "backend returned no choices").WithModel(model)
		}
		choice := decoded.Choices[0]
		out.Content = choice.Message.Content
		out.ReasoningContent = choice.Message.ReasoningContent
		out.FinishReason = choice.FinishReason
		out.Usage = &types.TokenUsage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			TotalTokens:      decoded.Usage.TotalTokens,
		}
	}

	reasoning.ApplyContentFallback(&out)

	if len(strings.TrimSpace(out.Content)) < 10 && out.ReasoningContent == "" {
		return types.QueryResponse{}, types.NewError(types.ErrEmptyResponse, "backend returned an empty response").WithModel(model)
	}

	return out, nil
}

func (b *Backend) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}
}
