// Package gemini implements the HTTP backend, generate-content wire
// shape of §4.2 point 3: model ID in the URL path, API key as a query
// parameter, system instruction as a structured field, content split
// into parts, and a paginated model list filtered to generative
// variants. Grounded on providers/gemini/provider.go.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
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
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	return &Backend{cfg: cfg, client: client, logger: logger}
}

func (b *Backend) HealthCheck(ctx context.Context) bool {
	endpoint := fmt.Sprintf("%s/v1beta/models?key=%s", strings.TrimRight(b.cfg.BaseURL, "/"), url.QueryEscape(b.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
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

	var out []types.ModelInfo
	pageToken := ""
	for {
		endpoint := fmt.Sprintf("%s/v1beta/models?key=%s&pageSize=50", strings.TrimRight(b.cfg.BaseURL, "/"), url.QueryEscape(b.cfg.APIKey))
		if pageToken != "" {
			endpoint += "&pageToken=" + url.QueryEscape(pageToken)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return nil, types.NewError(types.ErrTransport, "listing models").WithCause(err)
		}
		func() {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				err = types.BackendError("gemini", "", resp.StatusCode, backend.ReadErrorBody(resp.Body))
				return
			}
			var body struct {
				Models []struct {
					Name                       string   `json:"name"`
					DisplayName                string   `json:"displayName"`
					SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
				} `json:"models"`
				NextPageToken string `json:"nextPageToken"`
			}
			if derr := json.NewDecoder(resp.Body).Decode(&body); derr != nil {
				err = types.NewError(types.ErrTransport, "decoding model list").WithCause(derr)
				return
			}
			for _, m := range body.Models {
				if !supportsGenerateContent(m.SupportedGenerationMethods) {
					continue
				}
				id := strings.TrimPrefix(m.Name, "models/")
				out = append(out, types.ModelInfo{ID: id, DisplayName: m.DisplayName})
			}
			pageToken = body.NextPageToken
		}()
		if err != nil {
			return nil, err
		}
		if pageToken == "" {
			break
		}
	}
	return out, nil
}

func supportsGenerateContent(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateContentRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type generateContentResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
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

	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if opts.SystemPrompt != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: opts.SystemPrompt}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.QueryResponse{}, types.NewError(types.ErrValidation, "encoding request").WithCause(err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(b.cfg.BaseURL, "/"), url.PathEscape(model), url.QueryEscape(b.cfg.APIKey))

	decoded, err := fetch.Do(reqCtx, b.logger, fetch.DefaultPolicy(), func(int) (generateContentResponse, error) {
		httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return generateContentResponse{}, types.NewError(types.ErrTransport, "building request").WithCause(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(httpReq)
		if err != nil {
			if reqCtx.Err() != nil {
				return generateContentResponse{}, types.NewError(types.ErrTimeout, "request timed out").WithModel(model).WithCause(err)
			}
			return generateContentResponse{}, types.NewError(types.ErrTransport, "request failed").WithModel(model).WithCause(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return generateContentResponse{}, (&types.Error{Code: types.ErrAuth, Message: "authentication failed", HTTPStatus: resp.StatusCode, Model: model}).WithCause(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 300 {
			return generateContentResponse{}, types.BackendError("gemini", model, resp.StatusCode, backend.ReadErrorBody(resp.Body))
		}

		var out generateContentResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return generateContentResponse{}, types.NewError(types.ErrTransport, "decoding response").WithModel(model).WithCause(err)
		}
		if len(out.Candidates) == 0 {
			return generateContentResponse{}, types.NewError(types.ErrEmptyResponse, "backend returned no candidates").WithModel(model)
		}
		return out, nil
	})
	latency := time.Since(start)
	if err != nil {
		return types.QueryResponse{}, err
	}

	var textParts []string
	for _, p := range decoded.Candidates[0].Content.Parts {
		textParts = append(textParts, p.Text)
	}

	out := types.QueryResponse{
		Model:        model,
		Content:      strings.Join(textParts, ""),
		FinishReason: decoded.Candidates[0].FinishReason,
		LatencyMS:    latency.Milliseconds(),
	}
	if decoded.UsageMetadata != nil {
		out.Usage = &types.TokenUsage{
			PromptTokens:     decoded.UsageMetadata.PromptTokenCount,
			CompletionTokens: decoded.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      decoded.UsageMetadata.TotalTokenCount,
		}
	}

	if len(strings.TrimSpace(out.Content)) < 10 {
		return types.QueryResponse{}, types.NewError(types.ErrEmptyResponse, "backend returned an empty response").WithModel(model)
	}

	return out, nil
}
