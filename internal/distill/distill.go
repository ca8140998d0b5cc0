// Package distill implements the response-distillation subprotocol of
// §4.10: compress an over-long response down toward a token budget by
// asking a small, fast model to rewrite it, preserving anything a
// human would need (paths, identifiers, error text, code, numbers)
// and stripping filler.
package distill

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/internal/modelselect"
	"github.com/JustHereToHelp/HydraMCP/internal/tokencount"
	"github.com/JustHereToHelp/HydraMCP/types"
)

// Querier is the subset of SmartBackend distillation needs, kept as
// a small consumer-defined interface so this package never imports
// the orchestrator package.
type Querier interface {
	Query(ctx context.Context, model, prompt string, opts types.QueryOptions) (types.QueryResponse, error)
}

// skipFactor is the "skip if observed_tokens <= 1.2*budget" threshold
// of §4.10: distillation isn't worth the extra round trip once the
// response is already close to budget.
const skipFactor = 1.2

const systemPrompt = "you are a response distiller; preserve file paths, identifiers, error messages, code blocks, URLs, commands, numbers, step lists; strip filler"

// Metadata reports what a distillation pass did, surfaced by
// ask_model when compression occurred.
type Metadata struct {
	SourceTokens    int
	DistilledTokens int
	DistillerModel  string
	DistillerLatMS  int64
	PercentSaved    float64
}

// Distill compresses content toward budget tokens using a distiller
// model chosen from available, excluding workerModel. It returns the
// unchanged content and a nil Metadata when distillation is skipped
// (already within 1.2x budget) or when the distiller call itself
// fails — distillation is best-effort, never a hard dependency.
func Distill(ctx context.Context, q Querier, logger *zap.Logger, workerModel string, available []string, content string, budget int) (string, *Metadata, error) {
	observed := tokencount.Estimate(workerModel, content)
	if float64(observed) <= skipFactor*float64(budget) {
		return content, nil, nil
	}

	distiller := modelselect.Pick(available, modelselect.DistillerPreference, workerModel)
	if distiller == "" {
		return content, nil, nil
	}

	zero := 0.0
	resp, err := q.Query(ctx, distiller, content, types.QueryOptions{
		SystemPrompt: systemPrompt,
		Temperature:  &zero,
		MaxTokens:    budget,
	})
	if err != nil {
		if logger != nil {
			logger.Debug("distillation failed, returning raw response", zap.String("distiller", distiller), zap.Error(err))
		}
		return content, nil, nil
	}

	distilled := strings.TrimSpace(resp.Content)
	if distilled == "" {
		return content, nil, nil
	}

	distilledTokens := observed
	if resp.Usage != nil && resp.Usage.CompletionTokens > 0 {
		distilledTokens = resp.Usage.CompletionTokens
	} else {
		distilledTokens = tokencount.Estimate(distiller, distilled)
	}

	var pctSaved float64
	if observed > 0 {
		pctSaved = (1 - float64(distilledTokens)/float64(observed)) * 100
	}

	return distilled, &Metadata{
		SourceTokens:    observed,
		DistilledTokens: distilledTokens,
		DistillerModel:  distiller,
		DistillerLatMS:  resp.LatencyMS,
		PercentSaved:    pctSaved,
	}, nil
}
