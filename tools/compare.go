package tools

import (
	"context"
	"strings"
	"sync"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// fanOut queries every model in models with the same prompt/opts
// concurrently, collecting a branchOutcome per model in the given
// order regardless of which goroutine finishes first or fails —
// "settled" semantics per §5: no branch is ever cancelled because a
// sibling failed.
func fanOut(ctx context.Context, q querier, models []string, prompt string, opts types.QueryOptions) []branchOutcome {
	outcomes := make([]branchOutcome, len(models))
	var wg sync.WaitGroup
	for i, model := range models {
		i, model := i, model
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := q.Query(ctx, model, prompt, opts)
			outcomes[i] = branchOutcome{model: model, resp: resp, err: err}
		}()
	}
	wg.Wait()
	return outcomes
}

type querier interface {
	Query(ctx context.Context, model, prompt string, opts types.QueryOptions) (types.QueryResponse, error)
}

// CompareModels implements the compare_models tool of §4.9.
func CompareModels(ctx context.Context, deps *Deps, args map[string]any) Result {
	models, err := getStringSlice(args, "models")
	if err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}
	if err := validateModelCount(models, 2, 5); err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}
	prompt, err := getString(args, "prompt")
	if err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}
	temperature := getOptionalFloat(args, "temperature")
	if err := validateTemperature(temperature); err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}

	opts := types.QueryOptions{
		SystemPrompt: getOptionalString(args, "system_prompt", ""),
		Temperature:  temperature,
		MaxTokens:    getOptionalInt(args, "max_tokens", 1024),
	}

	outcomes := fanOut(ctx, deps.Backend, models, prompt, opts)
	return okResult(renderCompare(outcomes))
}

func renderCompare(outcomes []branchOutcome) string {
	ok, failed := successesAndFailures(outcomes)
	if len(ok) == 0 {
		var b strings.Builder
		b.WriteString("### Errors\n\n")
		for _, f := range failed {
			b.WriteString(errorBlock(f.model, f.err) + "\n")
		}
		return b.String()
	}

	var b strings.Builder
	b.WriteString(renderComparisonTable(outcomes))
	b.WriteString("\n")
	for _, o := range ok {
		b.WriteString(responseBlock(o.model, o.resp) + "\n")
	}
	if len(failed) > 0 {
		b.WriteString("### Errors\n\n")
		for _, f := range failed {
			b.WriteString(errorBlock(f.model, f.err) + "\n")
		}
	}
	return b.String()
}
