package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/JustHereToHelp/HydraMCP/internal/modelselect"
	"github.com/JustHereToHelp/HydraMCP/types"
)

// Synthesize implements the synthesize tool of §4.9: query 2-5 source
// models, then ask a separate synthesizer model to merge their
// responses into one answer. Falls back to a compare-style rendering
// if fewer than 2 sources succeed or the synthesizer call itself
// fails.
func Synthesize(ctx context.Context, deps *Deps, args map[string]any) Result {
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
	ok, failed := successesAndFailures(outcomes)

	if len(ok) < 2 {
		var b strings.Builder
		b.WriteString("### Synthesis failed: fewer than 2 source models succeeded\n\n")
		b.WriteString(renderCompare(outcomes))
		return okResult(b.String())
	}

	synthModel := getOptionalString(args, "synthesizer_model", "")
	if synthModel == "" {
		available, _ := deps.Backend.ListModels(ctx)
		synthModel = modelselect.FirstAvailable(modelIDs(available), models...)
	}
	if synthModel == "" {
		var b strings.Builder
		b.WriteString("### Synthesis failed: no synthesizer model available\n\n")
		b.WriteString(renderCompare(outcomes))
		return okResult(b.String())
	}

	synthPrompt := buildSynthesisPrompt(prompt, ok)
	synthResp, synthErr := deps.Backend.Query(ctx, synthModel, synthPrompt, types.QueryOptions{
		SystemPrompt: "you are a synthesis assistant; merge the following independent responses into one coherent, accurate answer; resolve disagreements by favoring the most commonly supported claim, and note any substantive disagreement you cannot resolve",
		MaxTokens:    getOptionalInt(args, "max_tokens", 1024),
	})
	if synthErr != nil {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("### Synthesis failed: synthesizer %s errored\n\n", synthModel))
		b.WriteString(errorBlock(synthModel, synthErr) + "\n\n")
		b.WriteString(renderCompare(outcomes))
		return okResult(b.String())
	}

	return okResult(renderSynthesis(synthModel, synthResp, ok, failed))
}

func buildSynthesisPrompt(question string, sources []branchOutcome) string {
	var b strings.Builder
	b.WriteString("Original question:\n\n" + question + "\n\n")
	b.WriteString("Independent responses:\n\n")
	for _, o := range sources {
		b.WriteString("[" + o.model + "]\n" + o.resp.Content + "\n\n")
	}
	return b.String()
}

func renderSynthesis(synthModel string, synthResp types.QueryResponse, sources, failed []branchOutcome) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("### Synthesis (by %s)\n\n", synthModel))
	b.WriteString(latencyLine(synthResp) + "\n\n")
	b.WriteString(synthResp.Content + "\n\n")

	b.WriteString("**Sources:**\n")
	for _, o := range sources {
		b.WriteString(fmt.Sprintf("- %s (%dms)\n", o.model, o.resp.LatencyMS))
	}
	b.WriteString("\n")

	if len(failed) > 0 {
		b.WriteString("### Errors\n\n")
		for _, f := range failed {
			b.WriteString(errorBlock(f.model, f.err) + "\n")
		}
	}
	return b.String()
}
