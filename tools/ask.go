package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/JustHereToHelp/HydraMCP/internal/distill"
	"github.com/JustHereToHelp/HydraMCP/types"
)

// AskModel implements the ask_model tool of §4.9: a single query,
// optionally piped through the distiller, rendered brief or detailed.
func AskModel(ctx context.Context, deps *Deps, args map[string]any) Result {
	model, err := getString(args, "model")
	if err != nil {
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
	maxTokens := getOptionalInt(args, "max_tokens", 1024)
	maxResponseTokens := getOptionalInt(args, "max_response_tokens", 0)
	format := getOptionalString(args, "format", "detailed")
	includeRaw := getOptionalBool(args, "include_raw")

	resp, err := deps.Backend.Query(ctx, model, prompt, types.QueryOptions{
		SystemPrompt: getOptionalString(args, "system_prompt", ""),
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return errorResult(formatMarkdownError(fmt.Sprintf("%s failed", model), err))
	}

	raw := resp.Content
	var meta *distill.Metadata
	if maxResponseTokens > 0 {
		available, _ := deps.Backend.ListModels(ctx)
		ids := modelIDs(available)
		distilled, m, derr := distill.Distill(ctx, deps.Backend, deps.Logger, model, ids, resp.Content, maxResponseTokens)
		if derr == nil {
			resp.Content = distilled
			meta = m
		}
	}

	return okResult(renderAskModel(model, resp, raw, meta, format, includeRaw))
}

func renderAskModel(model string, resp types.QueryResponse, raw string, meta *distill.Metadata, format string, includeRaw bool) string {
	var b strings.Builder
	b.WriteString("### " + model + "\n\n")
	b.WriteString(latencyLine(resp) + "\n\n")
	if resp.LatencyMS == 0 {
		b.WriteString("_(served from cache)_\n\n")
	}
	if resp.FallbackFrom != "" {
		b.WriteString(fmt.Sprintf("_(fell back from %s)_\n\n", resp.FallbackFrom))
	}

	b.WriteString(resp.Content + "\n\n")

	if format == "detailed" && resp.Usage != nil {
		b.WriteString(fmt.Sprintf("_tokens: %d prompt / %d completion / %d total_\n\n",
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens))
	}

	if meta != nil {
		b.WriteString("**Distillation:**\n")
		b.WriteString(fmt.Sprintf("- source tokens: %d\n", meta.SourceTokens))
		b.WriteString(fmt.Sprintf("- distilled tokens: %d\n", meta.DistilledTokens))
		b.WriteString(fmt.Sprintf("- distiller: %s (%dms)\n", meta.DistillerModel, meta.DistillerLatMS))
		b.WriteString(fmt.Sprintf("- saved: %.1f%%\n\n", meta.PercentSaved))

		if includeRaw {
			b.WriteString("<details><summary>Raw response before distillation</summary>\n\n")
			b.WriteString(raw + "\n\n")
			b.WriteString("</details>\n")
		}
	}

	return b.String()
}

func modelIDs(models []types.ModelInfo) []string {
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	return ids
}
