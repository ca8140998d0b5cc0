package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/JustHereToHelp/HydraMCP/internal/distill"
	"github.com/JustHereToHelp/HydraMCP/internal/modelselect"
	"github.com/JustHereToHelp/HydraMCP/internal/tokencount"
	"github.com/JustHereToHelp/HydraMCP/types"
)

const maxFileChars = 800_000

// sniffBinary reports whether the first 8 KiB of data contain a null
// byte, the heuristic §4.9 uses to reject binary files.
func sniffBinary(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

// readTextFile validates and loads a file for analyze_file/smart_read:
// must exist, must not look binary, must be within the character cap.
func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", types.NewError(types.ErrValidation, fmt.Sprintf("cannot read %q: %v", path, err))
	}
	if sniffBinary(data) {
		return "", types.NewError(types.ErrValidation, fmt.Sprintf("%q looks binary (null byte in first 8 KiB)", path))
	}
	content := string(data)
	if len(content) > maxFileChars {
		return "", types.NewError(types.ErrValidation, fmt.Sprintf("%q is %d characters, exceeding the %d limit", path, len(content), maxFileChars))
	}
	return content, nil
}

// buildFilePrompt assembles the metadata header + fenced content +
// instruction prompt shared by analyze_file and smart_read.
func buildFilePrompt(path, content, instruction string) string {
	lines := strings.Count(content, "\n") + 1
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\nLength: %d characters, %d lines\n\n", path, len(content), lines)
	b.WriteString("```\n")
	b.WriteString(content)
	b.WriteString("\n```\n\n")
	b.WriteString(instruction)
	return b.String()
}

// fileQueryResult runs the common analyze_file/smart_read flow: pick a
// large-context model, query it, optionally distill, and report the
// "context saved" metric of §4.9.
func fileQueryResult(ctx context.Context, deps *Deps, path, instruction string, args map[string]any) Result {
	content, err := readTextFile(path)
	if err != nil {
		return errorResult(formatMarkdownError("Invalid input", err))
	}

	model := getOptionalString(args, "model", "")
	if model == "" {
		available, _ := deps.Backend.ListModels(ctx)
		model = modelselect.Pick(modelIDs(available), modelselect.LargeContextPreference)
	}
	if model == "" {
		return errorResult(formatMarkdownError("No model available",
			types.NewError(types.ErrRouting, "no large-context model is registered")))
	}

	maxTokens := getOptionalInt(args, "max_tokens", 4096)
	maxResponseTokens := getOptionalInt(args, "max_response_tokens", 0)
	format := getOptionalString(args, "format", "detailed")
	includeRaw := getOptionalBool(args, "include_raw")

	prompt := buildFilePrompt(path, content, instruction)

	resp, err := deps.Backend.Query(ctx, model, prompt, types.QueryOptions{MaxTokens: maxTokens})
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

	responseTokens := tokencount.Estimate(model, resp.Content)
	contextSaved := (len(content)+3)/4 - responseTokens

	return okResult(renderFileQuery(path, model, resp, raw, meta, format, includeRaw, contextSaved))
}

func renderFileQuery(path, model string, resp types.QueryResponse, raw string, meta *distill.Metadata, format string, includeRaw bool, contextSaved int) string {
	var b strings.Builder
	b.WriteString("### " + path + " (" + model + ")\n\n")
	b.WriteString(latencyLine(resp) + "\n\n")
	if resp.FallbackFrom != "" {
		b.WriteString(fmt.Sprintf("_(fell back from %s)_\n\n", resp.FallbackFrom))
	}

	b.WriteString(resp.Content + "\n\n")

	if format == "detailed" {
		if resp.Usage != nil {
			b.WriteString(fmt.Sprintf("_tokens: %d prompt / %d completion / %d total_\n\n",
				resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens))
		}
		b.WriteString(fmt.Sprintf("_context saved: %d tokens_\n\n", contextSaved))
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
