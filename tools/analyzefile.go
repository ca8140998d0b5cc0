package tools

import (
	"context"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// AnalyzeFile implements the analyze_file tool of §4.9: a server-side
// read followed by a prose-analysis query against a large-context
// model.
func AnalyzeFile(ctx context.Context, deps *Deps, args map[string]any) Result {
	path, err := getString(args, "file_path")
	if err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}
	prompt, err := getString(args, "prompt")
	if err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}

	instruction := "Analyze the file above. Request: " + prompt
	return fileQueryResult(ctx, deps, path, instruction, args)
}
