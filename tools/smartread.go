package tools

import (
	"context"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// SmartRead implements the smart_read tool of §4.9: a server-side
// read followed by a verbatim-extraction query with line-range
// annotations against a large-context model.
func SmartRead(ctx context.Context, deps *Deps, args map[string]any) Result {
	path, err := getString(args, "file_path")
	if err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}
	query, err := getString(args, "query")
	if err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}

	instruction := "Extract verbatim the portions of the file above relevant to this query, annotating each excerpt with its line range. Query: " + query
	return fileQueryResult(ctx, deps, path, instruction, args)
}
