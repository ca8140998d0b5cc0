package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// ListModels implements the list_models tool of §4.9: list every
// model the orchestrator knows about, grouped by provider, annotated
// with circuit state.
func ListModels(ctx context.Context, deps *Deps, args map[string]any) Result {
	models, err := deps.Backend.ListModels(ctx)
	if err != nil {
		return errorResult(formatMarkdownError("list_models failed", err))
	}

	byProvider := make(map[string][]types.ModelInfo)
	for _, m := range models {
		byProvider[m.ProviderKey] = append(byProvider[m.ProviderKey], m)
	}

	var b strings.Builder
	b.WriteString("### Models\n\n")
	for _, provider := range sortedKeys(byProvider) {
		b.WriteString("#### " + provider + "\n\n")
		for _, m := range byProvider[provider] {
			rec := deps.Backend.CircuitRecord(m.ID)
			b.WriteString(fmt.Sprintf("- `%s` — %s [%s]\n", m.ID, m.DisplayName, rec.State))
		}
		b.WriteString("\n")
	}
	return okResult(b.String())
}
