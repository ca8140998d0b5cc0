package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JustHereToHelp/HydraMCP/types"
)

// recoveryHint renders the explicit "**Recovery:**" line §7 requires
// for every error surfaced to a tool caller.
func recoveryHint(err error) string {
	var e *types.Error
	if asErr, ok := err.(*types.Error); ok {
		e = asErr
	}
	if e == nil {
		return "**Recovery:** retry the request; if this persists, try a different model."
	}
	switch e.Code {
	case types.ErrValidation:
		return "**Recovery:** fix the reported input and retry."
	case types.ErrRouting:
		return "**Recovery:** call list_models to see valid model IDs, or add the correct provider prefix."
	case types.ErrUnavailable:
		return "**Recovery:** wait for the circuit to recover, or call list_models to pick a healthy model."
	case types.ErrTimeout:
		return "**Recovery:** retry, shorten the prompt, or choose a faster model."
	case types.ErrTransport:
		return "**Recovery:** check network connectivity and retry."
	case types.ErrBackend:
		if e.Retryable {
			return "**Recovery:** retry shortly; the backend reported a transient failure."
		}
		return "**Recovery:** the backend rejected the request; review the error body and adjust the input."
	case types.ErrEmptyResponse:
		return "**Recovery:** retry, rephrase the prompt, or choose a different model."
	case types.ErrAuth:
		return "**Recovery:** verify the backend's API key or subscription credentials, then start the provider again."
	default:
		return "**Recovery:** retry the request; if this persists, try a different model."
	}
}

func errorBlock(model string, err error) string {
	return fmt.Sprintf("- **%s**: %s\n  %s", model, err.Error(), recoveryHint(err))
}

func formatMarkdownError(title string, err error) string {
	var b strings.Builder
	b.WriteString("### " + title + "\n\n")
	b.WriteString(err.Error() + "\n\n")
	b.WriteString(recoveryHint(err) + "\n")
	return b.String()
}

// responseBlock renders one model's successful response as a labelled
// section, optionally noting a cache hit.
func responseBlock(model string, resp types.QueryResponse) string {
	var b strings.Builder
	b.WriteString("#### " + model + "\n\n")
	if resp.LatencyMS == 0 {
		b.WriteString("_(served from cache)_\n\n")
	}
	if resp.FallbackFrom != "" {
		b.WriteString(fmt.Sprintf("_(fell back from %s)_\n\n", resp.FallbackFrom))
	}
	b.WriteString(resp.Content + "\n")
	return b.String()
}

// latencyLine renders the "Latency: Nms" / "0ms (cached)" line
// ask_model includes per S1.
func latencyLine(resp types.QueryResponse) string {
	if resp.LatencyMS == 0 {
		return "Latency: 0ms (cached)"
	}
	return fmt.Sprintf("Latency: %dms", resp.LatencyMS)
}

type branchOutcome struct {
	model string
	resp  types.QueryResponse
	err   error
}

// successesAndFailures splits outcomes into successes and failures,
// each keeping the caller-given model order of outcomes.
func successesAndFailures(outcomes []branchOutcome) (ok []branchOutcome, failed []branchOutcome) {
	for _, o := range outcomes {
		if o.err == nil {
			ok = append(ok, o)
		} else {
			failed = append(failed, o)
		}
	}
	return ok, failed
}

func renderComparisonTable(outcomes []branchOutcome) string {
	var fastestModel string
	var fastestLatency int64 = -1
	for _, o := range outcomes {
		if o.err != nil {
			continue
		}
		if fastestLatency < 0 || o.resp.LatencyMS < fastestLatency {
			fastestLatency = o.resp.LatencyMS
			fastestModel = o.model
		}
	}

	var b strings.Builder
	b.WriteString("| model | latency | tokens | fastest |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, o := range outcomes {
		if o.err != nil {
			continue
		}
		tokens := 0
		if o.resp.Usage != nil {
			tokens = o.resp.Usage.TotalTokens
		}
		tag := ""
		if o.model == fastestModel {
			tag = "fastest"
		}
		b.WriteString(fmt.Sprintf("| %s | %dms | %d | %s |\n", o.model, o.resp.LatencyMS, tokens, tag))
	}
	return b.String()
}

func sortedKeys(m map[string][]types.ModelInfo) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
