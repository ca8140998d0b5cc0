package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/JustHereToHelp/HydraMCP/internal/judge"
	"github.com/JustHereToHelp/HydraMCP/internal/modelselect"
	"github.com/JustHereToHelp/HydraMCP/types"
)

// Consensus implements the consensus tool of §4.9.
func Consensus(ctx context.Context, deps *Deps, args map[string]any) Result {
	models, err := getStringSlice(args, "models")
	if err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}
	if err := validateModelCount(models, 3, 7); err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}
	prompt, err := getString(args, "prompt")
	if err != nil {
		return errorResult(formatMarkdownError("Invalid input", types.NewError(types.ErrValidation, err.Error())))
	}
	strategy := getOptionalString(args, "strategy", "majority")
	if strategy != "majority" && strategy != "supermajority" && strategy != "unanimous" {
		return errorResult(formatMarkdownError("Invalid input",
			types.NewError(types.ErrValidation, fmt.Sprintf("strategy must be one of majority, supermajority, unanimous; got %q", strategy))))
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
	n := len(ok)

	if n == 0 {
		var b strings.Builder
		b.WriteString("### Consensus: not reached (no successful responses)\n\n### Errors\n\n")
		for _, f := range failed {
			b.WriteString(errorBlock(f.model, f.err) + "\n")
		}
		return okResult(b.String())
	}

	required := requiredQuorum(strategy, n)

	responses := make([]string, n)
	for i, o := range ok {
		responses[i] = o.resp.Content
	}

	judgeModel := getOptionalString(args, "judge_model", "")
	if judgeModel == "" {
		available, _ := deps.Backend.ListModels(ctx)
		judgeModel = modelselect.Pick(modelIDs(available), modelselect.DistillerPreference, models...)
	}

	var groups [][]int
	if judgeModel != "" {
		groups, err = judge.Judge(ctx, deps.Backend, deps.Logger, judgeModel, responses)
	}
	if judgeModel == "" || err != nil {
		groups = jaccardGroups(responses)
	}

	agreeing := judge.LargestGroup(groups)
	agreeingSet := make(map[int]bool, len(agreeing))
	for _, i := range agreeing {
		agreeingSet[i] = true
	}

	reached := len(agreeing) >= required
	confidence := float64(len(agreeing)) / float64(n)

	return okResult(renderConsensus(strategy, required, n, reached, confidence, ok, failed, agreeingSet))
}

func requiredQuorum(strategy string, n int) int {
	switch strategy {
	case "supermajority":
		return int(math.Ceil(float64(n) * 0.66))
	case "unanimous":
		return n
	default:
		return int(math.Ceil(float64(n) * 0.5))
	}
}

// jaccardGroups is the deterministic fallback of §4.9 when the judge
// call itself fails: strip words of <=4 letters from every response,
// compare each against the first (pivot) response's set, and declare
// agreement at Jaccard > 0.3.
func jaccardGroups(responses []string) [][]int {
	sets := make([]map[string]bool, len(responses))
	for i, r := range responses {
		sets[i] = significantWords(r)
	}

	agreeing := []int{0}
	dissenting := []int{}
	for i := 1; i < len(responses); i++ {
		if jaccard(sets[0], sets[i]) > 0.3 {
			agreeing = append(agreeing, i)
		} else {
			dissenting = append(dissenting, i)
		}
	}
	if len(dissenting) == 0 {
		return [][]int{agreeing}
	}
	return [][]int{agreeing, dissenting}
}

func significantWords(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool)
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()[]{}")
		if len(w) > 4 {
			set[w] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func renderConsensus(strategy string, required, n int, reached bool, confidence float64, ok, failed []branchOutcome, agreeing map[int]bool) string {
	var b strings.Builder

	status := "NOT REACHED"
	if reached {
		status = "REACHED"
	}
	b.WriteString(fmt.Sprintf("### Consensus: %s\n\n", status))
	b.WriteString(fmt.Sprintf("Strategy: %s (required %d/%d)\n\n", strategy, required, n))
	b.WriteString(fmt.Sprintf("Agreement: %d/%d (%.0f%%)\n\n", countTrue(agreeing), n, confidence*100))

	if len(agreeing) > 0 {
		for i, o := range ok {
			if agreeing[i] {
				b.WriteString("**Consensus answer** (" + o.model + "):\n\n")
				b.WriteString(o.resp.Content + "\n\n")
				break
			}
		}
	}

	b.WriteString("| model | agrees | latency |\n|---|---|---|\n")
	for i, o := range ok {
		agrees := "no"
		if agreeing[i] {
			agrees = "yes"
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %dms |\n", o.model, agrees, o.resp.LatencyMS))
	}
	b.WriteString("\n")

	var dissent []string
	for i, o := range ok {
		if !agreeing[i] {
			dissent = append(dissent, o.model)
		}
	}
	if len(dissent) > 0 {
		b.WriteString("**Dissent:**\n")
		for _, m := range dissent {
			b.WriteString("- " + m + "\n")
		}
		b.WriteString("\n")
	}

	if len(failed) > 0 {
		b.WriteString(fmt.Sprintf("### Errors (%d failed)\n\n", len(failed)))
		for _, f := range failed {
			b.WriteString(errorBlock(f.model, f.err) + "\n")
		}
	}

	return b.String()
}

func countTrue(m map[int]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}
