package tools

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/JustHereToHelp/HydraMCP/internal/jsonextract"
	"github.com/JustHereToHelp/HydraMCP/internal/modelselect"
	"github.com/JustHereToHelp/HydraMCP/internal/sessionlog"
	"github.com/JustHereToHelp/HydraMCP/internal/tokencount"
	"github.com/JustHereToHelp/HydraMCP/types"
)

const triageSystemPrompt = "you are a session triage assistant; given raw development session transcripts, return strict JSON of the shape " +
	`{"files_modified":["..."],"decisions_made":["..."],"errors_resolved":["..."],"features_built":["..."],"unfinished_work":["..."],"total_meaningful_events":0}` +
	"; respond with only that JSON"

type triage struct {
	FilesModified  []string
	DecisionsMade  []string
	ErrorsResolved []string
	FeaturesBuilt  []string
	UnfinishedWork []string
	TotalEvents    int
}

// recapSection is one of the five triage buckets §4.9 weights the
// recap budget across, in the fixed order they're always rendered.
type recapSection struct {
	key   string
	label string
	items []string
}

func (t triage) sections() []recapSection {
	return []recapSection{
		{"files_modified", "Files modified", t.FilesModified},
		{"decisions_made", "Decisions made", t.DecisionsMade},
		{"errors_resolved", "Errors resolved", t.ErrorsResolved},
		{"features_built", "Features built", t.FeaturesBuilt},
		{"unfinished_work", "Unfinished work", t.UnfinishedWork},
	}
}

// SessionRecap implements the session_recap tool of §4.9: a triage
// pass over recent transcripts followed by a budgeted recap pass.
func SessionRecap(ctx context.Context, deps *Deps, args map[string]any) Result {
	sessions := getOptionalInt(args, "sessions", 3)
	if sessions < 1 || sessions > 10 {
		return errorResult(formatMarkdownError("Invalid input",
			types.NewError(types.ErrValidation, fmt.Sprintf("sessions must be in [1,10], got %d", sessions))))
	}
	project := getOptionalString(args, "project", "")
	focus := getOptionalString(args, "focus", "")

	dir := deps.SessionsRoot
	if project != "" {
		dir = filepath.Join(deps.SessionsRoot, project)
	}

	all, err := sessionlog.ReadRecent(dir)
	if err != nil {
		return errorResult(formatMarkdownError("Could not read session transcripts",
			types.NewError(types.ErrValidation, err.Error())))
	}
	if len(all) > sessions {
		all = all[:sessions]
	}
	if len(all) == 0 {
		return errorResult(formatMarkdownError("No session transcripts found",
			types.NewError(types.ErrValidation, fmt.Sprintf("no transcripts under %s", dir))))
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

	transcript := sessionlog.Render(all)

	t, triageErr := runTriage(ctx, deps, model, transcript, focus)

	// Estimate the recap prompt's token cost before the per-section
	// budget is known — the weighted token hints don't change the
	// estimate materially, so one probe build is enough.
	probePrompt := buildRecapPrompt(transcript, focus, t, nil)
	inputTokens := tokencount.Estimate(model, probePrompt)
	budget := recapBudget(inputTokens, t.TotalEvents, len(all))
	if override := getOptionalInt(args, "max_summary_tokens", 0); override > 0 {
		budget = int(clamp(float64(override), 1000, 30000))
	}

	sectionBudgets := allocateSectionBudgets(t.sections(), budget)
	recapPrompt := buildRecapPrompt(transcript, focus, t, sectionBudgets)

	recapResp, recapErr := deps.Backend.Query(ctx, model, recapPrompt, types.QueryOptions{MaxTokens: budget})

	if recapErr == nil {
		return okResult(renderRecap(model, project, len(all), budget, recapResp))
	}
	if triageErr == nil {
		return okResult(renderTriageOnlyFallback(t, recapErr))
	}
	return errorResult(formatMarkdownError("session_recap failed",
		types.NewError(types.ErrBackend, fmt.Sprintf("both triage and recap failed: triage=%v recap=%v", triageErr, recapErr))))
}

func runTriage(ctx context.Context, deps *Deps, model, transcript, focus string) (triage, error) {
	prompt := "Transcripts:\n\n" + transcript
	if focus != "" {
		prompt += "\n\nFocus on: " + focus
	}
	zero := 0.0
	resp, err := deps.Backend.Query(ctx, model, prompt, types.QueryOptions{
		SystemPrompt: triageSystemPrompt,
		Temperature:  &zero,
		MaxTokens:    1024,
	})
	if err != nil {
		return triage{}, err
	}

	obj, ok := jsonextract.FirstObject(resp.Content)
	if !ok {
		return triage{}, fmt.Errorf("triage response had no extractable JSON object")
	}

	t := triage{
		FilesModified:  stringArray(obj.Get("files_modified")),
		DecisionsMade:  stringArray(obj.Get("decisions_made")),
		ErrorsResolved: stringArray(obj.Get("errors_resolved")),
		FeaturesBuilt:  stringArray(obj.Get("features_built")),
		UnfinishedWork: stringArray(obj.Get("unfinished_work")),
		TotalEvents:    int(obj.Get("total_meaningful_events").Int()),
	}
	return t, nil
}

func stringArray(result gjson.Result) []string {
	if !result.IsArray() {
		return nil
	}
	var out []string
	result.ForEach(func(_, v gjson.Result) bool {
		if v.String() != "" {
			out = append(out, v.String())
		}
		return true
	})
	return out
}

// recapBudget computes Pass 2's token budget per §4.9: density tracks
// how event-rich the triage found the transcripts (from the triage
// pass's own total_meaningful_events field, not a raw transcript event
// count), and multi-session bonus rewards recapping more transcripts
// at once.
func recapBudget(inputTokens, triageEvents, sessionCount int) int {
	density := clamp(float64(triageEvents)/20, 0.5, 2.0)
	multiSessionBonus := 1 + float64(sessionCount-1)*0.3
	raw := 0.04 * float64(inputTokens) * density * multiSessionBonus
	return int(clamp(math.Round(raw), 1000, 30000))
}

// allocateSectionBudgets splits the overall recap budget across the
// five triage sections proportional to their triage counts, with a
// 10% floor per section so an empty-but-present section still gets a
// minimum share before the proportional shares are renormalized to
// sum back to budget.
func allocateSectionBudgets(secs []recapSection, budget int) map[string]int {
	const floor = 0.10
	total := 0
	for _, s := range secs {
		total += len(s.items)
	}

	n := float64(len(secs))
	raw := make(map[string]float64, len(secs))
	sum := 0.0
	for _, s := range secs {
		w := 1.0 / n
		if total > 0 {
			w = math.Max(floor, float64(len(s.items))/float64(total))
		}
		raw[s.key] = w
		sum += w
	}

	out := make(map[string]int, len(secs))
	for _, s := range secs {
		out[s.key] = int(math.Round(raw[s.key] / sum * float64(budget)))
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// buildRecapPrompt assembles the Pass 2 prompt. budgets is nil for the
// token-estimation probe build and populated (from
// allocateSectionBudgets) for the real query, annotating each
// non-empty section with its target share of the overall budget.
func buildRecapPrompt(transcript, focus string, t triage, budgets map[string]int) string {
	var b strings.Builder
	b.WriteString("Summarize the following development session transcripts as a recap, covering files changed, decisions made, errors resolved, features built, and unfinished work.\n\n")
	if focus != "" {
		b.WriteString("Focus on: " + focus + "\n\n")
	}

	secs := t.sections()
	anyItems := false
	for _, s := range secs {
		if len(s.items) > 0 {
			anyItems = true
			break
		}
	}
	if anyItems {
		b.WriteString("Triage hints (allocate roughly this much of the recap to each section):\n")
		for _, s := range secs {
			writeBudgetedSection(&b, s, budgets)
		}
		b.WriteString("\n")
	}
	b.WriteString("Transcripts:\n\n" + transcript)
	return b.String()
}

func writeBudgetedSection(b *strings.Builder, s recapSection, budgets map[string]int) {
	if len(s.items) == 0 {
		return
	}
	label := s.label
	if budgets != nil {
		label = fmt.Sprintf("%s (~%d tokens)", s.label, budgets[s.key])
	}
	b.WriteString(label + ":\n")
	for _, item := range s.items {
		b.WriteString("- " + item + "\n")
	}
}

func writeSection(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(label + ":\n")
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
}

func renderRecap(model, project string, sessionCount, budget int, resp types.QueryResponse) string {
	var b strings.Builder
	b.WriteString("### Session recap")
	if project != "" {
		b.WriteString(" (" + project + ")")
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("_model: %s, sessions: %d, budget: %d tokens_\n\n", model, sessionCount, budget))
	b.WriteString(latencyLine(resp) + "\n\n")
	b.WriteString(resp.Content + "\n")
	return b.String()
}

func renderTriageOnlyFallback(t triage, recapErr error) string {
	var b strings.Builder
	b.WriteString("### Session recap (partial: triage only)\n\n")
	b.WriteString("Recap generation failed; showing triage results instead.\n\n")
	b.WriteString(errorBlock("recap", recapErr) + "\n\n")
	writeSection(&b, "Files modified", t.FilesModified)
	writeSection(&b, "Decisions made", t.DecisionsMade)
	writeSection(&b, "Errors resolved", t.ErrorsResolved)
	writeSection(&b, "Features built", t.FeaturesBuilt)
	writeSection(&b, "Unfinished work", t.UnfinishedWork)
	return b.String()
}
