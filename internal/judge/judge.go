// Package judge implements the agreement-judge subprotocol of §4.10:
// given an ordered list of candidate responses, ask a single model to
// partition their indices into agreement groups, then take the
// largest group as the consensus set.
package judge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/internal/jsonextract"
	"github.com/JustHereToHelp/HydraMCP/types"
)

// Querier is the subset of SmartBackend the judge call needs.
type Querier interface {
	Query(ctx context.Context, model, prompt string, opts types.QueryOptions) (types.QueryResponse, error)
}

const maxTokenBudget = 512

const systemPrompt = "you are an agreement judge; you will be shown several numbered responses to the same question; group their indices by substantive agreement, returning strict JSON of the shape {\"groups\": [[0,2],[1]], \"reasoning\": \"...\"}; respond with only that JSON"

// Judge asks judgeModel to partition responses (already numbered 0..n-1
// in the order given) into agreement groups, returning those groups
// as validated index lists. It fails if the judge model errors, its
// output has no extractable JSON object, or the extracted groups
// field is not a list of lists of in-range integers — callers should
// fall back to a deterministic heuristic on any error.
func Judge(ctx context.Context, q Querier, logger *zap.Logger, judgeModel string, responses []string) ([][]int, error) {
	zero := 0.0
	prompt := buildPrompt(responses)

	resp, err := q.Query(ctx, judgeModel, prompt, types.QueryOptions{
		SystemPrompt: systemPrompt,
		Temperature:  &zero,
		MaxTokens:    maxTokenBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("judge query failed: %w", err)
	}

	obj, ok := jsonextract.FirstObject(resp.Content)
	if !ok {
		return nil, fmt.Errorf("judge response had no extractable JSON object")
	}

	groupsField := obj.Get("groups")
	if !groupsField.IsArray() {
		return nil, fmt.Errorf("judge response's groups field was not an array")
	}

	var groups [][]int
	var validateErr error
	groupsField.ForEach(func(_, group gjson.Result) bool {
		if !group.IsArray() {
			validateErr = fmt.Errorf("judge response contained a non-array group")
			return false
		}
		var indices []int
		group.ForEach(func(_, idx gjson.Result) bool {
			if idx.Type != gjson.Number {
				validateErr = fmt.Errorf("judge response contained a non-numeric index")
				return false
			}
			i := int(idx.Num)
			if i < 0 || i >= len(responses) {
				validateErr = fmt.Errorf("judge response index %d out of range [0,%d)", i, len(responses))
				return false
			}
			indices = append(indices, i)
			return true
		})
		if validateErr != nil {
			return false
		}
		groups = append(groups, indices)
		return true
	})
	if validateErr != nil {
		return nil, validateErr
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("judge response produced no groups")
	}

	if logger != nil {
		logger.Debug("agreement judge partitioned responses",
			zap.String("judge_model", judgeModel), zap.Int("groups", len(groups)))
	}
	return groups, nil
}

func buildPrompt(responses []string) string {
	var b strings.Builder
	b.WriteString("Here are numbered responses to the same question:\n\n")
	for i, r := range responses {
		b.WriteString("[" + strconv.Itoa(i) + "] ")
		b.WriteString(r)
		b.WriteString("\n\n")
	}
	return b.String()
}

// LargestGroup returns the group with the most members, breaking ties
// toward the group appearing earliest.
func LargestGroup(groups [][]int) []int {
	best := -1
	var group []int
	for _, g := range groups {
		if len(g) > best {
			best = len(g)
			group = g
		}
	}
	return group
}
