package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustHereToHelp/HydraMCP/types"
)

type fakeQuerier struct {
	content string
	err     error
}

func (f *fakeQuerier) Query(_ context.Context, _, _ string, _ types.QueryOptions) (types.QueryResponse, error) {
	if f.err != nil {
		return types.QueryResponse{}, f.err
	}
	return types.QueryResponse{Content: f.content}, nil
}

func TestJudge_ParsesValidGroups(t *testing.T) {
	q := &fakeQuerier{content: `{"groups": [[0, 2], [1]], "reasoning": "0 and 2 agree"}`}
	groups, err := Judge(context.Background(), q, nil, "judge-model", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 2}, {1}}, groups)
}

func TestJudge_FailsOnQueryError(t *testing.T) {
	q := &fakeQuerier{err: errors.New("backend down")}
	_, err := Judge(context.Background(), q, nil, "judge-model", []string{"a", "b"})
	assert.Error(t, err)
}

func TestJudge_FailsOnUnextractableResponse(t *testing.T) {
	q := &fakeQuerier{content: "I cannot help with that."}
	_, err := Judge(context.Background(), q, nil, "judge-model", []string{"a", "b"})
	assert.Error(t, err)
}

func TestJudge_FailsOnOutOfRangeIndex(t *testing.T) {
	q := &fakeQuerier{content: `{"groups": [[0, 5]]}`}
	_, err := Judge(context.Background(), q, nil, "judge-model", []string{"a", "b"})
	assert.Error(t, err)
}

func TestJudge_FailsOnNonArrayGroupsField(t *testing.T) {
	q := &fakeQuerier{content: `{"groups": "not an array"}`}
	_, err := Judge(context.Background(), q, nil, "judge-model", []string{"a", "b"})
	assert.Error(t, err)
}

func TestLargestGroup_PicksBiggestBreakingTiesEarliest(t *testing.T) {
	groups := [][]int{{0}, {1, 2}, {3, 4}}
	assert.Equal(t, []int{1, 2}, LargestGroup(groups))
}

func TestLargestGroup_EmptyInput(t *testing.T) {
	assert.Nil(t, LargestGroup(nil))
}
