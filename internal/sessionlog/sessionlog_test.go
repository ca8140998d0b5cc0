package sessionlog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, dir, name string, lines []string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestReadRecent_OrdersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Now()
	writeTranscript(t, dir, "old.jsonl", []string{`{"role":"user","content":"hi"}`}, base.Add(-2*time.Hour))
	writeTranscript(t, dir, "new.jsonl", []string{`{"role":"user","content":"hey"}`}, base)

	out, err := ReadRecent(dir)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, filepath.Join(dir, "new.jsonl"), out[0].Path)
	assert.Equal(t, filepath.Join(dir, "old.jsonl"), out[1].Path)
}

func TestReadRecent_CapsAtMaxTranscripts(t *testing.T) {
	dir := t.TempDir()
	base := time.Now()
	for i := 0; i < MaxTranscripts+2; i++ {
		writeTranscript(t, dir, fmt.Sprintf("t%d.jsonl", i),
			[]string{`{"role":"user","content":"hi"}`}, base.Add(-time.Duration(i)*time.Minute))
	}

	out, err := ReadRecent(dir)
	require.NoError(t, err)
	assert.Len(t, out, MaxTranscripts)
}

func TestReadRecent_IgnoresNonJSONLFiles(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "session.jsonl", []string{`{"role":"user","content":"hi"}`}, time.Now())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a transcript"), 0o644))

	out, err := ReadRecent(dir)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, filepath.Join(dir, "session.jsonl"), out[0].Path)
}

func TestReadRecent_MissingDirIsNotAnError(t *testing.T) {
	out, err := ReadRecent(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReadRecent_RedactsSecrets(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "session.jsonl", []string{
		`{"role":"assistant","content":"your key is sk-abcdefghijklmnopqrstuvwxyz"}`,
	}, time.Now())

	out, err := ReadRecent(dir)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Events, 1)
	assert.Contains(t, out[0].Events[0].Content, "[REDACTED]")
	assert.NotContains(t, out[0].Events[0].Content, "sk-abcdefghijklmnopqrstuvwxyz")
}

func TestReadRecent_KeepsUnparseableLinesAsRaw(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "session.jsonl", []string{"not json at all"}, time.Now())

	out, err := ReadRecent(dir)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Events, 1)
	assert.Equal(t, "not json at all", out[0].Events[0].Raw)
}

func TestRender_ConcatenatesRolePrefixedEvents(t *testing.T) {
	transcripts := []Transcript{
		{Events: []Event{{Role: "user", Content: "hello"}, {Role: "assistant", Content: "hi there"}}},
	}
	rendered := Render(transcripts)
	assert.Contains(t, rendered, "user: hello")
	assert.Contains(t, rendered, "assistant: hi there")
}

func TestTotalEvents_SumsAcrossTranscripts(t *testing.T) {
	transcripts := []Transcript{
		{Events: []Event{{Content: "a"}, {Content: "b"}}},
		{Events: []Event{{Content: "c"}}},
	}
	assert.Equal(t, 3, TotalEvents(transcripts))
}
