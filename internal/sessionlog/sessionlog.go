// Package sessionlog reads the most recent session transcripts for a
// project off disk for session_recap (§4.9), redacting anything that
// looks like a credential before it ever reaches a model prompt. Its
// read-then-index-by-recency shape is grounded on
// agent/persistence/file_message_store.go's loadFromDisk in the
// teacher repo, adapted from that store's full read/write message
// store into a read-only reader over JSON-lines transcript files.
package sessionlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// MaxTranscripts is the N<=10 ceiling on transcripts read per recap,
// per §4.9.
const MaxTranscripts = 10

// Transcript is one parsed, redacted session transcript.
type Transcript struct {
	Path   string
	Events []Event
}

// Event is one JSON-lines entry in a transcript file. A line that is
// not valid JSON is kept whole in Raw for prompt-building; for a JSON
// line, only Role and Content are kept and other fields are dropped.
type Event struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	Raw     string `json:"-"`
}

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{16,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{16,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*\S+`),
}

// redact replaces anything matching a known credential shape with a
// fixed placeholder, preserving surrounding text.
func redact(s string) string {
	for _, pattern := range sensitivePatterns {
		s = pattern.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// ReadRecent returns up to MaxTranscripts most-recently-modified
// "*.jsonl" transcript files under dir, newest first, each parsed and
// redacted. Lines that are not valid JSON are kept as Raw events; a
// file that cannot be opened or scanned is skipped rather than failing
// the whole read — a partial recap beats none.
func ReadRecent(dir string) ([]Transcript, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type candidate struct {
		path    string
		modTime int64
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(dir, e.Name()),
			modTime: info.ModTime().UnixNano(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime > candidates[j].modTime })
	if len(candidates) > MaxTranscripts {
		candidates = candidates[:MaxTranscripts]
	}

	var out []Transcript
	for _, c := range candidates {
		t, err := readTranscript(c.path)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func readTranscript(path string) (Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return Transcript{}, err
	}
	defer f.Close()

	t := Transcript{Path: path}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			ev = Event{Raw: line}
		}
		ev.Content = redact(ev.Content)
		ev.Raw = redact(ev.Raw)
		t.Events = append(t.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return Transcript{}, err
	}
	return t, nil
}

// Render concatenates every transcript's events into one prompt-ready
// string, role-prefixed, with transcripts in the order given (ReadRecent
// returns newest first, so its output renders newest first unless the
// caller reverses it).
func Render(transcripts []Transcript) string {
	var b strings.Builder
	for _, t := range transcripts {
		for _, ev := range t.Events {
			if ev.Content != "" {
				if ev.Role != "" {
					b.WriteString(ev.Role)
					b.WriteString(": ")
				}
				b.WriteString(ev.Content)
				b.WriteString("\n")
			} else if ev.Raw != "" {
				b.WriteString(ev.Raw)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// TotalEvents counts every event across transcripts. session_recap's
// density calculation uses the triage-reported event count, not this.
func TotalEvents(transcripts []Transcript) int {
	n := 0
	for _, t := range transcripts {
		n += len(t.Events)
	}
	return n
}
