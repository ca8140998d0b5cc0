// Package modelselect picks an auxiliary model (distiller, judge,
// synthesizer, large-context reader) from an ordered preference list,
// filtering by what's currently available. Grounded on
// llm/router/router.go's filterCandidates in the teacher repo,
// simplified from weighted scoring to a flat ordered preference walk
// since these selections have no load to balance.
package modelselect

import "strings"

// DistillerPreference favors small, fast "lite"/"flash"/"haiku" class
// models so compressing a response costs little relative to producing
// it.
var DistillerPreference = []string{
	"flash", "lite", "haiku", "mini", "small",
}

// LargeContextPreference favors Gemini-family flash variants by
// default, per §4.9 analyze_file/smart_read.
var LargeContextPreference = []string{
	"gemini", "flash",
}

// Pick walks preference in order and, for the first substring that
// some id matches, returns the first id in available (in its given
// order) whose lowercased form contains it, excluding anything in
// exclude. An earlier preference therefore wins over an earlier
// position in available. If nothing matches a preference, it falls back
// to the first available id not excluded. Returns "" if everything is
// excluded.
func Pick(available []string, preference []string, exclude ...string) string {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}

	for _, pat := range preference {
		for _, id := range available {
			if excluded[id] {
				continue
			}
			if strings.Contains(strings.ToLower(id), pat) {
				return id
			}
		}
	}

	for _, id := range available {
		if !excluded[id] {
			return id
		}
	}
	return ""
}

// FirstAvailable returns the first id in available, in registration
// order, that isn't in exclude. Unlike Pick, it applies no preference
// list — used where the spec's selection rule is a plain iteration
// pick rather than a weighted preference (e.g. the synthesize tool's
// synthesizer, auto-selected as "the first available model not in the
// source list").
func FirstAvailable(available []string, exclude ...string) string {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[e] = true
	}
	for _, id := range available {
		if !excluded[id] {
			return id
		}
	}
	return ""
}
