// Package jsonextract pulls the first balanced-braces JSON object out
// of a model's prose response, the way both the agreement judge
// (§4.10) and session_recap's triage pass (§4.9) need to: a model
// asked for "JSON" routinely wraps it in markdown fences or a
// sentence of preamble. Grounded on the gjson-based extraction idiom
// in the retrieved CLIProxyAPI gateway handlers.
package jsonextract

import "github.com/tidwall/gjson"

// FirstObject scans s for the first top-level balanced {...} run and
// returns it, along with whether a syntactically valid JSON value was
// found there. It does not itself unmarshal into a struct; callers
// index into the result with gjson paths.
func FirstObject(s string) (gjson.Result, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if gjson.Valid(candidate) {
					return gjson.Parse(candidate), true
				}
				start = -1
			}
		}
	}
	return gjson.Result{}, false
}
