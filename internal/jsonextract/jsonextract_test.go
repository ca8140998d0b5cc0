package jsonextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstObject_PlainJSON(t *testing.T) {
	obj, ok := FirstObject(`{"a":1,"b":"two"}`)
	require.True(t, ok)
	assert.Equal(t, int64(1), obj.Get("a").Int())
	assert.Equal(t, "two", obj.Get("b").String())
}

func TestFirstObject_WithMarkdownFencePreamble(t *testing.T) {
	text := "Here is the JSON you asked for:\n\n```json\n{\"groups\": [[0,1],[2]]}\n```\n\nLet me know if you need more."
	obj, ok := FirstObject(text)
	require.True(t, ok)
	assert.True(t, obj.Get("groups").IsArray())
}

func TestFirstObject_NestedBraces(t *testing.T) {
	obj, ok := FirstObject(`prefix {"outer": {"inner": 1}} suffix`)
	require.True(t, ok)
	assert.Equal(t, int64(1), obj.Get("outer.inner").Int())
}

func TestFirstObject_BracesInsideString(t *testing.T) {
	obj, ok := FirstObject(`{"text": "a } weird } string", "n": 2}`)
	require.True(t, ok)
	assert.Equal(t, int64(2), obj.Get("n").Int())
}

func TestFirstObject_NoObjectPresent(t *testing.T) {
	_, ok := FirstObject("just a sentence with no braces at all")
	assert.False(t, ok)
}

func TestFirstObject_RecoversFromUnbalancedPrefix(t *testing.T) {
	// A stray unmatched "}" before the real object must not block extraction.
	_, ok := FirstObject(`} {"a": 1}`)
	assert.True(t, ok)
}

func TestFirstObject_EmptyString(t *testing.T) {
	_, ok := FirstObject("")
	assert.False(t, ok)
}
