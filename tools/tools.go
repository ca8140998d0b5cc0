// Package tools implements the eight MCP tool handlers of §4.9: each
// validates its input against a declared schema, drives one or more
// SmartBackend queries, and renders a single markdown string. Fan-out
// tools (compare_models, consensus, synthesize) share the fanOut
// helper in compare.go: one goroutine per branch writes into its own
// result slot and the group is joined with a sync.WaitGroup, so one
// branch's failure never cancels its siblings — the "settled"
// semantics of §5.
package tools

import (
	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/orchestrator"
)

// Deps bundles what every tool handler needs: the orchestrator, a
// logger, and enough configuration to find session transcripts.
type Deps struct {
	Backend      *orchestrator.SmartBackend
	Logger       *zap.Logger
	SessionsRoot string // base dir containing <project>/*.jsonl transcripts
}

// Result is what a tool handler returns to the RPC layer: a single
// markdown text payload and whether it represents a domain-level
// failure (is_error in the tool-call envelope). Handlers have no Go
// error return: every failure is reported as a Result with IsError
// set.
type Result struct {
	Text    string
	IsError bool
}

func errorResult(text string) Result { return Result{Text: text, IsError: true} }
func okResult(text string) Result    { return Result{Text: text} }
