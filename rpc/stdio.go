package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/tools"
)

// callTimeout bounds a single tools/call dispatch, grounded on the
// teacher's DefaultMCPServer.CallTool 30-second timeout.
const callTimeout = 30 * time.Second

// handlerFunc is the shape every tools.* entry point satisfies.
type handlerFunc func(ctx context.Context, deps *tools.Deps, args map[string]any) tools.Result

// Server reads newline-delimited JSON-RPC 2.0 requests from an input
// stream and writes newline-delimited responses to an output stream,
// dispatching tools/list and tools/call against the registered
// handlers. One line in, one line out — no Content-Length framing.
type Server struct {
	deps     *tools.Deps
	logger   *zap.Logger
	handlers map[string]handlerFunc

	writeMu sync.Mutex
	out     io.Writer
}

// NewServer builds a Server with the fixed eight-tool dispatch table.
func NewServer(deps *tools.Deps, logger *zap.Logger) *Server {
	return &Server{
		deps:   deps,
		logger: logger,
		handlers: map[string]handlerFunc{
			"ask_model":      tools.AskModel,
			"compare_models": tools.CompareModels,
			"consensus":      tools.Consensus,
			"synthesize":     tools.Synthesize,
			"analyze_file":   tools.AnalyzeFile,
			"smart_read":     tools.SmartRead,
			"session_recap":  tools.SessionRecap,
			"list_models":    tools.ListModels,
		},
	}
}

// Serve reads requests from in and writes responses to out until in
// is exhausted or ctx is cancelled. Each request is dispatched in its
// own goroutine so a slow tool call never blocks the read loop from
// picking up the next line.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg := make([]byte, len(line))
		copy(msg, line)

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleLine(ctx, msg)
		}()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdio read: %w", err)
	}
	return nil
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var req Message
	if err := json.Unmarshal(line, &req); err != nil {
		s.write(newErrorResponse(nil, ErrParseError, "invalid JSON"))
		return
	}

	resp := s.dispatch(ctx, req)
	s.write(resp)
}

func (s *Server) dispatch(ctx context.Context, req Message) Message {
	switch req.Method {
	case "initialize":
		return newResponse(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"serverInfo":      map[string]any{"name": "hydramcp", "version": "0.1.0"},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		})
	case "tools/list":
		return newResponse(req.ID, map[string]any{"tools": toolDefinitions()})
	case "tools/call":
		return s.dispatchToolCall(ctx, req)
	case "shutdown", "notifications/initialized":
		return newResponse(req.ID, map[string]any{})
	default:
		return newErrorResponse(req.ID, ErrMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (s *Server) dispatchToolCall(ctx context.Context, req Message) Message {
	var params toolCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return newErrorResponse(req.ID, ErrInvalidParams, "params must decode as a tool call")
		}
	}

	handler, ok := s.handlers[params.Name]
	if !ok {
		return newErrorResponse(req.ID, ErrMethodNotFound, fmt.Sprintf("unknown tool %q", params.Name))
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	callID := uuid.New().String()
	s.logger.Debug("dispatching tool call", zap.String("call_id", callID), zap.String("tool", params.Name))

	result := s.callWithRecover(callCtx, handler, params.Name, params.Arguments)
	return newResponse(req.ID, textResult(result.Text, result.IsError))
}

// callWithRecover insulates the dispatch loop from a tool handler
// panic — a protocol-level fault must never surface for a domain-level
// failure, per §6.
func (s *Server) callWithRecover(ctx context.Context, handler handlerFunc, name string, args map[string]any) (result tools.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool handler panicked", zap.String("tool", name), zap.Any("recover", r))
			result = tools.Result{Text: fmt.Sprintf("### %s failed\n\nInternal error: %v\n\n**Recovery:** retry the request; if this persists, report the issue.", name, r), IsError: true}
		}
	}()
	return handler(ctx, s.deps, args)
}

func (s *Server) write(msg Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal response", zap.Error(err))
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(body); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
		return
	}
	if _, err := s.out.Write([]byte("\n")); err != nil {
		s.logger.Error("failed to write response terminator", zap.Error(err))
	}
}
