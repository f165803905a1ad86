package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jetgogoing/sage/pkg/sageerr"
)

// protocolVersion is the tag initialize() advertises (spec §4.12).
const protocolVersion = "2024-11-05"

// Standard JSON-RPC 2.0 error codes, grounded on kadirpekel/hector's
// pkg/transport/jsonrpc_handler.go, plus the spec's application-level
// timeout code layered on top.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeTimeout        = 408
)

// maxErrorMessageLen bounds a handler-exception message surfaced to a
// caller, so an internal error never leaks an unbounded stack-trace-like
// string (spec §4.12: "truncated message; never leaks stack traces").
const maxErrorMessageLen = 500

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ContentBlock is one element of a tools/call result's content array
// (spec §4.12: `{content: [{type:"text", text:…}], isError?: bool}`).
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is a tools/call response payload.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Dispatcher routes JSON-RPC method calls to the Service, shared by
// the stdio and HTTP transports.
type Dispatcher struct {
	svc *Service
}

// NewDispatcher builds a Dispatcher over svc.
func NewDispatcher(svc *Service) *Dispatcher {
	return &Dispatcher{svc: svc}
}

// Handle processes one decoded Request and returns the Response to
// send back. It never returns an error itself — every failure mode is
// represented in the Response per JSON-RPC 2.0.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, codeInvalidRequest, "invalid jsonrpc version")
	}

	switch req.Method {
	case "initialize":
		return successResponse(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    "sage",
				"version": "1.0.0",
			},
		})
	case "ping":
		return successResponse(req.ID, map[string]any{})
	case "tools/list":
		return successResponse(req.ID, map[string]any{"tools": Catalogue()})
	case "tools/call":
		return d.handleToolCall(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (d *Dispatcher) handleToolCall(ctx context.Context, req Request) Response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "malformed tools/call params")
	}

	result, err := d.callTool(ctx, params.Name, params.Arguments)
	if err != nil {
		// Any tagged domain failure (bad input, provider outage, storage
		// failure, ...) is a tool-call result, not a JSON-RPC protocol
		// error: it comes back as isError:true content carrying its
		// kind (spec §4.12, §8 scenario 6's "isError: true with
		// kind=provider_5xx"). JSON-RPC error objects are reserved for
		// malformed requests the dispatcher itself rejects.
		if se, ok := sageerr.As(err); ok {
			return successResponse(req.ID, toolErrorResult(se))
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return errorResponse(req.ID, codeTimeout, "tool call exceeded its 30-second timeout")
		}
		return errorResponse(req.ID, codeInternalError, truncate(err.Error(), maxErrorMessageLen))
	}

	blocks := []ContentBlock{{Type: "text", Text: jsonText(result)}}
	return successResponse(req.ID, CallToolResult{Content: blocks})
}

func (d *Dispatcher) callTool(ctx context.Context, name string, raw json.RawMessage) (map[string]any, error) {
	switch name {
	case "save_conversation":
		args, err := unmarshalArgs[SaveConversationArgs](raw)
		if err != nil {
			return nil, err
		}
		return d.svc.SaveConversation(ctx, args)
	case "get_context":
		args, err := unmarshalArgs[GetContextArgs](raw)
		if err != nil {
			return nil, err
		}
		return d.svc.GetContext(ctx, args)
	case "search_memory":
		args, err := unmarshalArgs[SearchMemoryArgs](raw)
		if err != nil {
			return nil, err
		}
		return d.svc.SearchMemory(ctx, args)
	case "get_memory_stats":
		args, err := unmarshalArgs[GetMemoryStatsArgs](raw)
		if err != nil {
			return nil, err
		}
		return d.svc.GetMemoryStats(ctx, args)
	case "clear_session":
		args, err := unmarshalArgs[ClearSessionArgs](raw)
		if err != nil {
			return nil, err
		}
		return d.svc.ClearSession(ctx, args)
	default:
		return nil, sageerr.New(sageerr.InputInvalid, "toolserver", fmt.Errorf("unknown tool: %s", name))
	}
}

func toolErrorResult(se *sageerr.Error) CallToolResult {
	return CallToolResult{
		Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("kind=%s: %s", se.Kind, se.Error())}},
		IsError: true,
	}
}

func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}

func successResponse(id any, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id any, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}
