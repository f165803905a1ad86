package toolserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/retrieval"
)

func newTestDispatcher(store *fakeStore) *Dispatcher {
	engine := retrieval.New(store, fakeEmbedder{}, nil, 0, time.Minute)
	return NewDispatcher(New(store, fakeEmbedder{}, engine))
}

func TestHandleInitialize(t *testing.T) {
	d := newTestDispatcher(&fakeStore{})
	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "initialize"})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Result)
}

func TestHandlePing(t *testing.T) {
	d := newTestDispatcher(&fakeStore{})
	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "ping"})
	require.Nil(t, resp.Error)
}

func TestHandleToolsList(t *testing.T) {
	d := newTestDispatcher(&fakeStore{})
	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	require.Nil(t, resp.Error)
	m, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	tools, ok := m["tools"].([]Tool)
	require.True(t, ok)
	require.Len(t, tools, 5)
}

func TestHandleUnknownMethod(t *testing.T) {
	d := newTestDispatcher(&fakeStore{})
	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "nonexistent"})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestHandleInvalidJSONRPCVersion(t *testing.T) {
	d := newTestDispatcher(&fakeStore{})
	resp := d.Handle(context.Background(), Request{JSONRPC: "1.0", ID: 1, Method: "ping"})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidRequest, resp.Error.Code)
}

func TestHandleToolCallMalformedParams(t *testing.T) {
	d := newTestDispatcher(&fakeStore{})
	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`not json`)})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestHandleToolCallUnknownTool(t *testing.T) {
	d := newTestDispatcher(&fakeStore{})
	params, _ := json.Marshal(toolCallParams{Name: "does_not_exist", Arguments: json.RawMessage(`{}`)})
	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(CallToolResult)
	require.True(t, ok)
	require.True(t, result.IsError)
}

func TestHandleToolCallValidationFailureIsErrorResult(t *testing.T) {
	d := newTestDispatcher(&fakeStore{})
	args, _ := json.Marshal(ClearSessionArgs{SessionID: "not-a-uuid"})
	params, _ := json.Marshal(toolCallParams{Name: "clear_session", Arguments: args})
	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(CallToolResult)
	require.True(t, ok)
	require.True(t, result.IsError)
}

func TestHandleToolCallSuccess(t *testing.T) {
	d := newTestDispatcher(&fakeStore{})
	args, _ := json.Marshal(SaveConversationArgs{UserPrompt: "hi"})
	params, _ := json.Marshal(toolCallParams{Name: "save_conversation", Arguments: args})
	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(CallToolResult)
	require.True(t, ok)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	require.Equal(t, "text", result.Content[0].Type)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 10))
	require.Equal(t, "ab...(truncated)", truncate("abcdef", 2))
}
