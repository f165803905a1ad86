package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jetgogoing/sage/pkg/retrieval"
)

func newTestServer(store *fakeStore) *Server {
	engine := retrieval.New(store, fakeEmbedder{}, nil, 0, time.Minute)
	return NewServer(New(store, fakeEmbedder{}, engine))
}

func TestServeStdioEchoesOneResponsePerLine(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	input := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" + `{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n")
	var out bytes.Buffer

	err := srv.ServeStdio(context.Background(), input, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Nil(t, first.Error)
}

func TestServeStdioReportsParseErrorPerLine(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	input := strings.NewReader("not json\n")
	var out bytes.Buffer

	err := srv.ServeStdio(context.Background(), input, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "invalid JSON")
}

func TestRouterHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestRouterRPCEndpoint(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	body := `{"jsonrpc":"2.0","id":1,"method":"ping"}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Nil(t, resp.Error)
}

func TestRouterRPCEndpointInvalidJSON(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader("{bad"))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeParseError, resp.Error.Code)
}
