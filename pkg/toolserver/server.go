package toolserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes a Dispatcher over stdio (line-delimited JSON-RPC,
// canonical per spec §4.12) and HTTP (POST /rpc, the documented
// alternate transport), grounded on kadirpekel/hector's
// pkg/transport/jsonrpc_handler.go for the HTTP shape.
type Server struct {
	dispatcher *Dispatcher
}

// NewServer builds a Server over svc.
func NewServer(svc *Service) *Server {
	return &Server{dispatcher: NewDispatcher(svc)}
}

// ServeStdio runs the line-delimited JSON-RPC loop over r/w until r is
// exhausted or ctx is cancelled. Each line is one Request; each
// response is written as one line of JSON followed by a newline.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := enc.Encode(errorResponse(nil, codeParseError, "invalid JSON")); encErr != nil {
				return encErr
			}
			continue
		}

		resp := s.dispatcher.Handle(ctx, req)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdio request: %w", err)
	}
	return nil
}

// Router builds the HTTP transport: POST /rpc for JSON-RPC calls and
// GET /health for liveness checks.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Post("/rpc", s.handleHTTPRPC)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	return r
}

func (s *Server) handleHTTPRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		json.NewEncoder(w).Encode(errorResponse(nil, codeParseError, "failed to read request body"))
		return
	}
	defer r.Body.Close()

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		json.NewEncoder(w).Encode(errorResponse(nil, codeParseError, "invalid JSON"))
		return
	}

	resp := s.dispatcher.Handle(r.Context(), req)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("toolserver: failed to encode HTTP response", "error", err)
	}
}
