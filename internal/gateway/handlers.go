package gateway

import (
	"context"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// handleHealth reports liveness and configuration presence. It never
// touches the upstream API. Only the key's existence and length are
// surfaced, never its value.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"hasApiKey":     s.config.APIKey != "",
		"apiKeyLength":  len(s.config.APIKey),
		"version":       s.version,
		"ready":         s.ready.Load(),
		"uptimeSeconds": int(time.Since(s.startTime).Seconds()),
		"sseClients":    s.broadcaster.ClientCount(),
	})
}

// handleSSE opens a streaming session; the broadcaster owns the
// connection lifecycle from here.
func (s *Service) handleSSE(w http.ResponseWriter, r *http.Request) {
	s.broadcaster.HandleSSE(w, r)
}

// handleSSEMessage accepts a JSON-RPC message addressed to an open SSE
// session (sessionId query parameter). The response is written to the
// POST and mirrored onto the session stream in arrival order.
func (s *Service) handleSSEMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rpcError(nil, codeParseError, "Parse error: "+err.Error(), nil))
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusOK, rpcError(nil, codeParseError, "Parse error", nil))
		return
	}

	resp := s.dispatch(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, rpcError(nil, codeInternalError, err.Error(), nil))
		return
	}

	if sessionID := r.URL.Query().Get("sessionId"); sessionID != "" {
		if !s.broadcaster.Send(sessionID, "message", data) {
			log.Debug().Str("clientId", sessionID).Msg("No SSE session for message response")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleMCP is the synchronous request/response MCP path.
func (s *Service) handleMCP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rpcError(nil, codeParseError, "Parse error: "+err.Error(), nil))
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusOK, rpcError(nil, codeParseError, "Parse error", nil))
		return
	}

	resp := s.dispatch(r.Context(), body)
	if resp == nil {
		// Notification: nothing to return.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// dispatch runs the MCP server on one raw message. A panic during tool
// execution is converted into a -32000 envelope carrying the message
// and stack instead of tearing down the connection.
func (s *Service) dispatch(ctx context.Context, body []byte) (resp any) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("MCP dispatch panicked")

			var req struct {
				ID any `json:"id"`
			}
			_ = json.Unmarshal(body, &req)
			resp = rpcError(req.ID, codeInternalError, stringify(rec), map[string]any{
				"stack": string(debug.Stack()),
			})
		}
	}()
	return s.mcpServer.HandleMessage(ctx, body)
}

func (s *Service) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func stringify(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "internal error"
	}
	return string(data)
}
