package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/erauner12/vaultgw/internal/gateway/vaultfs/tools"
	"github.com/rs/zerolog/log"
)

const sessionHeader = "Mcp-Session-Id"

var supportedProtocolVersions = map[string]bool{
	"2025-03-26": true,
	"2024-11-05": true,
}

// Handler implements the three transport verbs over the bearer-gated
// protected route, grounded on the teacher's MCPServer.handleMCPPost /
// handleMCPGet / handleMCPDelete (internal/mcpserver/server/server.go).
// Origin and bearer validation for the surrounding route is the
// httpserver package's job; Handler assumes it has already run. Handler
// checks the Mcp-Protocol-Version header itself.
type Handler struct {
	Manager  *Manager
	Registry *tools.Registry
}

func NewHandler(mgr *Manager, registry *tools.Registry) *Handler {
	return &Handler{Manager: mgr, Registry: registry}
}

// RequestResponse serves POST <protected>: a single JSON-RPC call,
// dispatched against the caller's session (or creating one, for
// "initialize").
func (h *Handler) RequestResponse(w http.ResponseWriter, r *http.Request) {
	if !checkProtocolVersion(w, r) {
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, nil, CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		h.sendError(w, req.ID, CodeInvalidRequest, "invalid jsonrpc version")
		return
	}

	if req.Method == "initialize" {
		h.handleInitialize(w, &req)
		return
	}

	session, ok := h.requireSession(w, r, req.ID)
	if !ok {
		return
	}

	h.dispatch(w, r, &req, session)
}

func (h *Handler) handleInitialize(w http.ResponseWriter, req *JSONRPCRequest) {
	session, err := h.Manager.Create("")
	if err != nil {
		if errors.Is(err, ErrAtCapacity) {
			h.sendServiceUnavailable(w, req.ID)
			return
		}
		h.sendError(w, req.ID, CodeInternalError, err.Error())
		return
	}

	log.Info().Str("sessionId", session.ID).Msg("created transport session")

	w.Header().Set(sessionHeader, session.ID)
	result := map[string]any{
		"protocolVersion": "2025-03-26",
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": "vaultgw", "version": "0.1.0"},
	}
	h.sendResult(w, req.ID, result)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, req *JSONRPCRequest, session *Session) {
	switch req.Method {
	case "tools/list":
		h.sendResult(w, req.ID, map[string]any{"tools": h.Registry.List()})

	case "tools/call":
		var callReq tools.CallRequest
		if err := json.Unmarshal(req.Params, &callReq); err != nil {
			h.sendError(w, req.ID, CodeInvalidParams, "invalid tool call parameters")
			return
		}

		result, err := h.Registry.Call(r.Context(), session.ToolContext(), callReq)
		if err != nil {
			var toolErr *tools.ToolError
			if errors.As(err, &toolErr) {
				code, message := toolErr.ToJSONRPCError()
				h.sendError(w, req.ID, code, message)
			} else {
				h.sendError(w, req.ID, CodeInternalError, err.Error())
			}
			return
		}
		h.sendResult(w, req.ID, result)

	case "ping":
		h.sendResult(w, req.ID, map[string]any{"status": "ok"})

	default:
		h.sendError(w, req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// Resume serves GET <protected>: establishes (or re-establishes) the
// session's SSE stream and blocks until it closes.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	if !checkProtocolVersion(w, r) {
		return
	}

	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		http.Error(w, "missing "+sessionHeader+" header", http.StatusBadRequest)
		return
	}

	session, err := h.Manager.Get(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	stream, err := NewStream(r.Context(), w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	session.attachStream(stream)
	defer session.detachStream(stream)
	defer stream.Close()

	log.Info().Str("sessionId", sessionID).Msg("resumed transport stream")
	<-stream.Done()
	log.Info().Str("sessionId", sessionID).Msg("transport stream closed")
}

// Terminate serves DELETE <protected>: ends the session and closes any
// open stream.
func (h *Handler) Terminate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		http.Error(w, "missing "+sessionHeader+" header", http.StatusBadRequest)
		return
	}

	if err := h.Manager.Terminate(sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request, id json.RawMessage) (*Session, bool) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		h.sendError(w, id, CodeInvalidRequest, "missing "+sessionHeader+" header")
		return nil, false
	}
	session, err := h.Manager.Get(sessionID)
	if err != nil {
		h.sendError(w, id, CodeInvalidRequest, "session not found")
		return nil, false
	}
	return session, true
}

func checkProtocolVersion(w http.ResponseWriter, r *http.Request) bool {
	version := r.Header.Get("Mcp-Protocol-Version")
	if !supportedProtocolVersions[version] {
		http.Error(w, "unsupported protocol version", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) sendError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // JSON-RPC errors still report HTTP 200
	json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}

func (h *Handler) sendResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  mustMarshal(result),
	})
}

// sendServiceUnavailable reports the C9 "at capacity" refusal. This is
// the one case the protocol surfaces as an HTTP status rather than a
// JSON-RPC error, since the caller has no session yet to address a
// JSON-RPC response to.
func (h *Handler) sendServiceUnavailable(w http.ResponseWriter, id json.RawMessage) {
	http.Error(w, "transport at capacity", http.StatusServiceUnavailable)
}
