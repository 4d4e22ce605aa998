package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cssci-tools/jonathan/internal/assistant"
	"github.com/cssci-tools/jonathan/internal/log"
)

// Responder is the assistant boundary the chat handler depends on.
type Responder interface {
	Respond(ctx context.Context, query string, history []assistant.Turn, cb assistant.StreamFunc) (*assistant.Reply, error)
}

// ChatHandler handles the chat endpoints.
//
// Endpoints:
//   - POST /api/chat        - synchronous (JSON request/response)
//   - POST /api/chat/stream - streaming (Server-Sent Events)
type ChatHandler struct {
	responder Responder
	sessions  *Sessions
	logger    log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(responder Responder, sessions *Sessions, logger log.Logger) *ChatHandler {
	return &ChatHandler{responder: responder, sessions: sessions, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// ChatRequest is the request body for both chat endpoints. SessionID
// is optional; without it every question stands alone.
type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the synchronous chat response.
type ChatResponse struct {
	Answer    string                    `json:"answer"`
	Context   []assistant.ContextRecord `json:"context"`
	SessionID string                    `json:"session_id,omitempty"`
}

// handleChat answers one question synchronously.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, history, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	reply, err := h.responder.Respond(r.Context(), req.Question, history, nil)
	if err != nil {
		h.logger.Error("answering question", "error", err)
		writeError(w, http.StatusBadGateway, "ANSWER_FAILED", "could not answer the question", h.logger)
		return
	}

	h.recordTurns(req, reply.Answer)
	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:    reply.Answer,
		Context:   reply.Context,
		SessionID: req.SessionID,
	}, h.logger)
}

// SSE payloads, one type per event.
type (
	// SSEChunkData is the data for "chunk" events.
	SSEChunkData struct {
		Text string `json:"text"`
	}

	// SSEDoneData is the data for "done" events.
	SSEDoneData struct {
		Answer    string                    `json:"answer"`
		Context   []assistant.ContextRecord `json:"context"`
		SessionID string                    `json:"session_id,omitempty"`
	}

	// SSEErrorData is the data for "error" events.
	SSEErrorData struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

// handleStream answers one question over Server-Sent Events.
//
// Event types:
//   - chunk: partial answer text {"text": "..."}
//   - done:  final answer {"answer": "...", "context": [...], "session_id": "..."}
//   - error: failure {"code": "...", "message": "..."}
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported by response writer")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	req, history, ok := h.parseStreamRequest(w, flusher, r)
	if !ok {
		return
	}

	reply, err := h.responder.Respond(r.Context(), req.Question, history,
		func(_ context.Context, fragment string) error {
			if fragment == "" {
				return nil
			}
			h.writeSSEChunk(w, flusher, fragment)
			return r.Context().Err()
		})
	if err != nil {
		if r.Context().Err() != nil {
			h.logger.Info("client disconnected mid-stream")
			return
		}
		h.logger.Error("streaming answer", "error", err)
		h.writeSSEError(w, flusher, "STREAM_ERROR", "could not answer the question")
		return
	}

	h.recordTurns(req, reply.Answer)
	h.writeSSEDone(w, flusher, SSEDoneData{
		Answer:    reply.Answer,
		Context:   reply.Context,
		SessionID: req.SessionID,
	})
}

// parseRequest decodes and validates the request body for the
// synchronous endpoint.
func (h *ChatHandler) parseRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, []assistant.Turn, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err), h.logger)
		return req, nil, false
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "MISSING_QUESTION", "question is required", h.logger)
		return req, nil, false
	}

	history, ok := h.sessionHistory(req.SessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_SESSION", "session not found", h.logger)
		return req, nil, false
	}
	return req, history, true
}

// parseStreamRequest mirrors parseRequest but reports failures as SSE
// error events, since the headers are already committed to the stream.
func (h *ChatHandler) parseStreamRequest(w http.ResponseWriter, flusher http.Flusher, r *http.Request) (ChatRequest, []assistant.Turn, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeSSEError(w, flusher, "INVALID_REQUEST", fmt.Sprintf("invalid request body: %v", err))
		return req, nil, false
	}
	if req.Question == "" {
		h.writeSSEError(w, flusher, "MISSING_QUESTION", "question is required")
		return req, nil, false
	}

	history, ok := h.sessionHistory(req.SessionID)
	if !ok {
		h.writeSSEError(w, flusher, "UNKNOWN_SESSION", "session not found")
		return req, nil, false
	}
	return req, history, true
}

func (h *ChatHandler) sessionHistory(sessionID string) ([]assistant.Turn, bool) {
	if sessionID == "" {
		return nil, true
	}
	return h.sessions.History(sessionID)
}

func (h *ChatHandler) recordTurns(req ChatRequest, answer string) {
	if req.SessionID == "" {
		return
	}
	h.sessions.Append(req.SessionID,
		assistant.Turn{Role: assistant.RoleUser, Content: req.Question},
		assistant.Turn{Role: assistant.RoleAssistant, Content: answer},
	)
}

func (h *ChatHandler) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *ChatHandler) writeSSEDone(w http.ResponseWriter, flusher http.Flusher, done SSEDoneData) {
	data, _ := json.Marshal(done)
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *ChatHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
