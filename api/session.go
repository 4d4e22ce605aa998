package api

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cssci-tools/jonathan/internal/assistant"
	"github.com/cssci-tools/jonathan/internal/log"
)

// Session listing bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
	MaxSessionTurns  = 200
)

// Session is one conversation's identity and age; the turns stay
// server-side.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	TurnCount int       `json:"turn_count"`
}

type sessionState struct {
	id        string
	createdAt time.Time
	turns     []assistant.Turn
}

// Sessions is an in-memory conversation store keyed by UUID. History
// is bounded per session; the oldest turns fall off first.
//
// Safe for concurrent use.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*sessionState
}

// NewSessions creates an empty store.
func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*sessionState)}
}

// Create registers a new session and returns it.
func (s *Sessions) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := &sessionState{id: uuid.NewString(), createdAt: time.Now()}
	s.byID[state.id] = state
	return Session{ID: state.id, CreatedAt: state.createdAt}
}

// History returns a copy of the session's turns. ok is false when the
// session does not exist.
func (s *Sessions) History(id string) (turns []assistant.Turn, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return append([]assistant.Turn(nil), state.turns...), true
}

// Append records completed turns on the session, trimming the oldest
// past MaxSessionTurns. Unknown sessions are ignored; the conversation
// continues statelessly.
func (s *Sessions) Append(id string, turns ...assistant.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.byID[id]
	if !ok {
		return
	}
	state.turns = append(state.turns, turns...)
	if excess := len(state.turns) - MaxSessionTurns; excess > 0 {
		state.turns = state.turns[excess:]
	}
}

// List returns up to limit sessions, newest first.
func (s *Sessions) List(limit int) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]Session, 0, len(s.byID))
	for _, state := range s.byID {
		all = append(all, Session{ID: state.id, CreatedAt: state.createdAt, TurnCount: len(state.turns)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	store  *Sessions
	logger log.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store *Sessions, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	sessions := h.store.List(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
		"limit":    limit,
	}, h.logger)
}

func (h *SessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, h.store.Create(), h.logger)
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
