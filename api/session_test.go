package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cssci-tools/jonathan/internal/assistant"
	"github.com/cssci-tools/jonathan/internal/log"
)

func TestSessionsHistoryIsolation(t *testing.T) {
	store := NewSessions()
	sess := store.Create()

	store.Append(sess.ID, assistant.Turn{Role: assistant.RoleUser, Content: "q1"})
	turns, ok := store.History(sess.ID)
	require.True(t, ok)
	require.Len(t, turns, 1)

	// Mutating the returned slice never touches the stored history.
	turns[0].Content = "changed"
	again, _ := store.History(sess.ID)
	assert.Equal(t, "q1", again[0].Content)
}

func TestSessionsUnknownID(t *testing.T) {
	store := NewSessions()
	_, ok := store.History("missing")
	assert.False(t, ok)

	// Appending to a missing session is a no-op.
	store.Append("missing", assistant.Turn{Role: assistant.RoleUser, Content: "q"})
}

func TestSessionsBoundedHistory(t *testing.T) {
	store := NewSessions()
	sess := store.Create()

	for i := 0; i < MaxSessionTurns+10; i++ {
		store.Append(sess.ID, assistant.Turn{Role: assistant.RoleUser, Content: "q"})
	}
	turns, _ := store.History(sess.ID)
	assert.Len(t, turns, MaxSessionTurns)
}

func TestSessionHandler_CreateAndList(t *testing.T) {
	h := NewSessionHandler(NewSessions(), log.NewNop())

	w := httptest.NewRecorder()
	h.create(w, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var sess Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.NotEmpty(t, sess.ID)

	w = httptest.NewRecorder()
	h.list(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions []Session `json:"sessions"`
		Total    int       `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, sess.ID, resp.Sessions[0].ID)
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"default", "", DefaultListLimit},
		{"explicit", "limit=5", 5},
		{"clamped high", "limit=99999", MaxListLimit},
		{"clamped low", "limit=0", 1},
		{"garbage", "limit=abc", DefaultListLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/sessions?"+tt.query, nil)
			assert.Equal(t, tt.want, parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit))
		})
	}
}
