package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finquest/core"
)

func TestClient_SendEventGetStateBadgesHealth(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"), WithUser("alice"))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := client.SendEvent(ctx, core.QuizCompleted{Score: 95, CompletedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Outcome.XPGained)
	assert.Equal(t, int64(12), res.State.TotalXP)
	assert.Equal(t, int64(88), res.State.XPToNextLevel)

	st, err := client.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.UserID("alice"), st.UserID)
	assert.Equal(t, int64(2), st.Level)

	badges, err := client.Badges(ctx)
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.True(t, badges[0].Earned)

	board, err := client.Leaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "alice", board[0].UserID)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api", WithUser("alice"))
	require.NoError(t, err)
	_, err = client.SendEvent(context.Background(), core.ModuleCompleted{})
	assert.True(t, core.IsValidationError(err))

	anon, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)
	_, err = anon.GetState(context.Background())
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestClient_APIError(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api", WithUser("broken"))
	require.NoError(t, err)
	_, err = client.SendEvent(context.Background(), core.Login{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "unavailable", apiErr.Code)
	assert.True(t, apiErr.Temporary())
}

func TestClient_SubscribeNotices(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api", WithUser("alice"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	notices, err := client.SubscribeNotices(ctx)
	require.NoError(t, err)

	select {
	case n := <-notices:
		assert.Equal(t, core.NoticeLevelUp, n.Type)
		assert.Equal(t, int64(2), n.Level)
	case <-ctx.Done():
		t.Fatal("timed out waiting for notice")
	}
}

func TestDeriveWSURL(t *testing.T) {
	assert.Equal(t, "wss://example.com/api/ws", deriveWSURL("https://example.com/api"))
	assert.Equal(t, "ws://localhost:8080/ws", deriveWSURL("http://localhost:8080"))
}

// test server implementing the minimal API surface expected by the SDK.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","checks":{"storage":"ok"}}`))
	})
	mux.HandleFunc("/api/gamification/event", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-ID") == "broken" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"code":"unavailable","message":"try later"}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		ev, err := core.UnmarshalEvent(body)
		if err != nil || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		st, out, _ := core.ApplyEvent(core.NewState(core.UserID(r.Header.Get("X-User-ID"))), ev, core.NewDate(2025, time.March, 10))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(core.Result{Outcome: out, State: st})
	})
	mux.HandleFunc("/api/gamification/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// derived fields are recomputed client side
		_, _ = w.Write([]byte(`{"user_id":"` + r.Header.Get("X-User-ID") + `","total_xp":120,"level":0,"current_streak":1,"last_check_in_date":"2025-03-10","badges":[]}`))
	})
	mux.HandleFunc("/api/gamification/badges", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"code":"day1","name":"First Day","earned":true}]`))
	})
	mux.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"user_id":"alice","total_xp":120,"level":2}]`))
	})

	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(core.NewLevelUp(core.UserID(r.Header.Get("X-User-ID")), 2))
		// keep the connection open until the client goes away
		_, _, _ = conn.ReadMessage()
	})

	return httptest.NewServer(mux)
}
