package devin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL + "/v1"
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	return NewClient(cfg, WithRetryWait(time.Millisecond, 2*time.Millisecond))
}

func TestClient_CreateSession(t *testing.T) {
	var got CreateSessionRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sessions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"session_id":"devin-abc","url":"https://app.devin.ai/sessions/abc","is_new_session":true}`))
	}, Config{KnowledgeIDs: []string{"note-1"}})

	created, err := client.CreateSession(context.Background(), "do things", "code-review", "Step 1: Review")
	require.NoError(t, err)

	assert.Equal(t, "devin-abc", created.SessionID)
	assert.True(t, created.IsNew)
	assert.Equal(t, "do things", got.Prompt)
	assert.False(t, got.Idempotent)
	assert.Equal(t, []string{"note-1"}, got.KnowledgeIDs)
	assert.Equal(t, "playbook-code-review", got.PlaybookID)
	assert.Equal(t, "Step 1: Review", got.Title)
}

func TestClient_CreateSession_OmitsOptionalFields(t *testing.T) {
	var raw map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"session_id":"devin-1"}`))
	}, Config{})

	_, err := client.CreateSession(context.Background(), "p", "", "")
	require.NoError(t, err)

	assert.NotContains(t, raw, "playbook_id")
	assert.NotContains(t, raw, "title")
	assert.Equal(t, []any{}, raw["knowledge_ids"])
	assert.Equal(t, false, raw["idempotent"])
}

func TestClient_MissingAPIKey(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})

	_, err := client.CreateSession(context.Background(), "p", "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIKey))
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.True(t, IsFatal(err))

	_, err = client.GetSession(context.Background(), "devin-1")
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	_, err = client.ChatSession(context.Background(), "devin-1", "hi")
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	assert.Equal(t, int32(0), calls.Load())
}

func TestClient_GetSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/session/devin-42", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"session_id": "devin-42",
			"status": "running",
			"status_enum": "working",
			"title": "Step 1",
			"tags": ["a"],
			"messages": [
				{"type": "initial_user_message", "message": "prompt"},
				{"type": "devin_message", "message": "Result A"},
				{"type": "devin_message", "message": "sleep"}
			]
		}`))
	}, Config{})

	session, err := client.GetSession(context.Background(), "devin-42")
	require.NoError(t, err)

	assert.Equal(t, "devin-42", session.SessionID)
	assert.Equal(t, "running", session.Status)
	assert.Equal(t, "working", session.StatusEnum)
	assert.Equal(t, 3, session.MessageCount)
	assert.Equal(t, 2, session.DevinMessageCount)
	assert.Equal(t, "sleep", session.LastDevinMessage)
	assert.Equal(t, "sleep", session.LastMessage())
	assert.Equal(t, "Result A", session.MessageBeforeLast())
	assert.False(t, session.IsCompleted())
}

func TestClient_ChatSession(t *testing.T) {
	var body ChatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sessions/devin-7/messages", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"detail":"ok"}`))
	}, Config{})

	result, err := client.ChatSession(context.Background(), "devin-7", "continue please")
	require.NoError(t, err)
	assert.True(t, result.MessageSent)
	assert.Equal(t, "devin-7", result.SessionID)
	assert.Equal(t, "continue please", body.Message)
	assert.JSONEq(t, `{"detail":"ok"}`, string(result.Raw))
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		sentinel  error
		wantFatal bool
		wantMsg   string
	}{
		{name: "unauthorized", status: 401, body: `{"detail":"bad key"}`, sentinel: ErrUnauthorized, wantFatal: true, wantMsg: "bad key"},
		{name: "forbidden", status: 403, body: `{"message":"nope"}`, sentinel: ErrForbidden, wantFatal: true, wantMsg: "nope"},
		{name: "not found", status: 404, body: `{"error":"missing"}`, sentinel: ErrNotFound, wantFatal: false, wantMsg: "missing"},
		{name: "bad request", status: 400, body: `plain text`, sentinel: ErrBadRequest, wantFatal: false, wantMsg: "plain text"},
		{name: "server error", status: 503, body: ``, sentinel: ErrServerError, wantFatal: false, wantMsg: "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Request-Id", "req-1")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, Config{HTTPRetries: -1})

			_, err := client.GetSession(context.Background(), "devin-1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.Equal(t, tt.wantFatal, IsFatal(err))

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "req-1", apiErr.RequestID)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Contains(t, err.Error(), "/session/devin-1")
		})
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"session_id":"devin-1","status":"completed","messages":[]}`))
	}, Config{HTTPRetries: 3})

	session, err := client.GetSession(context.Background(), "devin-1")
	require.NoError(t, err)
	assert.True(t, session.IsCompleted())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}, Config{HTTPRetries: 3})

	_, err := client.GetSession(context.Background(), "devin-1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ContextCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetSession(ctx, "devin-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsFatal(err))
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:3001/v1/"})
	assert.Equal(t, "http://localhost:3001/v1", client.BaseURL())

	client = NewClient(Config{})
	assert.Equal(t, DefaultBaseURL, client.BaseURL())
}

func TestSessionURL(t *testing.T) {
	assert.Equal(t, "https://app.devin.ai/sessions/abc123", SessionURL("devin-abc123"))
	assert.Equal(t, "https://app.devin.ai/sessions/abc123", SessionURL("abc123"))
}

func TestClient_IsSessionCompleted(t *testing.T) {
	client := NewClient(Config{})
	assert.True(t, client.IsSessionCompleted("finished", ""))
	assert.False(t, client.IsSessionCompleted("running", "finished"))
	assert.False(t, client.IsSessionCompleted("", ""))
}

func TestMockClient_Scripts(t *testing.T) {
	mock := &MockClient{
		Scripts: [][]MockRead{
			{
				{Session: RunningSession("working")},
				{Err: errors.New("flaky")},
				{Session: SleepingSession("running", "done A")},
			},
		},
	}
	ctx := context.Background()

	created, err := mock.CreateSession(ctx, "p", "playbook-x", "Step 1")
	require.NoError(t, err)
	assert.Equal(t, "devin-mock-1", created.SessionID)

	s, err := mock.GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "working", s.LastMessage())

	_, err = mock.GetSession(ctx, created.SessionID)
	require.Error(t, err)

	s, err = mock.GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "sleep", s.LastMessage())
	assert.Equal(t, "done A", s.MessageBeforeLast())

	s, err = mock.GetSession(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "sleep", s.LastMessage(), "last read repeats")
	assert.Equal(t, 4, mock.Reads(created.SessionID))

	second, err := mock.CreateSession(ctx, "q", "", "")
	require.NoError(t, err)
	s, err = mock.GetSession(ctx, second.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "running", s.Status)

	_, err = mock.ChatSession(ctx, second.SessionID, "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, mock.Chats(second.SessionID))
	assert.Len(t, mock.Created(), 2)
}
