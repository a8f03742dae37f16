package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"osananajimi-bot/backend/pkg/config"
)

type recordedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// newStubLLM serves an OpenAI-compatible chat completion endpoint that
// always answers with reply and records every request body
func newStubLLM(t *testing.T, reply string) (*httptest.Server, func() []recordedRequest) {
	t.Helper()

	var mu sync.Mutex
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]string{
						"role":    "assistant",
						"content": reply,
					},
				},
			},
		})
	}))

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedRequest, len(requests))
		copy(out, requests)
		return out
	}
}

func TestChat_Success(t *testing.T) {
	srv, _ := newStubLLM(t, "べ、別にあんたのために答えたんじゃないんだからね！")
	defer srv.Close()

	a := NewLLMAdapter(srv.URL, "", "test-model", config.SessionModePerCall)
	reply := a.Chat(context.Background(), "元気?")

	assert.False(t, reply.IsError)
	assert.Equal(t, "べ、別にあんたのために答えたんじゃないんだからね！", reply.Text)
	assert.False(t, strings.HasPrefix(reply.Text, ErrorSentinel))
}

func TestChat_TransportFailureIsTagged(t *testing.T) {
	srv, _ := newStubLLM(t, "unused")
	srv.Close() // connection refused from here on

	a := NewLLMAdapter(srv.URL, "", "test-model", config.SessionModePerCall)
	reply := a.Chat(context.Background(), "元気?")

	assert.True(t, reply.IsError)
	assert.True(t, strings.HasPrefix(reply.Text, ErrorSentinel),
		"error replies must begin with the sentinel marker")
}

func TestChat_PersistentSessionAccumulates(t *testing.T) {
	srv, getRequests := newStubLLM(t, "answer")
	defer srv.Close()

	a := NewLLMAdapter(srv.URL, "", "test-model", config.SessionModePersistent)

	_ = a.Chat(context.Background(), "first question")
	_ = a.Chat(context.Background(), "second question")

	requests := getRequests()
	require.Len(t, requests, 2)
	assert.Len(t, requests[0].Messages, 1)

	// Second request replays the whole session: user, assistant, user
	require.Len(t, requests[1].Messages, 3)
	assert.Equal(t, "first question", requests[1].Messages[0].Content)
	assert.Equal(t, "assistant", requests[1].Messages[1].Role)
	assert.Equal(t, "second question", requests[1].Messages[2].Content)
}

func TestChat_PerCallSessionIsFresh(t *testing.T) {
	srv, getRequests := newStubLLM(t, "answer")
	defer srv.Close()

	a := NewLLMAdapter(srv.URL, "", "test-model", config.SessionModePerCall)

	_ = a.Chat(context.Background(), "first question")
	_ = a.Chat(context.Background(), "second question")

	requests := getRequests()
	require.Len(t, requests, 2)
	assert.Len(t, requests[0].Messages, 1)
	assert.Len(t, requests[1].Messages, 1, "per-call mode must not carry history")
}

func TestReset_ClearsPersistentSession(t *testing.T) {
	srv, getRequests := newStubLLM(t, "answer")
	defer srv.Close()

	a := NewLLMAdapter(srv.URL, "", "test-model", config.SessionModePersistent)

	_ = a.Chat(context.Background(), "first question")
	a.Reset()
	_ = a.Chat(context.Background(), "second question")

	requests := getRequests()
	require.Len(t, requests, 2)
	assert.Len(t, requests[1].Messages, 1)
}
