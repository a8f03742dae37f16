package tts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"osananajimi-bot/backend/pkg/config"
	apperrors "osananajimi-bot/backend/pkg/errors"
)

var fakeAudio = []byte("RIFFxxxxWAVEfake-audio-bytes")

func TestSyncClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "こんにちは", r.URL.Query().Get("text"))
		assert.Equal(t, "8", r.URL.Query().Get("speaker"))
		_, _ = w.Write(fakeAudio)
	}))
	defer srv.Close()

	c := NewSyncClient(Options{BaseURL: srv.URL, Speaker: 8})
	audio, err := c.Synthesize(context.Background(), "こんにちは")

	require.NoError(t, err)
	assert.Equal(t, fakeAudio, audio)
}

func TestSyncClient_NonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewSyncClient(Options{BaseURL: srv.URL, Speaker: 8})
	_, err := c.Synthesize(context.Background(), "こんにちは")

	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeSynthesis))
}

func TestSyncClient_OversizedBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := make([]byte, 1<<20)
		for written := 0; written <= maxAudioBytes; written += len(chunk) {
			if _, err := w.Write(chunk); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewSyncClient(Options{BaseURL: srv.URL, Speaker: 8})
	_, err := c.Synthesize(context.Background(), "こんにちは")

	require.Error(t, err, "a body past the size cap must fail, not truncate")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeSynthesis))
}

func TestJobClient_PollsUntilReady(t *testing.T) {
	var mu sync.Mutex
	var statusCalls []time.Time
	downloads := 0

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":        true,
			"wavDownloadUrl": srv.URL + "/download",
			"audioStatusUrl": srv.URL + "/status",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		statusCalls = append(statusCalls, time.Now())
		ready := len(statusCalls) >= 3 // not-ready twice, then ready
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]bool{"isAudioReady": ready})
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		downloads++
		mu.Unlock()
		_, _ = w.Write(fakeAudio)
	})

	c := NewJobClient(Options{
		BaseURL:         srv.URL + "/submit",
		Speaker:         8,
		PollInterval:    time.Second,
		MaxPollAttempts: 10,
	})

	audio, err := c.Synthesize(context.Background(), "こんにちは")
	require.NoError(t, err)
	assert.Equal(t, fakeAudio, audio)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, statusCalls, 3, "status must be polled exactly three times")
	assert.Equal(t, 1, downloads, "download must happen once, after readiness")
	for i := 1; i < len(statusCalls); i++ {
		gap := statusCalls[i].Sub(statusCalls[i-1])
		assert.GreaterOrEqual(t, gap, time.Second, "polls must be at least one interval apart")
	}
}

func TestJobClient_BoundedPolling(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	statusCalls := 0
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":        true,
			"wavDownloadUrl": srv.URL + "/download",
			"audioStatusUrl": srv.URL + "/status",
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		statusCalls++
		_ = json.NewEncoder(w).Encode(map[string]bool{"isAudioReady": false}) // never ready
	})

	c := NewJobClient(Options{
		BaseURL:         srv.URL + "/submit",
		Speaker:         8,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 4,
	})

	_, err := c.Synthesize(context.Background(), "こんにちは")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeSynthesis))
	assert.Equal(t, 4, statusCalls, "the poll loop must stop at its attempt budget")
}

func TestJobClient_SubmitFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      false,
			"errorMessage": "quota exceeded",
		})
	}))
	defer srv.Close()

	c := NewJobClient(Options{BaseURL: srv.URL, Speaker: 8})
	_, err := c.Synthesize(context.Background(), "こんにちは")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestQueryClient_TwoStepFlow(t *testing.T) {
	queryObject := `{"accent_phrases":[],"speedScale":1.0}`

	mux := http.NewServeMux()
	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "こんにちは", r.URL.Query().Get("text"))
		_, _ = io.WriteString(w, queryObject)
	})
	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, queryObject, string(body), "the query object must round-trip unchanged")
		_, _ = w.Write(fakeAudio)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewQueryClient(Options{BaseURL: srv.URL, Speaker: 8})
	audio, err := c.Synthesize(context.Background(), "こんにちは")

	require.NoError(t, err)
	assert.Equal(t, fakeAudio, audio)
}

func TestQueryClient_QueryFailureStopsFlow(t *testing.T) {
	synthesisCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		synthesisCalls++
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewQueryClient(Options{BaseURL: srv.URL, Speaker: 8})
	_, err := c.Synthesize(context.Background(), "こんにちは")

	require.Error(t, err)
	assert.Zero(t, synthesisCalls)
}

func TestNew_SelectsProtocol(t *testing.T) {
	base := &config.Config{TTSBaseURL: "http://localhost:50021", TTSSpeaker: 8}

	base.TTSProtocol = config.TTSProtocolSync
	s, err := New(base)
	require.NoError(t, err)
	assert.IsType(t, &SyncClient{}, s)

	base.TTSProtocol = config.TTSProtocolJob
	s, err = New(base)
	require.NoError(t, err)
	assert.IsType(t, &JobClient{}, s)

	base.TTSProtocol = config.TTSProtocolQuery
	s, err = New(base)
	require.NoError(t, err)
	assert.IsType(t, &QueryClient{}, s)

	base.TTSProtocol = "bogus"
	_, err = New(base)
	assert.Error(t, err)
}
