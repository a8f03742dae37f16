// Package tts submits text to a remote speech-synthesis service and
// returns raw audio bytes. Three wire protocols are supported behind one
// contract, selected by configuration: a single synchronous call, an
// asynchronous submit-then-poll job, and a two-step audio-query flow.
package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"osananajimi-bot/backend/pkg/config"
	"osananajimi-bot/backend/pkg/logger"
	"go.uber.org/zap"
)

// Synthesizer converts text into audio bytes. Implementations never
// panic past their boundary; every failure is a typed error value.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

const defaultRequestTimeout = 30 * time.Second

// Options holds the knobs shared by all protocol variants
type Options struct {
	BaseURL string
	APIKey  string
	Speaker int

	// Job-polling variant only
	PollInterval    time.Duration
	MaxPollAttempts int

	// HTTPClient overrides the default client, mainly for tests
	HTTPClient *http.Client
}

func (o *Options) fill() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxPollAttempts <= 0 {
		o.MaxPollAttempts = 60
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: defaultRequestTimeout}
	}
}

// New builds the Synthesizer for the configured protocol
func New(cfg *config.Config) (Synthesizer, error) {
	opts := Options{
		BaseURL: cfg.TTSBaseURL,
		APIKey:  cfg.TTSAPIKey,
		Speaker: cfg.TTSSpeaker,
	}

	switch cfg.TTSProtocol {
	case config.TTSProtocolSync:
		return NewSyncClient(opts), nil
	case config.TTSProtocolJob:
		return NewJobClient(opts), nil
	case config.TTSProtocolQuery:
		return NewQueryClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown TTS protocol: %q", cfg.TTSProtocol)
	}
}

func newLogger(protocol string) *zap.Logger {
	return logger.Named("tts").With(zap.String("protocol", protocol))
}

// maxAudioBytes caps response bodies to keep a misbehaving service from
// exhausting memory.
const maxAudioBytes = 64 << 20

// drainBody reads and closes a response body. A body larger than
// maxAudioBytes is an error, never a silent truncation.
func drainBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxAudioBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxAudioBytes)
	}
	return data, nil
}
