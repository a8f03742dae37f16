package tts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	apperrors "osananajimi-bot/backend/pkg/errors"
	"go.uber.org/zap"
)

// SyncClient is the single-call variant: one GET whose body is the audio.
// A non-200 status is a synthesis failure.
type SyncClient struct {
	opts   Options
	logger *zap.Logger
}

// NewSyncClient creates a synchronous synthesis client
func NewSyncClient(opts Options) *SyncClient {
	opts.fill()
	return &SyncClient{opts: opts, logger: newLogger("sync")}
}

// Synthesize requests audio for text in one round trip
func (c *SyncClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("speaker", strconv.Itoa(c.opts.Speaker))
	if c.opts.APIKey != "" {
		params.Set("key", c.opts.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("sync", "building request", err)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("sync", "request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperrors.NewSynthesisFailed("sync", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	audio, err := drainBody(resp)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("sync", "reading audio body", err)
	}

	c.logger.Debug("Synthesis complete", zap.Int("audio_bytes", len(audio)))
	return audio, nil
}
