package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	apperrors "osananajimi-bot/backend/pkg/errors"
	"go.uber.org/zap"
)

// QueryClient is the two-step variant spoken by a locally hosted engine:
// one call builds an audio-query object, a second call renders it into
// audio. The query object is treated as opaque JSON and round-tripped
// unchanged.
type QueryClient struct {
	opts   Options
	logger *zap.Logger
}

// NewQueryClient creates a two-step synthesis client
func NewQueryClient(opts Options) *QueryClient {
	opts.fill()
	return &QueryClient{opts: opts, logger: newLogger("query")}
}

// Synthesize builds the audio query then renders it
func (c *QueryClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	query, err := c.buildQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return c.render(ctx, query)
}

func (c *QueryClient) buildQuery(ctx context.Context, text string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("speaker", strconv.Itoa(c.opts.Speaker))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/audio_query?"+params.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("query", "building audio_query request", err)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("query", "audio_query failed", err)
	}
	body, err := drainBody(resp)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("query", "reading audio_query response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewSynthesisFailed("query", fmt.Sprintf("audio_query status %d", resp.StatusCode), nil)
	}

	if !json.Valid(body) {
		return nil, apperrors.NewSynthesisFailed("query", "audio_query returned invalid JSON", nil)
	}
	return json.RawMessage(body), nil
}

func (c *QueryClient) render(ctx context.Context, query json.RawMessage) ([]byte, error) {
	params := url.Values{}
	params.Set("speaker", strconv.Itoa(c.opts.Speaker))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/synthesis?"+params.Encode(), bytes.NewReader(query))
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("query", "building synthesis request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("query", "synthesis failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperrors.NewSynthesisFailed("query", fmt.Sprintf("synthesis status %d", resp.StatusCode), nil)
	}

	audio, err := drainBody(resp)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("query", "reading audio body", err)
	}

	c.logger.Debug("Synthesis complete", zap.Int("audio_bytes", len(audio)))
	return audio, nil
}
