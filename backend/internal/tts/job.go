package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "osananajimi-bot/backend/pkg/errors"
	"go.uber.org/zap"
)

const maxPollDelay = 5 * time.Second

// JobClient is the submit-then-poll variant: the first call returns a job
// descriptor with a status URL and a download URL; the audio becomes
// available once the status endpoint reports it ready.
//
// The poll loop is bounded. The base interval is 1 second with the delay
// doubling between attempts (capped), so a stuck job fails the invocation
// instead of hanging it forever.
type JobClient struct {
	opts   Options
	logger *zap.Logger
}

// NewJobClient creates a job-polling synthesis client
func NewJobClient(opts Options) *JobClient {
	opts.fill()
	return &JobClient{opts: opts, logger: newLogger("job")}
}

type jobDescriptor struct {
	Success        bool   `json:"success"`
	WavDownloadURL string `json:"wavDownloadUrl"`
	AudioStatusURL string `json:"audioStatusUrl"`
	ErrorMessage   string `json:"errorMessage"`
}

type jobStatus struct {
	IsAudioReady bool `json:"isAudioReady"`
}

// Synthesize submits the job, polls until the audio is ready, then
// downloads it
func (c *JobClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	job, err := c.submit(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.waitReady(ctx, job.AudioStatusURL); err != nil {
		return nil, err
	}

	return c.download(ctx, job.WavDownloadURL)
}

func (c *JobClient) submit(ctx context.Context, text string) (*jobDescriptor, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("speaker", strconv.Itoa(c.opts.Speaker))
	if c.opts.APIKey != "" {
		params.Set("key", c.opts.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("job", "building submit request", err)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("job", "submit failed", err)
	}
	body, err := drainBody(resp)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("job", "reading submit response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewSynthesisFailed("job", fmt.Sprintf("submit status %d", resp.StatusCode), nil)
	}

	var job jobDescriptor
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, apperrors.NewSynthesisFailed("job", "decoding job descriptor", err)
	}
	if !job.Success {
		return nil, apperrors.NewSynthesisFailed("job", job.ErrorMessage, nil)
	}

	c.logger.Debug("Synthesis job submitted", zap.String("status_url", job.AudioStatusURL))
	return &job, nil
}

// waitReady polls the status URL until the audio is ready or the attempt
// budget runs out
func (c *JobClient) waitReady(ctx context.Context, statusURL string) error {
	delay := c.opts.PollInterval
	for attempt := 1; attempt <= c.opts.MaxPollAttempts; attempt++ {
		ready, err := c.checkStatus(ctx, statusURL)
		if err != nil {
			return err
		}
		if ready {
			c.logger.Debug("Synthesis job ready", zap.Int("attempts", attempt))
			return nil
		}

		if attempt == c.opts.MaxPollAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return apperrors.NewSynthesisFailed("job", "cancelled while polling", ctx.Err())
		}

		delay *= 2
		if delay > maxPollDelay {
			delay = maxPollDelay
		}
	}

	return apperrors.NewSynthesisTimeout(c.opts.MaxPollAttempts)
}

func (c *JobClient) checkStatus(ctx context.Context, statusURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return false, apperrors.NewSynthesisFailed("job", "building status request", err)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return false, apperrors.NewSynthesisFailed("job", "status check failed", err)
	}
	body, err := drainBody(resp)
	if err != nil {
		return false, apperrors.NewSynthesisFailed("job", "reading status response", err)
	}

	var status jobStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return false, apperrors.NewSynthesisFailed("job", "decoding status response", err)
	}
	return status.IsAudioReady, nil
}

func (c *JobClient) download(ctx context.Context, wavURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wavURL, nil)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("job", "building download request", err)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("job", "download failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperrors.NewSynthesisFailed("job", fmt.Sprintf("download status %d", resp.StatusCode), nil)
	}

	audio, err := drainBody(resp)
	if err != nil {
		return nil, apperrors.NewSynthesisFailed("job", "reading audio body", err)
	}

	c.logger.Debug("Synthesis job downloaded", zap.Int("audio_bytes", len(audio)))
	return audio, nil
}
