package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"osananajimi-bot/backend/pkg/config"
	apperrors "osananajimi-bot/backend/pkg/errors"
	"osananajimi-bot/backend/pkg/logger"
	"go.uber.org/zap"
)

// ErrorSentinel prefixes every error-tagged reply so the orchestrator can
// tell failures apart from normal model output without inspecting error
// types.
const ErrorSentinel = "⚠️ エラーが発生しました: "

const (
	maxRetries     = 3
	requestTimeout = 60 * time.Second
)

// Reply is the adapter's reply-or-failure value. The adapter never lets
// an error escape its boundary; failures come back as IsError replies.
type Reply struct {
	Text    string
	IsError bool
}

// LLMAdapter handles communication with the chat-completion API through
// an OpenAI-compatible endpoint
type LLMAdapter struct {
	client      *openai.Client
	model       string
	sessionMode string

	// history holds the running conversation in persistent session mode
	mu      sync.Mutex
	history []openai.ChatCompletionMessage

	logger *zap.Logger
}

// NewLLMAdapter creates a new LLM adapter. sessionMode is either
// config.SessionModePersistent (one long-lived chat session across calls)
// or config.SessionModePerCall (a fresh session per call).
func NewLLMAdapter(baseURL, apiKey, modelID, sessionMode string) *LLMAdapter {
	// Some OpenAI-compatible gateways accept any key
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL + "/v1"

	return &LLMAdapter{
		client:      openai.NewClientWithConfig(cfg),
		model:       modelID,
		sessionMode: sessionMode,
		logger:      logger.Named("adapter"),
	}
}

// Chat sends the composed message to the model and returns its reply.
// Transport and API failures are converted into a sentinel-tagged Reply;
// this method never returns an error.
func (a *LLMAdapter) Chat(ctx context.Context, fullMessage string) Reply {
	messages := a.composeMessages(fullMessage)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: 0.7,
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			a.logger.Warn("Retrying model request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return a.failure(apperrors.NewModelCallFailed(a.model, attempt, ctx.Err()))
			}
		}

		resp, err = a.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}

		a.logger.Error("Model request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", a.model),
		)
	}

	if err != nil {
		return a.failure(apperrors.NewModelCallFailed(a.model, maxRetries, err))
	}

	if len(resp.Choices) == 0 {
		return a.failure(apperrors.NewModelCallFailed(a.model, 1, nil))
	}

	text := resp.Choices[0].Message.Content
	a.remember(fullMessage, text)

	a.logger.Debug("Model reply generated",
		zap.String("model", a.model),
		zap.Int("reply_len", len(text)),
	)

	return Reply{Text: text}
}

// Reset drops the persistent conversation history
func (a *LLMAdapter) Reset() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
}

// composeMessages builds the request messages. Persistent mode replays
// the accumulated session; per-call mode sends just this message.
func (a *LLMAdapter) composeMessages(fullMessage string) []openai.ChatCompletionMessage {
	userMsg := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: fullMessage,
	}

	if a.sessionMode != config.SessionModePersistent {
		return []openai.ChatCompletionMessage{userMsg}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	messages := make([]openai.ChatCompletionMessage, 0, len(a.history)+1)
	messages = append(messages, a.history...)
	messages = append(messages, userMsg)
	return messages
}

// remember appends the exchange to the session in persistent mode
func (a *LLMAdapter) remember(userMsg, assistantMsg string) {
	if a.sessionMode != config.SessionModePersistent {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userMsg},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: assistantMsg},
	)
}

func (a *LLMAdapter) failure(err error) Reply {
	return Reply{Text: ErrorSentinel + err.Error(), IsError: true}
}
