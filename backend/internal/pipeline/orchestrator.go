// Package pipeline sequences one chat invocation from user message to
// text reply and optional voice narration: gather context, query the
// model, deliver the reply, then synthesize and play it when the guild
// has an active voice connection.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"osananajimi-bot/backend/internal/adapter"
	"osananajimi-bot/backend/internal/prompt"
	"osananajimi-bot/backend/pkg/logger"
	"go.uber.org/zap"
)

// User-visible failure messages
const (
	msgContextFetchFailed = "会話履歴の取得に失敗しました。もう一度試してね。"
	msgSynthesisFailed    = "音声合成に失敗しました。クォータ制限の可能性があります。"
)

// ContextBuilder reconstructs the channel transcript for one invocation
type ContextBuilder interface {
	Transcript(channelID string, limit int) (string, error)
}

// ModelClient produces a reply-or-failure value and never returns an error
type ModelClient interface {
	Chat(ctx context.Context, fullMessage string) adapter.Reply
}

// Synthesizer converts reply text into audio bytes
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// VoiceController is the playback capability the orchestrator drives
type VoiceController interface {
	Active(guildID string) bool
	Play(guildID string, audio []byte) error
	PlayFallback(guildID string) error
}

// Responder delivers results back to the caller that invoked the pipeline
type Responder interface {
	// Defer acknowledges the invocation as a long-running operation
	Defer() error
	// SendReply delivers the model's answer for the original message
	SendReply(userMessage, replyText string) error
	// SendNotice delivers a plain status or failure message
	SendNotice(text string) error
}

// Request is one user-triggered chat invocation
type Request struct {
	GuildID   string
	ChannelID string
	Message   string
}

// Orchestrator wires the pipeline's collaborators together
type Orchestrator struct {
	history ContextBuilder
	llm     ModelClient
	synth   Synthesizer
	voice   VoiceController

	templatePath  string
	historyWindow int
	loadTemplate  func(path string) string

	logger *zap.Logger
}

// NewOrchestrator creates the response pipeline
func NewOrchestrator(history ContextBuilder, llm ModelClient, synth Synthesizer, voice VoiceController, templatePath string, historyWindow int) *Orchestrator {
	return &Orchestrator{
		history:       history,
		llm:           llm,
		synth:         synth,
		voice:         voice,
		templatePath:  templatePath,
		historyWindow: historyWindow,
		loadTemplate:  prompt.Load,
		logger:        logger.Named("pipeline"),
	}
}

// HandleChat runs one invocation start to terminal state. Every failure
// either reaches the caller as a message or is intentionally skipped (no
// voice connection); nothing is retried across states and nothing panics
// out of the handler.
func (o *Orchestrator) HandleChat(ctx context.Context, req Request, r Responder) {
	log := o.logger.With(
		zap.String("invocation_id", uuid.NewString()),
		zap.String("guild_id", req.GuildID),
		zap.String("channel_id", req.ChannelID),
	)

	if err := r.Defer(); err != nil {
		log.Error("Failed to acknowledge invocation", zap.Error(err))
		return
	}

	// Context gathering
	transcript, err := o.history.Transcript(req.ChannelID, o.historyWindow)
	if err != nil {
		log.Error("Context fetch failed", zap.Error(err))
		o.notify(r, msgContextFetchFailed, log)
		return
	}

	template := o.loadTemplate(o.templatePath)
	fullMessage := fmt.Sprintf("直前の会話履歴%s\n\nプロンプト:%s%s", transcript, template, req.Message)

	// Model querying. Error-tagged replies go through the same embed as
	// normal ones so the user sees the marker inline, but they skip synthesis.
	reply := o.llm.Chat(ctx, fullMessage)
	if err := r.SendReply(req.Message, reply.Text); err != nil {
		log.Error("Failed to deliver reply", zap.Error(err))
		return
	}
	if reply.IsError {
		log.Warn("Model returned error-tagged reply")
		return
	}

	// Text-only success unless the guild has a live voice connection
	if !o.voice.Active(req.GuildID) {
		log.Debug("No active voice connection, text-only reply")
		return
	}

	// Speech synthesis
	audio, err := o.synth.Synthesize(ctx, reply.Text)
	if err != nil {
		log.Warn("Speech synthesis failed", zap.Error(err))
		o.notify(r, msgSynthesisFailed, log)
		if err := o.voice.PlayFallback(req.GuildID); err != nil {
			log.Error("Fallback clip playback failed", zap.Error(err))
		}
		return
	}

	// Playback
	if err := o.voice.Play(req.GuildID, audio); err != nil {
		log.Error("Playback failed", zap.Error(err))
		return
	}

	log.Info("Invocation complete", zap.Int("audio_bytes", len(audio)))
}

func (o *Orchestrator) notify(r Responder, text string, log *zap.Logger) {
	if err := r.SendNotice(text); err != nil {
		log.Error("Failed to deliver notice", zap.Error(err))
	}
}
