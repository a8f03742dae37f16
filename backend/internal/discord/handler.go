package discord

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"osananajimi-bot/backend/internal/pipeline"
	"osananajimi-bot/backend/internal/state"
	"osananajimi-bot/backend/internal/voice"
	apperrors "osananajimi-bot/backend/pkg/errors"
	"go.uber.org/zap"
)

// Fixed wake reply, sent when the sleeping process answers the ping
const wakeReply = "ふ、ふーん。別にアンタが呼んだからって来たんじゃないんだからね！たまたま暇だっただけよ。…ま、少しだけなら相手してあげてもいいわよ。"

// Handler dispatches slash-command interactions into the pipeline and
// the voice manager
type Handler struct {
	pipeline *pipeline.Orchestrator
	voice    *voice.Manager
	tracker  *state.Tracker
	wakeURL  string
	logger   *zap.Logger
}

// NewHandler creates the slash-command handler
func NewHandler(p *pipeline.Orchestrator, v *voice.Manager, t *state.Tracker, wakeURL string, logger *zap.Logger) *Handler {
	return &Handler{
		pipeline: p,
		voice:    v,
		tracker:  t,
		wakeURL:  wakeURL,
		logger:   logger,
	}
}

// Commands returns the application commands the bot registers on startup
func (h *Handler) Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "chat",
			Description: "ツンデレ幼馴染と会話します",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "ツンデレ幼馴染へのメッセージ",
					Required:    true,
				},
			},
		},
		{Name: "join", Description: "ボイスチャットに参加します"},
		{Name: "leave", Description: "ボイスチャットから抜けます"},
		{Name: "wake", Description: "幼馴染を起こす"},
	}
}

// HandleInteraction routes an incoming application command
func (h *Handler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	h.logger.Info("Handling command",
		zap.String("command", name),
		zap.String("guild_id", i.GuildID),
		zap.String("channel_id", i.ChannelID),
	)

	switch name {
	case "chat":
		h.handleChat(s, i)
	case "join":
		h.handleJoin(s, i)
	case "leave":
		h.handleLeave(s, i)
	case "wake":
		h.handleWake(s, i)
	}
}

func (h *Handler) handleChat(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var message string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "message" {
			message = opt.StringValue()
		}
	}
	if message == "" {
		h.respond(s, i, "メッセージが空です。")
		return
	}

	req := pipeline.Request{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Message:   message,
	}
	h.pipeline.HandleChat(context.Background(), req, newInteractionResponder(s, i.Interaction))
}

func (h *Handler) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	channelID, err := h.voice.Join(s, i.GuildID, invokingUserID(i))
	if err != nil {
		var missing *apperrors.ErrVoiceChannelMissing
		if errors.As(err, &missing) {
			h.respond(s, i, "ボイスチャットに接続しているチャネルがありません。")
		} else {
			h.logger.Error("Voice join failed", zap.Error(err))
			h.respond(s, i, "ボイスチャットへの参加に失敗しました。")
		}
		return
	}
	h.respond(s, i, "ボイスチャットに参加しました: <#"+channelID+">")
}

func (h *Handler) handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := h.voice.Leave(i.GuildID); err != nil {
		h.respond(s, i, "ボイスチャットに参加していません。")
		return
	}
	h.respond(s, i, "ボイスチャットから抜けました。")
}

// handleWake pings the hosting platform's URL to start a sleeping bot
// process. When this process is answering, it is by definition online.
func (h *Handler) handleWake(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if h.tracker.Online() {
		h.respond(s, i, "Botはすでにオンラインです！")
		return
	}

	responder := newInteractionResponder(s, i.Interaction)
	if err := responder.Defer(); err != nil {
		h.logger.Error("Failed to defer wake", zap.Error(err))
		return
	}

	if h.wakeURL == "" {
		_ = responder.SendNotice("起動用URLが設定されていません。")
		return
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(h.wakeURL)
	if err != nil {
		_ = responder.SendNotice("ツンデレ幼馴染を起こすのに失敗しました。")
		return
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_ = responder.SendNotice("ツンデレ幼馴染を起こすのに失敗しました。")
		return
	}

	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       replyEmbedTitle,
			Description: wakeReply,
			Color:       replyEmbedColor,
		}},
	})
	if err != nil {
		h.logger.Error("Failed to deliver wake reply", zap.Error(err))
	}
}

func (h *Handler) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		h.logger.Error("Failed to respond to interaction", zap.Error(err))
	}
}

// invokingUserID works for both guild and DM interactions
func invokingUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
