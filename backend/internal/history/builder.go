package history

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	apperrors "osananajimi-bot/backend/pkg/errors"
	"osananajimi-bot/backend/pkg/logger"
	"go.uber.org/zap"
)

// MessageFetcher is the slice of discordgo.Session the builder needs.
// *discordgo.Session satisfies it.
type MessageFetcher interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Turn is one line of conversational context
type Turn struct {
	Author  string
	Content string
}

// Builder reconstructs a flat transcript of the most recent channel
// messages for each invocation. Nothing is cached or persisted.
type Builder struct {
	fetcher MessageFetcher
	logger  *zap.Logger
}

// NewBuilder creates a context builder over a Discord session
func NewBuilder(fetcher MessageFetcher) *Builder {
	return &Builder{
		fetcher: fetcher,
		logger:  logger.Named("history"),
	}
}

// Turns fetches up to limit recent messages from the channel and returns
// them in chronological order, oldest first. A fetch failure aborts the
// invocation; there is no retry here.
func (b *Builder) Turns(channelID string, limit int) ([]Turn, error) {
	messages, err := b.fetcher.ChannelMessages(channelID, limit, "", "", "")
	if err != nil {
		return nil, apperrors.NewContextFetchFailed(channelID, err)
	}

	// Discord returns newest first; reverse into presentation order.
	turns := make([]Turn, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		turns = append(turns, Turn{
			Author:  authorName(m),
			Content: flatten(m),
		})
	}

	b.logger.Debug("Built conversation context",
		zap.String("channel_id", channelID),
		zap.Int("requested", limit),
		zap.Int("turns", len(turns)),
	)

	return turns, nil
}

// Transcript renders the fetched turns as one newline-joined string,
// oldest message first.
func (b *Builder) Transcript(channelID string, limit int) (string, error) {
	turns, err := b.Turns(channelID, limit)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Author+": "+t.Content)
	}
	return strings.Join(lines, "\n"), nil
}

// hasReplyCard reports whether a message carries a structured reply card,
// i.e. an embed with both a title and a description (the bot posts its
// own answers this way).
func hasReplyCard(m *discordgo.Message) bool {
	for _, e := range m.Embeds {
		if e.Title != "" && e.Description != "" {
			return true
		}
	}
	return false
}

// flatten concatenates the plain content with any reply-card embed so the
// bot's own earlier answers survive into the transcript as one line.
func flatten(m *discordgo.Message) string {
	if !hasReplyCard(m) {
		return m.Content
	}

	parts := make([]string, 0, 1+len(m.Embeds))
	if m.Content != "" {
		parts = append(parts, m.Content)
	}
	for _, e := range m.Embeds {
		if e.Title != "" && e.Description != "" {
			parts = append(parts, e.Title+" "+e.Description)
		}
	}
	return strings.Join(parts, " ")
}

func authorName(m *discordgo.Message) string {
	if m.Author == nil {
		return "unknown"
	}
	return m.Author.Username
}
