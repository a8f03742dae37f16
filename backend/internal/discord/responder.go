package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Reply embed styling, matching the bot's persona card
const (
	replyEmbedTitle = "ツンデレ幼馴染の返答"
	replyEmbedColor = 0x00FF00
)

// interactionResponder delivers pipeline output through an interaction's
// deferred-followup flow.
type interactionResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

func newInteractionResponder(s *discordgo.Session, i *discordgo.Interaction) *interactionResponder {
	return &interactionResponder{session: s, interaction: i}
}

// Defer acknowledges the interaction so the pipeline can take its time
func (r *interactionResponder) Defer() error {
	return r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

// SendReply posts the original message with the model's answer as a card
func (r *interactionResponder) SendReply(userMessage, replyText string) error {
	embed := &discordgo.MessageEmbed{
		Title:       replyEmbedTitle,
		Description: replyText,
		Color:       replyEmbedColor,
	}

	_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
		Content: fmt.Sprintf("**メッセージ**: %s", userMessage),
		Embeds:  []*discordgo.MessageEmbed{embed},
	})
	return err
}

// SendNotice posts a plain status or failure message
func (r *interactionResponder) SendNotice(text string) error {
	_, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
		Content: text,
	})
	return err
}
