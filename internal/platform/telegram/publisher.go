package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// ChannelSender posts into the broadcast channel.
type ChannelSender interface {
	SendToChannel(ctx context.Context, channel string, text string, opts SendOptions) (MessageRef, error)
}

// Publisher posts approved confessions into the channel with a deep link
// button back to the bot's comment view.
type Publisher struct {
	sender      ChannelSender
	channel     string
	botUsername string
}

func NewPublisher(sender ChannelSender, channel, botUsername string) *Publisher {
	return &Publisher{
		sender:      sender,
		channel:     channel,
		botUsername: strings.TrimPrefix(botUsername, "@"),
	}
}

// CommentLink is the deep link that opens the comment view of confessionID.
func CommentLink(botUsername, confessionID string) string {
	return fmt.Sprintf("https://t.me/%s?start=comment_%s", strings.TrimPrefix(botUsername, "@"), confessionID)
}

// ChannelPost renders the channel message body.
func ChannelPost(text string, number int64) string {
	return fmt.Sprintf("#%d\n\n%s\n\n💬 Comment on this confession:", number, html.EscapeString(strings.TrimSpace(text)))
}

func (p *Publisher) Publish(ctx context.Context, text string, number int64, confessionID string) (MessageRef, error) {
	if p.channel == "" {
		return MessageRef{}, fmt.Errorf("channel is not configured")
	}
	return p.sender.SendToChannel(ctx, p.channel, ChannelPost(text, number), SendOptions{
		ParseMode:      ParseHTML,
		DisablePreview: true,
		InlineKeyboard: [][]Button{{
			{Text: "👁️‍🗨️ View/Add Comments", URL: CommentLink(p.botUsername, confessionID)},
		}},
	})
}
