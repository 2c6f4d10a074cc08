package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	channel string
	text    string
	opts    SendOptions
}

func (r *recordingSender) SendToChannel(_ context.Context, channel, text string, opts SendOptions) (MessageRef, error) {
	r.channel, r.text, r.opts = channel, text, opts
	return MessageRef{ChatID: -100, MessageID: 7}, nil
}

func TestPublish(t *testing.T) {
	rec := &recordingSender{}
	p := NewPublisher(rec, "@confessions", "@ConfessBot")

	ref, err := p.Publish(context.Background(), " I ate the last cake & ran ", 12, "confess_1_99")
	require.NoError(t, err)
	assert.Equal(t, 7, ref.MessageID)

	assert.Equal(t, "@confessions", rec.channel)
	assert.Equal(t, "#12\n\nI ate the last cake &amp; ran\n\n💬 Comment on this confession:", rec.text)
	assert.Equal(t, ParseHTML, rec.opts.ParseMode)
	require.Len(t, rec.opts.InlineKeyboard, 1)
	assert.Equal(t, "https://t.me/ConfessBot?start=comment_confess_1_99", rec.opts.InlineKeyboard[0][0].URL)
}

func TestPublishWithoutChannel(t *testing.T) {
	p := NewPublisher(&recordingSender{}, "", "bot")
	_, err := p.Publish(context.Background(), "text", 1, "id")
	assert.Error(t, err)
}

func TestInlineMarkup(t *testing.T) {
	m := InlineMarkup([][]Button{
		{{Text: "A", Data: "approve_x"}, {Text: "Link", URL: "https://t.me/x"}},
	})
	require.Len(t, m.InlineKeyboard, 1)
	require.Len(t, m.InlineKeyboard[0], 2)
	require.NotNil(t, m.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "approve_x", *m.InlineKeyboard[0][0].CallbackData)
	require.NotNil(t, m.InlineKeyboard[0][1].URL)
	assert.Equal(t, "https://t.me/x", *m.InlineKeyboard[0][1].URL)
}
