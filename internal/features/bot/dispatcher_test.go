package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confession-bot-backend/internal/common/config"
	"confession-bot-backend/internal/features/abuse"
	"confession-bot-backend/internal/features/confession/models"
	confredis "confession-bot-backend/internal/features/confession/repository/redis"
	confservice "confession-bot-backend/internal/features/confession/service"
	"confession-bot-backend/internal/features/conversation"
	"confession-bot-backend/internal/features/sequence"
	userredis "confession-bot-backend/internal/features/user/repository/redis"
	userservice "confession-bot-backend/internal/features/user/service"
	"confession-bot-backend/internal/platform/redis/redistest"
	"confession-bot-backend/internal/platform/telegram"
)

const adminID int64 = 900

type message struct {
	chatID int64
	text   string
	opts   telegram.SendOptions
}

type fakeTransport struct {
	mu      sync.Mutex
	failFor map[int64]bool
	sent    []message
	answers map[string][]telegram.AnswerOptions
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failFor: map[int64]bool{}, answers: map[string][]telegram.AnswerOptions{}}
}

func (f *fakeTransport) SendMessage(_ context.Context, chatID int64, text string, opts telegram.SendOptions) (telegram.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[chatID] {
		return telegram.MessageRef{}, errors.New("Forbidden: bot was blocked by the user")
	}
	f.sent = append(f.sent, message{chatID, text, opts})
	return telegram.MessageRef{ChatID: chatID, MessageID: len(f.sent)}, nil
}

func (f *fakeTransport) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := f.SendMessage(ctx, chatID, text, telegram.SendOptions{ParseMode: telegram.ParseMarkdown})
	return err
}

func (f *fakeTransport) AnswerInteraction(_ context.Context, id string, opts telegram.AnswerOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[id] = append(f.answers[id], opts)
	return nil
}

func (f *fakeTransport) last(chatID int64) message {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].chatID == chatID {
			return f.sent[i]
		}
	}
	return message{}
}

func (f *fakeTransport) all(chatID int64) []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message
	for _, m := range f.sent {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

type fakePublisher struct {
	mu    sync.Mutex
	posts int
}

func (p *fakePublisher) Publish(context.Context, string, int64, string) (telegram.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts++
	return telegram.MessageRef{ChatID: -100, MessageID: p.posts}, nil
}

type fixture struct {
	t         *testing.T
	d         *Dispatcher
	tg        *fakeTransport
	flows     *conversation.Store
	users     *userservice.Service
	lc        *confservice.Lifecycle
	admins    *config.AdminSet
	publisher *fakePublisher
	seq       int
}

func newFixture(t *testing.T) *fixture {
	rdb, _ := redistest.New(t)
	tg := newFakeTransport()
	pub := &fakePublisher{}
	admins := config.NewAdminSet([]int64{adminID})
	users := userservice.NewService(userredis.NewUserRepository(rdb), tg)
	lc := confservice.NewLifecycle(
		confredis.NewConfessionRepository(rdb),
		users,
		abuse.NewGuard(rdb),
		sequence.NewAllocator(rdb),
		pub,
		tg,
		admins,
		confservice.Limits{ConfessionCooldown: time.Minute, CommentWindow: 30 * time.Second, CommentMax: 3, BroadcastConcurrency: 2},
	)
	flows := conversation.NewStore(rdb, time.Hour)
	d := NewDispatcher(tg, flows, users, lc, admins, Options{BotUsername: "confess_bot", Channel: "@confessions", BroadcastConcurrency: 2})
	return &fixture{t: t, d: d, tg: tg, flows: flows, users: users, lc: lc, admins: admins, publisher: pub}
}

func (f *fixture) text(userID int64, text string) {
	f.t.Helper()
	require.NoError(f.t, f.d.HandleText(context.Background(), TextEvent{From: Sender{ID: userID}, ChatID: userID, Text: text}))
}

func (f *fixture) press(userID int64, data string) telegram.AnswerOptions {
	f.t.Helper()
	f.seq++
	id := "cb" + strings.Repeat("x", f.seq)
	require.NoError(f.t, f.d.HandleInteraction(context.Background(), InteractionEvent{ID: id, From: Sender{ID: userID}, ChatID: userID, Data: data}))
	f.tg.mu.Lock()
	answers := f.tg.answers[id]
	f.tg.mu.Unlock()
	require.Len(f.t, answers, 1, "every interaction is answered exactly once")
	return answers[0]
}

func (f *fixture) flow(userID int64) conversation.Flow {
	f.t.Helper()
	fl, err := f.flows.Get(context.Background(), userID)
	require.NoError(f.t, err)
	return fl
}

// register walks a new user through /start and the username flow.
func (f *fixture) register(userID int64, name string) {
	f.t.Helper()
	f.text(userID, "/start")
	f.text(userID, name)
	require.Nil(f.t, f.flow(userID))
}

func (f *fixture) postedConfession(author int64, text string) *models.Confession {
	f.t.Helper()
	f.press(author, "send_confession")
	f.text(author, text)
	pending, err := f.lc.Pending(context.Background(), 10)
	require.NoError(f.t, err)
	require.NotEmpty(f.t, pending)
	c := pending[len(pending)-1]
	f.press(adminID, "approve_"+c.ID)
	got, err := f.lc.Get(context.Background(), c.ID)
	require.NoError(f.t, err)
	require.Equal(f.t, models.StatusPosted, got.Status)
	return got
}

func TestUsernameFlow(t *testing.T) {
	f := newFixture(t)

	f.text(1, "/start")
	assert.Equal(t, conversation.AwaitingUsername{OriginChatID: 1}, f.flow(1))
	assert.Contains(t, f.tg.last(1).text, "set your display name")

	for _, bad := range []string{"ab", "this_name_is_way_too_long_12", "bad name!", "Anonymous"} {
		f.text(1, bad)
		assert.IsType(t, conversation.AwaitingUsername{}, f.flow(1), "input %q keeps the flow", bad)
		assert.Contains(t, f.tg.all(1)[len(f.tg.all(1))-1].text, "Set Display Name")
	}

	f.text(1, "Valid_Name1")
	assert.Nil(t, f.flow(1))
	u, err := f.users.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Valid_Name1", u.Username)

	msgs := f.tg.all(1)
	assert.Contains(t, msgs[len(msgs)-2].text, "Display name updated to Valid_Name1")
	assert.Equal(t, mainKeyboard, msgs[len(msgs)-1].opts.ReplyKeyboard)
}

func TestUsernameTakenKeepsFlow(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Night_Owl")

	f.text(2, "/start")
	f.text(2, "night_owl")
	assert.IsType(t, conversation.AwaitingUsername{}, f.flow(2))
	assert.Contains(t, f.tg.last(2).text, "already taken")
}

func TestConfessionSubmissionAndApproval(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")

	assert.Empty(t, f.press(1, "send_confession").Text)
	assert.Equal(t, conversation.AwaitingConfession{}, f.flow(1))

	f.text(1, "tiny")
	assert.Equal(t, conversation.AwaitingConfession{}, f.flow(1), "too short re-prompts")
	assert.Contains(t, f.tg.last(1).text, "Send Your Confession")

	f.text(1, "I still sleep with a night light #secret")
	assert.Nil(t, f.flow(1))
	assert.Contains(t, f.tg.last(1).text, "Confession #1 Submitted")

	review := f.tg.last(adminID)
	require.NotEmpty(t, review.opts.InlineKeyboard)
	approveKey := review.opts.InlineKeyboard[0][0].Data
	require.True(t, strings.HasPrefix(approveKey, "approve_"))

	assert.Equal(t, "❌ Access denied", f.press(1, approveKey).Text)
	assert.Zero(t, f.publisher.posts)

	assert.Equal(t, "✅ Confession approved!", f.press(adminID, approveKey).Text)
	assert.Contains(t, f.press(adminID, approveKey).Text, "already posted")
	assert.Equal(t, 1, f.publisher.posts)

	// cooldown applies to the next attempt
	f.press(1, "send_confession")
	assert.Nil(t, f.flow(1))
	assert.Contains(t, f.tg.last(1).text, "Please wait")
}

func TestRejectionFlowRechecksAdmin(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")
	f.press(1, "send_confession")
	f.text(1, "something the admins will not like")
	pending, err := f.lc.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	assert.Equal(t, "Please provide rejection reason", f.press(adminID, "reject_"+id).Text)
	assert.Equal(t, conversation.AwaitingRejectionReason{ConfessionID: id}, f.flow(adminID))

	f.admins.Replace(nil)
	f.text(adminID, "off topic")
	assert.Nil(t, f.flow(adminID))
	assert.Contains(t, f.tg.last(adminID).text, "Access denied")

	c, err := f.lc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, c.Status)

	f.admins.Replace([]int64{adminID})
	f.press(adminID, "reject_"+id)
	f.text(adminID, "   ")
	assert.IsType(t, conversation.AwaitingRejectionReason{}, f.flow(adminID), "blank text is ignored")
	f.text(adminID, "off topic")
	assert.Nil(t, f.flow(adminID))
	assert.Contains(t, f.tg.last(adminID).text, "Confession #1 rejected")
	assert.Contains(t, f.tg.last(1).text, "off topic")

	assert.Contains(t, f.press(adminID, "reject_"+id).Text, "already rejected")
}

func TestCommentFlowFromDeepLink(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")
	f.register(2, "Reader")
	c := f.postedConfession(1, "I talk to my plants every morning")

	f.text(2, "/start comment_"+c.ID)
	preview := f.tg.last(2)
	assert.Contains(t, preview.text, "Comments for Confession #1")
	assert.Contains(t, preview.text, "No comments yet")
	assert.Equal(t, "add_comment_"+c.ID, preview.opts.InlineKeyboard[0][0].Data)

	f.press(2, "add_comment_"+c.ID)
	assert.Equal(t, conversation.AwaitingComment{ConfessionID: c.ID}, f.flow(2))

	f.text(2, "hi")
	assert.IsType(t, conversation.AwaitingComment{}, f.flow(2))

	f.text(2, "same, they listen better")
	assert.Nil(t, f.flow(2))
	page := f.tg.last(2)
	assert.Contains(t, page.text, "same, they listen better")
	assert.Equal(t, "follow_author_"+c.ID, page.opts.InlineKeyboard[0][1].Data)
	assert.Contains(t, f.tg.last(1).text, "New Comment")

	assert.Equal(t, "✅ Followed author!", f.press(2, "follow_author_"+c.ID).Text)
	ok, err := f.users.IsFollowing(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, f.press(2, "follow_author_"+c.ID).Text, "already following")
}

func TestRateLimitedCommentKeepsFlow(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")
	f.register(2, "Reader")
	c := f.postedConfession(1, "I alphabetise my spice rack twice a year")

	for i := 0; i < 3; i++ {
		f.press(2, "add_comment_"+c.ID)
		f.text(2, fmt.Sprintf("comment number %d", i+1))
		require.Nil(t, f.flow(2))
	}

	f.press(2, "add_comment_"+c.ID)
	f.text(2, "one comment too many")
	assert.Contains(t, f.tg.last(2).text, "Too many comments")
	assert.Equal(t, conversation.AwaitingComment{ConfessionID: c.ID}, f.flow(2), "the flow waits out the limit")
}

func TestCommentsPagination(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")
	c := f.postedConfession(1, "pagination needs a confession too")
	for i, uid := range []int64{11, 12, 13, 14, 15, 16} {
		_, err := f.users.GetOrCreate(context.Background(), uid, "", "")
		require.NoError(t, err)
		_, err = f.lc.AddComment(context.Background(), uid, c.ID, "comment number "+string(rune('a'+i)))
		require.NoError(t, err)
	}

	f.press(1, "comments_page_"+c.ID+"_9")
	last := f.tg.last(1)
	assert.Contains(t, last.text, "(6-6 of 6)")
	nav := last.opts.InlineKeyboard[1]
	assert.Equal(t, "comments_page_"+c.ID+"_1", nav[0].Data)
	assert.Equal(t, "2/2", nav[1].Text)
}

func TestFlowOnMissingConfessionIsCleared(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")
	require.NoError(t, f.flows.Set(context.Background(), 1, conversation.AwaitingComment{ConfessionID: "confess_9_9"}))

	f.text(1, "hello there")
	assert.Nil(t, f.flow(1))
	assert.Contains(t, f.tg.last(1).text, "not found")
}

func TestUnknownInteractionIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	answer := f.press(1, "definitely_not_a_button")
	assert.Empty(t, answer.Text)
	assert.Empty(t, f.tg.all(1))

	answer = f.press(1, "approve_confess_1_1")
	assert.Equal(t, "❌ Access denied", answer.Text)
}

func TestMenuFallback(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")

	f.text(1, "what is this")
	assert.Equal(t, mainKeyboard, f.tg.last(1).opts.ReplyKeyboard)

	f.text(1, LabelRules)
	assert.Contains(t, f.tg.last(1).text, "Confession Rules")

	f.text(1, "/unknown")
	assert.Equal(t, mainKeyboard, f.tg.last(1).opts.ReplyKeyboard)
}

func TestCancelLeavesFlow(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")
	f.press(1, "set_bio")
	assert.Equal(t, conversation.AwaitingBio{}, f.flow(1))

	f.text(1, "/cancel")
	assert.Nil(t, f.flow(1))
}

func TestAdminMessageUserFlow(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")

	f.press(adminID, "message_user")
	f.text(adminID, "not-a-number")
	assert.Equal(t, conversation.AwaitingMessageTarget{}, f.flow(adminID))

	f.text(adminID, "1")
	assert.Equal(t, conversation.AwaitingMessageBody{TargetUserID: 1}, f.flow(adminID))

	f.text(adminID, "please keep it civil")
	assert.Nil(t, f.flow(adminID))
	assert.Contains(t, f.tg.last(1).text, "Message from Admin")
	assert.Contains(t, f.tg.last(adminID).text, "Message sent to user 1")
}

func TestBlockFlowDisablesWrites(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")

	f.press(adminID, "block_user")
	for _, bad := range []string{"abc", "-1"} {
		f.text(adminID, bad)
		assert.Equal(t, conversation.AwaitingBlockTarget{}, f.flow(adminID), "input %q re-prompts", bad)
		assert.Contains(t, f.tg.last(adminID).text, "Invalid user ID")
	}
	f.text(adminID, "1")
	assert.Nil(t, f.flow(adminID))
	assert.Contains(t, f.tg.last(adminID).text, "Writer has been blocked")

	assert.Contains(t, f.press(1, "send_confession").Text, "blocked")
	assert.Nil(t, f.flow(1))

	f.text(1, "/start")
	assert.Contains(t, f.tg.last(1).text, "blocked")

	f.press(adminID, "toggle_block_1")
	assert.Contains(t, f.tg.last(adminID).text, "unblocked")
}

func TestBroadcastCountsFailures(t *testing.T) {
	f := newFixture(t)
	for _, id := range []int64{1, 2, 3, 4} {
		f.register(id, "user_"+string(rune('a'+id)))
	}
	_, err := f.users.Block(context.Background(), 4)
	require.NoError(t, err)
	f.tg.failFor[2] = true

	f.press(adminID, "broadcast_message")
	f.text(adminID, "maintenance tonight")
	assert.Nil(t, f.flow(adminID))

	report := f.tg.last(adminID).text
	// admin plus users 1 and 3 succeed, user 2 fails, user 4 is blocked
	assert.Contains(t, report, "Success: 3 users")
	assert.Contains(t, report, "Failed: 1 users")
	assert.Contains(t, f.tg.last(3).text, "maintenance tonight")
	assert.NotContains(t, f.tg.last(4).text, "maintenance tonight")
}

func TestNotificationToggle(t *testing.T) {
	f := newFixture(t)
	f.register(1, "Writer")

	assert.Equal(t, "New Comments: OFF", f.press(1, "toggle_comment_notif").Text)
	u, err := f.users.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, u.Notifications.NewComment)

	assert.Equal(t, "✅ Comments set to Followers Only", f.press(1, "comment_followers").Text)
}
