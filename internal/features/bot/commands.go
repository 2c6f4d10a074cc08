package bot

import (
	"context"
	"strings"

	"confession-bot-backend/internal/common/validation"
	"confession-bot-backend/internal/features/conversation"
)

// Reply keyboard labels of the main menu.
const (
	LabelSendConfession = "📝 Send Confession"
	LabelMyProfile      = "👤 My Profile"
	LabelTrending       = "🔥 Trending"
	LabelPromote        = "📢 Promote Bot"
	LabelHashtags       = "🏷️ Hashtags"
	LabelBestCommenters = "🏆 Best Commenters"
	LabelSettings       = "⚙️ Settings"
	LabelAbout          = "ℹ️ About Us"
	LabelBrowseUsers    = "🔍 Browse Users"
	LabelRules          = "📌 Rules"
)

var mainKeyboard = [][]string{
	{LabelSendConfession, LabelMyProfile},
	{LabelTrending, LabelPromote},
	{LabelHashtags, LabelBestCommenters},
	{LabelSettings, LabelAbout},
	{LabelBrowseUsers, LabelRules},
}

const (
	cmdStart  = "/start"
	cmdHelp   = "/help"
	cmdAdmin  = "/admin"
	cmdCancel = "/cancel"
)

// commands resolved before an open flow sees the text
var bypassFlow = map[string]bool{
	cmdStart:  true,
	cmdHelp:   true,
	cmdAdmin:  true,
	cmdCancel: true,
}

// splitCommand returns the lowercased command without any @bot suffix and
// its first argument, or empty strings for non-command text.
func splitCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	fields := strings.Fields(text)
	cmd = strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	return cmd, arg
}

func (d *Dispatcher) command(ctx context.Context, ev TextEvent, cmd, arg string) error {
	switch cmd {
	case cmdStart:
		return d.start(ctx, ev, arg)
	case cmdHelp:
		return d.showHelp(ctx, ev.From.ID, ev.ChatID)
	case cmdAdmin:
		if !d.admins.IsAdmin(ev.From.ID) {
			d.say(ctx, ev.ChatID, "❌ Access denied. Admin only command.")
			return nil
		}
		return d.showAdmin(ctx, ev.ChatID)
	case cmdCancel:
		if err := d.clearFlow(ctx, ev.From.ID); err != nil {
			return err
		}
		d.say(ctx, ev.ChatID, "✖️ Cancelled.")
	}
	return d.showMainMenu(ctx, ev.From.ID, ev.ChatID)
}

func (d *Dispatcher) menu(ctx context.Context, ev TextEvent) error {
	userID, chatID := ev.From.ID, ev.ChatID
	switch strings.TrimSpace(ev.Text) {
	case LabelSendConfession:
		return d.beginConfession(ctx, userID, chatID)
	case LabelMyProfile:
		return d.showProfile(ctx, userID, chatID)
	case LabelTrending:
		return d.showTrending(ctx, chatID)
	case LabelPromote:
		return d.showPromote(ctx, chatID)
	case LabelHashtags:
		return d.showHashtags(ctx, chatID)
	case LabelBestCommenters:
		return d.showBestCommenters(ctx, chatID)
	case LabelBrowseUsers:
		return d.showBrowseUsers(ctx, userID, chatID)
	case LabelAbout:
		return d.showAbout(ctx, chatID)
	case LabelRules:
		return d.showRules(ctx, chatID)
	case LabelSettings:
		return d.showSettings(ctx, chatID)
	}
	return d.showMainMenu(ctx, userID, chatID)
}

// start handles /start, including the comment_<id> and comments_<id> deep
// links of channel posts.
func (d *Dispatcher) start(ctx context.Context, ev TextEvent, arg string) error {
	userID, chatID := ev.From.ID, ev.ChatID
	switch {
	case strings.HasPrefix(arg, "comment_"):
		return d.showPreview(ctx, userID, chatID, strings.TrimPrefix(arg, "comment_"))
	case strings.HasPrefix(arg, "comments_"):
		return d.showComments(ctx, userID, chatID, strings.TrimPrefix(arg, "comments_"), 1)
	}

	user, err := d.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		d.say(ctx, chatID, textBlocked)
		return nil
	}
	if validation.IsPlaceholderUsername(user.Username) {
		if err := d.flows.Set(ctx, userID, conversation.AwaitingUsername{OriginChatID: chatID}); err != nil {
			return err
		}
		d.say(ctx, chatID, "🤫 *Welcome to the Confession Bot!*\n\n"+
			"First, please set your display name:\n\n"+
			"Enter your desired name (3-20 characters, letters/numbers/underscores only):")
		return nil
	}

	flow, err := d.flows.Get(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := flow.(conversation.AwaitingConfession); ok {
		d.say(ctx, chatID, promptFor(flow))
		return nil
	}

	d.say(ctx, chatID, "🤫 *Welcome back, "+user.Username+"!*\n\n"+
		"Send me your confession and it will be submitted anonymously for admin approval.\n\n"+
		"Your identity will never be revealed!")
	return d.showMainMenu(ctx, userID, chatID)
}

// beginConfession opens the awaiting-confession flow unless the user is
// blocked or still cooling down.
func (d *Dispatcher) beginConfession(ctx context.Context, userID, chatID int64) error {
	if _, err := d.users.RequireActive(ctx, userID); err != nil {
		return err
	}
	wait, err := d.confessions.SubmitCooldown(ctx, userID)
	if err != nil {
		return err
	}
	if wait > 0 {
		d.say(ctx, chatID, cooldownText(wait))
		return nil
	}
	return d.startFlow(ctx, userID, chatID, conversation.AwaitingConfession{})
}
