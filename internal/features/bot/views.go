package bot

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	apperrors "confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/common/validation"
	"confession-bot-backend/internal/features/confession/models"
	usermodels "confession-bot-backend/internal/features/user/models"
	"confession-bot-backend/internal/platform/telegram"
)

const (
	textBlocked        = "❌ Your account has been blocked by admin."
	textGenericFailure = "❌ Something went wrong. Please try again."

	listLimit      = 10
	socialLimit    = 20
	trendingLimit  = 5
	previewComment = 3
)

func cooldownText(wait time.Duration) string {
	return fmt.Sprintf("⏳ Please wait %d seconds before submitting another confession.", waitSeconds(wait))
}

func onOff(v bool) string {
	if v {
		return "✅ ON"
	}
	return "❌ OFF"
}

func check(v bool) string {
	if v {
		return "✅"
	}
	return "❌"
}

func levelLine(comments int64) string {
	l := usermodels.LevelFor(comments)
	return fmt.Sprintf("%s %s (%d comments)", l.Symbol, l.Name, comments)
}

var backToMenu = []telegram.Button{{Text: "🔙 Back to Menu", Data: key(VerbMainMenu)}}

var backToProfile = []telegram.Button{{Text: "🔙 Back to Profile", Data: key(VerbMyProfile)}}

func (d *Dispatcher) showMainMenu(ctx context.Context, userID, chatID int64) error {
	u, err := d.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	name := u.Username
	if validation.IsPlaceholderUsername(name) {
		name = "Not set"
	}
	text := fmt.Sprintf("🤫 *Confession Bot*\n\n"+
		"👤 Profile: %s\n"+
		"⭐ Reputation: %d\n"+
		"🔥 Streak: %d days\n"+
		"🏆 Level: %s\n\n"+
		"Choose an option below:",
		name, u.Reputation, u.DailyStreak, levelLine(u.TotalComments))
	d.sendMenu(ctx, chatID, text, mainKeyboard)
	return nil
}

func (d *Dispatcher) showHelp(ctx context.Context, userID, chatID int64) error {
	var b strings.Builder
	b.WriteString("ℹ️ *Confession Bot Help*\n\n")
	b.WriteString("*How to Use:*\n")
	b.WriteString("1. Tap \"" + LabelSendConfession + "\" to submit anonymously\n")
	b.WriteString("2. Wait for admin approval\n")
	b.WriteString("3. View approved confessions in the channel\n")
	b.WriteString("4. Comment on confessions and build reputation\n\n")
	b.WriteString("*Commands:*\n")
	b.WriteString("/start - Start the bot\n")
	b.WriteString("/help - Show this help\n")
	b.WriteString("/cancel - Abort the current step\n")
	if d.admins.IsAdmin(userID) {
		b.WriteString("\n*⚡ Admin Commands:*\n/admin - Admin panel\n")
	}
	d.send(ctx, chatID, b.String(), [][]telegram.Button{
		{{Text: "📝 Send Confession", Data: key(VerbSendConfession)}, {Text: "👤 My Profile", Data: key(VerbMyProfile)}},
		backToMenu,
	})
	return nil
}

func (d *Dispatcher) showProfile(ctx context.Context, userID, chatID int64) error {
	u, err := d.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	achievements, err := d.users.Achievements(ctx, userID)
	if err != nil {
		return err
	}
	bio := u.Bio
	if bio == "" {
		bio = "Not set"
	}
	text := fmt.Sprintf("👤 *My Profile*\n\n"+
		"*Display Name:* %s\n"+
		"*Level:* %s\n"+
		"*Bio:* %s\n"+
		"*Followers:* %d\n"+
		"*Following:* %d\n"+
		"*Total Confessions:* %d\n"+
		"*Reputation:* %d\n"+
		"*Achievements:* %d\n"+
		"*Daily Streak:* %d days\n"+
		"*Member Since:* %s\n",
		u.Username, levelLine(u.TotalComments), bio, u.FollowerCount, u.FollowingCount,
		u.TotalConfessions, u.Reputation, len(achievements), u.DailyStreak, u.JoinedAt.Format(time.DateOnly))
	d.send(ctx, chatID, text, [][]telegram.Button{
		{{Text: "📝 Set Username", Data: key(VerbSetUsername)}, {Text: "📝 Set Bio", Data: key(VerbSetBio)}},
		{{Text: "🔒 Comment Settings", Data: key(VerbCommentSettings)}, {Text: "🔔 Notification Settings", Data: key(VerbNotificationSettings)}},
		{{Text: "📝 My Confessions", Data: key(VerbMyConfessions)}, {Text: "👥 Followers", Data: key(VerbShowFollowers)}},
		{{Text: "👥 Following", Data: key(VerbShowFollowing)}, {Text: "🏆 View Achievements", Data: key(VerbAchievements)}},
		{{Text: "🏆 View Rankings", Data: key(VerbRankings)}, {Text: "🔍 Browse Users", Data: key(VerbBrowseUsers)}},
		backToMenu,
	})
	return nil
}

// showPublicProfile renders targetID as seen by viewerID.
func (d *Dispatcher) showPublicProfile(ctx context.Context, viewerID, chatID, targetID int64) error {
	u, err := d.users.Get(ctx, targetID)
	if err != nil {
		return err
	}
	achievements, err := d.users.Achievements(ctx, targetID)
	if err != nil {
		return err
	}
	bio := u.Bio
	if bio == "" {
		bio = "No bio"
	}
	text := fmt.Sprintf("👤 *Profile*\n\n"+
		"*Display Name:* %s\n"+
		"*Level:* %s\n"+
		"*Bio:* %s\n"+
		"*Followers:* %d\n"+
		"*Following:* %d\n"+
		"*Confessions:* %d\n"+
		"*Reputation:* %d⭐\n"+
		"*Achievements:* %d\n"+
		"*Member Since:* %s\n",
		u.Username, levelLine(u.TotalComments), bio, u.FollowerCount, u.FollowingCount,
		u.TotalConfessions, u.Reputation, len(achievements), u.JoinedAt.Format(time.DateOnly))

	var rows [][]telegram.Button
	if viewerID != targetID {
		following, err := d.users.IsFollowing(ctx, viewerID, targetID)
		if err != nil {
			return err
		}
		if following {
			rows = append(rows, []telegram.Button{{Text: "✅ Following", Data: userKey(VerbUnfollow, targetID)}})
		} else {
			rows = append(rows, []telegram.Button{{Text: "➕ Follow", Data: userKey(VerbFollow, targetID)}})
		}
	}
	rows = append(rows, backToMenu)
	d.send(ctx, chatID, text, rows)
	return nil
}

func (d *Dispatcher) showMyConfessions(ctx context.Context, userID, chatID int64) error {
	list, err := d.confessions.ByAuthor(ctx, userID, listLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		d.send(ctx, chatID, "📝 *My Confessions*\n\nYou haven't submitted any confessions yet.", [][]telegram.Button{
			{{Text: "📝 Send Confession", Data: key(VerbSendConfession)}},
			backToProfile,
		})
		return nil
	}
	var b strings.Builder
	b.WriteString("📝 *My Confessions*\n\n")
	for _, c := range list {
		fmt.Fprintf(&b, "#%d - %s\n\"%s\"\nComments: %d | Likes: %d\n\n",
			c.Number, capitalize(string(c.Status)), validation.Truncate(c.Text, 50), c.CommentCount, c.LikeCount)
	}
	d.send(ctx, chatID, b.String(), [][]telegram.Button{
		{{Text: "📝 Send New", Data: key(VerbSendConfession)}, {Text: "🔄 Refresh", Data: key(VerbMyConfessions)}},
		backToProfile,
	})
	return nil
}

func (d *Dispatcher) showTrending(ctx context.Context, chatID int64) error {
	list, err := d.confessions.Trending(ctx, trendingLimit)
	if err != nil {
		return err
	}
	rows := [][]telegram.Button{
		{{Text: "📝 Send Confession", Data: key(VerbSendConfession)}, {Text: "🔍 Browse Users", Data: key(VerbBrowseUsers)}},
		backToMenu,
	}
	if len(list) == 0 {
		d.send(ctx, chatID, "🔥 *Trending Confessions*\n\nNo trending confessions yet. Be the first to submit one!", rows)
		return nil
	}
	var b strings.Builder
	b.WriteString("🔥 *Trending Confessions*\n\n")
	for i, t := range list {
		fmt.Fprintf(&b, "%d. #%d\n   %s\n   Comments: %d\n\n", i+1, t.Number, validation.Truncate(t.Text, 100), t.Comments)
	}
	d.send(ctx, chatID, b.String(), rows)
	return nil
}

func (d *Dispatcher) showHashtags(ctx context.Context, chatID int64) error {
	tags, err := d.confessions.TopHashtags(ctx, listLimit)
	if err != nil {
		return err
	}
	rows := [][]telegram.Button{
		{{Text: "📝 Send Confession", Data: key(VerbSendConfession)}, {Text: "🔍 Browse Users", Data: key(VerbBrowseUsers)}},
		backToMenu,
	}
	if len(tags) == 0 {
		d.send(ctx, chatID, "🏷️ *Popular Hashtags*\n\nNo hashtags found yet. Use #hashtags in your confessions!", rows)
		return nil
	}
	var b strings.Builder
	b.WriteString("🏷️ *Popular Hashtags*\n\n")
	for i, t := range tags {
		fmt.Fprintf(&b, "%d. %s (%d uses)\n", i+1, t.Tag, t.Count)
	}
	d.send(ctx, chatID, b.String(), rows)
	return nil
}

func (d *Dispatcher) showBestCommenters(ctx context.Context, chatID int64) error {
	top, err := d.users.TopCommenters(ctx, listLimit)
	if err != nil {
		return err
	}
	rows := [][]telegram.Button{
		{{Text: "🔍 View My Rank", Data: key(VerbMyRank)}},
		{{Text: "📝 Add Comment", Data: key(VerbCommentHint)}, {Text: "🔙 Back to Menu", Data: key(VerbMainMenu)}},
	}
	if len(top) == 0 {
		d.send(ctx, chatID, "🏆 *Best Commenters*\n\nNo comments yet. Be the first to comment!", rows)
		return nil
	}
	var b strings.Builder
	b.WriteString("🏆 *Best Commenters*\n\n")
	for i, u := range top {
		fmt.Fprintf(&b, "%d. %s %s (%d comments)\n", i+1, u.Level.Symbol, u.Username, u.Score)
	}
	d.send(ctx, chatID, b.String(), rows)
	return nil
}

func (d *Dispatcher) showMyRank(ctx context.Context, userID, chatID int64) error {
	r, err := d.users.Rank(ctx, userID)
	if err != nil {
		return err
	}
	position := "not ranked yet"
	if r.Position > 0 {
		position = fmt.Sprintf("#%d of %d users", r.Position, r.Total)
	}
	text := fmt.Sprintf("🏆 *Your Comment Rank*\n\nLevel: %s %s\nTotal Comments: %d\nRank: %s\n\nKeep commenting to climb the leaderboard!",
		r.Level.Symbol, r.Level.Name, r.Comments, position)
	d.send(ctx, chatID, text, [][]telegram.Button{
		{{Text: "📝 Add Comment", Data: key(VerbCommentHint)}, {Text: "🏆 View Rankings", Data: key(VerbRankings)}},
		backToMenu,
	})
	return nil
}

func (d *Dispatcher) showBrowseUsers(ctx context.Context, userID, chatID int64) error {
	top, err := d.users.TopByReputation(ctx, listLimit+1)
	if err != nil {
		return err
	}
	var (
		b    strings.Builder
		rows [][]telegram.Button
	)
	b.WriteString("🔍 *Browse Users*\n\n")
	shown := 0
	for _, r := range top {
		if r.ID == userID || shown == listLimit {
			continue
		}
		u, err := d.users.Get(ctx, r.ID)
		if err != nil {
			continue
		}
		bio := u.Bio
		if bio == "" {
			bio = "No bio"
		}
		fmt.Fprintf(&b, "• %s %s (%d⭐, %d followers)\n  %s\n\n", r.Level.Symbol, u.Username, u.Reputation, u.FollowerCount, bio)
		rows = append(rows, []telegram.Button{{Text: "👤 View " + u.Username, Data: userKey(VerbViewProfile, u.ID)}})
		shown++
	}
	if shown == 0 {
		b.WriteString("No users found.")
	}
	rows = append(rows, backToMenu)
	d.send(ctx, chatID, b.String(), rows)
	return nil
}

func (d *Dispatcher) showSocial(ctx context.Context, userID, chatID int64, followers bool) error {
	var (
		list  []*usermodels.User
		total int64
		err   error
		title string
		empty string
	)
	u, err := d.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if followers {
		list, err = d.users.Followers(ctx, userID, socialLimit)
		total, title = u.FollowerCount, "👥 *Your Followers"
		empty = "No followers yet. Share your profile to get followers!"
	} else {
		list, err = d.users.Following(ctx, userID, socialLimit)
		total, title = u.FollowingCount, "👥 *You're Following"
		empty = "Not following anyone yet. Browse users to find people to follow!"
	}
	if err != nil {
		return err
	}

	rows := [][]telegram.Button{{{Text: "🔍 Browse Users", Data: key(VerbBrowseUsers)}, backToProfile[0]}}
	if total == 0 {
		d.send(ctx, chatID, title+"*\n\n"+empty, rows)
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d)*\n\n", title, total)
	for _, f := range list {
		fmt.Fprintf(&b, "• %s %s\n", usermodels.LevelFor(f.TotalComments).Symbol, f.Username)
	}
	if total > socialLimit {
		fmt.Fprintf(&b, "\n... and %d more", total-socialLimit)
	}
	d.send(ctx, chatID, b.String(), rows)
	return nil
}

func (d *Dispatcher) showAchievements(ctx context.Context, userID, chatID int64) error {
	list, err := d.users.Achievements(ctx, userID)
	if err != nil {
		return err
	}
	rows := [][]telegram.Button{backToProfile}
	if len(list) == 0 {
		d.send(ctx, chatID, "🏆 *Your Achievements*\n\nNo achievements yet. Keep using the bot to earn achievements!\n\n"+
			"Earn achievements by:\n• Submitting confessions\n• Commenting on posts\n• Gaining followers\n• Building reputation", rows)
		return nil
	}
	var b strings.Builder
	b.WriteString("🏆 *Your Achievements*\n\n")
	for i, a := range list {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a)
	}
	d.send(ctx, chatID, b.String(), rows)
	return nil
}

func (d *Dispatcher) showSettings(ctx context.Context, chatID int64) error {
	d.send(ctx, chatID, "⚙️ *Settings*\n\nManage your bot preferences and privacy settings.", [][]telegram.Button{
		{{Text: "🔔 Notifications", Data: key(VerbNotificationSettings)}, {Text: "📝 Profile", Data: key(VerbMyProfile)}},
		{{Text: "🔒 Comments", Data: key(VerbCommentSettings)}, {Text: "🏆 Achievements", Data: key(VerbAchievements)}},
		backToMenu,
	})
	return nil
}

func (d *Dispatcher) showNotificationSettings(ctx context.Context, userID, chatID int64) error {
	u, err := d.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	n := u.Notifications
	text := fmt.Sprintf("🔔 *Notification Settings*\n\n"+
		"🔔 New Followers: %s\n"+
		"💬 New Comments: %s\n"+
		"📝 New Confessions: %s\n"+
		"✉️ Direct Messages: %s\n\n"+
		"Tap buttons to toggle settings:",
		onOff(n.NewFollower), onOff(n.NewComment), onOff(n.NewConfession), onOff(n.DirectMessage))
	d.send(ctx, chatID, text, [][]telegram.Button{
		{{Text: check(n.NewFollower) + " Followers", Data: key(VerbToggleFollowerNotif)}, {Text: check(n.NewComment) + " Comments", Data: key(VerbToggleCommentNotif)}},
		{{Text: check(n.NewConfession) + " Confessions", Data: key(VerbToggleConfessionNotif)}, {Text: check(n.DirectMessage) + " Messages", Data: key(VerbToggleDMNotif)}},
		{{Text: "💾 Save", Data: key(VerbSaveNotifications)}, {Text: "🔙 Back", Data: key(VerbSettings)}},
	})
	return nil
}

func (d *Dispatcher) showCommentSettings(ctx context.Context, userID, chatID int64) error {
	u, err := d.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	cs := u.CommentSettings
	policy := cs.AllowComments
	text := fmt.Sprintf("🔒 *Comment Settings*\n\n"+
		"Who can comment on your confessions:\n"+
		"• %s Everyone\n• %s Followers Only\n• %s Admin Only\n\n"+
		"Allow anonymous comments: %s\n"+
		"Require comment approval: %s\n",
		check(policy == usermodels.CommentEveryone), check(policy == usermodels.CommentFollowers), check(policy == usermodels.CommentAdmin),
		onOff(cs.AllowAnonymous), onOff(cs.RequireApproval))
	d.send(ctx, chatID, text, [][]telegram.Button{
		{
			{Text: check(policy == usermodels.CommentEveryone) + " Everyone", Data: key(VerbCommentEveryone)},
			{Text: check(policy == usermodels.CommentFollowers) + " Followers", Data: key(VerbCommentFollowers)},
			{Text: check(policy == usermodels.CommentAdmin) + " Admin", Data: key(VerbCommentAdmin)},
		},
		{{Text: check(cs.AllowAnonymous) + " Anonymous", Data: key(VerbCommentAnonymous)}, {Text: check(cs.RequireApproval) + " Approval", Data: key(VerbCommentApproval)}},
		{{Text: "💾 Save", Data: key(VerbSaveCommentSettings)}, backToProfile[0]},
	})
	return nil
}

func (d *Dispatcher) showAbout(ctx context.Context, chatID int64) error {
	d.send(ctx, chatID, "ℹ️ *About Us*\n\nThis is an anonymous confession platform.\n\n"+
		"Features:\n• Anonymous confessions\n• Admin approval system\n• User profiles\n• Comment system\n"+
		"• Reputation and levels\n• Achievements\n\n100% private and secure.", aboutRows())
	return nil
}

func (d *Dispatcher) showRules(ctx context.Context, chatID int64) error {
	d.send(ctx, chatID, "📌 *Confession Rules*\n\n✅ Be respectful\n✅ No personal attacks\n✅ No spam or ads\n"+
		"✅ Keep it anonymous\n✅ No hate speech\n✅ No illegal content\n✅ No harassment\n✅ Use appropriate hashtags", aboutRows())
	return nil
}

func aboutRows() [][]telegram.Button {
	return [][]telegram.Button{
		{{Text: "📝 Send Confession", Data: key(VerbSendConfession)}, {Text: "📢 Promote Bot", Data: key(VerbPromote)}},
		{{Text: "🔍 Browse Users", Data: key(VerbBrowseUsers)}, backToMenu[0]},
	}
}

func (d *Dispatcher) showPromote(ctx context.Context, chatID int64) error {
	botURL := "https://t.me/" + d.opts.BotUsername
	share := "https://t.me/share/url?url=" + url.QueryEscape(botURL) + "&text=" + url.QueryEscape("Check out this anonymous confession bot!")
	rows := [][]telegram.Button{{{Text: "📤 Share Bot", URL: share}}}
	if strings.HasPrefix(d.opts.Channel, "@") {
		rows = append(rows, []telegram.Button{{Text: "📢 Join Channel", URL: "https://t.me/" + strings.TrimPrefix(d.opts.Channel, "@")}})
	}
	rows = append(rows, backToMenu)
	d.send(ctx, chatID, "📢 *Help Us Grow!*\n\nShare our bot with friends:\n"+botURL+"\n\nJoin our channel for confessions:", rows)
	return nil
}

func (d *Dispatcher) lookupConfession(ctx context.Context, id string) (*models.Confession, error) {
	if !confessionIDRe.MatchString(id) {
		return nil, apperrors.NewNotFoundError("confession", id)
	}
	return d.confessions.Get(ctx, id)
}

// showPreview is the landing view of a channel deep link: the confession
// with its first comments.
func (d *Dispatcher) showPreview(ctx context.Context, userID, chatID int64, id string) error {
	if _, err := d.lookupConfession(ctx, id); err != nil {
		return err
	}
	c, comments, total, err := d.confessions.Preview(ctx, id, previewComment)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💬 *Comments for Confession #%d*\n\n*Confession:*\n%s\n\n", c.Number, validation.Truncate(c.Text, 200))
	if total == 0 {
		b.WriteString("No comments yet. Be the first to comment!\n\n")
	} else {
		fmt.Fprintf(&b, "*Recent Comments (%d total):*\n\n", total)
		for i, cm := range comments {
			fmt.Fprintf(&b, "%d. %s\n   - %s\n\n", i+1, cm.Text, cm.AuthorName)
		}
	}
	d.send(ctx, chatID, b.String(), [][]telegram.Button{
		{{Text: "📝 Add Comment", Data: confessionKey(VerbAddComment, id)}, {Text: "👁️ View All Comments", Data: pageKey(id, 1)}},
		{{Text: "📝 Send Your Confession", Data: key(VerbSendConfession)}, {Text: "🔙 Main Menu", Data: key(VerbMainMenu)}},
	})
	return nil
}

// showComments renders one page of a thread. The author is never exposed:
// follow buttons address the confession, not the user.
func (d *Dispatcher) showComments(ctx context.Context, userID, chatID int64, id string, page int) error {
	if _, err := d.lookupConfession(ctx, id); err != nil {
		return err
	}
	c, p, err := d.confessions.ListComments(ctx, id, page)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💬 *Comments for Confession #%d*\n\n*Confession Preview:*\n%s\n\n", c.Number, validation.Truncate(c.Text, 150))
	if len(p.Comments) == 0 {
		b.WriteString("No comments yet. Be the first to comment!\n\n")
	} else {
		fmt.Fprintf(&b, "*Comments (%d-%d of %d):*\n\n", p.Offset+1, p.Offset+len(p.Comments), p.Total)
		for i, cm := range p.Comments {
			symbol := usermodels.LevelFor(0).Symbol
			if author, err := d.users.Get(ctx, cm.AuthorID); err == nil {
				symbol = usermodels.LevelFor(author.TotalComments).Symbol
			}
			fmt.Fprintf(&b, "%d. %s\n   - %s %s\n   📅 %s\n\n", p.Offset+i+1, cm.Text, symbol, cm.AuthorName, cm.CreatedAt.UTC().Format(time.DateOnly))
		}
	}

	top := []telegram.Button{{Text: "📝 Add Comment", Data: confessionKey(VerbAddComment, id)}}
	if c.AuthorID != userID {
		following, err := d.users.IsFollowing(ctx, userID, c.AuthorID)
		if err != nil {
			return err
		}
		if following {
			top = append(top, telegram.Button{Text: "✅ Following", Data: confessionKey(VerbUnfollowAuthor, id)})
		} else {
			top = append(top, telegram.Button{Text: "👤 Follow Author", Data: confessionKey(VerbFollowAuthor, id)})
		}
	}
	rows := [][]telegram.Button{top}
	if p.TotalPages > 1 {
		var nav []telegram.Button
		if p.Page > 1 {
			nav = append(nav, telegram.Button{Text: "⬅️ Previous", Data: pageKey(id, p.Page-1)})
		}
		nav = append(nav, telegram.Button{Text: fmt.Sprintf("%d/%d", p.Page, p.TotalPages), Data: key(VerbNoop)})
		if p.Page < p.TotalPages {
			nav = append(nav, telegram.Button{Text: "Next ➡️", Data: pageKey(id, p.Page+1)})
		}
		rows = append(rows, nav)
	}
	rows = append(rows, []telegram.Button{{Text: "📝 Send Confession", Data: key(VerbSendConfession)}, {Text: "🔙 Main Menu", Data: key(VerbMainMenu)}})
	d.send(ctx, chatID, b.String(), rows)
	return nil
}
