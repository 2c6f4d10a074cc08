package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"confession-bot-backend/internal/common/validation"
	"confession-bot-backend/internal/features/confession/models"
	usermodels "confession-bot-backend/internal/features/user/models"
	"confession-bot-backend/internal/platform/telegram"
)

var backToAdmin = []telegram.Button{{Text: "🔙 Admin Menu", Data: key(VerbAdminMenu)}}

// dashboard loads both stat blocks concurrently.
func (d *Dispatcher) dashboard(ctx context.Context) (*usermodels.DirectoryStats, *models.Stats, error) {
	var (
		us *usermodels.DirectoryStats
		cs *models.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		us, err = d.users.Stats(gctx)
		return err
	})
	g.Go(func() (err error) {
		cs, err = d.confessions.Stats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return us, cs, nil
}

func (d *Dispatcher) showAdmin(ctx context.Context, chatID int64) error {
	us, cs, err := d.dashboard(ctx)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("🔐 *Admin Dashboard*\n\n"+
		"*Total Users:* %d\n"+
		"*Pending Confessions:* %d\n"+
		"*Posted Confessions:* %d\n"+
		"*Rejected Confessions:* %d\n",
		us.TotalUsers, cs.Pending, cs.Posted, cs.Rejected)
	d.send(ctx, chatID, text, [][]telegram.Button{
		{{Text: "👥 Manage Users", Data: key(VerbManageUsers)}, {Text: "📝 Review Confessions", Data: key(VerbReview)}},
		{{Text: "📊 Bot Statistics", Data: key(VerbBotStats)}, {Text: "❌ Block User", Data: key(VerbBlockUser)}},
		{{Text: "✉️ Message User", Data: key(VerbMessageUser)}, {Text: "📢 Broadcast", Data: key(VerbBroadcast)}},
		{{Text: "🔙 Main Menu", Data: key(VerbMainMenu)}},
	})
	return nil
}

func (d *Dispatcher) showBotStats(ctx context.Context, chatID int64) error {
	us, cs, err := d.dashboard(ctx)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("📊 *Bot Statistics*\n\n"+
		"*Total Users:* %d\n"+
		"*Active Users:* %d\n"+
		"*Total Confessions:* %d\n"+
		"*Pending Confessions:* %d\n"+
		"*Approved Confessions:* %d\n"+
		"*Posted Confessions:* %d\n"+
		"*Rejected Confessions:* %d\n"+
		"*Total Comments:* %d\n",
		us.TotalUsers, us.ActiveUsers, cs.Total, cs.Pending, cs.Approved, cs.Posted, cs.Rejected, cs.Comments)
	d.send(ctx, chatID, text, [][]telegram.Button{
		{{Text: "👥 Manage Users", Data: key(VerbManageUsers)}, {Text: "📝 Review Confessions", Data: key(VerbReview)}},
		backToAdmin,
	})
	return nil
}

func (d *Dispatcher) showManageUsers(ctx context.Context, chatID int64) error {
	stats, err := d.users.Stats(ctx)
	if err != nil {
		return err
	}
	list, err := d.users.List(ctx, 0, listLimit)
	if err != nil {
		return err
	}
	rows := make([][]telegram.Button, 0, len(list)+1)
	for _, u := range list {
		rows = append(rows, []telegram.Button{{Text: "🔍 View " + displayName(u.Username, u.ID), Data: userKey(VerbViewUser, u.ID)}})
	}
	rows = append(rows, backToAdmin)
	d.send(ctx, chatID, fmt.Sprintf("👥 *Manage Users*\n\nTotal Users: %d\n", stats.TotalUsers), rows)
	return nil
}

func (d *Dispatcher) showUser(ctx context.Context, chatID, targetID int64) error {
	u, err := d.users.Get(ctx, targetID)
	if err != nil {
		return err
	}
	achievements, err := d.users.Achievements(ctx, targetID)
	if err != nil {
		return err
	}
	status, toggle := "✅ Active", "❌ Block User"
	if !u.IsActive {
		status, toggle = "❌ Blocked", "✅ Unblock User"
	}
	var b strings.Builder
	b.WriteString("👤 *User Details*\n\n")
	fmt.Fprintf(&b, "*User ID:* %d\n*Username:* %s\n*Level:* %s\n", u.ID, u.Username, levelLine(u.TotalComments))
	if u.Bio != "" {
		fmt.Fprintf(&b, "*Bio:* %s\n", u.Bio)
	}
	fmt.Fprintf(&b, "*Followers:* %d\n*Following:* %d\n*Confessions:* %d\n*Reputation:* %d\n*Achievements:* %d\n*Status:* %s\n*Join Date:* %s\n",
		u.FollowerCount, u.FollowingCount, u.TotalConfessions, u.Reputation, len(achievements), status, u.JoinedAt.Format(time.DateOnly))
	d.send(ctx, chatID, b.String(), [][]telegram.Button{
		{{Text: toggle, Data: userKey(VerbToggleBlock, targetID)}},
		{{Text: "🔙 Back to Users", Data: key(VerbManageUsers)}},
	})
	return nil
}

func (d *Dispatcher) toggleBlock(ctx context.Context, chatID, targetID int64) error {
	u, err := d.users.Get(ctx, targetID)
	if err != nil {
		return err
	}
	active, err := d.users.ToggleBlock(ctx, targetID)
	if err != nil {
		return err
	}
	verb := "blocked"
	if active {
		verb = "unblocked"
	}
	d.say(ctx, chatID, fmt.Sprintf("✅ User %s has been %s.", displayName(u.Username, targetID), verb))
	return nil
}

func (d *Dispatcher) showReview(ctx context.Context, chatID int64) error {
	pending, err := d.confessions.Pending(ctx, listLimit)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		d.send(ctx, chatID, "📝 *Pending Confessions*\n\nNo pending confessions to review.", [][]telegram.Button{backToAdmin})
		return nil
	}
	var b strings.Builder
	b.WriteString("📝 *Pending Confessions*\n\n")
	rows := make([][]telegram.Button, 0, len(pending)+1)
	for _, c := range pending {
		from := fmt.Sprintf("ID: %d", c.AuthorID)
		if u, err := d.users.Get(ctx, c.AuthorID); err == nil && !validation.IsPlaceholderUsername(u.Username) {
			from = u.Username
		}
		fmt.Fprintf(&b, "• #%d from %s\n  \"%s\"\n\n", c.Number, from, validation.Truncate(c.Text, 50))
		rows = append(rows, []telegram.Button{
			{Text: fmt.Sprintf("✅ Approve #%d", c.Number), Data: confessionKey(VerbApprove, c.ID)},
			{Text: fmt.Sprintf("❌ Reject #%d", c.Number), Data: confessionKey(VerbReject, c.ID)},
		})
	}
	rows = append(rows, backToAdmin)
	d.send(ctx, chatID, b.String(), rows)
	return nil
}
