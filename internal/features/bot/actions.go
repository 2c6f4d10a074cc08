package bot

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "confession-bot-backend/internal/common/errors"
	"confession-bot-backend/internal/features/confession/models"
	"confession-bot-backend/internal/features/conversation"
	usermodels "confession-bot-backend/internal/features/user/models"
	"confession-bot-backend/internal/platform/telegram"
)

// verbs a blocked user may not trigger
var writeVerbs = map[Verb]bool{
	VerbAddComment:            true,
	VerbFollowAuthor:          true,
	VerbUnfollowAuthor:        true,
	VerbFollow:                true,
	VerbUnfollow:              true,
	VerbSendConfession:        true,
	VerbSetUsername:           true,
	VerbSetBio:                true,
	VerbToggleFollowerNotif:   true,
	VerbToggleCommentNotif:    true,
	VerbToggleConfessionNotif: true,
	VerbToggleDMNotif:         true,
	VerbCommentEveryone:       true,
	VerbCommentFollowers:      true,
	VerbCommentAdmin:          true,
	VerbCommentAnonymous:      true,
	VerbCommentApproval:       true,
}

var notificationVerbs = map[Verb]struct {
	pref  usermodels.Preference
	label string
}{
	VerbToggleFollowerNotif:   {usermodels.PrefNewFollower, "New Followers"},
	VerbToggleCommentNotif:    {usermodels.PrefNewComment, "New Comments"},
	VerbToggleConfessionNotif: {usermodels.PrefNewConfession, "New Confessions"},
	VerbToggleDMNotif:         {usermodels.PrefDirectMessage, "Direct Messages"},
}

var policyVerbs = map[Verb]struct {
	policy usermodels.CommentPolicy
	label  string
}{
	VerbCommentEveryone:  {usermodels.CommentEveryone, "Everyone"},
	VerbCommentFollowers: {usermodels.CommentFollowers, "Followers Only"},
	VerbCommentAdmin:     {usermodels.CommentAdmin, "Admin Only"},
}

func answer(text string) telegram.AnswerOptions { return telegram.AnswerOptions{Text: text} }

// action executes one decoded button press and returns the acknowledgement
// to show.
func (d *Dispatcher) action(ctx context.Context, ev InteractionEvent, a Action) (telegram.AnswerOptions, error) {
	userID, chatID := ev.From.ID, ev.ChatID
	none := telegram.AnswerOptions{}

	if t, ok := notificationVerbs[a.Verb]; ok {
		on, err := d.users.TogglePreference(ctx, userID, t.pref)
		if err != nil {
			return none, err
		}
		state := "OFF"
		if on {
			state = "ON"
		}
		return answer(fmt.Sprintf("%s: %s", t.label, state)), d.showNotificationSettings(ctx, userID, chatID)
	}
	if p, ok := policyVerbs[a.Verb]; ok {
		if err := d.users.SetCommentPolicy(ctx, userID, p.policy); err != nil {
			return none, err
		}
		return answer("✅ Comments set to " + p.label), d.showCommentSettings(ctx, userID, chatID)
	}

	switch a.Verb {
	case VerbApprove:
		return d.approve(ctx, userID, chatID, a.ConfessionID)
	case VerbReject:
		c, err := d.lookupConfession(ctx, a.ConfessionID)
		if err != nil {
			return none, err
		}
		if c.Status != models.StatusPending {
			return answer(fmt.Sprintf("ℹ️ Confession #%d is already %s", c.Number, c.Status)), nil
		}
		return answer("Please provide rejection reason"),
			d.startFlow(ctx, userID, chatID, conversation.AwaitingRejectionReason{ConfessionID: c.ID})

	case VerbAddComment:
		c, err := d.lookupConfession(ctx, a.ConfessionID)
		if err != nil {
			return none, err
		}
		if c.Status != models.StatusPosted {
			return answer(userMessage(apperrors.New(apperrors.ErrCodeConflict, ""))), nil
		}
		return none, d.startFlow(ctx, userID, chatID, conversation.AwaitingComment{ConfessionID: c.ID})
	case VerbCommentsPage:
		return none, d.showComments(ctx, userID, chatID, a.ConfessionID, a.Page)
	case VerbFollowAuthor, VerbUnfollowAuthor:
		c, err := d.lookupConfession(ctx, a.ConfessionID)
		if err != nil {
			return none, err
		}
		if a.Verb == VerbUnfollowAuthor {
			if err := d.users.Unfollow(ctx, userID, c.AuthorID); err != nil {
				return none, err
			}
			return answer("✅ Unfollowed author"), nil
		}
		if err := d.users.Follow(ctx, userID, c.AuthorID); err != nil {
			return none, err
		}
		return answer("✅ Followed author!"), nil

	case VerbViewProfile:
		return none, d.showPublicProfile(ctx, userID, chatID, a.UserID)
	case VerbFollow:
		if err := d.users.Follow(ctx, userID, a.UserID); err != nil {
			return none, err
		}
		return answer("✅ Followed user!"), d.showPublicProfile(ctx, userID, chatID, a.UserID)
	case VerbUnfollow:
		if err := d.users.Unfollow(ctx, userID, a.UserID); err != nil {
			return none, err
		}
		return answer("✅ Unfollowed user!"), d.showPublicProfile(ctx, userID, chatID, a.UserID)
	case VerbViewUser:
		return none, d.showUser(ctx, chatID, a.UserID)
	case VerbToggleBlock:
		return none, d.toggleBlock(ctx, chatID, a.UserID)

	case VerbSendConfession:
		return none, d.beginConfession(ctx, userID, chatID)
	case VerbMyProfile:
		return none, d.showProfile(ctx, userID, chatID)
	case VerbPromote:
		return none, d.showPromote(ctx, chatID)
	case VerbMainMenu:
		return none, d.showMainMenu(ctx, userID, chatID)
	case VerbSetUsername:
		return none, d.startFlow(ctx, userID, chatID, conversation.AwaitingUsername{OriginChatID: chatID})
	case VerbSetBio:
		return none, d.startFlow(ctx, userID, chatID, conversation.AwaitingBio{})
	case VerbShowFollowers:
		return none, d.showSocial(ctx, userID, chatID, true)
	case VerbShowFollowing:
		return none, d.showSocial(ctx, userID, chatID, false)
	case VerbMyConfessions:
		return none, d.showMyConfessions(ctx, userID, chatID)
	case VerbCommentSettings:
		return none, d.showCommentSettings(ctx, userID, chatID)
	case VerbNotificationSettings:
		return none, d.showNotificationSettings(ctx, userID, chatID)
	case VerbSettings:
		return none, d.showSettings(ctx, chatID)
	case VerbRankings:
		return none, d.showBestCommenters(ctx, chatID)
	case VerbMyRank:
		return none, d.showMyRank(ctx, userID, chatID)
	case VerbAchievements:
		return none, d.showAchievements(ctx, userID, chatID)
	case VerbBrowseUsers:
		return none, d.showBrowseUsers(ctx, userID, chatID)
	case VerbCommentHint:
		return telegram.AnswerOptions{Text: "Open a confession from the channel to comment on it", ShowAlert: true}, nil
	case VerbNoop:
		return none, nil

	case VerbSaveNotifications, VerbSaveCommentSettings:
		return answer("✅ Settings saved!"), nil
	case VerbCommentAnonymous:
		if err := d.users.ToggleAnonymousComments(ctx, userID); err != nil {
			return none, err
		}
		return answer("✅ Anonymous comments updated"), d.showCommentSettings(ctx, userID, chatID)
	case VerbCommentApproval:
		if err := d.users.ToggleCommentApproval(ctx, userID); err != nil {
			return none, err
		}
		return answer("✅ Comment approval updated"), d.showCommentSettings(ctx, userID, chatID)

	case VerbAdminMenu:
		return none, d.showAdmin(ctx, chatID)
	case VerbManageUsers:
		return none, d.showManageUsers(ctx, chatID)
	case VerbReview:
		return none, d.showReview(ctx, chatID)
	case VerbBotStats:
		return none, d.showBotStats(ctx, chatID)
	case VerbBlockUser:
		return none, d.startFlow(ctx, userID, chatID, conversation.AwaitingBlockTarget{})
	case VerbMessageUser:
		return none, d.startFlow(ctx, userID, chatID, conversation.AwaitingMessageTarget{})
	case VerbBroadcast:
		return none, d.startFlow(ctx, userID, chatID, conversation.AwaitingBroadcastBody{})
	}

	log.Warn().Str("action", string(a.Verb)).Msg("Parsed action has no handler")
	return none, nil
}

func (d *Dispatcher) approve(ctx context.Context, adminID, chatID int64, id string) (telegram.AnswerOptions, error) {
	if _, err := d.lookupConfession(ctx, id); err != nil {
		return telegram.AnswerOptions{}, err
	}
	res, err := d.confessions.Approve(ctx, adminID, id)
	if err != nil {
		return telegram.AnswerOptions{}, err
	}
	c := res.Confession
	switch {
	case res.Published:
		d.say(ctx, chatID, fmt.Sprintf("✅ *Confession #%d Approved!*\n\nPosted to channel successfully.", c.Number))
		return answer("✅ Confession approved!"), nil
	case c.Status == models.StatusPosted:
		return answer(fmt.Sprintf("ℹ️ Confession #%d is already posted", c.Number)), nil
	}
	return answer("⏳ Publishing is already in progress"), nil
}
