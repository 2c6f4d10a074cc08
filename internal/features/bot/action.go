package bot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Verb names one button action. The set is closed: ParseAction rejects
// anything not listed here.
type Verb string

const (
	// confession-scoped
	VerbApprove        Verb = "approve"
	VerbReject         Verb = "reject"
	VerbAddComment     Verb = "add_comment"
	VerbCommentsPage   Verb = "comments_page"
	VerbFollowAuthor   Verb = "follow_author"
	VerbUnfollowAuthor Verb = "unfollow_author"

	// user-scoped
	VerbViewProfile Verb = "view_profile"
	VerbFollow      Verb = "follow"
	VerbUnfollow    Verb = "unfollow"
	VerbViewUser    Verb = "view_user"
	VerbToggleBlock Verb = "toggle_block"

	VerbSendConfession       Verb = "send_confession"
	VerbMyProfile            Verb = "my_profile"
	VerbPromote              Verb = "promote_bot"
	VerbMainMenu             Verb = "back_to_menu"
	VerbSetUsername          Verb = "set_username"
	VerbSetBio               Verb = "set_bio"
	VerbShowFollowers        Verb = "show_followers"
	VerbShowFollowing        Verb = "show_following"
	VerbMyConfessions        Verb = "my_confessions"
	VerbCommentSettings      Verb = "comment_settings"
	VerbNotificationSettings Verb = "notification_settings"
	VerbSettings             Verb = "settings_menu"
	VerbRankings             Verb = "view_rankings"
	VerbMyRank               Verb = "view_my_rank"
	VerbAchievements         Verb = "view_achievements"
	VerbBrowseUsers          Verb = "browse_users"
	VerbCommentHint          Verb = "add_comment_hint"
	VerbNoop                 Verb = "current_page"

	VerbToggleFollowerNotif   Verb = "toggle_follower_notif"
	VerbToggleCommentNotif    Verb = "toggle_comment_notif"
	VerbToggleConfessionNotif Verb = "toggle_confession_notif"
	VerbToggleDMNotif         Verb = "toggle_dm_notif"
	VerbSaveNotifications     Verb = "save_notifications"
	VerbCommentEveryone       Verb = "comment_everyone"
	VerbCommentFollowers      Verb = "comment_followers"
	VerbCommentAdmin          Verb = "comment_admin"
	VerbCommentAnonymous      Verb = "comment_anon"
	VerbCommentApproval       Verb = "comment_approve"
	VerbSaveCommentSettings   Verb = "save_comment_settings"

	VerbAdminMenu   Verb = "admin_menu"
	VerbManageUsers Verb = "manage_users"
	VerbReview      Verb = "review_confessions"
	VerbBotStats    Verb = "bot_stats"
	VerbBlockUser   Verb = "block_user"
	VerbMessageUser Verb = "message_user"
	VerbBroadcast   Verb = "broadcast_message"
)

type argKind int

const (
	argNone argKind = iota
	argConfession
	argUser
	argConfessionPage
)

// prefixed verbs, longest prefix first so follow_author_ wins over follow_
var prefixed = []struct {
	verb Verb
	arg  argKind
}{
	{VerbUnfollowAuthor, argConfession},
	{VerbFollowAuthor, argConfession},
	{VerbCommentsPage, argConfessionPage},
	{VerbToggleBlock, argUser},
	{VerbViewProfile, argUser},
	{VerbAddComment, argConfession},
	{VerbViewUser, argUser},
	{VerbUnfollow, argUser},
	{VerbApprove, argConfession},
	{VerbReject, argConfession},
	{VerbFollow, argUser},
}

var exact = map[string]Verb{}

func init() {
	for _, v := range []Verb{
		VerbSendConfession, VerbMyProfile, VerbPromote, VerbMainMenu,
		VerbSetUsername, VerbSetBio, VerbShowFollowers, VerbShowFollowing,
		VerbMyConfessions, VerbCommentSettings, VerbNotificationSettings, VerbSettings,
		VerbRankings, VerbMyRank, VerbAchievements, VerbBrowseUsers, VerbNoop,
		VerbToggleFollowerNotif, VerbToggleCommentNotif, VerbToggleConfessionNotif, VerbToggleDMNotif,
		VerbSaveNotifications, VerbCommentEveryone, VerbCommentFollowers, VerbCommentAdmin,
		VerbCommentAnonymous, VerbCommentApproval, VerbSaveCommentSettings,
		VerbAdminMenu, VerbManageUsers, VerbReview, VerbBotStats,
		VerbBlockUser, VerbMessageUser, VerbBroadcast,
	} {
		exact[string(v)] = v
	}
	// the leaderboard button predates per-confession comment buttons
	exact["add_comment"] = VerbCommentHint
}

var adminVerbs = map[Verb]bool{
	VerbApprove:     true,
	VerbReject:      true,
	VerbViewUser:    true,
	VerbToggleBlock: true,
	VerbAdminMenu:   true,
	VerbManageUsers: true,
	VerbReview:      true,
	VerbBotStats:    true,
	VerbBlockUser:   true,
	VerbMessageUser: true,
	VerbBroadcast:   true,
}

// AdminOnly reports whether the verb needs admin membership at execution time.
func (v Verb) AdminOnly() bool { return adminVerbs[v] }

var confessionIDRe = regexp.MustCompile(`^confess_[0-9]+_[0-9]+$`)

// ErrUnknownAction is returned for action keys outside the closed set.
var ErrUnknownAction = errors.New("unknown action key")

// Action is a decoded button press.
type Action struct {
	Verb         Verb
	ConfessionID string
	UserID       int64
	Page         int
}

// ParseAction decodes an opaque button payload of the form verb or
// verb_<arg>[_<page>].
func ParseAction(data string) (Action, error) {
	if v, ok := exact[data]; ok {
		return Action{Verb: v}, nil
	}
	for _, p := range prefixed {
		prefix := string(p.verb) + "_"
		if !strings.HasPrefix(data, prefix) {
			continue
		}
		return parseArg(p.verb, p.arg, strings.TrimPrefix(data, prefix))
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
}

func parseArg(verb Verb, kind argKind, rest string) (Action, error) {
	a := Action{Verb: verb}
	switch kind {
	case argConfession:
		if !confessionIDRe.MatchString(rest) {
			return Action{}, fmt.Errorf("%w: bad confession id %q for %s", ErrUnknownAction, rest, verb)
		}
		a.ConfessionID = rest
	case argUser:
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return Action{}, fmt.Errorf("%w: bad user id %q for %s", ErrUnknownAction, rest, verb)
		}
		a.UserID = id
	case argConfessionPage:
		i := strings.LastIndexByte(rest, '_')
		if i < 0 {
			return Action{}, fmt.Errorf("%w: missing page in %q", ErrUnknownAction, rest)
		}
		id, page := rest[:i], rest[i+1:]
		if !confessionIDRe.MatchString(id) {
			return Action{}, fmt.Errorf("%w: bad confession id %q for %s", ErrUnknownAction, id, verb)
		}
		n, err := strconv.Atoi(page)
		if err != nil || n < 0 {
			return Action{}, fmt.Errorf("%w: bad page %q", ErrUnknownAction, page)
		}
		a.ConfessionID, a.Page = id, n
	}
	return a, nil
}

// Data encodes a back into its button payload.
func (a Action) Data() string {
	switch a.Verb {
	case VerbCommentHint:
		return "add_comment"
	case VerbCommentsPage:
		return fmt.Sprintf("%s_%s_%d", a.Verb, a.ConfessionID, a.Page)
	}
	for _, p := range prefixed {
		if p.verb != a.Verb {
			continue
		}
		if p.arg == argUser {
			return fmt.Sprintf("%s_%d", a.Verb, a.UserID)
		}
		return string(a.Verb) + "_" + a.ConfessionID
	}
	return string(a.Verb)
}

func key(v Verb) string { return Action{Verb: v}.Data() }

func confessionKey(v Verb, id string) string { return Action{Verb: v, ConfessionID: id}.Data() }

func userKey(v Verb, id int64) string { return Action{Verb: v, UserID: id}.Data() }

func pageKey(id string, page int) string {
	return Action{Verb: VerbCommentsPage, ConfessionID: id, Page: page}.Data()
}
