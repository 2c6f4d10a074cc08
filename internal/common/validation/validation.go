package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// Границы длины для пользовательского ввода
	MinConfessionLength = 5
	MaxConfessionLength = 1000
	MinCommentLength    = 3
	MaxCommentLength    = 1000
	MinUsernameLength   = 3
	MaxUsernameLength   = 20
	MaxBioLength        = 100
	MaxReasonLength     = 500
	MaxBroadcastLength  = 4000

	// PlaceholderUsername is the display name given to users who never chose one.
	PlaceholderUsername = "Anonymous"
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	hashtagRegex  = regexp.MustCompile(`#[A-Za-z0-9_]+`)

	scriptBlockRegex  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	schemeRegex       = regexp.MustCompile(`(?i)\b(?:javascript|vbscript)\s*:`)
	eventHandlerRegex = regexp.MustCompile(`(?i)\bon\w+\s*=\s*(?:"[^"]*"|'[^']*')`)
	tagRegex          = regexp.MustCompile(`<[^>]*>`)
)

// Sanitize strips script blocks, inline event handlers, dangerous URL schemes
// and any remaining markup, then trims surrounding whitespace.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	out := scriptBlockRegex.ReplaceAllString(text, "")
	out = eventHandlerRegex.ReplaceAllString(out, "")
	out = tagRegex.ReplaceAllString(out, "")
	out = schemeRegex.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// ExtractHashtags returns hashtags in order of first appearance, without duplicates.
func ExtractHashtags(text string) []string {
	matches := hashtagRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Length counts user-visible characters.
func Length(text string) int {
	return utf8.RuneCountInString(text)
}

// PrepareConfession validates raw bounds on the trimmed input, sanitizes it and
// re-checks the lower bound on the sanitized result.
func PrepareConfession(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	n := Length(trimmed)
	if n < MinConfessionLength {
		return "", fmt.Errorf("confession too short: minimum %d characters", MinConfessionLength)
	}
	if n > MaxConfessionLength {
		return "", fmt.Errorf("confession too long: maximum %d characters", MaxConfessionLength)
	}
	clean := Sanitize(trimmed)
	if Length(clean) < MinConfessionLength {
		return "", fmt.Errorf("confession too short after removing markup: minimum %d characters", MinConfessionLength)
	}
	return clean, nil
}

// PrepareComment is the comment counterpart of PrepareConfession.
func PrepareComment(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	n := Length(trimmed)
	if n < MinCommentLength {
		return "", fmt.Errorf("comment too short: minimum %d characters", MinCommentLength)
	}
	if n > MaxCommentLength {
		return "", fmt.Errorf("comment too long: maximum %d characters", MaxCommentLength)
	}
	clean := Sanitize(trimmed)
	if Length(clean) < MinCommentLength {
		return "", fmt.Errorf("comment too short after removing markup: minimum %d characters", MinCommentLength)
	}
	return clean, nil
}

// ValidateUsername проверяет отображаемое имя
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be %d-%d characters: letters, numbers and underscores only", MinUsernameLength, MaxUsernameLength)
	}
	return nil
}

// IsPlaceholderUsername reports whether name is the shared default name.
func IsPlaceholderUsername(name string) bool {
	return name == "" || strings.EqualFold(name, PlaceholderUsername)
}

// ValidateBio проверяет описание профиля
func ValidateBio(bio string) (string, error) {
	bio = Sanitize(bio)
	if Length(bio) > MaxBioLength {
		return "", fmt.Errorf("bio cannot exceed %d characters", MaxBioLength)
	}
	return bio, nil
}

// ValidateReason проверяет причину отклонения
func ValidateReason(reason string) (string, error) {
	reason = Sanitize(reason)
	if reason == "" {
		return "", fmt.Errorf("reason cannot be empty")
	}
	if Length(reason) > MaxReasonLength {
		return "", fmt.Errorf("reason cannot exceed %d characters", MaxReasonLength)
	}
	return reason, nil
}

// ValidateBroadcast checks an admin message body (direct message or broadcast).
func ValidateBroadcast(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("message cannot be empty")
	}
	if Length(text) > MaxBroadcastLength {
		return "", fmt.Errorf("message cannot exceed %d characters", MaxBroadcastLength)
	}
	return text, nil
}

// ParseUserID parses a numeric user id typed by an admin.
func ParseUserID(text string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id: %q", text)
	}
	return id, nil
}

// Truncate shortens text to max characters, appending "..." when cut.
func Truncate(text string, max int) string {
	if Length(text) <= max {
		return text
	}
	r := []rune(text)
	return string(r[:max]) + "..."
}
