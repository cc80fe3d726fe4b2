package utils

import (
	"html/template"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxPostRunes     = 5000
	MaxCommentRunes  = 1000
	MaxUsernameRunes = 50
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]{1,50}$`)

// TemplateFuncs returns a map of custom template functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatTime": formatTime,
		"truncate":   truncate,
		"initials":   initials,
		"liked":      liked,
	}
}

// formatTime formats time in a readable format
func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// truncate shortens a string to the given number of runes
func truncate(s string, length int) string {
	if utf8.RuneCountInString(s) <= length {
		return s
	}
	return string([]rune(s)[:length]) + "..."
}

// initials returns the first two letters of a name
func initials(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return "?"
	}
	if len(r) <= 2 {
		return s
	}
	return string(r[:2])
}

func liked(set map[int]bool, postID int) bool {
	return set[postID]
}

// ValidatePostContent trims content and checks its length.
// Returns the trimmed content and a user-facing message when invalid.
func ValidatePostContent(content string) (string, string) {
	content = strings.TrimSpace(content)

	if content == "" {
		return "", "Content cannot be empty"
	}

	if utf8.RuneCountInString(content) > MaxPostRunes {
		return "", "Content cannot exceed 5000 characters"
	}

	return content, ""
}

// ValidateCommentText trims a guestbook entry. Empty text is allowed.
func ValidateCommentText(text string) (string, string) {
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) > MaxCommentRunes {
		return "", "Entry cannot exceed 1000 characters"
	}

	return text, ""
}

// ValidateRegistration checks the display name and login handle
func ValidateRegistration(username, handle string) string {
	username = strings.TrimSpace(username)

	if username == "" {
		return "Username cannot be empty"
	}
	if utf8.RuneCountInString(username) > MaxUsernameRunes {
		return "Username cannot exceed 50 characters"
	}
	if handle == "" {
		return "User ID cannot be empty"
	}
	if !handlePattern.MatchString(handle) {
		return "User ID may only contain letters, digits and . _ - @ (max 50)"
	}

	return ""
}

// ImageExtension returns the lowercased extension of filename with its dot
// and whether it is in the allow-list. Allowed entries carry no dot.
func ImageExtension(filename string, allowed []string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 {
		return "", false
	}

	for _, a := range allowed {
		if strings.EqualFold(ext[1:], a) {
			return ext, true
		}
	}

	return "", false
}
