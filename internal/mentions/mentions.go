// Package mentions implements plain-text "@name" handling for group
// messages. A mention is a textual pattern only; it carries no reference to
// a user identifier, so renaming a user does not update past messages.
package mentions

import (
	"regexp"
	"strings"
)

var (
	trailingToken = regexp.MustCompile(`@(\w*)$`)
	mentionSpan   = regexp.MustCompile(`@\w+`)
)

// ActiveToken returns the in-progress mention token at the end of the input:
// an "@" followed by zero or more word characters with no trailing space.
// ok is false when the input does not end in such a token.
func ActiveToken(input string) (token string, ok bool) {
	m := trailingToken.FindStringSubmatch(input)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Suggest filters names by case-insensitive prefix match against the active
// token. The result preserves the order of names as given by the caller,
// which is membership-resolution order, not alphabetical. A nil result means
// no mention is in progress.
func Suggest(input string, names []string) []string {
	token, ok := ActiveToken(input)
	if !ok {
		return nil
	}
	prefix := strings.ToLower(token)

	suggestions := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			suggestions = append(suggestions, name)
		}
	}
	return suggestions
}

// Apply replaces the trailing token with "@<fullName> ", space-terminated.
// Input without an active token is returned unchanged.
func Apply(input, fullName string) string {
	loc := trailingToken.FindStringIndex(input)
	if loc == nil {
		return input
	}
	return input[:loc[0]] + "@" + fullName + " "
}

// Span is one segment of rendered message text.
type Span struct {
	Text    string `json:"text"`
	Mention bool   `json:"mention"`
}

// Highlight splits text into plain and mention spans by matching "@" plus
// word characters.
func Highlight(text string) []Span {
	var spans []Span
	last := 0
	for _, loc := range mentionSpan.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			spans = append(spans, Span{Text: text[last:loc[0]]})
		}
		spans = append(spans, Span{Text: text[loc[0]:loc[1]], Mention: true})
		last = loc[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Text: text[last:]})
	}
	return spans
}
