package core

import (
	"strings"

	"mvdan.cc/xurls/v2"
)

const (
	DefaultArticleCount = 3
	MinArticleCount     = 1
	MaxArticleCount     = 10
)

// ArticleSummary is one summarised article as returned by the summarization
// service. The desk only renders these.
type ArticleSummary struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Summary string `json:"summary"`
}

var strictURL = xurls.Strict()

// ClampArticleCount bounds n to [MinArticleCount, MaxArticleCount].
func ClampArticleCount(n int) int {
	if n < MinArticleCount {
		return MinArticleCount
	}
	if n > MaxArticleCount {
		return MaxArticleCount
	}
	return n
}

// ParseArticleCount reads the leading integer of raw, the way a number input
// does, and clamps it. Anything without leading digits counts as 1.
func ParseArticleCount(raw string) int {
	s := strings.TrimSpace(raw)
	negative := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		negative = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		if n <= MaxArticleCount {
			n = n*10 + int(s[digits]-'0')
		}
		digits++
	}
	if digits == 0 || n == 0 || negative {
		return MinArticleCount
	}
	return ClampArticleCount(n)
}

// NormalizeURL trims input and, when it wraps a URL in other text (a pasted
// sentence, angle brackets), returns just the URL. A lone token is passed
// through untouched, as is input without a recognisable URL.
func NormalizeURL(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if !strings.ContainsAny(input, " \t\r\n<>") {
		return input
	}
	if found := strictURL.FindString(input); found != "" {
		return found
	}
	return input
}
