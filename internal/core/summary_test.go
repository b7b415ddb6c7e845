package core

import "testing"

func TestParseArticleCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"3", 3},
		{" 7 ", 7},
		{"-5", 1},
		{"abc", 1},
		{"", 1},
		{"0", 1},
		{"2.7", 2},
		{"5abc", 5},
		{"+4", 4},
		{"42", 10},
		{"99999999999999999999", 10},
	}
	for _, tc := range cases {
		if got := ParseArticleCount(tc.in); got != tc.want {
			t.Fatalf("ParseArticleCount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestClampArticleCount(t *testing.T) {
	if got := ClampArticleCount(-5); got != 1 {
		t.Fatalf("ClampArticleCount(-5) = %d, want 1", got)
	}
	if got := ClampArticleCount(11); got != 10 {
		t.Fatalf("ClampArticleCount(11) = %d, want 10", got)
	}
	if got := ClampArticleCount(DefaultArticleCount); got != DefaultArticleCount {
		t.Fatalf("ClampArticleCount(%d) = %d", DefaultArticleCount, got)
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{" https://feeds.bbci.co.uk/news/rss.xml ", "https://feeds.bbci.co.uk/news/rss.xml"},
		{"read this: https://example.com/story please", "https://example.com/story"},
		{"<https://example.com/a>", "https://example.com/a"},
		{"not a url", "not a url"},
		{"https://example.com/story.", "https://example.com/story."},
		{"https://example.com/a?q=(x)", "https://example.com/a?q=(x)"},
	}
	for _, tc := range cases {
		if got := NormalizeURL(tc.in); got != tc.want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
