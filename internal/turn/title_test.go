package turn

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestGenerateTitle_TruncatesByRunes(t *testing.T) {
	long := strings.Repeat("日", 100)
	got := generateTitle(context.Background(), &fixedProvider{reply: long}, "こんにちは")

	if !utf8.ValidString(got) {
		t.Fatalf("title is not valid utf-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 80 {
		t.Fatalf("title rune count = %d, want 80", n)
	}
	if got != strings.Repeat("日", 80) {
		t.Fatalf("title = %q, want 80 repetitions of the input rune", got)
	}
}

func TestGenerateTitle_KeepsShortTitles(t *testing.T) {
	got := generateTitle(context.Background(), &fixedProvider{reply: `"Weather in Seoul"`}, "hi")
	if got != "Weather in Seoul" {
		t.Fatalf("title = %q, want %q", got, "Weather in Seoul")
	}
}

func TestGenerateTitle_FallsBack(t *testing.T) {
	if got := generateTitle(context.Background(), nil, "hi"); got != fallbackTitle {
		t.Fatalf("nil provider title = %q, want %q", got, fallbackTitle)
	}
	if got := generateTitle(context.Background(), &fixedProvider{reply: "  "}, "hi"); got != fallbackTitle {
		t.Fatalf("blank title = %q, want %q", got, fallbackTitle)
	}
}
