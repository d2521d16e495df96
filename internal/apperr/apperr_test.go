package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestDatabaseWrapsCauseWithoutLeaking(t *testing.T) {
	cause := errors.New("Error 1062: Duplicate entry")
	err := Database("save_chat", cause)

	if err.Code() != "bad_request:database" {
		t.Fatalf("unexpected code: %q", err.Code())
	}
	if err.Op != "save_chat" {
		t.Fatalf("unexpected op: %q", err.Op)
	}
	if strings.Contains(err.Message(), "1062") {
		t.Fatalf("user-visible message leaks driver error: %q", err.Message())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("wrapped cause should be reachable via errors.Is")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindBadRequest, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindRateLimit, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		got := New(tc.kind, "chat", "x").HTTPStatus()
		if got != tc.want {
			t.Fatalf("kind %s: got %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestFromThroughWrapping(t *testing.T) {
	inner := New(KindForbidden, "chat", "not the chat owner")
	wrapped := fmt.Errorf("turn failed: %w", inner)

	got := From(wrapped)
	if got == nil || got.Kind != KindForbidden {
		t.Fatalf("From should find the condition through wrapping, got %v", got)
	}
	if !Is(wrapped, KindForbidden) {
		t.Fatalf("Is should match through wrapping")
	}
	if Is(errors.New("plain"), KindForbidden) {
		t.Fatalf("Is matched a plain error")
	}
}
