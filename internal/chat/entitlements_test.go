package chat

import (
	"context"
	"testing"
	"time"

	"github.com/loomlabs/chatloom/internal/apperr"
	"github.com/loomlabs/chatloom/internal/auth"
)

func TestGate_RejectsAtAllowance(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c := seedChat(t, repo, 1)
	for i := 0; i < 3; i++ {
		seedMessage(t, repo, c.ID, RoleUser, time.Now())
	}

	gate := NewGate(repo, Entitlements{StandardDailyMessages: 3, ElevatedDailyMessages: 10})

	err := gate.Check(ctx, 1, auth.UserTypeStandard)
	if !apperr.Is(err, apperr.KindRateLimit) {
		t.Fatalf("expected rate_limit at allowance, got %v", err)
	}
	if e := apperr.From(err); e == nil || e.Code() != "rate_limit:chat" {
		t.Fatalf("expected rate_limit:chat code, got %v", err)
	}

	// elevated tier still has headroom
	if err := gate.Check(ctx, 1, auth.UserTypeElevated); err != nil {
		t.Fatalf("expected elevated user to pass, got %v", err)
	}
}

func TestGate_BelowAllowancePasses(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c := seedChat(t, repo, 1)
	seedMessage(t, repo, c.ID, RoleUser, time.Now())
	// stale messages fall out of the window
	seedMessage(t, repo, c.ID, RoleUser, time.Now().Add(-25*time.Hour))

	gate := NewGate(repo, Entitlements{StandardDailyMessages: 2, ElevatedDailyMessages: 10})
	if err := gate.Check(ctx, 1, auth.UserTypeStandard); err != nil {
		t.Fatalf("expected pass below allowance, got %v", err)
	}
}
