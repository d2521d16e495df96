package chat

import (
	"context"
	"time"

	"github.com/loomlabs/chatloom/internal/apperr"
	"github.com/loomlabs/chatloom/internal/auth"
)

// Entitlements maps a classification to its daily message allowance.
type Entitlements struct {
	StandardDailyMessages int
	ElevatedDailyMessages int
}

func DefaultEntitlements() Entitlements {
	return Entitlements{
		StandardDailyMessages: 100,
		ElevatedDailyMessages: 1000,
	}
}

func (e Entitlements) Allowance(t auth.UserType) int {
	if t == auth.UserTypeElevated {
		return e.ElevatedDailyMessages
	}
	return e.StandardDailyMessages
}

// Gate is the authorization and quota check. Pure read: it must run
// before the turn's user message is persisted so the in-flight message
// is not counted against itself.
type Gate struct {
	repo         *Repo
	entitlements Entitlements
	window       time.Duration
}

func NewGate(repo *Repo, entitlements Entitlements) *Gate {
	return &Gate{repo: repo, entitlements: entitlements, window: 24 * time.Hour}
}

// Check rejects with rate_limit:chat when the principal's trailing
// 24-hour user-message count is at or above its allowance.
func (g *Gate) Check(ctx context.Context, userID uint64, userType auth.UserType) error {
	count, err := g.repo.CountUserMessagesSince(ctx, userID, time.Now().Add(-g.window))
	if err != nil {
		return err
	}
	if count >= int64(g.entitlements.Allowance(userType)) {
		return apperr.New(apperr.KindRateLimit, "chat", "daily message allowance exhausted")
	}
	return nil
}
