package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/loomlabs/chatloom/internal/apperr"
	"github.com/loomlabs/chatloom/internal/common"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Chat{}, &Message{}, &Vote{}, &Stream{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func seedChat(t *testing.T, repo *Repo, userID uint64) *Chat {
	t.Helper()
	c := &Chat{
		ID:         common.NewUUID(),
		UserID:     userID,
		Title:      "seed",
		Visibility: VisibilityPrivate,
	}
	if err := repo.SaveChat(context.Background(), c); err != nil {
		t.Fatalf("save chat: %v", err)
	}
	return c
}

func seedMessage(t *testing.T, repo *Repo, chatID, role string, at time.Time) Message {
	t.Helper()
	m := Message{
		ID:          common.NewUUID(),
		ChatID:      chatID,
		Role:        role,
		Parts:       mustJSON(t, Parts{TextPart{Text: "hi"}}),
		Attachments: json.RawMessage("[]"),
		CreatedAt:   at,
	}
	if err := repo.SaveMessages(context.Background(), []Message{m}); err != nil {
		t.Fatalf("save message: %v", err)
	}
	return m
}

func TestGetChatByID_NotFound(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	_, err := repo.GetChatByID(context.Background(), common.NewUUID())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestDeleteChatByID_CascadesEverything(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	c := seedChat(t, repo, 1)
	m1 := seedMessage(t, repo, c.ID, RoleUser, time.Now())
	m2 := seedMessage(t, repo, c.ID, RoleAssistant, time.Now())

	if err := repo.VoteMessage(ctx, c.ID, m2.ID, true); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := repo.CreateStreamID(ctx, common.NewUUID(), c.ID); err != nil {
		t.Fatalf("stream marker: %v", err)
	}

	deleted, err := repo.DeleteChatByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != c.ID || deleted.Title != "seed" {
		t.Fatalf("unexpected deleted chat: %+v", deleted)
	}

	for table, model := range map[string]any{
		"votes":    &Vote{},
		"messages": &Message{},
		"streams":  &Stream{},
		"chats":    &Chat{},
	} {
		var cnt int64
		if err := db.Model(model).Count(&cnt).Error; err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if cnt != 0 {
			t.Fatalf("expected %s empty after cascade, got %d rows", table, cnt)
		}
	}
	_ = m1
}

func TestDeleteChatByID_NotFound(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	_, err := repo.DeleteChatByID(context.Background(), common.NewUUID())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestGetChatsByUserID_Pagination(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 5; i++ {
		c := &Chat{
			ID:         common.NewUUID(),
			UserID:     7,
			Title:      fmt.Sprintf("chat %d", i),
			Visibility: VisibilityPrivate,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.SaveChat(ctx, c); err != nil {
			t.Fatalf("save chat %d: %v", i, err)
		}
		ids = append(ids, c.ID)
	}

	// newest first
	page, hasMore, err := repo.GetChatsByUserID(ctx, 7, 2, "", "")
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if !hasMore {
		t.Fatalf("expected more pages")
	}
	if len(page) != 2 || page[0].ID != ids[4] || page[1].ID != ids[3] {
		t.Fatalf("unexpected first page: %+v", page)
	}

	// ending_before pages older chats
	older, _, err := repo.GetChatsByUserID(ctx, 7, 10, "", page[1].ID)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(older) != 3 || older[0].ID != ids[2] {
		t.Fatalf("unexpected older page: %+v", older)
	}

	// unknown cursor
	if _, _, err := repo.GetChatsByUserID(ctx, 7, 10, common.NewUUID(), ""); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not_found for unknown cursor, got %v", err)
	}
}

func TestDeleteMessagesAfterTimestamp_TakesVotesAlong(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	c := seedChat(t, repo, 1)
	base := time.Now().Add(-time.Hour)
	kept := seedMessage(t, repo, c.ID, RoleUser, base)
	cut1 := seedMessage(t, repo, c.ID, RoleAssistant, base.Add(10*time.Minute))
	cut2 := seedMessage(t, repo, c.ID, RoleUser, base.Add(20*time.Minute))

	if err := repo.VoteMessage(ctx, c.ID, kept.ID, true); err != nil {
		t.Fatalf("vote kept: %v", err)
	}
	if err := repo.VoteMessage(ctx, c.ID, cut1.ID, false); err != nil {
		t.Fatalf("vote cut: %v", err)
	}

	// boundary is inclusive
	if err := repo.DeleteMessagesByChatIDAfterTimestamp(ctx, c.ID, cut1.CreatedAt); err != nil {
		t.Fatalf("delete after: %v", err)
	}

	msgs, err := repo.GetMessagesByChatID(ctx, c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != kept.ID {
		t.Fatalf("expected only the older message to survive, got %+v", msgs)
	}

	votes, err := repo.GetVotesByChatID(ctx, c.ID)
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if len(votes) != 1 || votes[0].MessageID != kept.ID {
		t.Fatalf("expected votes of deleted messages gone, got %+v", votes)
	}
	_ = cut2
}

func TestCountUserMessagesSince_ScopesRoleAndOwner(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	mine := seedChat(t, repo, 1)
	theirs := seedChat(t, repo, 2)

	now := time.Now()
	seedMessage(t, repo, mine.ID, RoleUser, now)
	seedMessage(t, repo, mine.ID, RoleAssistant, now) // wrong role
	seedMessage(t, repo, mine.ID, RoleUser, now.Add(-48*time.Hour))
	seedMessage(t, repo, theirs.ID, RoleUser, now) // wrong owner

	n, err := repo.CountUserMessagesSince(ctx, 1, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 counted message, got %d", n)
	}
}

func TestTrimStreamIDs_KeepsNewest(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c := seedChat(t, repo, 1)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		s := Stream{ID: common.NewUUID(), ChatID: c.ID, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.db.Create(&s).Error; err != nil {
			t.Fatalf("seed marker %d: %v", i, err)
		}
	}

	pruned, err := repo.TrimStreamIDs(ctx, c.ID, 2)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if pruned != 3 {
		t.Fatalf("expected 3 pruned markers, got %d", pruned)
	}

	left, err := repo.GetStreamIDsByChatID(ctx, c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("expected 2 markers left, got %d", len(left))
	}
	if !left[0].CreatedAt.Before(left[1].CreatedAt) {
		t.Fatalf("expected markers oldest-first")
	}
}

func TestVoteMessage_Upserts(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	c := seedChat(t, repo, 1)
	m := seedMessage(t, repo, c.ID, RoleAssistant, time.Now())

	if err := repo.VoteMessage(ctx, c.ID, m.ID, true); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if err := repo.VoteMessage(ctx, c.ID, m.ID, false); err != nil {
		t.Fatalf("re-vote: %v", err)
	}

	votes, err := repo.GetVotesByChatID(ctx, c.ID)
	if err != nil {
		t.Fatalf("votes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected a single vote row, got %d", len(votes))
	}
	if votes[0].IsUpvoted {
		t.Fatalf("expected re-vote to flip is_upvoted")
	}
}
