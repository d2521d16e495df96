package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/loomlabs/chatloom/internal/apperr"
)

// Repo is the conversation store. Every failure surfaces as a uniform
// bad_request:database condition carrying the logical operation name,
// except lookups of absent rows which surface not_found.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) SaveChat(ctx context.Context, c *Chat) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return apperr.Database("save_chat", err)
	}
	return nil
}

func (r *Repo) GetChatByID(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "chat", "chat not found")
		}
		return nil, apperr.Database("get_chat_by_id", err)
	}
	return &c, nil
}

// GetChatsByUserID pages newest-first. startingAfter/endingBefore are
// exclusive chat-id cursors; at most one may be set.
func (r *Repo) GetChatsByUserID(ctx context.Context, userID uint64, limit int, startingAfter, endingBefore string) (chats []Chat, hasMore bool, err error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit + 1)

	cursor := func(id string) (time.Time, error) {
		var c Chat
		if err := r.db.WithContext(ctx).Select("created_at").First(&c, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return time.Time{}, apperr.New(apperr.KindNotFound, "chat", "cursor chat not found")
			}
			return time.Time{}, apperr.Database("get_chats_by_user_id", err)
		}
		return c.CreatedAt, nil
	}

	if startingAfter != "" {
		at, err := cursor(startingAfter)
		if err != nil {
			return nil, false, err
		}
		q = q.Where("created_at > ?", at)
	} else if endingBefore != "" {
		at, err := cursor(endingBefore)
		if err != nil {
			return nil, false, err
		}
		q = q.Where("created_at < ?", at)
	}

	if err := q.Find(&chats).Error; err != nil {
		return nil, false, apperr.Database("get_chats_by_user_id", err)
	}
	if len(chats) > limit {
		return chats[:limit], true, nil
	}
	return chats, false, nil
}

func (r *Repo) UpdateChatVisibilityByID(ctx context.Context, id string, visibility Visibility) error {
	if err := r.db.WithContext(ctx).Model(&Chat{}).
		Where("id = ?", id).
		Update("visibility", visibility).Error; err != nil {
		return apperr.Database("update_chat_visibility_by_id", err)
	}
	return nil
}

// DeleteChatByID cascades votes, messages and stream markers before the
// chat row, all inside one transaction. Returns the deleted chat.
func (r *Repo) DeleteChatByID(ctx context.Context, id string) (*Chat, error) {
	var deleted Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&deleted, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&Stream{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Chat{}, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "chat", "chat not found")
		}
		return nil, apperr.Database("delete_chat_by_id", err)
	}
	return &deleted, nil
}

func (r *Repo) SaveMessages(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&msgs).Error; err != nil {
		return apperr.Database("save_messages", err)
	}
	return nil
}

// GetMessagesByChatID returns the chat's messages oldest-first.
func (r *Repo) GetMessagesByChatID(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, apperr.Database("get_messages_by_chat_id", err)
	}
	return msgs, nil
}

func (r *Repo) GetMessageByID(ctx context.Context, id string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "message", "message not found")
		}
		return nil, apperr.Database("get_message_by_id", err)
	}
	return &m, nil
}

// DeleteMessagesByChatIDAfterTimestamp removes messages created at or
// after ts, deleting their votes first.
func (r *Repo) DeleteMessagesByChatIDAfterTimestamp(ctx context.Context, chatID string, ts time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&Message{}).
			Where("chat_id = ? AND created_at >= ?", chatID, ts).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("chat_id = ? AND message_id IN ?", chatID, ids).Delete(&Vote{}).Error; err != nil {
			return err
		}
		return tx.Where("chat_id = ? AND id IN ?", chatID, ids).Delete(&Message{}).Error
	})
	if err != nil {
		return apperr.Database("delete_messages_by_chat_id_after_timestamp", err)
	}
	return nil
}

// CountUserMessagesSince counts user-authored messages across all the
// user's chats created after the given instant. Read-only quota input.
func (r *Repo) CountUserMessagesSince(ctx context.Context, userID uint64, since time.Time) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Message{}).
		Joins("JOIN chats ON chats.id = messages.chat_id").
		Where("chats.user_id = ? AND messages.role = ? AND messages.created_at >= ?", userID, RoleUser, since).
		Count(&n).Error; err != nil {
		return 0, apperr.Database("count_user_messages_since", err)
	}
	return n, nil
}

func (r *Repo) CreateStreamID(ctx context.Context, streamID, chatID string) error {
	s := Stream{ID: streamID, ChatID: chatID}
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return apperr.Database("create_stream_id", err)
	}
	return nil
}

// GetStreamIDsByChatID returns the chat's stream markers oldest-first.
func (r *Repo) GetStreamIDsByChatID(ctx context.Context, chatID string) ([]Stream, error) {
	var streams []Stream
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&streams).Error; err != nil {
		return nil, apperr.Database("get_stream_ids_by_chat_id", err)
	}
	return streams, nil
}

// TrimStreamIDs deletes all but the newest keep markers of a chat.
func (r *Repo) TrimStreamIDs(ctx context.Context, chatID string, keep int) (int64, error) {
	if keep <= 0 {
		keep = 1
	}
	var keepIDs []string
	if err := r.db.WithContext(ctx).Model(&Stream{}).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(keep).
		Pluck("id", &keepIDs).Error; err != nil {
		return 0, apperr.Database("trim_stream_ids", err)
	}
	res := r.db.WithContext(ctx).
		Where("chat_id = ? AND id NOT IN ?", chatID, keepIDs).
		Delete(&Stream{})
	if res.Error != nil {
		return 0, apperr.Database("trim_stream_ids", res.Error)
	}
	return res.RowsAffected, nil
}

// VoteMessage upserts the (chat, message) vote; re-voting updates in
// place.
func (r *Repo) VoteMessage(ctx context.Context, chatID, messageID string, upvoted bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Vote
		err := tx.Where("chat_id = ? AND message_id = ?", chatID, messageID).First(&existing).Error
		if err == nil {
			return tx.Model(&Vote{}).
				Where("chat_id = ? AND message_id = ?", chatID, messageID).
				Update("is_upvoted", upvoted).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&Vote{ChatID: chatID, MessageID: messageID, IsUpvoted: upvoted}).Error
	})
	if err != nil {
		return apperr.Database("vote_message", err)
	}
	return nil
}

func (r *Repo) GetVotesByChatID(ctx context.Context, chatID string) ([]Vote, error) {
	var votes []Vote
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Find(&votes).Error; err != nil {
		return nil, apperr.Database("get_votes_by_chat_id", err)
	}
	return votes, nil
}
