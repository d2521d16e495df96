package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loomlabs/chatloom/internal/chat"
	"github.com/loomlabs/chatloom/internal/common"
)

// GetVotes lists the votes of a chat. Same read rule as the
// transcript: owner always, public chats for anyone signed in.
func (h *Handler) GetVotes(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	chatID := c.Query("chatId")
	if chatID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "chatId required")
		return
	}

	ch, err := h.Repo.GetChatByID(c.Request.Context(), chatID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if ch.UserID != uid && ch.Visibility != chat.VisibilityPublic {
		common.Fail(c, http.StatusForbidden, 40301, "not the chat owner")
		return
	}

	votes, err := h.Repo.GetVotesByChatID(c.Request.Context(), chatID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, votes)
}

type voteReq struct {
	ChatID    string `json:"chatId" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
	Type      string `json:"type" binding:"required"`
}

// PatchVote records an up or down vote on one assistant message. Only
// the chat owner may vote.
func (h *Handler) PatchVote(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req voteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Type != "up" && req.Type != "down" {
		common.Fail(c, http.StatusBadRequest, 10002, "type must be up or down")
		return
	}

	ch, err := h.Repo.GetChatByID(c.Request.Context(), req.ChatID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if ch.UserID != uid {
		common.Fail(c, http.StatusForbidden, 40301, "not the chat owner")
		return
	}

	if err := h.Repo.VoteMessage(c.Request.Context(), req.ChatID, req.MessageID, req.Type == "up"); err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"chat_id": req.ChatID, "message_id": req.MessageID, "type": req.Type})
}
