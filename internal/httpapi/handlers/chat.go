package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loomlabs/chatloom/internal/auth"
	"github.com/loomlabs/chatloom/internal/chat"
	"github.com/loomlabs/chatloom/internal/common"
	"github.com/loomlabs/chatloom/internal/httpapi/middleware"
	"github.com/loomlabs/chatloom/internal/stream"
	"github.com/loomlabs/chatloom/internal/turn"
)

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func userTypeFromContext(c *gin.Context) auth.UserType {
	v, ok := c.Get(middleware.UserTypeKey)
	if !ok {
		return auth.UserTypeStandard
	}
	t, ok := v.(auth.UserType)
	if !ok {
		return auth.UserTypeStandard
	}
	return t
}

func hintsFromRequest(c *gin.Context) turn.RequestHints {
	return turn.RequestHints{
		Latitude:  c.GetHeader("X-Geo-Latitude"),
		Longitude: c.GetHeader("X-Geo-Longitude"),
		City:      c.GetHeader("X-Geo-City"),
		Country:   c.GetHeader("X-Geo-Country"),
	}
}

// PostChat accepts one turn submission and streams the turn's frames
// back over SSE. Protocol errors before the stream opens map to JSON
// error envelopes; after that, failures arrive as error frames.
func (h *Handler) PostChat(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req chat.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	handle, err := h.Orch.Start(c.Request.Context(), turn.Input{
		Req:      req,
		UserID:   uid,
		UserType: userTypeFromContext(c),
		Hints:    hintsFromRequest(c),
	})
	if err != nil {
		common.FailErr(c, err)
		return
	}

	streamFrames(c, handle)
}

// ResumeStream reattaches to the most recent stream of a chat,
// replaying frames after the given sequence number.
func (h *Handler) ResumeStream(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chatID := c.Param("chat_id")
	var afterSeq int64
	if s := c.Query("after"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			common.Fail(c, http.StatusBadRequest, 10002, "invalid after cursor")
			return
		}
		afterSeq = n
	}

	handle, err := h.Orch.Resume(c.Request.Context(), uid, chatID, afterSeq)
	if err != nil {
		common.FailErr(c, err)
		return
	}

	streamFrames(c, handle)
}

// streamFrames drains a turn handle to the client as SSE, with a
// heartbeat so proxies keep the connection open.
func streamFrames(c *gin.Context, handle *turn.Handle) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeFrame := func(f stream.Frame) {
		fmt.Fprintf(c.Writer, "data: %s\n\n", f.EncodeJSON())
		flusher.Flush()
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case f, ok := <-handle.Frames:
			if !ok {
				return
			}
			writeFrame(f)

		case <-ticker.C:
			b, _ := json.Marshal(gin.H{"type": "ping", "ts": time.Now().Unix()})
			fmt.Fprintf(c.Writer, "event: ping\ndata: %s\n\n", b)
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) DeleteChat(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	chatID := c.Query("id")
	if chatID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "id required")
		return
	}

	deleted, err := h.Orch.DeleteChat(c.Request.Context(), uid, chatID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, deleted)
}

// GetMessages returns the full transcript of a chat. Owners may always
// read; public chats are readable by anyone signed in.
func (h *Handler) GetMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	chatID := c.Param("chat_id")

	ch, err := h.Repo.GetChatByID(c.Request.Context(), chatID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if ch.UserID != uid && ch.Visibility != chat.VisibilityPublic {
		common.Fail(c, http.StatusForbidden, 40301, "not the chat owner")
		return
	}

	msgs, err := h.Repo.GetMessagesByChatID(c.Request.Context(), chatID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"chat": ch, "messages": msgs})
}

// GetHistory lists the caller's chats, newest first, with cursor
// pagination over chat IDs.
func (h *Handler) GetHistory(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	startingAfter := c.Query("starting_after")
	endingBefore := c.Query("ending_before")
	if startingAfter != "" && endingBefore != "" {
		common.Fail(c, http.StatusBadRequest, 10003, "only one of starting_after or ending_before")
		return
	}

	chats, hasMore, err := h.Repo.GetChatsByUserID(c.Request.Context(), uid, limit, startingAfter, endingBefore)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"chats": chats, "has_more": hasMore})
}

// DeleteTrailingMessages removes a message and everything after it in
// its chat, votes included. Used when the client rewinds a chat to
// retry from an earlier point.
func (h *Handler) DeleteTrailingMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	messageID := c.Query("id")
	if messageID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "id required")
		return
	}

	msg, err := h.Repo.GetMessageByID(c.Request.Context(), messageID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	ch, err := h.Repo.GetChatByID(c.Request.Context(), msg.ChatID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if ch.UserID != uid {
		common.Fail(c, http.StatusForbidden, 40301, "not the chat owner")
		return
	}

	if err := h.Repo.DeleteMessagesByChatIDAfterTimestamp(c.Request.Context(), msg.ChatID, msg.CreatedAt); err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"chat_id": msg.ChatID})
}

type updateVisibilityReq struct {
	Visibility chat.Visibility `json:"visibility" binding:"required"`
}

func (h *Handler) UpdateVisibility(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	chatID := c.Param("chat_id")

	var req updateVisibilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Visibility != chat.VisibilityPrivate && req.Visibility != chat.VisibilityPublic {
		common.Fail(c, http.StatusBadRequest, 10002, "visibility must be private or public")
		return
	}

	ch, err := h.Repo.GetChatByID(c.Request.Context(), chatID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if ch.UserID != uid {
		common.Fail(c, http.StatusForbidden, 40301, "not the chat owner")
		return
	}

	if err := h.Repo.UpdateChatVisibilityByID(c.Request.Context(), chatID, req.Visibility); err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"id": chatID, "visibility": req.Visibility})
}
