package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loomlabs/chatloom/internal/common"
	"github.com/loomlabs/chatloom/internal/document"
)

// GetDocument returns every version of a document, oldest first. Only
// the owner may read; image kind is never served since no handler
// produces it.
func (h *Handler) GetDocument(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id := c.Query("id")
	if id == "" || !common.IsUUID(id) {
		common.Fail(c, http.StatusBadRequest, 10002, "id must be a uuid")
		return
	}

	docs, err := h.DocRepo.GetDocumentsByID(c.Request.Context(), id)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if len(docs) == 0 {
		common.Fail(c, http.StatusNotFound, 40401, "document not found")
		return
	}
	if docs[0].UserID != uid {
		common.Fail(c, http.StatusForbidden, 40301, "not the document owner")
		return
	}
	common.OK(c, docs)
}

type saveDocumentReq struct {
	Title   string        `json:"title" binding:"required"`
	Kind    document.Kind `json:"kind" binding:"required"`
	Content string        `json:"content"`
}

// PostDocument saves a new version of a document under the given id.
func (h *Handler) PostDocument(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id := c.Query("id")
	if id == "" || !common.IsUUID(id) {
		common.Fail(c, http.StatusBadRequest, 10002, "id must be a uuid")
		return
	}

	var req saveDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if !document.ValidKind(req.Kind) || req.Kind == document.KindImage {
		common.Fail(c, http.StatusBadRequest, 10003, "unsupported document kind")
		return
	}

	// Existing ids stay with their owner.
	if existing, err := h.DocRepo.GetDocumentByID(c.Request.Context(), id); err == nil {
		if existing.UserID != uid {
			common.Fail(c, http.StatusForbidden, 40301, "not the document owner")
			return
		}
	}

	doc := &document.Document{
		ID:      id,
		UserID:  uid,
		Title:   req.Title,
		Kind:    req.Kind,
		Content: req.Content,
	}
	if err := h.DocRepo.SaveDocument(c.Request.Context(), doc); err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, doc)
}

// DeleteDocumentVersions drops every version newer than the given
// timestamp, suggestions included.
func (h *Handler) DeleteDocumentVersions(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id := c.Query("id")
	if id == "" || !common.IsUUID(id) {
		common.Fail(c, http.StatusBadRequest, 10002, "id must be a uuid")
		return
	}
	ts, err := time.Parse(time.RFC3339Nano, c.Query("timestamp"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "timestamp must be RFC 3339")
		return
	}

	doc, err := h.DocRepo.GetDocumentByID(c.Request.Context(), id)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if doc.UserID != uid {
		common.Fail(c, http.StatusForbidden, 40301, "not the document owner")
		return
	}

	if err := h.DocRepo.DeleteDocumentsByIDAfterTimestamp(c.Request.Context(), id, ts); err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, gin.H{"id": id, "deleted_after": ts})
}

// GetSuggestions lists suggestions for a document the caller owns.
func (h *Handler) GetSuggestions(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	documentID := c.Query("documentId")
	if documentID == "" || !common.IsUUID(documentID) {
		common.Fail(c, http.StatusBadRequest, 10002, "documentId must be a uuid")
		return
	}

	// Gate on the document's owner; suggestion rows carry the id of
	// whoever generated them, which may differ for shared chats.
	doc, err := h.DocRepo.GetDocumentByID(c.Request.Context(), documentID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	if doc.UserID != uid {
		common.Fail(c, http.StatusForbidden, 40301, "not the document owner")
		return
	}

	sugs, err := h.DocRepo.GetSuggestionsByDocumentID(c.Request.Context(), documentID)
	if err != nil {
		common.FailErr(c, err)
		return
	}
	common.OK(c, sugs)
}
