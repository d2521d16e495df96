package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/loomlabs/chatloom/internal/common"
	"github.com/loomlabs/chatloom/internal/document"
	"github.com/loomlabs/chatloom/internal/httpapi/middleware"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&document.Document{}, &document.Suggestion{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func getSuggestionsAs(t *testing.T, h *Handler, uid uint64, documentID string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/suggestions?documentId="+documentID, nil)
	c.Set(middleware.UserIDKey, uid)
	h.GetSuggestions(c)
	return w
}

func TestGetSuggestions_GatesOnDocumentOwner(t *testing.T) {
	db := openTestDB(t)
	repo := document.NewRepo(db)
	h := &Handler{DocRepo: repo}
	ctx := context.Background()

	const owner, reviewer = uint64(1), uint64(2)
	doc := &document.Document{
		ID:     common.NewUUID(),
		UserID: owner,
		Title:  "essay",
		Kind:   document.KindText,
	}
	if err := repo.SaveDocument(ctx, doc); err != nil {
		t.Fatalf("save document: %v", err)
	}
	// Suggestion authored by someone other than the document owner.
	err := repo.SaveSuggestions(ctx, []document.Suggestion{{
		ID:                common.NewUUID(),
		DocumentID:        doc.ID,
		DocumentCreatedAt: doc.CreatedAt,
		UserID:            reviewer,
		OriginalText:      "a",
		SuggestedText:     "b",
	}})
	if err != nil {
		t.Fatalf("save suggestions: %v", err)
	}

	if w := getSuggestionsAs(t, h, reviewer, doc.ID); w.Code != http.StatusForbidden {
		t.Fatalf("non-owner status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if w := getSuggestionsAs(t, h, owner, doc.ID); w.Code != http.StatusOK {
		t.Fatalf("owner status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestGetSuggestions_UnknownDocument(t *testing.T) {
	db := openTestDB(t)
	h := &Handler{DocRepo: document.NewRepo(db)}

	if w := getSuggestionsAs(t, h, 1, common.NewUUID()); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
