package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/loomlabs/chatloom/internal/common"
	"github.com/loomlabs/chatloom/internal/config"
	"github.com/loomlabs/chatloom/internal/httpapi/handlers"
	"github.com/loomlabs/chatloom/internal/httpapi/middleware"
	"github.com/loomlabs/chatloom/internal/stream"
	"github.com/loomlabs/chatloom/internal/tasks"
	"github.com/loomlabs/chatloom/internal/turn"
)

func NewRouter(db *gorm.DB, cfg config.Config, broker stream.Broker, registry *tasks.Registry, events turn.EventPublisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, broker, registry, events)

	r.GET("/ping", h.Ping)

	// users
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUserByID)
	r.POST("/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// chat turns and streams (JWT required)
	authGroup.POST("/chat", h.PostChat)
	authGroup.GET("/chat/:chat_id/stream", h.ResumeStream)
	authGroup.GET("/chat/:chat_id/messages", h.GetMessages)
	authGroup.PATCH("/chat/:chat_id/visibility", h.UpdateVisibility)
	authGroup.DELETE("/chat", h.DeleteChat)
	authGroup.DELETE("/message", h.DeleteTrailingMessages)
	authGroup.GET("/history", h.GetHistory)

	// votes
	authGroup.GET("/vote", h.GetVotes)
	authGroup.PATCH("/vote", h.PatchVote)

	// documents
	authGroup.GET("/document", h.GetDocument)
	authGroup.POST("/document", h.PostDocument)
	authGroup.DELETE("/document", h.DeleteDocumentVersions)
	authGroup.GET("/suggestions", h.GetSuggestions)

	return r
}
