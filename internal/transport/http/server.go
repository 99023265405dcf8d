package http

import (
	"github.com/gin-gonic/gin"

	"ragchat/internal/bootstrap"
	"ragchat/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	sessionHandler := handler.NewSessionHandler(app.Sessions)
	documentHandler := handler.NewDocumentHandler(app.Sessions, app.Ingest, int64(app.Config.Retrieval.MaxUploadBytes))
	chatHandler := handler.NewChatHandler(app.Chat)

	v1 := router.Group("/api/v1")
	sessions := v1.Group("/sessions")
	sessions.POST("", sessionHandler.Create)
	sessions.DELETE("/:id", sessionHandler.Delete)

	sessions.POST("/:id/documents", documentHandler.Upload)
	sessions.GET("/:id/documents", documentHandler.List)
	sessions.POST("/:id/documents/:docID/reingest", documentHandler.Reingest)

	sessions.POST("/:id/chat", chatHandler.Chat)
	sessions.GET("/:id/history", chatHandler.History)

	return router
}
