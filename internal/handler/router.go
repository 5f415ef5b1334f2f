package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"querai-chat/internal/config"
)

func NewRouter(cfg *config.Config, chatHandler *ChatHandler) *gin.Engine {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	{
		chat := api.Group("/chat")
		{
			chat.GET("/state", chatHandler.GetState)
			chat.POST("/session", chatHandler.CreateSession)
			chat.POST("/session/clear", chatHandler.ClearAllSessions)
			chat.GET("/session/:id", chatHandler.OpenSession)
			chat.DELETE("/session/:id", chatHandler.DeleteSession)
			chat.GET("/sessions", chatHandler.GetSessionList)

			chat.POST("/source", chatHandler.SelectSource)
			chat.POST("/source/confirm", chatHandler.ConfirmSwitch)
			chat.POST("/source/cancel", chatHandler.CancelSwitch)

			chat.POST("/message", chatHandler.SendMessage)
			chat.POST("/messages/older", chatHandler.LoadOlder)
			chat.GET("/events", chatHandler.Events)
		}
		api.POST("/logout", chatHandler.Logout)
	}

	return router
}
