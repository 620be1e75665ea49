package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/edulink/classchat/internal/auth"
	"github.com/edulink/classchat/internal/blob"
	"github.com/edulink/classchat/internal/chat"
	"github.com/edulink/classchat/internal/config"
	"github.com/edulink/classchat/internal/service/contacts"
	"github.com/edulink/classchat/internal/store"
)

// NewServer builds the HTTP server: REST API, push channel, blob serving.
func NewServer(
	hub *chat.Hub,
	authService *auth.Service,
	chatService *chat.Service,
	contactsService *contacts.Service,
	blobs *blob.FSStore,
	users store.UserStore,
	cfg config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	handlers := NewAPIHandlers(authService, chatService, contactsService, blobs, users, logger)

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	router.POST("/api/login", handlers.Login)
	router.Static(cfg.BlobBaseURL, blobs.Dir())
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger)))

	api := router.Group("/api", AuthMiddleware(authService, logger))
	api.GET("/contacts", handlers.Contacts)
	api.POST("/messages", handlers.SendMessage)
	api.GET("/messages", handlers.History)
	api.POST("/attachments", handlers.Upload)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
