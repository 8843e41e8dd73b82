package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/auth"
	"github.com/chattu-app/chattu-server/internal/config"
	"github.com/chattu-app/chattu-server/internal/core"
	"github.com/chattu-app/chattu-server/internal/service/chats"
	"github.com/chattu-app/chattu-server/internal/service/messages"
	"github.com/chattu-app/chattu-server/internal/service/requests"
	"github.com/chattu-app/chattu-server/internal/store"
)

// Services bundles the application services the transport depends on.
type Services struct {
	Auth     *auth.Service
	Chats    *chats.Service
	Messages *messages.Service
	Requests *requests.Service
	Presence *core.Presence
	Store    store.Store
}

// NewServer builds the HTTP server with all routes.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/media", cfg.MediaDir)

	apiHandlers := NewAPIHandlers(svc.Auth, svc.Store, logger)
	chatHandlers := NewChatHandlers(svc.Chats, svc.Store, logger)
	messageHandlers := NewMessageHandlers(svc.Messages, logger)
	requestHandlers := NewRequestHandlers(svc.Requests, svc.Store, logger)
	wsHandler := NewWSHandler(svc.Auth, svc.Presence, logger)

	router.GET("/ws", wsHandler.Handle)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authed := api.Group("", AuthMiddleware(svc.Auth, logger))
	authed.GET("/users/me", apiHandlers.Me)
	authed.GET("/users/search", apiHandlers.SearchUsers)

	authed.GET("/chats", chatHandlers.ListChats)
	authed.GET("/chats/groups", chatHandlers.ListGroups)
	authed.POST("/chats/group", chatHandlers.CreateGroup)
	authed.GET("/chats/:id", chatHandlers.GetChat)
	authed.PUT("/chats/:id", chatHandlers.RenameGroup)
	authed.DELETE("/chats/:id", chatHandlers.DeleteChat)
	authed.PUT("/chats/:id/members", chatHandlers.AddMembers)
	authed.DELETE("/chats/:id/members/:userId", chatHandlers.RemoveMember)
	authed.DELETE("/chats/:id/leave", chatHandlers.LeaveGroup)
	authed.GET("/chats/:id/messages", messageHandlers.ListMessages)
	authed.POST("/chats/:id/messages", messageHandlers.SendMessage)

	authed.GET("/friends", requestHandlers.ListFriends)
	authed.POST("/requests", requestHandlers.SendRequest)
	authed.GET("/requests", requestHandlers.ListPending)
	authed.POST("/requests/:id/accept", requestHandlers.Accept)
	authed.POST("/requests/:id/reject", requestHandlers.Reject)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	fmt.Fprint(c.Writer, "ok")
}
