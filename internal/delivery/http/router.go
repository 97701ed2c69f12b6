package http

import (
	"github.com/gin-gonic/gin"

	"github.com/ripplehq/ripple-backend/internal/delivery/http/handler"
	"github.com/ripplehq/ripple-backend/internal/delivery/http/middleware"
	"github.com/ripplehq/ripple-backend/internal/realtime"
)

type Router struct {
	profileHandler  *handler.ProfileHandler
	nearbyHandler   *handler.NearbyHandler
	waveHandler     *handler.WaveHandler
	chatHandler     *handler.ChatHandler
	groupHandler    *handler.GroupHandler
	realtimeHandler *realtime.Handler
	authMiddleware  *middleware.AuthMiddleware
}

func NewRouter(
	profileHandler *handler.ProfileHandler,
	nearbyHandler *handler.NearbyHandler,
	waveHandler *handler.WaveHandler,
	chatHandler *handler.ChatHandler,
	groupHandler *handler.GroupHandler,
	realtimeHandler *realtime.Handler,
	authMiddleware *middleware.AuthMiddleware,
) *Router {
	return &Router{
		profileHandler:  profileHandler,
		nearbyHandler:   nearbyHandler,
		waveHandler:     waveHandler,
		chatHandler:     chatHandler,
		groupHandler:    groupHandler,
		realtimeHandler: realtimeHandler,
		authMiddleware:  authMiddleware,
	}
}

func (r *Router) Setup() *gin.Engine {
	router := gin.Default()

	healthHandler := func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	router.GET("/ws", r.authMiddleware.RequireAuth(), r.realtimeHandler.Serve)

	v1 := router.Group("/api/v1")
	v1.Use(r.authMiddleware.RequireAuth())
	{
		profile := v1.Group("/profile")
		{
			profile.GET("/me", r.profileHandler.GetMyProfile)
			profile.PUT("/me", r.profileHandler.UpdateMyProfile)
			profile.PUT("/me/location", r.profileHandler.UpdateLocation)
			profile.GET("/:user_id", r.profileHandler.ViewProfile)
			profile.POST("/:user_id/analysis", r.profileHandler.EnsureAnalysis)
		}

		blocks := v1.Group("/blocks")
		{
			blocks.POST("/:user_id", r.profileHandler.Block)
			blocks.DELETE("/:user_id", r.profileHandler.Unblock)
		}

		v1.GET("/nearby", r.nearbyHandler.ListNearby)

		waves := v1.Group("/waves")
		{
			waves.POST("", r.waveHandler.Send)
			waves.GET("/incoming", r.waveHandler.ListIncoming)
			waves.GET("/outgoing", r.waveHandler.ListOutgoing)
			waves.POST("/:wave_id/respond", r.waveHandler.Respond)
			waves.DELETE("/:wave_id", r.waveHandler.Cancel)
		}

		conversations := v1.Group("/conversations")
		{
			conversations.GET("", r.chatHandler.ListConversations)
			conversations.GET("/:conversation_id", r.chatHandler.GetConversation)
			conversations.GET("/:conversation_id/messages", r.chatHandler.History)
			conversations.POST("/:conversation_id/messages", r.chatHandler.SendMessage)
			conversations.DELETE("/:conversation_id/messages/:message_id", r.chatHandler.DeleteMessage)
			conversations.POST("/:conversation_id/messages/:message_id/reactions", r.chatHandler.React)
			conversations.POST("/:conversation_id/read", r.chatHandler.MarkRead)
			conversations.GET("/:conversation_id/search", r.chatHandler.Search)
		}

		groups := v1.Group("/groups")
		{
			groups.POST("", r.groupHandler.Create)
			groups.GET("/discoverable", r.groupHandler.ListDiscoverable)
			groups.POST("/join", r.groupHandler.JoinByInvite)
			groups.PUT("/:conversation_id", r.groupHandler.Update)
			groups.POST("/:conversation_id/join", r.groupHandler.JoinDiscoverable)
			groups.POST("/:conversation_id/leave", r.groupHandler.Leave)
			groups.POST("/:conversation_id/members", r.groupHandler.AddMember)
			groups.DELETE("/:conversation_id/members/:user_id", r.groupHandler.RemoveMember)
			groups.PUT("/:conversation_id/members/role", r.groupHandler.SetRole)
			groups.POST("/:conversation_id/transfer", r.groupHandler.TransferOwnership)
			groups.POST("/:conversation_id/invite-code", r.groupHandler.RegenerateInviteCode)
			groups.POST("/:conversation_id/topics", r.groupHandler.CreateTopic)
		}
	}

	return router
}
