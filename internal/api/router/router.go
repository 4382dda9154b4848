package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/bidcloud/notification-engine/internal/api/handlers/notification"
	"github.com/bidcloud/notification-engine/internal/api/handlers/preferences"
	"github.com/bidcloud/notification-engine/internal/api/middlewares"
)

func New(notifHandler *notification.Handler, prefsHandler *preferences.Handler) *ginext.Engine {
	e := ginext.New()
	e.Use(middlewares.CORSMiddleware())
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	api := e.Group("/api/notify")
	{
		api.POST("/", notifHandler.Create)
		api.POST("/send-immediate", notifHandler.SendImmediate)
		api.GET("/:id", notifHandler.GetStatus)
		api.POST("/:id/read", notifHandler.MarkRead)
		api.GET("/user/:userID", notifHandler.GetUserFeed)
		api.POST("/user/:userID/read-all", notifHandler.MarkAllRead)
	}

	prefs := e.Group("/api/preferences")
	{
		prefs.GET("/:userID", prefsHandler.Get)
		prefs.PUT("/:userID", prefsHandler.Update)
	}

	admin := e.Group("/api/admin")
	{
		admin.POST("/notifications/process", notifHandler.ProcessNow)
	}

	return e
}
