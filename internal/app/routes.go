package app

import (
	"net/http"
	"time"

	"github.com/docverse/core/internal/middleware"
	"github.com/docverse/core/internal/modules/chat"
	"github.com/docverse/core/internal/modules/document"
	"github.com/docverse/core/internal/modules/gateway"
	"github.com/docverse/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":    "docverse-core",
		"version": "1.0.0",
	}

	// WebSocket gateway lives at the root so socket.io clients find it at
	// the default path.
	root := r.Group("")
	gateway.RegisterRoutes(root, a.hub, authMW)

	api := r.Group(apiPrefix)

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/info", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"timestamp": time.Since(processStart).Milliseconds()})
	})

	document.NewHandler(a.documents).RegisterRoutes(api, authMW)
	chat.NewHandler(a.chatSvc, a.coordinator).RegisterRoutes(api, authMW)

	// Cron administration
	api.GET("/cron", authMW, func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	api.POST("/cron/:name/run", authMW, func(c *gin.Context) {
		if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.OK(c, gin.H{"ok": true})
	})
}
