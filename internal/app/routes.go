package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskflow/core/internal/modules/subscription"
	"github.com/taskflow/core/internal/modules/tasks"
	"github.com/taskflow/core/internal/pkg/response"
)

func (a *App) registerRoutes() {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	tasks.NewHandler(a.taskSvc).RegisterRoutes(api)
	subscription.NewHandler(a.subSvc).RegisterRoutes(api)

	// scheduler introspection and manual trigger
	api.GET("/jobs", func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	api.POST("/jobs/:name/run", func(c *gin.Context) {
		if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, "Scheduled job not found.")
			return
		}
		response.OK(c, gin.H{"message": "job triggered"})
	})
}
