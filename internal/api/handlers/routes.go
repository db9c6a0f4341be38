package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/premsagar786/printsmart/internal/api/middleware"
)

// RegisterRoutes wires the REST surface. Customer-facing reads and
// submission are public; everything that mutates queue configuration,
// walks jobs through production or touches accounts requires a
// logged-in operator.
func RegisterRoutes(r *gin.Engine, auth *middleware.AuthMiddleware, jobs *JobHandler, settings *SettingsHandler, users *UserHandler) {
	api := r.Group("/api")

	api.POST("/auth/login", auth.LoginHandler)
	api.POST("/auth/logout", auth.LogoutHandler)
	api.GET("/auth/status", auth.StatusHandler)

	api.GET("/queue", jobs.GetQueue)
	api.POST("/queue/refresh", jobs.Refresh)
	api.POST("/jobs", jobs.CreateJob)
	api.POST("/quote", jobs.Quote)
	api.POST("/scan", jobs.Scan)
	api.POST("/documents", jobs.UploadDocument)
	api.GET("/rates", settings.GetRates)

	authed := api.Group("")
	authed.Use(auth.RequireAuth())
	{
		authed.POST("/auth/password", auth.ChangePasswordHandler)

		authed.GET("/jobs", jobs.ListJobs)
		authed.POST("/jobs/walkin", jobs.CreateWalkInJob)
		authed.POST("/jobs/:id/advance", jobs.AdvanceJob)
		authed.PUT("/jobs/:id/priority", jobs.SetPriority)
		authed.POST("/jobs/:id/paid", jobs.MarkPaid)
		authed.GET("/jobs/:id/document", jobs.GetJobDocument)
		authed.GET("/stats", jobs.GetStats)

		authed.PUT("/rates", settings.UpdateRates)
		authed.GET("/settings/notifications", settings.GetNotificationSettings)
		authed.PUT("/settings/notifications", settings.UpdateNotificationSettings)

		authed.GET("/users", users.ListUsers)
		authed.POST("/users", users.CreateUser)
		authed.DELETE("/users/:username", users.DeleteUser)
		authed.PUT("/users/:username/password", users.RotatePassword)
	}
}
