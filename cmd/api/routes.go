package main

import (
	"database/sql"
	"time"

	"screening-platform/internal/calls"
	"screening-platform/internal/candidates"
	"screening-platform/internal/httpapi"
	"screening-platform/internal/notify"
	"screening-platform/internal/scheduler"
	"screening-platform/internal/timeexpr"
	"screening-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	db       *sql.DB
	calls    *calls.Service
	cands    candidates.Store
	notes    notify.Store
	sched    *scheduler.Scheduler
	dialer   scheduler.Dialer
	resolver *timeexpr.Resolver
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	h := httpapi.Handlers{
		Calls:         deps.calls,
		Candidates:    deps.cands,
		Notifications: deps.notes,
		Scheduler:     deps.sched,
		Dialer:        deps.dialer,
		Resolver:      deps.resolver,
	}

	api := r.Group("/api")
	{
		// Voice-engine report hooks.
		api.POST("/calls/status", h.ReportStatus)
		api.POST("/calls/data", h.SaveFinalData)

		api.GET("/calls", h.ListCalls)
		api.GET("/calls/active", h.ActiveCalls)
		api.GET("/calls/:call_id", h.GetCall)

		api.POST("/calls/retry", h.RetryCall)
		api.POST("/calls/outbound", h.OutboundCall)
		api.POST("/schedule", h.Schedule)

		api.GET("/candidates", h.ListCandidates)
		api.GET("/candidates/unsuccessful-calls", h.UnsuccessfulCalls)
		api.GET("/candidates/not-interested", h.NotInterested)
		api.GET("/candidates/:candidate_id", h.GetCandidate)

		api.GET("/notifications", h.ListNotifications)
		api.POST("/notifications/:notification_id/read", h.MarkNotificationRead)
	}
}
