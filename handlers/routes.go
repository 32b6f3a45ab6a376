package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mabletask/funnel/middleware"
)

// Router bundles every handler group and the middleware settings they need.
type Router struct {
	Auth     *AuthHandlers
	Ingest   *IngestHandlers
	Reports  *ReportHandlers
	Pipeline *PipelineHandlers

	APIKey      string
	JWTSecret   []byte
	IngestRPS   float64
	IngestBurst int
}

// Register mounts all routes under /api on r.
func (rt *Router) Register(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

		api.POST("/signup", rt.Auth.Signup)
		api.POST("/login", rt.Auth.Login)
		api.POST("/logout", rt.Auth.Logout)

		protected := api.Group("/")
		protected.Use(middleware.AuthRequired(rt.APIKey, rt.JWTSecret))
		{
			protected.POST("/events", middleware.RateLimit(rt.IngestRPS, rt.IngestBurst), rt.Ingest.TrackEvents)

			protected.GET("/summaries", rt.Reports.ListSummaries)
			protected.GET("/summaries/:session_id", rt.Reports.GetSummary)
			protected.GET("/funnel", rt.Reports.GetFunnel)
			protected.GET("/sessions", rt.Reports.ListSessions)
			protected.GET("/quarantine/:reason", rt.Reports.ListQuarantine)
			protected.GET("/prices", rt.Reports.ListPriceVariations)

			protected.GET("/pipeline/runs/latest", rt.Reports.LatestRun)
		}

		// Pipeline control is for operators holding the API key only.
		control := api.Group("/pipeline")
		control.Use(middleware.APIKeyRequired(rt.APIKey))
		{
			control.POST("/run", rt.Pipeline.TriggerRun)
			control.POST("/reset", rt.Pipeline.ResetWatermark)
		}
	}
}
