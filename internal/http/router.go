// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resortdispatch/internal/http/handlers"
	"resortdispatch/internal/http/middleware"
	"resortdispatch/internal/logger"
)

func NewRouter(deps ServerDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logger.NopLogger{}
	}
	r := gin.New()
	r.Use(middleware.Logging(deps.Logger), middleware.Recovery(deps.Logger))

	api := r.Group("/api")

	dispatch := handlers.NewDispatchHandler(deps.Dispatcher, deps.Ticker)
	api.POST("/assign/:domain", dispatch.Assign)
	api.POST("/auto-assign/tick", dispatch.Tick)

	requests := handlers.NewRequestHandler(deps.Requests)
	api.POST("/requests", requests.Create)
	api.GET("/requests", requests.List)
	api.GET("/requests/:id", requests.Get)
	api.POST("/requests/:id/arrive", requests.Arrive)
	api.POST("/requests/:id/pickup", requests.PickUp)
	api.POST("/requests/:id/complete", requests.Complete)
	api.POST("/requests/:id/cancel", requests.Cancel)
	api.POST("/merge", requests.Merge)
	api.GET("/merge/candidates", requests.MergeCandidates)

	fleet := handlers.NewFleetHandler(deps.Fleet)
	api.GET("/fleet-config", fleet.Get)
	api.PUT("/fleet-config", fleet.Update)

	workers := handlers.NewWorkerHandler(deps.Workers)
	api.GET("/workers", workers.List)
	api.GET("/workers/nearby", workers.Nearby)
	api.PUT("/workers/:id", workers.Register)
	api.POST("/workers/:id/heartbeat", workers.Heartbeat)

	locations := handlers.NewLocationHandler(deps.Locations)
	api.GET("/locations", locations.List)
	api.GET("/locations/resolve", locations.Resolve)
	api.POST("/locations/refresh", locations.Refresh)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
