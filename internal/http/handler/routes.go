package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediagateway/internal/service"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	DB    *sql.DB
	Store Pinger
	Media service.MediaService
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers only translate HTTP to service calls and service errors back to HTTP.
func RegisterRoutes(app *fiber.App, d Deps) {
	// Health endpoint: checks DB connectivity and the bucket
	app.Get("/health", HealthCheck(d.DB, d.Store))

	// Backward-compatible simple liveness probe
	app.Get("/healthz", LivenessProbe())

	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	media := app.Group("/media")
	// Registered with Add so GET does not also claim HEAD.
	media.Add(fiber.MethodGet, "/:category/:id", DownloadMedia(d.Media))
	media.Head("/:category/:id", HeadMedia(d.Media))
	media.Post("/:category", UploadMedia(d.Media))
	media.Put("/:category/:id", ReplaceMedia(d.Media))
}
