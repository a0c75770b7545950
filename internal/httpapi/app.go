// Package httpapi is the HTTP Surface (C10): a fiber app exposing
// spec.md §6's routes over the Session Manager, Merge Executor and
// Result Streamer, built the way the teacher's
// bootstrap/http.NewRouter assembles its own fiber app.
package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sal-openlab/datafusion-server/internal/config"
	"github.com/sal-openlab/datafusion-server/internal/externaldb"
	"github.com/sal-openlab/datafusion-server/internal/mlog"
	"github.com/sal-openlab/datafusion-server/internal/objectstore"
	"github.com/sal-openlab/datafusion-server/internal/plugin"
	"github.com/sal-openlab/datafusion-server/internal/session"
)

// Deps bundles every collaborator a handler may need, so NewApp and
// the handler constructors stay one call each instead of threading
// half a dozen positional arguments through routes.go.
type Deps struct {
	Config    *config.Config
	Logger    mlog.Logger
	Sessions  *session.Manager
	Stores    *objectstore.Registry
	ExternalD *externaldb.Resolver
	Plugins   *plugin.Registry
	StartedAt time.Time
}

// NewApp builds the fiber app and registers every route, returning it
// ready for Listen.
func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             int(deps.Config.UploadMaxBytes),
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(withCorrelationID())
	app.Use(withRequestLogging(deps.Logger))

	registerRoutes(app, &deps)

	return app
}

// errorHandler renders any error fiber's own routing/parsing layer
// raises (404, body-too-large, etc.) through the same ResponseBody
// shape apperr.ToResponse produces, so every error response has one
// JSON shape regardless of where it originated.
func errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(fiber.Map{"kind": "http_error", "message": fe.Message})
	}

	return writeError(c, err)
}
