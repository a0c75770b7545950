package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sal-openlab/datafusion-server/internal/mlog"
)

const headerCorrelationID = "X-Correlation-Id"

// withCorrelationID assigns an incoming request a correlation id,
// generating one when the client did not send one, and echoes it back
// on the response (common/net/http/withCorrelationID.go's pattern).
func withCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(headerCorrelationID)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(headerCorrelationID, id)
		c.Locals(headerCorrelationID, id)

		return c.Next()
	}
}

// withRequestLogging logs one line per request at Info level with
// method, path, status and duration, mirroring the teacher's
// WithHTTPLogging access-log middleware but against this server's
// narrower mlog.Logger interface.
func withRequestLogging(logger mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/healthz" {
			return c.Next()
		}

		start := time.Now()
		correlationID, _ := c.Locals(headerCorrelationID).(string)

		err := c.Next()

		logger.WithFields(
			"correlation_id", correlationID,
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
		).Info("http request")

		return err
	}
}
