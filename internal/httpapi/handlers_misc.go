package httpapi

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
)

func (h *handlers) healthz(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) sysinfo(c *fiber.Ctx) error {
	return c.JSON(SysInfo{
		Version:           h.deps.Config.Version,
		GoVersion:         runtime.Version(),
		UptimeSeconds:     int64(time.Since(h.deps.StartedAt).Seconds()),
		SessionCount:      len(h.deps.Sessions.List()),
		ObjectStoreCount:  h.deps.Stores.Count(),
		ExternalDBCount:   h.deps.ExternalD.Count(),
		RegisteredPlugins: h.deps.Plugins.Count(),
	})
}
