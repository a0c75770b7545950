package httpapi

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
)

func (h *handlers) listSessions(c *fiber.Ctx) error {
	sessions := h.deps.Sessions.List()

	out := make([]SessionInfo, len(sessions))
	for i, sc := range sessions {
		out[i] = toSessionInfo(sc.ID, sc.TTL(), sc.KeepAlive(), len(sc.DataSourceNames()))
	}

	return c.JSON(out)
}

func (h *handlers) createSession(c *fiber.Ctx) error {
	var keepAlive time.Duration

	if raw := c.Query("keepAlive"); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return writeError(c, apperr.RequestValidation("invalid keepAlive %q", raw))
		}

		keepAlive = time.Duration(secs) * time.Second
	}

	id, err := h.deps.Sessions.CreateSession("", keepAlive)
	if err != nil {
		return writeError(c, err)
	}

	sc, err := h.session(id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(toSessionInfo(sc.ID, sc.TTL(), sc.KeepAlive(), 0))
}

func (h *handlers) sessionInfo(c *fiber.Ctx) error {
	sc, err := h.session(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(toSessionInfo(sc.ID, sc.TTL(), sc.KeepAlive(), len(sc.DataSourceNames())))
}

func (h *handlers) destroySession(c *fiber.Ctx) error {
	if err := h.deps.Sessions.DestroySession(c.Params("id")); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
