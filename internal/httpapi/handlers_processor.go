package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sal-openlab/datafusion-server/internal/merge"
)

func (h *handlers) runProcessor(c *fiber.Ctx, body any) error {
	req := body.(*ProcessorInput)

	sc, err := h.session(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	for _, mp := range req.MergeProcessors {
		p, err := toMergeProgram(mp)
		if err != nil {
			return writeError(c, err)
		}

		if err := merge.Execute(c.Context(), sc, p); err != nil {
			return writeError(c, err)
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}
