package httpapi

import (
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/schema"
)

func (h *handlers) listDataSources(c *fiber.Ctx) error {
	sc, err := h.session(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(sc.DataSourceNames())
}

func (h *handlers) appendDataSources(c *fiber.Ctx, body any) error {
	req := body.(*DataSourcesRequest)
	id := c.Params("id")

	for _, in := range req.DataSources {
		ds, err := h.toDataSource(in)
		if err != nil {
			return writeError(c, err)
		}

		if err := h.deps.Sessions.AppendDataSource(c.Context(), id, ds); err != nil {
			return writeError(c, err)
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// uploadDataSource implements POST /session/{id}/datasource/upload:
// a multipart file plus a "name" field and optional "format"/options
// fields, enforcing config.UploadMaxBytes before the reader ever sees
// the payload (fiber's BodyLimit already rejects oversized bodies at
// the app level; this re-checks the declared file size so the 413
// response names the right kind before any parsing is attempted).
func (h *handlers) uploadDataSource(c *fiber.Ctx) error {
	id := c.Params("id")

	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, apperr.RequestValidation("missing multipart field \"file\": %s", err))
	}

	if fh.Size > h.deps.Config.UploadMaxBytes {
		return writeError(c, apperr.PayloadTooLarge("upload %d bytes exceeds limit of %d", fh.Size, h.deps.Config.UploadMaxBytes))
	}

	name := c.FormValue("name")
	if name == "" {
		return writeError(c, apperr.RequestValidation("missing multipart field \"name\""))
	}

	format := location.Format(0)
	if raw := c.FormValue("format"); raw != "" {
		format, err = location.ParseFormat(raw)
	} else {
		format, err = location.ResolveFormat(fh.Header.Get("Content-Type"), fh.Filename)
	}

	if err != nil {
		return writeError(c, err)
	}

	saved := filepath.Join(h.deps.Config.UploadDir, fmt.Sprintf("%s-%s", id, fh.Filename))

	if err := c.SaveFile(fh, saved); err != nil {
		return writeError(c, apperr.RecordBatch(fmt.Errorf("save uploaded file: %w", err)))
	}

	loc, err := location.ParseLocation(saved, h.deps.Plugins.HasScheme)
	if err != nil {
		return writeError(c, err)
	}

	ds := datasource.DataSource{
		Name:     name,
		Format:   format,
		Location: loc,
		Options: datasource.Options{
			InferSchemaRows: datasource.UploadInferSchemaRows,
			Overwrite:       c.FormValue("overwrite") == "true",
		},
	}

	if err := h.deps.Sessions.AppendDataSource(c.Context(), id, ds); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) saveDataSources(c *fiber.Ctx, body any) error {
	req := body.(*DataSourcesRequest)
	id := c.Params("id")

	sc, err := h.session(id)
	if err != nil {
		return writeError(c, err)
	}

	for _, in := range req.DataSources {
		ds, err := h.toDataSource(in)
		if err != nil {
			return writeError(c, err)
		}

		if err := saveToFile(c.Context(), sc, ds); err != nil {
			return writeError(c, err)
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) dataSourceDetail(c *fiber.Ctx) error {
	sc, err := h.session(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	name := c.Params("name")

	ds, ok := sc.DataSource(name)
	if !ok {
		return writeError(c, apperr.RequestValidation("data source %q does not exist", name))
	}

	reader, err := sc.ExecuteLogicalPlan(c.Context(), fmt.Sprintf("SELECT * FROM %q LIMIT 0", name))
	if err != nil {
		return writeError(c, err)
	}

	sch := schema.FromArrowSchema(reader.Schema())
	fields := make([]SchemaFieldInput, len(sch.Fields))

	for i, f := range sch.Fields {
		fields[i] = SchemaFieldInput{Name: f.Name, Dtype: f.Dtype.Kind.String(), Nullable: f.Nullable}
	}

	return c.JSON(DataSourceDetail{Name: name, Format: ds.Format.String(), Schema: fields})
}

func (h *handlers) removeDataSource(c *fiber.Ctx) error {
	sc, err := h.session(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	if err := sc.RemoveDataSource(c.Params("name")); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) refreshDataSource(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.deps.Sessions.RefreshDataSource(c.Context(), id, c.Params("name")); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
