package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/gofiber/fiber/v2"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource/arrowreader"
	"github.com/sal-openlab/datafusion-server/internal/merge"
	"github.com/sal-openlab/datafusion-server/internal/plugin"
	"github.com/sal-openlab/datafusion-server/internal/session"
	"github.com/sal-openlab/datafusion-server/internal/stream"
)

// dataframeQuery implements POST /dataframe/query: spec.md §2's
// control flow for a stateless request — an ephemeral session is
// created, every declared source ingested, the merge processor (if
// any) executed, the query run, and the session torn down before the
// response finishes writing.
func (h *handlers) dataframeQuery(c *fiber.Ctx, body any) error {
	req := body.(*DataFrameQueryRequest)
	ctx := c.Context()

	id, err := h.deps.Sessions.CreateSession("", 0)
	if err != nil {
		return writeError(c, err)
	}

	defer func() {
		_ = h.deps.Sessions.DestroySession(id)
	}()

	sc, err := h.session(id)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.ingestAndRun(ctx, sc, req.DataSources, req.Variables, req.Processor); err != nil {
		return writeError(c, err)
	}

	return h.writeQueryResult(c, sc, req.Query.SQL, req.Query.PostProcessors, req.Response)
}

// ingestAndRun registers every declared data source, binds variables
// and executes the merge processor, shared by dataframeQuery's
// ephemeral session and any future stateful equivalent.
func (h *handlers) ingestAndRun(ctx context.Context, sc *session.Context, sources []DataSourceInput, vars map[string]VariableVal, proc *ProcessorInput) error {
	for _, in := range sources {
		ds, err := h.toDataSource(in)
		if err != nil {
			return err
		}

		if err := h.deps.Sessions.AppendDataSource(ctx, sc.ID, ds); err != nil {
			return err
		}
	}

	for name, v := range vars {
		sc.SetVariable(toVariable(name, v))
	}

	if proc == nil {
		return nil
	}

	for _, mp := range proc.MergeProcessors {
		p, err := toMergeProgram(mp)
		if err != nil {
			return err
		}

		if err := merge.Execute(ctx, sc, p); err != nil {
			return err
		}
	}

	return nil
}

// sessionQuery implements POST /session/{id}/query: the body is
// either SessionQueryRequest JSON, or raw SQL text when
// Content-Type: application/sql (spec.md §6).
func (h *handlers) sessionQuery(c *fiber.Ctx) error {
	sc, err := h.session(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	var (
		sql      string
		response *ResponseOption
	)

	if c.Get(fiber.HeaderContentType) == "application/sql" {
		sql = string(c.Body())
	} else {
		var req SessionQueryRequest
		if err := decodeStrict(c.Body(), &req); err != nil {
			return writeError(c, err)
		}

		if err := validate.Struct(&req); err != nil {
			return writeError(c, translateValidationErr(err))
		}

		sql = req.SQL
		response = req.Response
	}

	if sql == "" {
		return writeError(c, apperr.RequestValidation("query body is empty"))
	}

	return h.writeQueryResult(c, sc, sql, nil, response)
}

// writeQueryResult runs sql, applies any plugin post-processors, and
// streams the result in the negotiated format.
func (h *handlers) writeQueryResult(c *fiber.Ctx, sc *session.Context, sql string, postProcessors []string, response *ResponseOption) error {
	ctx := c.Context()

	if len(postProcessors) == 0 {
		return h.streamDirect(c, sc, sql, response)
	}

	reader, err := sc.ExecuteLogicalPlan(ctx, sql)
	if err != nil {
		return writeError(c, err)
	}

	records := reader.Records()
	schema := reader.Schema()

	for _, name := range postProcessors {
		records, schema, err = h.applyPostProcessor(ctx, name, records, schema)
		if err != nil {
			return writeError(c, err)
		}
	}

	return h.writeRecords(c, records, schema, response)
}

// streamDirect runs sql and streams its result without ever
// materializing the whole thing, used when no post-processor needs
// the fully buffered records.
func (h *handlers) streamDirect(c *fiber.Ctx, sc *session.Context, sql string, response *ResponseOption) error {
	ctx := c.Context()

	explicit := explicitFormat(response)
	format := stream.Negotiate(c.Get(fiber.HeaderAccept), explicit)

	if format == stream.ArrowStream {
		rs, err := sc.ExecuteLogicalPlanStream(ctx, sql)
		if err != nil {
			return writeError(c, err)
		}

		c.Set(fiber.HeaderContentType, "application/vnd.apache.arrow.stream")

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer rs.Close()

			if err := stream.WriteArrowStream(ctx, w, rs); err != nil {
				h.deps.Logger.Warnf("stream arrow response: %s", err)
			}
		})

		return nil
	}

	reader, err := sc.ExecuteLogicalPlan(ctx, sql)
	if err != nil {
		return writeError(c, err)
	}

	return h.writeRecordsAs(c, reader.Records(), reader.Schema(), format, response)
}

func (h *handlers) writeRecords(c *fiber.Ctx, records []arrow.Record, schema *arrow.Schema, response *ResponseOption) error {
	explicit := explicitFormat(response)
	format := stream.Negotiate(c.Get(fiber.HeaderAccept), explicit)

	return h.writeRecordsAs(c, records, schema, format, response)
}

func (h *handlers) writeRecordsAs(c *fiber.Ctx, records []arrow.Record, schema *arrow.Schema, format stream.Format, response *ResponseOption) error {
	switch format {
	case stream.JSON:
		c.Set(fiber.HeaderContentType, "application/json")
		return stream.WriteJSON(c.Context().Response.BodyWriter(), records)
	case stream.CSV:
		c.Set(fiber.HeaderContentType, "text/csv")
		hasHeader, delimiter := csvOptionsFrom(response)
		return stream.WriteCSV(c.Context().Response.BodyWriter(), records, schema, hasHeader, delimiter)
	default:
		c.Set(fiber.HeaderContentType, "application/vnd.apache.arrow.stream")
		return stream.WriteArrowBuffered(c.Context().Response.BodyWriter(), records, schema)
	}
}

func explicitFormat(response *ResponseOption) *stream.ResponseFormat {
	if response == nil || response.Format == "" {
		return nil
	}

	return &stream.ResponseFormat{Format: response.Format}
}

func csvOptionsFrom(response *ResponseOption) (hasHeader bool, delimiter rune) {
	hasHeader = true
	delimiter = ','

	if response == nil || response.Options == nil {
		return hasHeader, delimiter
	}

	if v, ok := response.Options["hasHeader"].(bool); ok {
		hasHeader = v
	}

	if v, ok := response.Options["delimiter"].(string); ok && v != "" {
		delimiter = []rune(v)[0]
	}

	return hasHeader, delimiter
}

// applyPostProcessor sends the current result set to a registered
// plugin module as an Arrow IPC buffer and decodes its reply back
// into records, chaining module invocations in the order requested
// (spec.md "postProcessors").
func (h *handlers) applyPostProcessor(ctx context.Context, name string, records []arrow.Record, schema *arrow.Schema) ([]arrow.Record, *arrow.Schema, error) {
	ext, err := h.deps.Plugins.Lookup(name)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer

	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return nil, nil, apperr.RecordBatch(fmt.Errorf("encode post-processor payload: %w", err))
		}
	}

	if err := w.Close(); err != nil {
		return nil, nil, apperr.RecordBatch(fmt.Errorf("close post-processor payload: %w", err))
	}

	resp, err := ext.Process(ctx, plugin.ProcessRequest{Module: name, Payload: buf.Bytes()})
	if err != nil {
		return nil, nil, apperr.PluginInterpreter(err)
	}

	if !resp.ArrowIPC {
		return nil, nil, apperr.PluginInterpreter(fmt.Errorf("post-processor %q returned a non-Arrow buffer", name))
	}

	out, err := arrowreader.DecodeBuffer(resp.Buffer)
	if err != nil {
		return nil, nil, err
	}

	if len(out) == 0 {
		return out, schema, nil
	}

	return out, out[0].Schema(), nil
}
