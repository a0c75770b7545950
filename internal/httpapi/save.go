package httpapi

import (
	"context"
	"fmt"
	"os"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/datasource/writer"
	"github.com/sal-openlab/datafusion-server/internal/location"
	"github.com/sal-openlab/datafusion-server/internal/session"
)

// saveToFile implements spec.md's save_to_file: materialize ds.Name's
// registered table through the engine and write it to ds.Location in
// ds.Format, local files only (CSV and Parquet, per
// original_source/lib/src/data_source/writer/{csv_file,
// parquet_file}.rs).
func saveToFile(ctx context.Context, sc *session.Context, ds datasource.DataSource) error {
	if ds.Location.Scheme != location.File {
		return apperr.UnsupportedFormat("save_to_file only supports the file scheme, got %q", ds.Location.Scheme)
	}

	if !ds.Options.Overwrite {
		if _, err := os.Stat(ds.Location.Path); err == nil {
			return apperr.AlreadyExisting("target file %q already exists", ds.Location.Path)
		}
	}

	reader, err := sc.ExecuteLogicalPlan(ctx, fmt.Sprintf("SELECT * FROM %q", ds.Name))
	if err != nil {
		return err
	}

	records := reader.Records()

	switch ds.Format {
	case location.CSV:
		hasHeader := true
		if ds.Options.HasHeaderSet {
			hasHeader = ds.Options.HasHeader
		}

		return writer.WriteCSV(records, ds.Location.Path, hasHeader)
	case location.Parquet:
		return writer.WriteParquet(records, ds.Location.Path)
	default:
		return apperr.UnsupportedFormat("save_to_file does not support format %q", ds.Format)
	}
}
