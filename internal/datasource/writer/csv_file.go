// Package writer implements save_to_file (spec.md §4 "save_to_file"):
// materializing a session table to a local file in CSV or Parquet,
// grounded on original_source/lib/src/data_source/writer/{csv_file,
// parquet_file}.rs.
package writer

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
)

// WriteCSV writes records to fileName, one arrow-go csv.Writer call
// per batch, matching the original's "open once, write every batch"
// shape.
func WriteCSV(records []arrow.Record, fileName string, hasHeader bool) error {
	if len(records) == 0 {
		return nil
	}

	f, err := os.Create(fileName)
	if err != nil {
		return apperr.RecordBatch(fmt.Errorf("create %q: %w", fileName, err))
	}
	defer f.Close()

	w := arrowcsv.NewWriter(f, records[0].Schema(), arrowcsv.WithHeader(hasHeader))

	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return apperr.RecordBatch(fmt.Errorf("write csv batch to %q: %w", fileName, err))
		}
	}

	return nil
}
