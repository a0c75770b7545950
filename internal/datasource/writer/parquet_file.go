package writer

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
)

// WriteParquet writes records to fileName with Snappy compression,
// the original's WriterProperties choice.
func WriteParquet(records []arrow.Record, fileName string) error {
	if len(records) == 0 {
		return nil
	}

	f, err := os.Create(fileName)
	if err != nil {
		return apperr.Parquet(fmt.Errorf("create %q: %w", fileName, err))
	}
	defer f.Close()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithCreatedBy("datafusion-server"),
	)

	w, err := pqarrow.NewFileWriter(records[0].Schema(), f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return apperr.Parquet(fmt.Errorf("open parquet writer for %q: %w", fileName, err))
	}

	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return apperr.Parquet(fmt.Errorf("write parquet batch to %q: %w", fileName, err))
		}
	}

	if err := w.Close(); err != nil {
		return apperr.Parquet(fmt.Errorf("close parquet writer for %q: %w", fileName, err))
	}

	return nil
}
