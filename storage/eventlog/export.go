package eventlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	Seq        int64  `parquet:"name=seq, type=INT64"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	Hash       string `parquet:"name=hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	PrevHash   string `parquet:"name=prev_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Export describes a finished parquet export.
type Export struct {
	Path    string `json:"path"`
	Rows    int    `json:"rows"`
	FromSeq uint64 `json:"fromSeq"`
	ToSeq   uint64 `json:"toSeq"`
}

// ExportParquet writes every record after the supplied sequence number to a
// snappy-compressed parquet file in dir. An empty range produces no file.
func (l *Log) ExportParquet(ctx context.Context, dir string, after uint64) (Export, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Export{}, fmt.Errorf("eventlog: create export dir: %w", err)
	}
	var rows []Record
	cursor := after
	for {
		page, err := l.Query(ctx, Filter{After: cursor, Limit: MaxQueryLimit})
		if err != nil {
			return Export{}, err
		}
		rows = append(rows, page...)
		if len(page) < MaxQueryLimit {
			break
		}
		cursor = page[len(page)-1].Seq
	}
	if len(rows) == 0 {
		return Export{FromSeq: after + 1, ToSeq: after}, nil
	}
	out := Export{
		Rows:    len(rows),
		FromSeq: rows[0].Seq,
		ToSeq:   rows[len(rows)-1].Seq,
	}
	out.Path = filepath.Join(dir, fmt.Sprintf("events-%012d-%012d.parquet", out.FromSeq, out.ToSeq))
	if err := writeParquet(out.Path, rows); err != nil {
		return Export{}, err
	}
	return out, nil
}

func writeParquet(path string, rows []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("eventlog: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("eventlog: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range rows {
		pr := &parquetRow{
			Seq:        int64(rec.Seq),
			Type:       rec.Type,
			Attributes: rec.Attributes,
			Hash:       rec.Hash,
			PrevHash:   rec.PrevHash,
			CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(pr); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("eventlog: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("eventlog: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("eventlog: close parquet file: %w", err)
	}
	return nil
}
