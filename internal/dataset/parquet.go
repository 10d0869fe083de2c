package dataset

import (
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const parquetBatchSize = 50000

// parquetRow is the Parquet schema struct.
type parquetRow struct {
	Group     string `parquet:"group"`
	Name      string `parquet:"name"`
	Value     string `parquet:"value"`
	Type      string `parquet:"type"`
	Line      int64  `parquet:"line"`
	Timestamp string `parquet:"timestamp"`
	Session   string `parquet:"session"`
}

type parquetWriter struct {
	writer *parquet.GenericWriter[parquetRow]
	batch  []parquetRow
}

func newParquetWriter(w io.Writer) *parquetWriter {
	return &parquetWriter{
		writer: parquet.NewGenericWriter[parquetRow](w,
			parquet.Compression(&zstd.Codec{}),
		),
		batch: make([]parquetRow, 0, 1024),
	}
}

func (w *parquetWriter) Write(r Row) error {
	w.batch = append(w.batch, parquetRow{
		Group:     r.Group,
		Name:      r.Name,
		Value:     r.Value,
		Type:      r.Type.String(),
		Line:      int64(r.Line),
		Timestamp: r.Timestamp,
		Session:   r.Session,
	})
	if len(w.batch) >= parquetBatchSize {
		return w.flush()
	}
	return nil
}

func (w *parquetWriter) flush() error {
	if len(w.batch) == 0 {
		return nil
	}
	_, err := w.writer.Write(w.batch)
	w.batch = w.batch[:0]
	return err
}

func (w *parquetWriter) Close() error {
	if err := w.flush(); err != nil {
		_ = w.writer.Close()
		return err
	}
	return w.writer.Close()
}
