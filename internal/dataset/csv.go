package dataset

import (
	"bufio"
	"io"
)

type csvWriter struct {
	buf *bufio.Writer
}

func newCSVWriter(w io.Writer) (*csvWriter, error) {
	buf := bufio.NewWriter(w)
	if _, err := buf.WriteString(csvRecord(csvHeader) + "\n"); err != nil {
		return nil, err
	}
	return &csvWriter{buf: buf}, nil
}

func (w *csvWriter) Write(r Row) error {
	_, err := w.buf.WriteString(csvRecord(rowFields(r)) + "\n")
	return err
}

func (w *csvWriter) Close() error {
	return w.buf.Flush()
}
