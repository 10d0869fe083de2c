package dataset

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// xlsxSheet is the worksheet that holds exported variables.
const xlsxSheet = "Variables"

type xlsxWriter struct {
	out  io.Writer
	file *excelize.File
	sw   *excelize.StreamWriter
	row  int
}

func newXLSXWriter(w io.Writer) (*xlsxWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stream writer: %w", err)
	}
	xw := &xlsxWriter{out: w, file: f, sw: sw, row: 1}
	header := make([]interface{}, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := xw.setRow(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return xw, nil
}

func (w *xlsxWriter) setRow(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.sw.SetRow(cell, values); err != nil {
		return err
	}
	w.row++
	return nil
}

func (w *xlsxWriter) Write(r Row) error {
	return w.setRow([]interface{}{r.Group, r.Name, r.Value, r.Type.String(), r.Line, r.Timestamp})
}

func (w *xlsxWriter) Close() error {
	defer func() { _ = w.file.Close() }()
	if err := w.sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := w.file.Write(w.out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
