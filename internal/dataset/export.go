package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/ppiankov/logvars/internal/logparse"
)

// Format identifies an export format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatJSONL   Format = "jsonl"
	FormatYAML    Format = "yaml"
	FormatParquet Format = "parquet"
	FormatXLSX    Format = "xlsx"
)

// Formats lists every supported export format.
var Formats = []Format{FormatJSON, FormatCSV, FormatJSONL, FormatYAML, FormatParquet, FormatXLSX}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "yml" {
		return FormatYAML, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format: %q", s)
}

// FormatFromPath infers the format from a file extension, ignoring a
// trailing .zst. ok is false when the extension is not recognized.
func FormatFromPath(path string) (Format, bool) {
	ext := strings.TrimPrefix(filepath.Ext(strings.TrimSuffix(path, ".zst")), ".")
	f, err := ParseFormat(ext)
	return f, err == nil
}

// compressible reports whether output of this format may be wrapped in zstd.
func (f Format) compressible() bool {
	return f != FormatParquet && f != FormatXLSX
}

// csvHeader is the column order of CSV and spreadsheet exports.
var csvHeader = []string{"Group", "Name", "Value", "Type", "Line", "Timestamp"}

// ExportProgress reports progress during a row-oriented export.
type ExportProgress struct {
	Written int64
	Total   int64
}

// Row is one variable together with the name of its group.
type Row struct {
	Group string
	logparse.Variable
}

// ExportWriter writes rows to an output format. Close flushes buffered rows
// but does not close the underlying writer.
type ExportWriter interface {
	Write(Row) error
	Close() error
}

type exportMetadata struct {
	ExportDate     string `json:"exportDate"`
	TotalVariables int    `json:"totalVariables"`
	Groups         int    `json:"groups"`
	ExportID       string `json:"exportId"`
	Redacted       bool   `json:"redacted,omitempty"`
}

type exportDocument struct {
	Metadata   exportMetadata `json:"metadata"`
	Statistics Stats          `json:"statistics"`
	Groups     []Group        `json:"groups"`
}

// exportGroups returns the filtered view, masked when a redactor is set.
func (m *Manager) exportGroups() []Group {
	groups := m.Filtered()
	if groups == nil {
		return []Group{}
	}
	if m.redactor == nil {
		return groups
	}
	out := copyGroups(groups)
	for i := range out {
		for j := range out[i].Variables {
			out[i].Variables[j] = m.redactor.Variable(out[i].Variables[j])
		}
	}
	return out
}

func (m *Manager) document() exportDocument {
	id := ""
	if m.session != nil {
		id = m.session.ID
	}
	return exportDocument{
		Metadata: exportMetadata{
			ExportDate:     m.now().UTC().Format("2006-01-02T15:04:05.000Z"),
			TotalVariables: len(m.Variables()),
			Groups:         len(m.Grouped()),
			ExportID:       id,
			Redacted:       m.redactor != nil,
		},
		Statistics: m.Statistics(),
		Groups:     m.exportGroups(),
	}
}

// ExportJSON renders the filtered view as an indented JSON document with
// metadata and statistics.
func (m *Manager) ExportJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m.document(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// ExportYAML renders the same document as ExportJSON in YAML.
func (m *Manager) ExportYAML() ([]byte, error) {
	data, err := yaml.Marshal(m.document())
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// ExportCSV renders the filtered view as CSV. Every field is quoted and
// embedded double quotes are doubled; records are joined by "\n".
func (m *Manager) ExportCSV() string {
	records := []string{csvRecord(csvHeader)}
	for _, r := range m.rows() {
		records = append(records, csvRecord(rowFields(r)))
	}
	return strings.Join(records, "\n")
}

func csvRecord(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	return b.String()
}

func rowFields(r Row) []string {
	return []string{r.Group, r.Name, r.Value, r.Type.String(), strconv.Itoa(r.Line), r.Timestamp}
}

// rows flattens the export view in group order.
func (m *Manager) rows() []Row {
	var out []Row
	for _, g := range m.exportGroups() {
		for _, v := range g.Variables {
			out = append(out, Row{Group: g.Name, Variable: v})
		}
	}
	return out
}

// Encode writes the filtered view to w in the given format.
func (m *Manager) Encode(w io.Writer, format Format, progress func(ExportProgress)) error {
	switch format {
	case FormatJSON:
		data, err := m.ExportJSON()
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case FormatYAML:
		data, err := m.ExportYAML()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	writer, err := newExportWriter(w, format)
	if err != nil {
		return fmt.Errorf("create writer: %w", err)
	}
	rows := m.rows()
	total := int64(len(rows))
	var written int64
	for _, r := range rows {
		if err := writer.Write(r); err != nil {
			_ = writer.Close()
			return fmt.Errorf("write row: %w", err)
		}
		written++
		if progress != nil && written%1000 == 0 {
			progress(ExportProgress{Written: written, Total: total})
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	if progress != nil {
		progress(ExportProgress{Written: written, Total: total})
	}
	return nil
}

// WriteFile exports the filtered view to path. A .zst suffix compresses
// text formats with zstd.
func (m *Manager) WriteFile(path string, format Format, progress func(ExportProgress)) error {
	zst := strings.HasSuffix(path, ".zst")
	if zst && !format.compressible() {
		return fmt.Errorf("format %s does not support .zst output", format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	var out io.Writer = f
	var enc *zstd.Encoder
	if zst {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("zstd writer: %w", err)
		}
		out = enc
	}

	if err := m.Encode(out, format, progress); err != nil {
		if enc != nil {
			_ = enc.Close()
		}
		_ = f.Close()
		return err
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			_ = f.Close()
			return fmt.Errorf("close zstd: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	m.log.Debug("export written", zap.String("path", path), zap.String("format", string(format)))
	return nil
}

func newExportWriter(w io.Writer, format Format) (ExportWriter, error) {
	switch format {
	case FormatCSV:
		return newCSVWriter(w)
	case FormatJSONL:
		return newJSONLWriter(w), nil
	case FormatParquet:
		return newParquetWriter(w), nil
	case FormatXLSX:
		return newXLSXWriter(w)
	default:
		return nil, fmt.Errorf("unsupported format: %q", format)
	}
}

// PrettyValue re-indents a StructuredData value with two spaces, keeping key
// order. Values that are not valid JSON are returned unchanged.
func PrettyValue(value string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace([]byte(value)), "", "  "); err != nil {
		return value
	}
	return buf.String()
}
