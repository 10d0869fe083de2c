package dataset

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/ppiankov/logvars/internal/logparse"
)

// jsonlRecord is one line of JSONL output: the variable plus its group.
type jsonlRecord struct {
	Group string `json:"group"`
	logparse.Variable
}

type jsonlWriter struct {
	buf *bufio.Writer
	enc *json.Encoder
}

func newJSONLWriter(w io.Writer) *jsonlWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &jsonlWriter{buf: buf, enc: enc}
}

func (w *jsonlWriter) Write(r Row) error {
	return w.enc.Encode(jsonlRecord{Group: r.Group, Variable: r.Variable})
}

func (w *jsonlWriter) Close() error {
	return w.buf.Flush()
}
