package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/logvars/internal/cli"
	"github.com/ppiankov/logvars/internal/logparse"
)

func TestRunParse_Text(t *testing.T) {
	progress := captureProgress(t)
	path := writeLog(t, "run.log", sampleLog)

	popts := defaultParseOptions()
	popts.quiet = false

	var buf bytes.Buffer
	if err := runParse(context.Background(), &buf, []string{path}, popts, filterOptions{}, 1, false); err != nil {
		t.Fatalf("runParse: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "LINE") {
		t.Errorf("missing table header:\n%s", out)
	}
	for _, want := range []string{"Body", "https://api.example.com/login", "OrderId", "JSON", "URL", "ID"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Pre") {
		t.Errorf("variable before the first test case should be filtered:\n%s", out)
	}
	if strings.Contains(out, "==>") {
		t.Error("single input should not print a source header")
	}
	if !strings.Contains(progress.String(), "Extracted 3 variables from 1 input(s)") {
		t.Errorf("summary = %q", progress.String())
	}
}

func TestRunParse_JSON(t *testing.T) {
	captureProgress(t)
	path := writeLog(t, "run.log", sampleLog)

	var buf bytes.Buffer
	if err := runParse(context.Background(), &buf, []string{path}, defaultParseOptions(), filterOptions{}, 1, true); err != nil {
		t.Fatalf("runParse: %v", err)
	}

	var res parseResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if res.Count != 3 || len(res.Variables) != 3 {
		t.Fatalf("count = %d, variables = %d, want 3", res.Count, len(res.Variables))
	}
	body := res.Variables[0]
	if body.Name != "Body" || body.Type != logparse.StructuredData || body.Line != 3 || body.Session != "Login flow" {
		t.Errorf("first variable = %+v", body)
	}
}

func TestRunParse_NoFilterKeepsPreamble(t *testing.T) {
	captureProgress(t)
	path := writeLog(t, "run.log", sampleLog)

	popts := defaultParseOptions()
	popts.noFilter = true

	var buf bytes.Buffer
	if err := runParse(context.Background(), &buf, []string{path}, popts, filterOptions{}, 1, true); err != nil {
		t.Fatalf("runParse: %v", err)
	}
	var res parseResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Count != 4 || res.Variables[0].Name != "Pre" {
		t.Errorf("variables = %+v, want Pre first of 4", res.Variables)
	}
}

func TestRunParse_MultipleInputsKeepOrder(t *testing.T) {
	progress := captureProgress(t)
	a := writeLog(t, "a.log", sampleLog)
	b := writeLog(t, "b.log", "Buffer with name 'Solo' has been set to value 'one'\n")

	var buf bytes.Buffer
	if err := runParse(context.Background(), &buf, []string{a, b}, defaultParseOptions(), filterOptions{}, 2, true); err != nil {
		t.Fatalf("runParse: %v", err)
	}

	var res []parseResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results, want 2", len(res))
	}
	if res[0].Source != a || res[0].Count != 3 {
		t.Errorf("first result = %s (%d)", res[0].Source, res[0].Count)
	}
	if res[1].Source != b || res[1].Count != 1 || res[1].Variables[0].Name != "Solo" {
		t.Errorf("second result = %+v", res[1])
	}
	if progress.Len() != 0 {
		t.Errorf("quiet run wrote progress: %q", progress.String())
	}
}

func TestRunParse_MultipleInputsText(t *testing.T) {
	captureProgress(t)
	a := writeLog(t, "a.log", sampleLog)
	b := writeLog(t, "b.log", sampleLog)

	var buf bytes.Buffer
	if err := runParse(context.Background(), &buf, []string{a, b}, defaultParseOptions(), filterOptions{}, 2, false); err != nil {
		t.Fatalf("runParse: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "==> "+a+" <==") || !strings.Contains(out, "==> "+b+" <==") {
		t.Errorf("missing source headers:\n%s", out)
	}
	if strings.Index(out, a) > strings.Index(out, b) {
		t.Error("results printed out of input order")
	}
}

func TestRunParse_Stdin(t *testing.T) {
	captureProgress(t)
	withStdin(t, sampleLog)

	var buf bytes.Buffer
	if err := runParse(context.Background(), &buf, []string{"-"}, defaultParseOptions(), filterOptions{}, 1, true); err != nil {
		t.Fatalf("runParse: %v", err)
	}
	var res parseResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Source != "stdin" || res.Count != 3 {
		t.Errorf("result = %s (%d), want stdin (3)", res.Source, res.Count)
	}
}

func TestRunParse_TypeFilter(t *testing.T) {
	captureProgress(t)
	path := writeLog(t, "run.log", sampleLog)

	var buf bytes.Buffer
	fopts := filterOptions{types: []string{"url"}}
	if err := runParse(context.Background(), &buf, []string{path}, defaultParseOptions(), fopts, 1, true); err != nil {
		t.Fatalf("runParse: %v", err)
	}
	var res parseResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Count != 1 || res.Variables[0].Name != "Endpoint" {
		t.Errorf("variables = %+v, want only Endpoint", res.Variables)
	}
}

func TestRunParse_SearchWithoutMatches(t *testing.T) {
	captureProgress(t)
	path := writeLog(t, "run.log", sampleLog)

	var buf bytes.Buffer
	fopts := filterOptions{search: "zzz"}
	if err := runParse(context.Background(), &buf, []string{path}, defaultParseOptions(), fopts, 1, true); err != nil {
		t.Fatalf("runParse: %v", err)
	}
	if !strings.Contains(buf.String(), `"variables": []`) {
		t.Errorf("empty result should encode an empty array:\n%s", buf.String())
	}
}

func TestRunParse_InvalidType(t *testing.T) {
	path := writeLog(t, "run.log", sampleLog)
	err := runParse(context.Background(), &bytes.Buffer{}, []string{path}, defaultParseOptions(), filterOptions{types: []string{"xml"}}, 1, false)
	var ce *cli.CLIError
	if !errors.As(err, &ce) || ce.Code != cli.ExitUsage {
		t.Errorf("err = %v, want usage error", err)
	}
}

func TestRunParse_MissingFile(t *testing.T) {
	err := runParse(context.Background(), &bytes.Buffer{}, []string{"/nonexistent/run.log"}, defaultParseOptions(), filterOptions{}, 1, false)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if code := cli.ExitCode(err); code != cli.ExitNotFound {
		t.Errorf("exit code = %d, want %d", code, cli.ExitNotFound)
	}
}

func TestRunParse_ChunkedProgress(t *testing.T) {
	progress := captureProgress(t)
	var b strings.Builder
	b.WriteString("Starting TestCase 'Big'\n")
	for i := 0; i < 50; i++ {
		b.WriteString("Buffer with name 'V' has been set to value 'x'\n")
	}
	path := writeLog(t, "big.log", b.String())

	popts := defaultParseOptions()
	popts.quiet = false
	popts.chunkLines = 10
	popts.chunkThreshold = 1

	var buf bytes.Buffer
	if err := runParse(context.Background(), &buf, []string{path}, popts, filterOptions{}, 1, true); err != nil {
		t.Fatalf("runParse: %v", err)
	}
	var res parseResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Count != 50 {
		t.Errorf("count = %d, want 50", res.Count)
	}
	if !strings.Contains(progress.String(), "Extracted 50 variables") {
		t.Errorf("progress = %q", progress.String())
	}
}

func TestOneLine(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"{\n  \"a\": 1\n}", 80, `{ "a": 1 }`},
		{"abcdefghijkl", 8, "abcde..."},
		{"ééééééééé", 6, "ééé..."},
	}
	for _, tt := range tests {
		if got := oneLine(tt.in, tt.width); got != tt.want {
			t.Errorf("oneLine(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
