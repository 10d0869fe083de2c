package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/ppiankov/logvars/internal/logparse"
)

func TestCLIError_Error(t *testing.T) {
	e := NewUsageError("bad flag")
	if e.Error() != "bad flag" {
		t.Errorf("Error() = %q, want %q", e.Error(), "bad flag")
	}
}

func TestCLIError_Categories(t *testing.T) {
	tests := []struct {
		name     string
		err      *CLIError
		wantCode int
		wantType string
		wantRecv bool
	}{
		{"usage", NewUsageError("bad"), ExitUsage, "invalid_args", false},
		{"not_found", NewNotFoundError("missing"), ExitNotFound, "not_found", false},
		{"permission", NewPermissionError("denied"), ExitPermission, "permission", false},
		{"network", NewNetworkError("timeout"), ExitNetwork, "network", true},
		{"internal", NewInternalError("panic"), ExitInternal, "internal", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.wantType)
			}
			if tt.err.Recover != tt.wantRecv {
				t.Errorf("Recover = %v, want %v", tt.err.Recover, tt.wantRecv)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != ExitOK {
		t.Errorf("ExitCode(nil) = %d, want %d", got, ExitOK)
	}
	if got := ExitCode(NewNotFoundError("x")); got != ExitNotFound {
		t.Errorf("ExitCode(not_found) = %d, want %d", got, ExitNotFound)
	}
	if got := ExitCode(errors.New("plain error")); got != ExitInternal {
		t.Errorf("ExitCode(plain) = %d, want %d", got, ExitInternal)
	}
}

func TestFormatError_JSON(t *testing.T) {
	var buf bytes.Buffer

	// CLIError
	FormatError(&buf, NewNotFoundError("no such log"), true)
	var parsed CLIError
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Type != "not_found" {
		t.Errorf("type = %q, want %q", parsed.Type, "not_found")
	}
	if parsed.Code != ExitNotFound {
		t.Errorf("code = %d, want %d", parsed.Code, ExitNotFound)
	}

	// plain error wraps as internal
	buf.Reset()
	FormatError(&buf, errors.New("something broke"), true)
	var parsed2 CLIError
	if err := json.Unmarshal(buf.Bytes(), &parsed2); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed2.Type != "internal" {
		t.Errorf("type = %q, want %q", parsed2.Type, "internal")
	}
}

func TestClassify(t *testing.T) {
	_, statErr := os.Stat("/nonexistent/logvars/input.log")
	parseErr := fmt.Errorf("parse input: %w", &logparse.ParseError{Line: 42, Err: errors.New("boom")})

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{"missing file", fmt.Errorf("read input: %w", statErr), ExitNotFound, "not_found"},
		{"permission", fmt.Errorf("open: %w", os.ErrPermission), ExitPermission, "permission"},
		{"parse error", parseErr, ExitParse, "parse_failed"},
		{"canceled parse", fmt.Errorf("%w: %w", logparse.ErrCanceled, context.Canceled), ExitCanceled, "canceled"},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), ExitNetwork, "timeout"},
		{"classified passes through", NewUsageError("bad"), ExitUsage, "invalid_args"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ce *CLIError
			if !errors.As(Classify(tt.err), &ce) {
				t.Fatalf("Classify(%v) is not a CLIError", tt.err)
			}
			if ce.Code != tt.wantCode || ce.Type != tt.wantType {
				t.Errorf("got code=%d type=%q, want code=%d type=%q", ce.Code, ce.Type, tt.wantCode, tt.wantType)
			}
			if ExitCode(tt.err) != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d", ExitCode(tt.err), tt.wantCode)
			}
		})
	}
}

func TestClassifyKeepsCause(t *testing.T) {
	pe := &logparse.ParseError{Line: 7, Err: errors.New("boom")}
	got := Classify(pe)
	var ce *CLIError
	if !errors.As(got, &ce) || ce.Line != 7 {
		t.Fatalf("Classify() = %#v, want line 7", got)
	}
	var back *logparse.ParseError
	if !errors.As(got, &back) {
		t.Error("classified error should unwrap to the ParseError")
	}
}

func TestClassifyUnknown(t *testing.T) {
	err := errors.New("plain")
	if got := Classify(err); got != err {
		t.Errorf("Classify(plain) = %v, want unchanged", got)
	}
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestFormatError_Text(t *testing.T) {
	var buf bytes.Buffer
	FormatError(&buf, NewUsageError("bad flag"), false)
	want := "error: bad flag\n"
	if buf.String() != want {
		t.Errorf("text = %q, want %q", buf.String(), want)
	}
}

func TestFormatError_Nil(t *testing.T) {
	var buf bytes.Buffer
	FormatError(&buf, nil, true)
	if buf.Len() != 0 {
		t.Errorf("expected empty output for nil error, got %q", buf.String())
	}
}
