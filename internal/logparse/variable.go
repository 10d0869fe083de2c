package logparse

import (
	"errors"
	"fmt"
)

// Variable is one buffer assignment extracted from the log.
type Variable struct {
	Name         string  `json:"name"`
	Value        string  `json:"value"`
	Type         VarType `json:"type"`
	Line         int     `json:"line"`
	Timestamp    string  `json:"timestamp,omitempty"`
	OriginalLine string  `json:"originalLine"`
	Session      string  `json:"session,omitempty"`
}

// ErrCanceled is returned when a chunked parse stops at a chunk boundary
// because its context was canceled.
var ErrCanceled = errors.New("parse canceled")

// ParseError reports an unexpected failure while iterating lines. Variables
// emitted before the failure are still returned alongside it.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("log parsing failed at line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Observer receives parse events. Implementations must be cheap; they are
// called on the parsing goroutine.
type Observer interface {
	LineScanned()
	VariableExtracted(VarType)
	Incomplete()
	ChunkDone()
}

type nopObserver struct{}

func (nopObserver) LineScanned()              {}
func (nopObserver) VariableExtracted(VarType) {}
func (nopObserver) Incomplete()               {}
func (nopObserver) ChunkDone()                {}
