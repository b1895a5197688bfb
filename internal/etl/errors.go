package etl

import (
	"fmt"
	"strings"
)

// NotFoundError indicates that the source file path did not resolve.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("source file not found: %s", e.Path)
}

// EncodingError indicates that the source file could not be read as delimited
// text under either of the two attempted encodings (UTF-8, then Latin-1).
type EncodingError struct {
	Path string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot decode %s: %v", e.Path, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// SchemaError indicates that required source columns are absent after header
// normalization. This is a configuration mismatch fatal to the whole run, not
// a per-row data problem.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("source is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// LoadError wraps any datastore failure during the load stage: connectivity,
// schema mismatch, or constraint violation. When the insert fails after the
// truncate, the table may be left empty until the next successful run; that
// window is accepted and not rolled back across runs.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed during %s: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
