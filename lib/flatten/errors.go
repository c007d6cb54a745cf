package flatten

import (
	"errors"
	"fmt"
)

// MissingFieldError is returned when a payload lacks a key the flatteners
// cannot do without (pages, questions, data, links, ...).
type MissingFieldError struct {
	Path  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q at %s", e.Field, e.Path)
}

// EmptyCollectionError is returned when a list that has to be stacked into a
// table has no elements.
type EmptyCollectionError struct {
	Path       string
	Collection string
}

func (e *EmptyCollectionError) Error() string {
	return fmt.Sprintf("empty collection %q at %s", e.Collection, e.Path)
}

// TypeCoercionError is returned when an identifier cell holds a value that
// has no string form (objects and arrays).
type TypeCoercionError struct {
	Column string
	Row    int
	Value  Value
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf(
		"cannot coerce identifier column %q (row %d) to string: %s",
		e.Column, e.Row, FormatValue(e.Value),
	)
}

// JoinKeyMismatchError is advisory: the join returned far fewer rows than its
// inputs, which usually means the key columns do not line up.
type JoinKeyMismatchError struct {
	LeftRows   int
	RightRows  int
	MergedRows int
	MinRatio   float64
}

func (e *JoinKeyMismatchError) Error() string {
	return fmt.Sprintf(
		"join produced %d rows from %d detail rows and %d response rows (expected at least %.0f%% of the smaller side)",
		e.MergedRows, e.LeftRows, e.RightRows, e.MinRatio*100,
	)
}

// ColumnCollisionError is returned when renaming would merge two source
// columns into one.
type ColumnCollisionError struct {
	Column  string
	Sources []string
}

func (e *ColumnCollisionError) Error() string {
	return fmt.Sprintf("columns %q would both be named %q", e.Sources, e.Column)
}

// MalformedResponseError wraps any failure to flatten a payload with the
// location it happened at.
type MalformedResponseError struct {
	Path string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed payload at %s: %s", e.Path, e.Err.Error())
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// malformed keeps the innermost location when err was already wrapped.
func malformed(path string, err error) error {
	var inner *MalformedResponseError
	if errors.As(err, &inner) {
		return err
	}
	return &MalformedResponseError{Path: path, Err: err}
}
