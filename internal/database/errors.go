package database

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrForeignKey      = errors.New("foreign key constraint failed")
	ErrUniqueViolation = errors.New("unique constraint violated")
	ErrNotNull         = errors.New("not null constraint failed")
	ErrCheckConstraint = errors.New("check constraint failed")
)

// ConstraintError is a classified SQLite constraint failure.
type ConstraintError struct {
	Kind   error
	Table  string
	Column string
	Cause  error
}

func (e *ConstraintError) Error() string {
	if e.Column != "" {
		return e.Kind.Error() + ": " + e.Table + "." + e.Column
	}
	return e.Kind.Error()
}

// Is reports whether target is the constraint kind, so callers can use
// errors.Is(err, database.ErrUniqueViolation).
func (e *ConstraintError) Is(target error) bool {
	return target == e.Kind
}

func (e *ConstraintError) Unwrap() error {
	return e.Cause
}

var (
	uniqueRegex  = regexp.MustCompile(`UNIQUE constraint failed: ([^\s]+)`)
	notNullRegex = regexp.MustCompile(`NOT NULL constraint failed: ([^\s]+)`)
)

// ClassifyError maps SQLite constraint failures onto ConstraintError. Other
// errors are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()

	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return &ConstraintError{Kind: ErrForeignKey, Cause: err}
	case strings.Contains(msg, "CHECK constraint failed"):
		return &ConstraintError{Kind: ErrCheckConstraint, Cause: err}
	}

	if m := uniqueRegex.FindStringSubmatch(msg); len(m) == 2 {
		return withColumn(&ConstraintError{Kind: ErrUniqueViolation, Cause: err}, m[1])
	}
	if m := notNullRegex.FindStringSubmatch(msg); len(m) == 2 {
		return withColumn(&ConstraintError{Kind: ErrNotNull, Cause: err}, m[1])
	}

	return err
}

func withColumn(ce *ConstraintError, qualified string) *ConstraintError {
	if table, column, ok := strings.Cut(qualified, "."); ok {
		ce.Table = table
		ce.Column = column
	}
	return ce
}
