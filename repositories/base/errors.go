package base

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// RepositoryError is a failed query against one table.
type RepositoryError struct {
	Operation string
	Table     string
	Cause     error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Table, e.Cause)
}

func (e *RepositoryError) Unwrap() error {
	return e.Cause
}

// EntityNotFoundError is returned when a lookup matches no row. Callers in the
// control path treat it as missing data, not as a failure.
type EntityNotFoundError struct {
	Table      string
	Identifier string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s with %s not found", e.Table, e.Identifier)
}

// ValidationError rejects an input before it reaches the database.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

func NewEntityNotFoundError(table, identifier string) *EntityNotFoundError {
	return &EntityNotFoundError{Table: table, Identifier: identifier}
}

func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// HandleDBError maps gorm.ErrRecordNotFound to EntityNotFoundError and wraps
// everything else.
func HandleDBError(operation, table, identifier string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewEntityNotFoundError(table, identifier)
	}
	return WrapDBError(operation, table, err)
}

func WrapDBError(operation, table string, err error) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{Operation: operation, Table: table, Cause: err}
}

func IsEntityNotFound(err error) bool {
	var notFound *EntityNotFoundError
	return errors.As(err, &notFound)
}

func IsValidationError(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}
