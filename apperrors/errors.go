// Package apperrors builds the categorized errors the services return and
// the HTTP layer maps to status codes.
package apperrors

import (
	"database/sql"
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// NotFound reports that entity with id does not exist.
func NotFound(entity string, id any) error {
	return goerrors.New(fmt.Sprintf("%s %v not found", entity, id), goerrors.CategoryNotFound).
		WithTextCode("NOT_FOUND").
		WithMetadata(map[string]any{"entity": entity, "id": fmt.Sprint(id)})
}

// Validation wraps an ozzo-validation error, keeping its field errors.
func Validation(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, message).WithTextCode("VALIDATION_FAILED")
}

// BadInput reports a request that could not be decoded.
func BadInput(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryBadInput, message).WithTextCode("BAD_REQUEST")
}

// IsNotFound reports whether err is a not-found error. Repository misses
// (database_not_found) and sql.ErrNoRows count as not found.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) || goerrors.IsNotFound(err) || repository.IsRecordNotFound(err)
}

// IsValidation reports whether err is a validation or bad input error.
func IsValidation(err error) bool {
	return goerrors.IsValidation(err) || goerrors.IsCategory(err, goerrors.CategoryBadInput)
}

// As returns the categorized error inside err, if any.
func As(err error) (*goerrors.Error, bool) {
	var e *goerrors.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
