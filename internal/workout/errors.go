package workout

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable classification of a domain error.
type Code string

const (
	// CodeNotFound — entity absent, soft-deleted, or owned by another user.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict — stale version supplied; optimistic lock failure.
	CodeConflict Code = "VERSION_CONFLICT"
	// CodeInvalidTransition — session state machine rule violated.
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	// CodeCategoryMismatch — set payload category differs from the slot's exercise category.
	CodeCategoryMismatch Code = "CATEGORY_MISMATCH"
	// CodeDuplicateOrder — order_in_session already used by an active slot.
	CodeDuplicateOrder Code = "DUPLICATE_ORDER"
	// CodeDuplicateSetNumber — set_number already used by an active set in the slot.
	CodeDuplicateSetNumber Code = "DUPLICATE_SET_NUMBER"
	// CodeInvalidParentState — operation attempted under a terminal or deleted ancestor.
	CodeInvalidParentState Code = "INVALID_PARENT_STATE"
	// CodeValidation — field-level constraint violation.
	CodeValidation Code = "VALIDATION"
)

// HTTPStatus maps a code to the status the REST layer responds with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidParentState:
		return http.StatusConflict
	case CodeInvalidTransition, CodeCategoryMismatch, CodeDuplicateOrder,
		CodeDuplicateSetNumber, CodeValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error is a classified domain error. All aggregate operations return
// *Error for rule violations and plain wrapped errors for infrastructure
// failures.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// Errorf builds a classified error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the classification of err, or "" for non-domain errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries the given classification.
func IsCode(err error, code Code) bool { return CodeOf(err) == code }
