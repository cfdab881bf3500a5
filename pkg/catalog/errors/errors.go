// Package errors defines the error taxonomy surfaced by the catalog client.
// Callers categorize with errors.Is against the exported sentinels; the
// concrete types carry the detail needed for diagnostics.
package errors

import (
	"fmt"
	"strings"
)

var ErrNotFound = fmt.Errorf("not found")
var ErrInternal = fmt.Errorf("internal error")
var ErrRequest = fmt.Errorf("request error")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrValidation = fmt.Errorf("validation failed")
var ErrTypeMismatch = fmt.Errorf("type mismatch")
var ErrProtectedConfiguration = fmt.Errorf("protected configuration")
var ErrInvalidIdentifier = fmt.Errorf("invalid identifier")
var ErrMissingFields = fmt.Errorf("missing fields")
var ErrCannotCreate = fmt.Errorf("cannot create")
var ErrUnauthorized = fmt.Errorf("unauthorized")

type catalogError struct {
	msg    string
	target error
}

func (c catalogError) Error() string        { return c.msg }
func (c catalogError) Is(target error) bool { return target == c.target }

// NewValidationError reports a payload that did not satisfy the declared
// field types of typeName.
func NewValidationError(typeName, detail string) error {
	return &catalogError{
		msg:    fmt.Sprintf("invalid %s payload: %s", typeName, detail),
		target: ErrValidation,
	}
}

// NewTypeMismatchError reports a payload whose type tag identifies neither
// the declared type nor one of its concrete subtypes.
func NewTypeMismatchError(declared, got string) error {
	return &catalogError{
		msg:    fmt.Sprintf("payload tagged %q is not a %s", got, declared),
		target: ErrTypeMismatch,
	}
}

// NewProtectedConfigurationError refuses a write to a server-side path field
// before any transport call is made.
func NewProtectedConfigurationError(typeName, field string) error {
	return &catalogError{
		msg:    fmt.Sprintf("refusing to write protected field %q of %s", field, typeName),
		target: ErrProtectedConfiguration,
	}
}

// NewInvalidIdentifierError refuses an id that is not a positive integer
// string in a context that requires server-assigned numeric ids.
func NewInvalidIdentifierError(id string) error {
	return &catalogError{
		msg:    fmt.Sprintf("invalid identifier %q: want a positive integer string", id),
		target: ErrInvalidIdentifier,
	}
}

// NewCannotCreateError reports a save on a new entity of a type the remote
// service only updates.
func NewCannotCreateError(typeName string) error {
	return &catalogError{
		msg:    fmt.Sprintf("%s entities cannot be created, only updated", typeName),
		target: ErrCannotCreate,
	}
}

func NewInternalError(detail string) error {
	return &catalogError{msg: detail, target: ErrInternal}
}

// MissingFieldsError names the first entity a strict filter found lacking
// required fields, and the fields it lacked.
type MissingFieldsError struct {
	TypeName string
	EntityID string
	Fields   []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s %s is missing required fields: %s",
		e.TypeName, e.EntityID, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool { return target == ErrMissingFields }

func NewMissingFieldsError(typeName, entityID string, missing []string) error {
	return &MissingFieldsError{TypeName: typeName, EntityID: entityID, Fields: missing}
}

// GraphQLError is one element of a response's errors array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string { return e.Message }

// NewErrorFromGraphQLErrors categorizes the errors array of an otherwise
// well-formed GraphQL response.
func NewErrorFromGraphQLErrors(errs []GraphQLError) error {
	if len(errs) == 0 {
		return nil
	}

	first := errs[0]
	msg := first.Message
	if len(errs) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(errs)-1)
	}

	code, _ := first.Extensions["code"].(string)
	switch {
	case code == "NOT_FOUND" || strings.Contains(strings.ToLower(first.Message), "not found"):
		return &catalogError{msg: msg, target: ErrNotFound}
	case code == "UNAUTHORIZED" || strings.Contains(strings.ToLower(first.Message), "unauthorized"):
		return &catalogError{msg: msg, target: ErrUnauthorized}
	case code == "BAD_USER_INPUT":
		return &catalogError{msg: msg, target: ErrValidation}
	default:
		return &catalogError{msg: msg, target: ErrInternal}
	}
}
