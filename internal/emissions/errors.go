package emissions

import "fmt"

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors returned (wrapped in *Error) by the resolver. Compare with errors.Is.
var (
	ErrUnsupportedCategory    = constError("unsupported category")
	ErrUnsupportedSubcategory = constError("unsupported subcategory")
	ErrUnsupportedUnit        = constError("unsupported unit")
	// ErrInvalidQuantity covers negative, NaN and infinite quantities.
	ErrInvalidQuantity = constError("invalid quantity")
)

// Error is a validation failure that names the rejected field.
type Error struct {
	Kind  error
	Field string
	Value string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s=%q", e.Kind, e.Field, e.Value)
}

func (e *Error) Unwrap() error { return e.Kind }

func reject(kind error, field, value string) *Error {
	return &Error{Kind: kind, Field: field, Value: value}
}
