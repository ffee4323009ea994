package tmpl

import (
	"errors"
	"fmt"
)

// ErrUnresolvedPlaceholder is matched by every UnresolvedPlaceholderError.
var ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

var errNotPrimitive = errors.New("value is not a known string, number or bool")

// UnresolvedPlaceholderError reports a placeholder that has neither a binding
// nor a default.
type UnresolvedPlaceholderError struct {
	Name   string
	Offset int
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("unresolved placeholder ${%s} at offset %d", e.Name, e.Offset)
}

// Unwrap lets errors.Is match ErrUnresolvedPlaceholder.
func (e *UnresolvedPlaceholderError) Unwrap() error {
	return ErrUnresolvedPlaceholder
}

// InvalidDefaultError reports a default literal that is not a valid HCL
// literal expression.
type InvalidDefaultError struct {
	Name    string
	Literal string
	Err     error
}

func (e *InvalidDefaultError) Error() string {
	return fmt.Sprintf("invalid default %q for ${%s}: %v", e.Literal, e.Name, e.Err)
}

func (e *InvalidDefaultError) Unwrap() error {
	return e.Err
}
