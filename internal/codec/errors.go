package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrShortBuffer is returned when a read runs past the end of the frame.
	ErrShortBuffer = errors.New("short buffer")
)

// FieldError tags a decode/encode failure with the struct and field it happened in.
// Nested structs produce a chain of FieldErrors: Error() renders the whole path.
type FieldError struct {
	Struct string
	Field  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Struct, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ConstantMismatchError is returned when a fixed constant field holds an unexpected value.
type ConstantMismatchError struct {
	Want uint64
	Got  uint64
}

func (e *ConstantMismatchError) Error() string {
	return fmt.Sprintf("constant mismatch: want 0x%X, got 0x%X", e.Want, e.Got)
}
