package record

import (
    "errors"
    "fmt"
)

// Blob integrity and sizing errors.
var (
    // ErrCapacityExceeded is returned when a blob would not fit the flash target.
    ErrCapacityExceeded = errors.New("record: capacity exceeded")

    // ErrCorruptHeader is returned when the leading magic does not match.
    ErrCorruptHeader = errors.New("record: corrupt header")

    // ErrCorruptFooter is returned when the trailing magic is missing or wrong.
    ErrCorruptFooter = errors.New("record: corrupt footer")
)

// Field validation errors.
var (
    // ErrInputTooLong is returned when a value exceeds its field capacity.
    ErrInputTooLong = errors.New("record: input too long")

    // ErrInvalidInput is returned for values that cannot be stored in a
    // NUL padded field.
    ErrInvalidInput = errors.New("record: invalid input")

    // ErrInvalidAddress is returned for values that are not dotted IPv4.
    ErrInvalidAddress = errors.New("record: invalid ipv4 address")
)

// InputTooLongError reports which field overflowed and by how much.
type InputTooLongError struct {
    Field string
    Len   int
    Max   int
}

func (e *InputTooLongError) Error() string {
    return fmt.Sprintf("record: %s is %d bytes, max %d", e.Field, e.Len, e.Max)
}

func (e *InputTooLongError) Is(target error) bool { return target == ErrInputTooLong }
