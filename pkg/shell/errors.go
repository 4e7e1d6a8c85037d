package shell

import (
    "errors"
    "fmt"
)

// errSyntax is printed for an unrecognised argument list.
var errSyntax = errors.New("syntax error!")

// stepError names the step of a command that failed. Its text is what the
// user sees.
type stepError struct {
    step string
    err  error
}

func (e *stepError) Error() string { return fmt.Sprintf("%s failed: %v", e.step, e.err) }
func (e *stepError) Unwrap() error { return e.err }

func failed(step string, err error) error {
    if err == nil { return nil }
    return &stepError{step: step, err: err}
}
