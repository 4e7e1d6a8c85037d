package nvm

import "errors"

var (
    // ErrBackendIO wraps any failure reported by the flash backend
    // (open, read, write, commit).
    ErrBackendIO = errors.New("nvm: backend i/o")

    // ErrDuplicate is returned when adding a roster entry whose key is
    // already present.
    ErrDuplicate = errors.New("nvm: duplicate entry")

    // ErrNotFound is returned when deleting a roster entry that is absent.
    ErrNotFound = errors.New("nvm: entry not found")
)
