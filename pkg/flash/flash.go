// Package flash defines the namespaced blob store the node persists its
// record into. A Handle is opened per operation and released with Close;
// writes become visible only after Commit.
package flash

import "errors"

var (
    // ErrNotFound is returned by GetBlob for a key that was never written.
    ErrNotFound = errors.New("flash: key not found")

    // ErrReadOnly is returned by SetBlob and Commit on a read-only handle.
    ErrReadOnly = errors.New("flash: handle is read-only")

    // ErrClosed is returned for any call on a closed handle.
    ErrClosed = errors.New("flash: handle closed")
)

// Mode selects how a namespace is opened.
type Mode int

const (
    ReadOnly Mode = iota
    ReadWrite
)

func (m Mode) String() string {
    if m == ReadWrite {
        return "readwrite"
    }
    return "readonly"
}

// Backend opens handles onto a namespace.
type Backend interface {
    Open(namespace string, mode Mode) (Handle, error)
}

// Handle is a short-lived view of one namespace.
type Handle interface {
    GetBlob(key string) ([]byte, error)
    SetBlob(key string, b []byte) error
    Commit() error
    Close() error
}

// Key joins namespace and key into the flat key used by implementations.
func Key(namespace, key string) string { return namespace + "/" + key }
