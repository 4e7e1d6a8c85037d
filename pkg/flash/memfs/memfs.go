// Package memfs is a flash.Backend held in memory. Writes are staged in the
// handle and applied as one atomic batch on Commit, which gives the same
// all-or-nothing behaviour as the on-device store.
package memfs

import (
    "errors"
    "fmt"
    "sync"

    "meshroof/pkg/flash"
    "meshroof/pkg/memkv"
)

// Backend stores blobs in a memkv.Store.
type Backend struct {
    kv *memkv.Store

    mu         sync.Mutex
    failOpen   error
    failSet    error
    failCommit error
}

// New returns an empty backend. maxBytes limits total stored bytes (0 = none).
func New(maxBytes uint64) *Backend {
    return &Backend{kv: memkv.New(memkv.Options{MaxBytes: maxBytes})}
}

// Store exposes the underlying KV, mostly for inspection in tests.
func (b *Backend) Store() *memkv.Store { return b.kv }

// FailOpen makes subsequent Open calls fail with err (nil clears it).
func (b *Backend) FailOpen(err error) { b.mu.Lock(); b.failOpen = err; b.mu.Unlock() }

// FailSet makes subsequent SetBlob calls fail with err (nil clears it).
func (b *Backend) FailSet(err error) { b.mu.Lock(); b.failSet = err; b.mu.Unlock() }

// FailCommit makes subsequent Commit calls fail with err (nil clears it).
func (b *Backend) FailCommit(err error) { b.mu.Lock(); b.failCommit = err; b.mu.Unlock() }

func (b *Backend) Open(namespace string, mode flash.Mode) (flash.Handle, error) {
    b.mu.Lock()
    err := b.failOpen
    b.mu.Unlock()
    if err != nil {
        return nil, err
    }
    if namespace == "" {
        return nil, errors.New("memfs: empty namespace")
    }
    return &handle{b: b, ns: namespace, mode: mode}, nil
}

type handle struct {
    b      *Backend
    ns     string
    mode   flash.Mode
    staged []memkv.Op
    closed bool
}

func (h *handle) GetBlob(key string) ([]byte, error) {
    if h.closed { return nil, flash.ErrClosed }
    // read-your-writes within the handle
    for i := len(h.staged) - 1; i >= 0; i-- {
        if h.staged[i].Key == flash.Key(h.ns, key) {
            return append([]byte(nil), h.staged[i].Value...), nil
        }
    }
    v, ok := h.b.kv.Get(flash.Key(h.ns, key))
    if !ok {
        return nil, fmt.Errorf("%w: %s", flash.ErrNotFound, key)
    }
    return v, nil
}

func (h *handle) SetBlob(key string, v []byte) error {
    if h.closed { return flash.ErrClosed }
    if h.mode != flash.ReadWrite { return flash.ErrReadOnly }
    h.b.mu.Lock()
    err := h.b.failSet
    h.b.mu.Unlock()
    if err != nil { return err }
    if v == nil { v = []byte{} }
    h.staged = append(h.staged, memkv.Op{Key: flash.Key(h.ns, key), Value: append([]byte(nil), v...)})
    return nil
}

func (h *handle) Commit() error {
    if h.closed { return flash.ErrClosed }
    if h.mode != flash.ReadWrite { return flash.ErrReadOnly }
    h.b.mu.Lock()
    err := h.b.failCommit
    h.b.mu.Unlock()
    if err != nil { return err }
    if err := h.b.kv.Apply(h.staged); err != nil {
        return fmt.Errorf("memfs: commit: %w", err)
    }
    h.staged = nil
    return nil
}

// Close discards uncommitted writes.
func (h *handle) Close() error {
    h.closed = true
    h.staged = nil
    return nil
}
