// Package badgerfs implements flash.Backend on BadgerDB. The database stays
// open for the life of the process; every flash handle is one badger
// transaction, so a Commit is atomic across all blobs written through it.
package badgerfs

import (
    "errors"
    "fmt"

    "github.com/dgraph-io/badger/v4"
    "go.uber.org/zap"

    "meshroof/pkg/flash"
)

// Options configures the store.
type Options struct {
    // Path is the database directory. Ignored when InMemory is set.
    Path     string
    InMemory bool
    Logger   *zap.Logger
}

// Backend implements flash.Backend using BadgerDB.
type Backend struct {
    db *badger.DB
}

// Open opens (or creates) the database.
func Open(o Options) (*Backend, error) {
    opts := badger.DefaultOptions(o.Path)
    if o.InMemory {
        opts = badger.DefaultOptions("").WithInMemory(true)
    }
    // the record is a few KB; keep the footprint small
    opts = opts.WithNumVersionsToKeep(1).
        WithBlockCacheSize(1 << 20).
        WithIndexCacheSize(1 << 20).
        WithValueLogFileSize(16 << 20)

    lg := o.Logger
    if lg == nil {
        lg = zap.L()
    }
    opts = opts.WithLogger(badgerLogger{lg.Named("badger").Sugar()})

    db, err := badger.Open(opts)
    if err != nil {
        return nil, fmt.Errorf("failed to open badger: %w", err)
    }
    return &Backend{db: db}, nil
}

// Close closes the database.
func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) Open(namespace string, mode flash.Mode) (flash.Handle, error) {
    if namespace == "" {
        return nil, errors.New("badgerfs: empty namespace")
    }
    if b.db.IsClosed() {
        return nil, flash.ErrClosed
    }
    return &handle{ns: namespace, mode: mode, txn: b.db.NewTransaction(mode == flash.ReadWrite)}, nil
}

type handle struct {
    ns   string
    mode flash.Mode
    txn  *badger.Txn
    done bool
}

func (h *handle) GetBlob(key string) ([]byte, error) {
    if h.done { return nil, flash.ErrClosed }
    item, err := h.txn.Get([]byte(flash.Key(h.ns, key)))
    if err != nil {
        if errors.Is(err, badger.ErrKeyNotFound) {
            return nil, fmt.Errorf("%w: %s", flash.ErrNotFound, key)
        }
        return nil, err
    }
    return item.ValueCopy(nil)
}

func (h *handle) SetBlob(key string, v []byte) error {
    if h.done { return flash.ErrClosed }
    if h.mode != flash.ReadWrite { return flash.ErrReadOnly }
    return h.txn.Set([]byte(flash.Key(h.ns, key)), append([]byte(nil), v...))
}

func (h *handle) Commit() error {
    if h.done { return flash.ErrClosed }
    if h.mode != flash.ReadWrite { return flash.ErrReadOnly }
    h.done = true
    return h.txn.Commit()
}

// Close discards the transaction; after Commit it only releases resources.
func (h *handle) Close() error {
    h.done = true
    h.txn.Discard()
    return nil
}

// badgerLogger routes badger's logging into zap.
type badgerLogger struct{ s *zap.SugaredLogger }

func (l badgerLogger) Errorf(f string, a ...interface{})   { l.s.Errorf(f, a...) }
func (l badgerLogger) Warningf(f string, a ...interface{}) { l.s.Warnf(f, a...) }
func (l badgerLogger) Infof(f string, a ...interface{})    { l.s.Debugf(f, a...) }
func (l badgerLogger) Debugf(f string, a ...interface{})   { l.s.Debugf(f, a...) }
