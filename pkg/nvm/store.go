// Package nvm owns the node's persisted configuration record. The record
// lives in memory for the life of the process and is written to a flash
// namespace as two blobs: a small CBOR metadata blob carrying the payload
// size, and the payload itself in the record package's binary layout.
package nvm

import (
    "errors"
    "fmt"
    "sync"

    "github.com/fxamacker/cbor/v2"
    "go.uber.org/zap"

    "meshroof/pkg/flash"
    "meshroof/pkg/observability"
    "meshroof/pkg/record"
)

// Keys used inside the namespace.
const (
    MetaKey = "nvm.meta"
    BlobKey = "nvm.blob"

    DefaultNamespace = "meshroof"
)

// Options configures a Store.
type Options struct {
    Namespace string
    // Capacity is the largest blob the flash target accepts.
    // Defaults to record.DefaultCapacity.
    Capacity int
    Logger   *zap.Logger
}

// RosterConsumer is a downstream view of the rosters (the mesh access
// layer) that is rebuilt from the store after every change.
type RosterConsumer interface {
    ClearRosters()
    AddAuthChannel(record.AuthChannel) error
    AddAdmin(record.Admin) error
    AddMate(record.Mate) error
}

// meta is the metadata blob. The backend needs the payload length before
// the payload can be read back.
type meta struct {
    Size uint64 `cbor:"size"`
}

// Store holds the configuration record and its rosters.
//
// Accessors are safe for concurrent use: the local and the remote shell
// mutate the record from different goroutines.
type Store struct {
    backend  flash.Backend
    ns       string
    capacity int
    log      *zap.Logger

    // io serializes Load and Save so a slower save never lands after a
    // newer one.
    io sync.Mutex
    // apply serializes ApplyRosters so two replays never interleave.
    apply sync.Mutex

    mu      sync.RWMutex
    cfg     record.Config
    rosters record.Rosters
}

// New returns a store holding the zero record. Nothing is read until Load.
func New(backend flash.Backend, opts Options) *Store {
    if opts.Namespace == "" {
        opts.Namespace = DefaultNamespace
    }
    if opts.Capacity <= 0 {
        opts.Capacity = record.DefaultCapacity
    }
    if opts.Logger == nil {
        opts.Logger = zap.L()
    }
    return &Store{
        backend:  backend,
        ns:       opts.Namespace,
        capacity: opts.Capacity,
        log:      opts.Logger.Named("nvm"),
    }
}

// Capacity returns the configured flash capacity in bytes.
func (s *Store) Capacity() int { return s.capacity }

// Load replaces the in-memory record with the persisted one. On any failure
// the in-memory record is left exactly as it was.
func (s *Store) Load() (err error) {
    s.io.Lock()
    defer s.io.Unlock()
    defer func() {
        observability.NVMOpsTotal.WithLabelValues("load", observability.Result(err)).Inc()
        if err != nil {
            s.log.Warn("nvm load failed", zap.String("namespace", s.ns), zap.Error(err))
        }
    }()

    h, err := s.backend.Open(s.ns, flash.ReadOnly)
    if err != nil {
        return fmt.Errorf("%w: open %s: %w", ErrBackendIO, s.ns, err)
    }
    defer h.Close()

    raw, err := h.GetBlob(MetaKey)
    if err != nil {
        return s.readErr(MetaKey, err)
    }
    var m meta
    if err := cbor.Unmarshal(raw, &m); err != nil {
        return fmt.Errorf("%w: decode %s: %v", record.ErrCorruptHeader, MetaKey, err)
    }
    if m.Size == 0 {
        return fmt.Errorf("%w: %s declares an empty payload", record.ErrCorruptHeader, MetaKey)
    }
    if m.Size > uint64(s.capacity) {
        return fmt.Errorf("%w: stored size %d, capacity %d", record.ErrCapacityExceeded, m.Size, s.capacity)
    }

    payload, err := h.GetBlob(BlobKey)
    if err != nil {
        return s.readErr(BlobKey, err)
    }
    if uint64(len(payload)) != m.Size {
        return fmt.Errorf("%w: payload is %d bytes, metadata says %d", record.ErrCorruptFooter, len(payload), m.Size)
    }

    cfg, rosters, err := record.Decode(payload, s.capacity)
    if err != nil {
        return err
    }

    s.mu.Lock()
    s.cfg, s.rosters = cfg, rosters
    s.mu.Unlock()

    observability.NVMBlobBytes.Set(float64(len(payload)))
    c := rosters.Counts()
    s.log.Info("nvm loaded",
        zap.Int("bytes", len(payload)),
        zap.Uint32("authchans", c.AuthChannels),
        zap.Uint32("admins", c.Admins),
        zap.Uint32("mates", c.Mates))
    return nil
}

func (s *Store) readErr(key string, err error) error {
    if errors.Is(err, flash.ErrNotFound) {
        return fmt.Errorf("nvm: read %s: %w", key, err)
    }
    return fmt.Errorf("%w: read %s: %w", ErrBackendIO, key, err)
}

// Save encodes the current record and persists it. An encode failure
// happens before the backend is opened, so nothing is written. A backend
// failure after some writes relies on the uncommitted handle being
// discarded on Close.
func (s *Store) Save() (err error) {
    s.io.Lock()
    defer s.io.Unlock()
    defer func() {
        observability.NVMOpsTotal.WithLabelValues("save", observability.Result(err)).Inc()
        if err != nil {
            s.log.Warn("nvm save failed", zap.String("namespace", s.ns), zap.Error(err))
        }
    }()

    blob, err := s.Blob()
    if err != nil {
        return err
    }
    mb, err := cbor.Marshal(meta{Size: uint64(len(blob))})
    if err != nil {
        return fmt.Errorf("nvm: encode metadata: %w", err)
    }

    h, err := s.backend.Open(s.ns, flash.ReadWrite)
    if err != nil {
        return fmt.Errorf("%w: open %s: %w", ErrBackendIO, s.ns, err)
    }
    defer h.Close()

    if err := h.SetBlob(MetaKey, mb); err != nil {
        return fmt.Errorf("%w: write %s: %w", ErrBackendIO, MetaKey, err)
    }
    if err := h.SetBlob(BlobKey, blob); err != nil {
        return fmt.Errorf("%w: write %s: %w", ErrBackendIO, BlobKey, err)
    }
    if err := h.Commit(); err != nil {
        return fmt.Errorf("%w: commit %s: %w", ErrBackendIO, s.ns, err)
    }

    observability.NVMBlobBytes.Set(float64(len(blob)))
    s.log.Debug("nvm saved", zap.Int("bytes", len(blob)))
    return nil
}

// Blob encodes the current record without persisting it.
func (s *Store) Blob() ([]byte, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return record.Encode(s.cfg, s.rosters, s.capacity)
}

// Snapshot returns a copy of the record.
func (s *Store) Snapshot() (record.Config, record.Rosters) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.cfg, s.rosters.Clone()
}

// Reset zeroes the in-memory record. It is not persisted until Save.
func (s *Store) Reset() {
    s.mu.Lock()
    s.cfg = record.Config{}
    s.rosters = record.Rosters{}
    s.mu.Unlock()
}

// ApplyRosters clears c and replays every roster entry into it. All entries
// are attempted; the returned error joins every individual failure.
func (s *Store) ApplyRosters(c RosterConsumer) error {
    s.apply.Lock()
    defer s.apply.Unlock()
    _, r := s.Snapshot()

    c.ClearRosters()
    var errs []error
    for _, a := range r.AuthChannels {
        if err := c.AddAuthChannel(a); err != nil {
            errs = append(errs, fmt.Errorf("authchan %s: %w", a.Name, err))
        }
    }
    for _, a := range r.Admins {
        if err := c.AddAdmin(a); err != nil {
            errs = append(errs, fmt.Errorf("admin %s: %w", a.NodeID, err))
        }
    }
    for _, m := range r.Mates {
        if err := c.AddMate(m); err != nil {
            errs = append(errs, fmt.Errorf("mate %s: %w", m.NodeID, err))
        }
    }
    return errors.Join(errs...)
}
