package memkv

import (
    "errors"
    "sort"
    "strings"
    "sync"
    "sync/atomic"
)

// ErrLimit is returned when a write would push the stored bytes past MaxBytes.
var ErrLimit = errors.New("memkv: max bytes exceeded")

// ========================= Options =========================

type Options struct {
    Shards   int    // number of shards (default 16)
    MaxBytes uint64 // hard limit on total value bytes (0 = unlimited)
}

func (o *Options) withDefaults() Options {
    res := *o
    if res.Shards <= 0 {
        res.Shards = 16
    }
    return res
}

// ========================= Store =========================

type Store struct {
    opts   Options
    shards []shard

    // metrics
    mKeys    atomic.Uint64
    mBytes   atomic.Uint64
    mSets    atomic.Uint64
    mGets    atomic.Uint64
    mHits    atomic.Uint64
    mMisses  atomic.Uint64
    mDels    atomic.Uint64
    mBatches atomic.Uint64
}

type shard struct {
    mu sync.RWMutex
    m  map[string][]byte
}

func New(opts Options) *Store {
    opts = opts.withDefaults()
    s := &Store{opts: opts, shards: make([]shard, opts.Shards)}
    for i := range s.shards {
        s.shards[i].m = make(map[string][]byte)
    }
    return s
}

// Close drops all data. The store must not be used afterwards.
func (s *Store) Close() {
    for i := range s.shards {
        sh := &s.shards[i]
        sh.mu.Lock()
        sh.m = make(map[string][]byte)
        sh.mu.Unlock()
    }
    s.mKeys.Store(0)
    s.mBytes.Store(0)
}

// ========================= hashing =========================

func (s *Store) shardIndex(key string) int {
    // FNV-1a 64
    var h uint64 = 1469598103934665603
    for i := 0; i < len(key); i++ {
        h ^= uint64(key[i])
        h *= 1099511628211
    }
    return int(h % uint64(len(s.shards)))
}

func (s *Store) shardFor(key string) *shard { return &s.shards[s.shardIndex(key)] }

// ========================= byte accounting =========================

// tryAddBytes reserves a positive delta, failing if the limit would be hit.
func (s *Store) tryAddBytes(delta uint64) bool {
    if s.opts.MaxBytes == 0 {
        s.mBytes.Add(delta)
        return true
    }
    for {
        cur := s.mBytes.Load()
        next := cur + delta
        if next > s.opts.MaxBytes {
            return false
        }
        if s.mBytes.CompareAndSwap(cur, next) {
            return true
        }
    }
}

func (s *Store) subBytes(n uint64) {
    for {
        cur := s.mBytes.Load()
        next := uint64(0)
        if n < cur {
            next = cur - n
        }
        if s.mBytes.CompareAndSwap(cur, next) {
            return
        }
    }
}

// ========================= public API =========================

// Set stores a copy of val. It fails with ErrLimit, leaving any previous
// value in place, when the store would grow past MaxBytes.
func (s *Store) Set(key string, val []byte) error {
    v := append([]byte(nil), val...)
    sh := s.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    if err := s.setLocked(sh, key, v); err != nil {
        return err
    }
    s.mSets.Add(1)
    return nil
}

func (s *Store) setLocked(sh *shard, key string, v []byte) error {
    prev, existed := sh.m[key]
    delta := len(v) - len(prev)
    if delta > 0 && !s.tryAddBytes(uint64(delta)) {
        return ErrLimit
    }
    if delta < 0 {
        s.subBytes(uint64(-delta))
    }
    sh.m[key] = v
    if !existed {
        s.mKeys.Add(1)
    }
    return nil
}

// Get returns a copy of the value and whether it was present.
func (s *Store) Get(key string) ([]byte, bool) {
    sh := s.shardFor(key)
    sh.mu.RLock()
    v, ok := sh.m[key]
    var out []byte
    if ok {
        out = append([]byte{}, v...)
    }
    sh.mu.RUnlock()
    s.mGets.Add(1)
    if !ok {
        s.mMisses.Add(1)
        return nil, false
    }
    s.mHits.Add(1)
    return out, true
}

// Exists reports whether key is present.
func (s *Store) Exists(key string) bool {
    sh := s.shardFor(key)
    sh.mu.RLock()
    _, ok := sh.m[key]
    sh.mu.RUnlock()
    return ok
}

// Delete removes key. Returns true if it was present.
func (s *Store) Delete(key string) bool {
    sh := s.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    return s.deleteLocked(sh, key)
}

func (s *Store) deleteLocked(sh *shard, key string) bool {
    v, ok := sh.m[key]
    if !ok {
        return false
    }
    delete(sh.m, key)
    s.mKeys.Add(^uint64(0))
    s.subBytes(uint64(len(v)))
    s.mDels.Add(1)
    return true
}

// Keys returns the sorted keys starting with prefix.
func (s *Store) Keys(prefix string) []string {
    var out []string
    for i := range s.shards {
        sh := &s.shards[i]
        sh.mu.RLock()
        for k := range sh.m {
            if strings.HasPrefix(k, prefix) {
                out = append(out, k)
            }
        }
        sh.mu.RUnlock()
    }
    sort.Strings(out)
    return out
}

// DeletePrefix removes every key starting with prefix and returns the count.
func (s *Store) DeletePrefix(prefix string) int {
    n := 0
    for i := range s.shards {
        sh := &s.shards[i]
        sh.mu.Lock()
        for k := range sh.m {
            if strings.HasPrefix(k, prefix) && s.deleteLocked(sh, k) {
                n++
            }
        }
        sh.mu.Unlock()
    }
    return n
}

// ========================= batches =========================

// Op is one write in a batch. A nil Value deletes the key.
type Op struct {
    Key   string
    Value []byte
}

// Apply commits ops atomically: either every op is visible or none is.
// The only failure is ErrLimit, checked against the net size change of the
// whole batch before anything is written.
func (s *Store) Apply(ops []Op) error {
    if len(ops) == 0 {
        return nil
    }
    idx := make([]int, 0, len(ops))
    seen := make(map[int]bool, len(ops))
    for _, op := range ops {
        i := s.shardIndex(op.Key)
        if !seen[i] {
            seen[i] = true
            idx = append(idx, i)
        }
    }
    // fixed lock order prevents deadlocks between concurrent batches
    sort.Ints(idx)
    for _, i := range idx {
        s.shards[i].mu.Lock()
    }
    defer func() {
        for _, i := range idx {
            s.shards[i].mu.Unlock()
        }
    }()

    // last write to a key wins, so size the batch on the final values
    final := make(map[string][]byte, len(ops))
    order := make([]string, 0, len(ops))
    for _, op := range ops {
        if _, dup := final[op.Key]; !dup {
            order = append(order, op.Key)
        }
        final[op.Key] = op.Value
    }
    var grow, shrink uint64
    for _, k := range order {
        prev := s.shardFor(k).m[k]
        next := final[k]
        if len(next) > len(prev) {
            grow += uint64(len(next) - len(prev))
        } else {
            shrink += uint64(len(prev) - len(next))
        }
    }
    if grow > shrink && !s.tryAddBytes(grow-shrink) {
        return ErrLimit
    }
    if shrink > grow {
        s.subBytes(shrink - grow)
    }

    for _, k := range order {
        sh := s.shardFor(k)
        _, existed := sh.m[k]
        v := final[k]
        if v == nil {
            if existed {
                delete(sh.m, k)
                s.mKeys.Add(^uint64(0))
                s.mDels.Add(1)
            }
            continue
        }
        sh.m[k] = append([]byte{}, v...)
        if !existed {
            s.mKeys.Add(1)
        }
        s.mSets.Add(1)
    }
    s.mBatches.Add(1)
    return nil
}

// ========================= metrics =========================

// Stats is a snapshot of the counters.
type Stats struct {
    Keys    uint64
    Bytes   uint64
    Sets    uint64
    Gets    uint64
    Hits    uint64
    Misses  uint64
    Dels    uint64
    Batches uint64
}

// Metrics returns a snapshot without taking shard locks.
func (s *Store) Metrics() Stats {
    return Stats{
        Keys:    s.mKeys.Load(),
        Bytes:   s.mBytes.Load(),
        Sets:    s.mSets.Load(),
        Gets:    s.mGets.Load(),
        Hits:    s.mHits.Load(),
        Misses:  s.mMisses.Load(),
        Dels:    s.mDels.Load(),
        Batches: s.mBatches.Load(),
    }
}
