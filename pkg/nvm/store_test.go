package nvm

import (
    "bytes"
    "errors"
    "strings"
    "sync"
    "testing"

    "go.uber.org/zap"

    "meshroof/pkg/flash"
    "meshroof/pkg/flash/memfs"
    "meshroof/pkg/record"
)

func newTestStore(t *testing.T, capacity int) (*Store, *memfs.Backend) {
    t.Helper()
    b := memfs.New(0)
    return New(b, Options{Namespace: "test", Capacity: capacity, Logger: zap.NewNop()}), b
}

func storedBlob(t *testing.T, b *memfs.Backend) []byte {
    t.Helper()
    v, ok := b.Store().Get(flash.Key("test", BlobKey))
    if !ok {
        t.Fatalf("no payload in backend")
    }
    return v
}

func TestLoadMissingThenDefaults(t *testing.T) {
    s, b := newTestStore(t, 0)

    err := s.Load()
    if !errors.Is(err, flash.ErrNotFound) {
        t.Fatalf("expected ErrNotFound on empty backend, got %v", err)
    }
    if err := s.Save(); err != nil {
        t.Fatalf("save defaults: %v", err)
    }

    s2 := New(b, Options{Namespace: "test", Logger: zap.NewNop()})
    _ = s2.SetWifiSSID("stale")
    if err := s2.Load(); err != nil {
        t.Fatalf("load after save: %v", err)
    }
    cfg, r := s2.Snapshot()
    if cfg != (record.Config{}) {
        t.Errorf("expected zero config, got %+v", cfg)
    }
    if len(r.AuthChannels)+len(r.Admins)+len(r.Mates) != 0 {
        t.Errorf("expected empty rosters, got %+v", r)
    }
}

func TestSaveIdempotent(t *testing.T) {
    s, b := newTestStore(t, 0)
    _ = s.SetWifiSSID("roofnet")
    _ = s.SetIP("10.0.0.2")
    _ = s.AddAdmin(record.Admin{NodeID: 0xa1b2c3d4})
    _ = s.AddMate(record.Mate{NodeID: 7})

    if err := s.Save(); err != nil { t.Fatal(err) }
    first := storedBlob(t, b)
    if err := s.Save(); err != nil { t.Fatal(err) }
    second := storedBlob(t, b)
    if !bytes.Equal(first, second) {
        t.Fatalf("consecutive saves differ")
    }
    mem, _ := s.Blob()
    if !bytes.Equal(mem, first) {
        t.Fatalf("Blob() differs from persisted payload")
    }
}

func TestRoundTripThroughBackend(t *testing.T) {
    s, b := newTestStore(t, 0)
    _ = s.SetWifiSSID("roofnet")
    _ = s.SetWifiPasswd("hunter22")
    _ = s.SetNetifPassword("pw")
    _ = s.SetIP("192.168.1.20")
    _ = s.SetNetmask("255.255.255.0")
    _ = s.SetGateway("192.168.1.1")
    _ = s.SetDNS1("1.1.1.1")
    _ = s.SetDNS2("8.8.8.8")
    _ = s.SetDNS3("9.9.9.9")
    name, _ := record.ParseChannelName("LongFast")
    _ = s.AddAuthChannel(record.AuthChannel{Name: name, PSK: record.Key{1, 2, 3}})
    _ = s.AddAdmin(record.Admin{NodeID: 1, PublicKey: record.Key{9}})
    _ = s.AddMate(record.Mate{NodeID: 2})
    _ = s.AddMate(record.Mate{NodeID: 3})
    if err := s.Save(); err != nil { t.Fatal(err) }

    wantCfg, wantR := s.Snapshot()
    s2 := New(b, Options{Namespace: "test", Logger: zap.NewNop()})
    if err := s2.Load(); err != nil { t.Fatal(err) }
    gotCfg, gotR := s2.Snapshot()
    if gotCfg != wantCfg {
        t.Errorf("config mismatch:\n got %+v\nwant %+v", gotCfg, wantCfg)
    }
    if len(gotR.Mates) != 2 || gotR.Mates[1].NodeID != 3 || gotR.AuthChannels[0] != wantR.AuthChannels[0] || gotR.Admins[0] != wantR.Admins[0] {
        t.Errorf("rosters mismatch: %+v", gotR)
    }
    if s2.IP().String() != "192.168.1.20" || s2.DNS3().String() != "9.9.9.9" {
        t.Errorf("address getters: %s %s", s2.IP(), s2.DNS3())
    }
}

func TestSetWifiSSIDTooLong(t *testing.T) {
    s, _ := newTestStore(t, 0)
    if err := s.SetWifiSSID("home"); err != nil { t.Fatal(err) }

    err := s.SetWifiSSID(strings.Repeat("x", 33))
    if !errors.Is(err, record.ErrInputTooLong) {
        t.Fatalf("expected ErrInputTooLong, got %v", err)
    }
    var tl *record.InputTooLongError
    if !errors.As(err, &tl) || tl.Max != 32 || tl.Len != 33 {
        t.Errorf("unexpected error detail: %v", err)
    }
    if s.WifiSSID() != "home" {
        t.Errorf("ssid changed to %q", s.WifiSSID())
    }
    if err := s.SetWifiSSID(strings.Repeat("x", 32)); err != nil {
        t.Errorf("32 bytes should fit: %v", err)
    }
}

func TestSetAddressInvalidKeepsValue(t *testing.T) {
    s, _ := newTestStore(t, 0)
    _ = s.SetGateway("10.0.0.1")
    if err := s.SetGateway("10.0.0.256"); !errors.Is(err, record.ErrInvalidAddress) {
        t.Fatalf("expected ErrInvalidAddress, got %v", err)
    }
    if s.Gateway().String() != "10.0.0.1" {
        t.Errorf("gateway changed: %s", s.Gateway())
    }
    _ = s.SetIP("10.0.0.5")
    s.SetDHCP()
    if cfg, _ := s.Snapshot(); !cfg.DHCP() {
        t.Errorf("SetDHCP did not clear ip")
    }
}

func TestCapacityExceededWritesNothing(t *testing.T) {
    s, b := newTestStore(t, record.MinBlobSize-1)
    err := s.Save()
    if !errors.Is(err, record.ErrCapacityExceeded) {
        t.Fatalf("expected ErrCapacityExceeded, got %v", err)
    }
    if keys := b.Store().Keys(""); len(keys) != 0 {
        t.Fatalf("backend written on failed save: %v", keys)
    }
}

func TestAddRejectsOverCapacity(t *testing.T) {
    s, _ := newTestStore(t, record.MinBlobSize+record.AdminSize)
    if err := s.AddAdmin(record.Admin{NodeID: 1}); err != nil {
        t.Fatalf("first admin should fit: %v", err)
    }
    if err := s.AddAdmin(record.Admin{NodeID: 2}); !errors.Is(err, record.ErrCapacityExceeded) {
        t.Fatalf("expected ErrCapacityExceeded, got %v", err)
    }
    if err := s.AddMate(record.Mate{NodeID: 3}); !errors.Is(err, record.ErrCapacityExceeded) {
        t.Fatalf("expected ErrCapacityExceeded for mate, got %v", err)
    }
    if n := len(s.Admins()); n != 1 {
        t.Fatalf("admins = %d", n)
    }
    if err := s.Save(); err != nil {
        t.Fatalf("record at capacity must still save: %v", err)
    }
}

func TestDuplicateAndNotFound(t *testing.T) {
    s, _ := newTestStore(t, 0)
    if err := s.AddMate(record.Mate{NodeID: 5}); err != nil { t.Fatal(err) }
    if err := s.AddMate(record.Mate{NodeID: 5}); !errors.Is(err, ErrDuplicate) {
        t.Errorf("expected ErrDuplicate, got %v", err)
    }
    if err := s.DelMate(6); !errors.Is(err, ErrNotFound) {
        t.Errorf("expected ErrNotFound, got %v", err)
    }
    if err := s.DelMate(5); err != nil { t.Errorf("del: %v", err) }
    if len(s.Mates()) != 0 { t.Errorf("mate not removed") }

    name, _ := record.ParseChannelName("ops")
    _ = s.AddAuthChannel(record.AuthChannel{Name: name})
    if err := s.AddAuthChannel(record.AuthChannel{Name: name}); !errors.Is(err, ErrDuplicate) {
        t.Errorf("expected ErrDuplicate, got %v", err)
    }
    if err := s.DelAuthChannel("nope"); !errors.Is(err, ErrNotFound) {
        t.Errorf("expected ErrNotFound, got %v", err)
    }
    if err := s.DelAdmin(1); !errors.Is(err, ErrNotFound) {
        t.Errorf("expected ErrNotFound, got %v", err)
    }
}

func TestRosterAccessorsReturnCopies(t *testing.T) {
    s, _ := newTestStore(t, 0)
    _ = s.AddAdmin(record.Admin{NodeID: 1})
    a := s.Admins()
    a[0].NodeID = 99
    if s.Admins()[0].NodeID != 1 {
        t.Fatalf("accessor aliases store state")
    }
}

func TestLoadIsAllOrNothing(t *testing.T) {
    s, b := newTestStore(t, 0)
    _ = s.SetWifiSSID("persisted")
    if err := s.Save(); err != nil { t.Fatal(err) }

    key := flash.Key("test", BlobKey)
    good := storedBlob(t, b)

    cases := []struct {
        name    string
        corrupt func()
        want    error
    }{
        {"header", func() {
            bad := append([]byte(nil), good...)
            bad[0] ^= 0x01
            _ = b.Store().Set(key, bad)
        }, record.ErrCorruptHeader},
        {"footer", func() {
            bad := append([]byte(nil), good...)
            bad[len(bad)-8] ^= 0x80
            _ = b.Store().Set(key, bad)
        }, record.ErrCorruptFooter},
        {"short payload", func() {
            _ = b.Store().Set(key, good[:len(good)-1])
        }, record.ErrCorruptFooter},
        {"missing payload", func() {
            b.Store().Delete(key)
        }, flash.ErrNotFound},
        {"garbage metadata", func() {
            _ = b.Store().Set(key, good)
            _ = b.Store().Set(flash.Key("test", MetaKey), []byte{0xff, 0x00})
        }, record.ErrCorruptHeader},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            tc.corrupt()
            _ = s.SetWifiSSID("in-memory")
            err := s.Load()
            if !errors.Is(err, tc.want) {
                t.Fatalf("expected %v, got %v", tc.want, err)
            }
            if s.WifiSSID() != "in-memory" {
                t.Fatalf("failed load mutated state: %q", s.WifiSSID())
            }
        })
    }
}

func TestBackendFailures(t *testing.T) {
    s, b := newTestStore(t, 0)
    boom := errors.New("flash busy")

    b.FailOpen(boom)
    if err := s.Load(); !errors.Is(err, ErrBackendIO) || !errors.Is(err, boom) {
        t.Errorf("load: expected ErrBackendIO wrapping cause, got %v", err)
    }
    if err := s.Save(); !errors.Is(err, ErrBackendIO) {
        t.Errorf("save: expected ErrBackendIO, got %v", err)
    }
    b.FailOpen(nil)

    b.FailSet(boom)
    if err := s.Save(); !errors.Is(err, ErrBackendIO) {
        t.Errorf("save: expected ErrBackendIO on set, got %v", err)
    }
    b.FailSet(nil)

    b.FailCommit(boom)
    if err := s.Save(); !errors.Is(err, ErrBackendIO) {
        t.Errorf("save: expected ErrBackendIO on commit, got %v", err)
    }
    if keys := b.Store().Keys(""); len(keys) != 0 {
        t.Errorf("failed commit left keys: %v", keys)
    }
    b.FailCommit(nil)

    if err := s.Save(); err != nil {
        t.Errorf("save after recovery: %v", err)
    }
}

func TestResetClearsRecord(t *testing.T) {
    s, _ := newTestStore(t, 0)
    _ = s.SetWifiSSID("x")
    _ = s.AddMate(record.Mate{NodeID: 1})
    s.Reset()
    cfg, r := s.Snapshot()
    if cfg != (record.Config{}) || len(r.Mates) != 0 {
        t.Fatalf("reset left state: %+v %+v", cfg, r)
    }
}

type fakeConsumer struct {
    cleared  int
    chans    []record.AuthChannel
    admins   []record.Admin
    mates    []record.Mate
    rejectID record.NodeID
}

var errRejected = errors.New("rejected")

func (f *fakeConsumer) ClearRosters() {
    f.cleared++
    f.chans, f.admins, f.mates = nil, nil, nil
}

func (f *fakeConsumer) AddAuthChannel(a record.AuthChannel) error {
    f.chans = append(f.chans, a)
    return nil
}

func (f *fakeConsumer) AddAdmin(a record.Admin) error {
    if a.NodeID == f.rejectID { return errRejected }
    f.admins = append(f.admins, a)
    return nil
}

func (f *fakeConsumer) AddMate(m record.Mate) error {
    if m.NodeID == f.rejectID { return errRejected }
    f.mates = append(f.mates, m)
    return nil
}

func TestApplyRostersAttemptsEveryEntry(t *testing.T) {
    s, _ := newTestStore(t, 0)
    name, _ := record.ParseChannelName("ops")
    _ = s.AddAuthChannel(record.AuthChannel{Name: name})
    _ = s.AddAdmin(record.Admin{NodeID: 13})
    _ = s.AddAdmin(record.Admin{NodeID: 2})
    _ = s.AddMate(record.Mate{NodeID: 13})
    _ = s.AddMate(record.Mate{NodeID: 4})

    c := &fakeConsumer{rejectID: 13, admins: []record.Admin{{NodeID: 77}}}
    err := s.ApplyRosters(c)
    if !errors.Is(err, errRejected) {
        t.Fatalf("expected aggregated error, got %v", err)
    }
    if !strings.Contains(err.Error(), "admin !0000000d") || !strings.Contains(err.Error(), "mate !0000000d") {
        t.Errorf("both failures should be reported: %v", err)
    }
    if c.cleared != 1 {
        t.Errorf("consumer cleared %d times", c.cleared)
    }
    if len(c.chans) != 1 || len(c.admins) != 1 || c.admins[0].NodeID != 2 || len(c.mates) != 1 || c.mates[0].NodeID != 4 {
        t.Errorf("consumer state: %+v", c)
    }

    c.rejectID = 0
    if err := s.ApplyRosters(c); err != nil {
        t.Errorf("clean apply: %v", err)
    }
}

func TestConcurrentMutationAndSave(t *testing.T) {
    s, _ := newTestStore(t, 0)
    var wg sync.WaitGroup
    for g := 0; g < 4; g++ {
        wg.Add(1)
        go func(g int) {
            defer wg.Done()
            for i := 0; i < 25; i++ {
                _ = s.AddMate(record.Mate{NodeID: record.NodeID(g*100 + i)})
                _ = s.SetWifiSSID("ssid")
                if err := s.Save(); err != nil {
                    t.Errorf("save: %v", err)
                    return
                }
            }
        }(g)
    }
    wg.Wait()
    if n := len(s.Mates()); n != 100 {
        t.Fatalf("mates = %d, want 100", n)
    }
    if err := s.Load(); err != nil {
        t.Fatalf("load: %v", err)
    }
    if n := len(s.Mates()); n != 100 {
        t.Fatalf("mates after reload = %d", n)
    }
}
