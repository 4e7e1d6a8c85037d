package shell

import (
    "bytes"
    "io"
    "net"
    "sync"
    "testing"
    "time"

    "go.uber.org/zap"

    "meshroof/pkg/device"
    "meshroof/pkg/flash/memfs"
    "meshroof/pkg/memkv"
    "meshroof/pkg/nvm"
    "meshroof/pkg/peers"
    "meshroof/pkg/record"
    "meshroof/pkg/transport"
)

// recorder is a transport.Conn that captures output and serves queued input.
type recorder struct {
    mu     sync.Mutex
    kind   transport.Kind
    out    bytes.Buffer
    in     [][]byte
    closed bool
}

func (r *recorder) Write(p []byte) (int, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.closed { return 0, transport.ErrClosed }
    return r.out.Write(p)
}

func (r *recorder) ReadReady() bool {
    r.mu.Lock()
    defer r.mu.Unlock()
    return len(r.in) > 0
}

func (r *recorder) ReadTimeout(p []byte, _ time.Duration) (int, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.closed { return 0, transport.ErrClosed }
    if len(r.in) == 0 { return 0, io.EOF }
    n := copy(p, r.in[0])
    r.in[0] = r.in[0][n:]
    if len(r.in[0]) == 0 { r.in = r.in[1:] }
    return n, nil
}

func (r *recorder) Close() error {
    r.mu.Lock()
    r.closed = true
    r.mu.Unlock()
    return nil
}

func (r *recorder) Kind() transport.Kind { return r.kind }
func (r *recorder) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000} }

// take returns and clears the captured output.
func (r *recorder) take() string {
    r.mu.Lock()
    defer r.mu.Unlock()
    s := r.out.String()
    r.out.Reset()
    return s
}

type fixture struct {
    env     *Env
    store   *nvm.Store
    backend *memfs.Backend
    view    *peers.Store
    dev     *device.Offline
    reboots int
}

func newFixture(t *testing.T) *fixture {
    t.Helper()
    f := &fixture{backend: memfs.New(0)}
    f.store = nvm.New(f.backend, nvm.Options{Logger: zap.NewNop()})
    f.view = peers.NewStore(memkv.New(memkv.Options{}))
    f.dev = device.NewOffline(device.OfflineOptions{
        Me:       device.NodeInfo{ID: 0x10, ShortName: "roof", LongName: "Roof Relay"},
        Channels: []device.ChannelInfo{{Name: "LongFast"}, {Name: "ops", PSK: record.Key{1}}},
        Nodes: []device.NodeInfo{
            {ID: 0xa1b2c3d4, ShortName: "bob", LongName: "Bob Base", PublicKey: record.Key{9}},
            {ID: 0x00c0ffee, ShortName: "cat"},
        },
        Logger: zap.NewNop(),
    }, func() string { return string(f.store.WifiSSID()) })
    f.env = &Env{
        Store:   f.store,
        Peers:   f.view,
        Radio:   f.dev,
        Wifi:    f.dev.Wifi(),
        Reboot:  func() { f.reboots++ },
        Version: "1.2.3",
        Built:   "ci@builder 2025-01-01",
        Started: time.Now().Add(-90 * time.Second),
    }
    return f
}

func (f *fixture) session(kind transport.Kind, noEcho bool) (*Session, *recorder) {
    s := New(f.env, Options{Logger: zap.NewNop()})
    r := &recorder{kind: kind}
    s.Attach(r, AttachOptions{NoEcho: noEcho})
    return s, r
}

// run feeds one line and returns the command output without echo, the
// leading line break and the trailing prompt.
func run(t *testing.T, s *Session, r *recorder, line string) string {
    t.Helper()
    r.take()
    s.Feed([]byte(line + "\r"))
    out := r.take()
    echo := line
    if s.echoOff() {
        echo = ""
    }
    out = trimPrefix(t, out, echo+"\r\n")
    if !bytes.HasSuffix([]byte(out), []byte("> ")) {
        t.Fatalf("no prompt after %q: %q", line, out)
    }
    return out[:len(out)-2]
}

func trimPrefix(t *testing.T, s, prefix string) string {
    t.Helper()
    if len(s) < len(prefix) || s[:len(prefix)] != prefix {
        t.Fatalf("output %q does not start with %q", s, prefix)
    }
    return s[len(prefix):]
}
