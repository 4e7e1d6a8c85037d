// Package mem is an in-process transport built on net.Pipe, used by tests
// and as a loopback for tools that drive the shell programmatically.
package mem

import (
    "context"
    "errors"
    "net"
    "sync"

    "meshroof/pkg/transport"
)

// backlog is how many dialed connections may wait for Accept.
const backlog = 8

// Transport is a registry of named in-process listeners.
type Transport struct {
    mu        sync.Mutex
    listeners map[string]*Listener
}

func New() *Transport { return &Transport{listeners: make(map[string]*Listener)} }

// Listen registers name. The listener is removed when ctx is done or it is closed.
func (t *Transport) Listen(ctx context.Context, name string) (*Listener, error) {
    t.mu.Lock(); defer t.mu.Unlock()
    if _, ok := t.listeners[name]; ok {
        return nil, errors.New("mem: listener already exists")
    }
    l := &Listener{name: name, newCh: make(chan transport.Conn, backlog), closeCh: make(chan struct{})}
    t.listeners[name] = l
    go func() {
        select {
        case <-ctx.Done():
        case <-l.closeCh:
        }
        _ = l.Close()
        t.mu.Lock(); delete(t.listeners, name); t.mu.Unlock()
    }()
    return l, nil
}

// ErrBacklogFull is returned by Dial when the listener has too many
// connections waiting to be accepted.
var ErrBacklogFull = errors.New("mem: listener backlog full")

// Dial connects to the named listener and returns the client end. The client
// end is closed when ctx is done or the server end closes.
func (t *Transport) Dial(ctx context.Context, name string) (*transport.StreamConn, error) {
    t.mu.Lock(); l := t.listeners[name]; t.mu.Unlock()
    if l == nil { return nil, errors.New("mem: no such listener") }
    srv, cli := Pipe()
    select {
    case l.newCh <- srv:
    default:
        _ = srv.Close()
        _ = cli.Close()
        return nil, ErrBacklogFull
    }
    go func() {
        select {
        case <-ctx.Done():
        case <-cli.Done():
        case <-srv.Done():
        }
        _ = cli.Close()
    }()
    return cli, nil
}

// Pipe returns two connected ends, both reporting KindMem.
func Pipe() (*transport.StreamConn, *transport.StreamConn) {
    c1, c2 := net.Pipe()
    return transport.NewStreamConn(c1, transport.KindMem), transport.NewStreamConn(c2, transport.KindMem)
}

type Listener struct {
    name    string
    newCh   chan transport.Conn
    closeCh chan struct{}
    once    sync.Once
}

func (l *Listener) Addr() net.Addr { return memAddr(l.name) }

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-l.closeCh:
        return nil, transport.ErrClosed
    case c := <-l.newCh:
        return c, nil
    }
}

func (l *Listener) Close() error {
    l.once.Do(func() { close(l.closeCh) })
    return nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }
