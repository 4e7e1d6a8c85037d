// Package tcp implements the remote shell transport over plain TCP.
package tcp

import (
    "context"
    "net"
    "sync"

    "go.uber.org/zap"

    "meshroof/pkg/transport"
)

// Listener accepts TCP connections in a background loop and hands them out
// through Accept. Connections arriving while the queue is full are closed.
type Listener struct {
    l       net.Listener
    newCh   chan transport.Conn
    closeCh chan struct{}
    once    sync.Once
}

// Listen starts accepting on address. The listener closes when ctx is done.
func Listen(ctx context.Context, address string) (*Listener, error) {
    l, err := net.Listen("tcp", address)
    if err != nil { return nil, err }
    tl := &Listener{l: l, newCh: make(chan transport.Conn, 8), closeCh: make(chan struct{})}
    go tl.acceptLoop()
    go func() {
        select {
        case <-ctx.Done():
        case <-tl.closeCh:
        }
        _ = tl.Close()
    }()
    return tl, nil
}

// Dial connects to a remote shell.
func Dial(ctx context.Context, address string) (*transport.StreamConn, error) {
    d := &net.Dialer{}
    c, err := d.DialContext(ctx, "tcp", address)
    if err != nil { return nil, err }
    return transport.NewStreamConn(c, transport.KindTCP), nil
}

func (l *Listener) Addr() net.Addr { return l.l.Addr() }

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
    var err error
    l.once.Do(func() {
        close(l.closeCh)
        err = l.l.Close()
    })
    return err
}

func (l *Listener) acceptLoop() {
    for {
        c, err := l.l.Accept()
        if err != nil { return }
        if tc, ok := c.(*net.TCPConn); ok {
            _ = tc.SetNoDelay(true)
            _ = tc.SetKeepAlive(true)
        }
        s := transport.NewStreamConn(c, transport.KindTCP)
        select {
        case l.newCh <- s:
        default:
            zap.L().Warn("tcp accept queue full, dropping", zap.String("remote", c.RemoteAddr().String()))
            _ = s.Close()
        }
    }
}
