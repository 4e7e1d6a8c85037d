package transport

import (
    "context"
    "errors"
    "fmt"
    "net"
    "time"
)

// Kind identifies the link a shell session is bound to. Handlers use it to
// tell the always-on local console apart from a remote client.
type Kind int

const (
    KindUnknown Kind = iota
    KindLocal
    KindTCP
    KindQUIC
    KindMem
)

func (k Kind) String() string {
    switch k {
    case KindLocal:
        return "local"
    case KindTCP:
        return "tcp"
    case KindQUIC:
        return "quic"
    case KindMem:
        return "mem"
    default:
        return "unknown"
    }
}

// Remote reports whether the kind is subject to session arbitration.
func (k Kind) Remote() bool { return k == KindTCP || k == KindQUIC || k == KindMem }

// ErrClosed is returned by operations on a closed Conn or Listener.
var ErrClosed = errors.New("transport: closed")

// Conn is a raw byte channel. Exactly one reader goroutine is expected;
// Write may be called from any goroutine.
type Conn interface {
    Write(p []byte) (int, error)
    // ReadReady reports whether a read is worth attempting. Stream
    // transports always report true and rely on ReadTimeout.
    ReadReady() bool
    // ReadTimeout reads into p, waiting at most d. A timeout with no data
    // returns (0, nil); io.EOF or any other error means the peer is gone.
    ReadTimeout(p []byte, d time.Duration) (int, error)
    Close() error
    Kind() Kind
    RemoteAddr() net.Addr
}

// Listener accepts inbound connections.
type Listener interface {
    // Accept blocks until a connection is available or ctx is done.
    Accept(ctx context.Context) (Conn, error)
    // Addr returns the local listening address.
    Addr() net.Addr
    // Close stops the listener and unblocks Accept.
    Close() error
}

// Label renders a connection for logs, e.g. "tcp:127.0.0.1:5555".
func Label(c Conn) string {
    if c == nil { return "none" }
    addr := c.RemoteAddr()
    if addr == nil { return fmt.Sprintf("%s:unknown", c.Kind()) }
    return fmt.Sprintf("%s:%s", c.Kind(), addr.String())
}
