// Package console is the local, always-attached shell transport: the
// process's terminal (or any reader/writer pair) put into raw mode so the
// shell sees every keystroke.
package console

import (
    "io"
    "net"
    "os"
    "sync"
    "time"

    "golang.org/x/term"

    "meshroof/pkg/transport"
)

// Conn reads from in on a background goroutine so ReadTimeout can give up
// without leaving a read half done.
type Conn struct {
    out io.Writer
    wmu sync.Mutex

    chunks  chan []byte
    pending []byte
    readErr error
    errCh   chan error

    restore func()
    closed  chan struct{}
    once    sync.Once
}

// Open attaches to a terminal. When in is a TTY it is switched to raw mode
// and restored on Close.
func Open(in *os.File, out io.Writer) (*Conn, error) {
    restore := func() {}
    fd := int(in.Fd())
    if term.IsTerminal(fd) {
        st, err := term.MakeRaw(fd)
        if err != nil { return nil, err }
        restore = func() { _ = term.Restore(fd, st) }
    }
    c := New(in, out)
    c.restore = restore
    return c, nil
}

// New wraps an arbitrary reader/writer pair without touching terminal modes.
func New(in io.Reader, out io.Writer) *Conn {
    c := &Conn{
        out:     out,
        chunks:  make(chan []byte, 16),
        errCh:   make(chan error, 1),
        restore: func() {},
        closed:  make(chan struct{}),
    }
    go c.readLoop(in)
    return c
}

func (c *Conn) readLoop(in io.Reader) {
    buf := make([]byte, 256)
    for {
        n, err := in.Read(buf)
        if n > 0 {
            select {
            case c.chunks <- append([]byte(nil), buf[:n]...):
            case <-c.closed:
                return
            }
        }
        if err != nil {
            c.errCh <- err
            return
        }
    }
}

func (c *Conn) Kind() transport.Kind { return transport.KindLocal }

func (c *Conn) RemoteAddr() net.Addr { return consoleAddr{} }

func (c *Conn) ReadReady() bool { return len(c.pending) > 0 || len(c.chunks) > 0 }

func (c *Conn) ReadTimeout(p []byte, d time.Duration) (int, error) {
    if len(c.pending) == 0 {
        select {
        case b := <-c.chunks:
            c.pending = b
        default:
            if c.readErr != nil { return 0, c.readErr }
            if err := c.wait(d); err != nil || len(c.pending) == 0 {
                return 0, err
            }
        }
    }
    n := copy(p, c.pending)
    c.pending = c.pending[n:]
    return n, nil
}

// wait blocks for the next chunk, the reader failing, Close, or d.
func (c *Conn) wait(d time.Duration) error {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case b := <-c.chunks:
        c.pending = b
    case err := <-c.errCh:
        c.readErr = err
        // the reader may have queued input before failing
        select {
        case b := <-c.chunks:
            c.pending = b
        default:
            return err
        }
    case <-c.closed:
        return transport.ErrClosed
    case <-t.C:
    }
    return nil
}

func (c *Conn) Write(p []byte) (int, error) {
    select {
    case <-c.closed:
        return 0, transport.ErrClosed
    default:
    }
    c.wmu.Lock()
    defer c.wmu.Unlock()
    return c.out.Write(p)
}

// Close restores the terminal. The reader goroutine exits on the next
// input or EOF.
func (c *Conn) Close() error {
    c.once.Do(func() {
        close(c.closed)
        c.restore()
    })
    return nil
}

type consoleAddr struct{}

func (consoleAddr) Network() string { return "console" }
func (consoleAddr) String() string  { return "console" }
