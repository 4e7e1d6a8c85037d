package transport

import (
    "errors"
    "net"
    "os"
    "sync"
    "time"
)

// StreamConn adapts a net.Conn (TCP socket, in-process pipe) to Conn using
// read deadlines for ReadTimeout.
type StreamConn struct {
    c    net.Conn
    kind Kind

    wmu    sync.Mutex
    closed chan struct{}
    once   sync.Once
}

func NewStreamConn(c net.Conn, kind Kind) *StreamConn {
    return &StreamConn{c: c, kind: kind, closed: make(chan struct{})}
}

func (s *StreamConn) Kind() Kind           { return s.kind }
func (s *StreamConn) RemoteAddr() net.Addr { return s.c.RemoteAddr() }
func (s *StreamConn) LocalAddr() net.Addr  { return s.c.LocalAddr() }
func (s *StreamConn) ReadReady() bool      { return !s.isClosed() }

func (s *StreamConn) Write(p []byte) (int, error) {
    if s.isClosed() { return 0, ErrClosed }
    s.wmu.Lock()
    defer s.wmu.Unlock()
    return s.c.Write(p)
}

func (s *StreamConn) ReadTimeout(p []byte, d time.Duration) (int, error) {
    if s.isClosed() { return 0, ErrClosed }
    if d > 0 {
        if err := s.c.SetReadDeadline(time.Now().Add(d)); err != nil {
            return 0, err
        }
    }
    n, err := s.c.Read(p)
    if err != nil {
        if n == 0 && isTimeout(err) {
            return 0, nil
        }
        if n > 0 && isTimeout(err) {
            return n, nil
        }
        if s.isClosed() { return n, ErrClosed }
        return n, err
    }
    return n, nil
}

func (s *StreamConn) Close() error {
    var err error
    s.once.Do(func() {
        close(s.closed)
        err = s.c.Close()
    })
    return err
}

// Done is closed once Close has been called.
func (s *StreamConn) Done() <-chan struct{} { return s.closed }

func (s *StreamConn) isClosed() bool {
    select {
    case <-s.closed:
        return true
    default:
        return false
    }
}

func isTimeout(err error) bool {
    if errors.Is(err, os.ErrDeadlineExceeded) { return true }
    var ne net.Error
    return errors.As(err, &ne) && ne.Timeout()
}
