package transport

import (
    "context"
    "errors"
    "net"
    "strings"
    "sync"
)

type accepted struct {
    c   Conn
    err error
}

// Merged fans several listeners into one. Accept returns connections from
// any of them in arrival order; the first listener failure is reported once
// and closes the rest.
type Merged struct {
    ls     []Listener
    ch     chan accepted
    cancel context.CancelFunc
    done   chan struct{}
    once   sync.Once
}

// Merge starts accepting on every listener. A single listener is returned
// unchanged.
func Merge(ls ...Listener) Listener {
    if len(ls) == 1 { return ls[0] }
    ctx, cancel := context.WithCancel(context.Background())
    m := &Merged{ls: ls, ch: make(chan accepted), cancel: cancel, done: make(chan struct{})}
    for _, l := range ls {
        go m.pump(ctx, l)
    }
    return m
}

func (m *Merged) pump(ctx context.Context, l Listener) {
    for {
        c, err := l.Accept(ctx)
        if err != nil && ctx.Err() != nil { return }
        select {
        case m.ch <- accepted{c, err}:
        case <-m.done:
            if c != nil { _ = c.Close() }
            return
        }
        if err != nil { return }
    }
}

func (m *Merged) Accept(ctx context.Context) (Conn, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-m.done:
        return nil, ErrClosed
    case a := <-m.ch:
        if a.err != nil {
            _ = m.Close()
            return nil, a.err
        }
        return a.c, nil
    }
}

func (m *Merged) Addr() net.Addr {
    parts := make([]string, 0, len(m.ls))
    for _, l := range m.ls {
        parts = append(parts, l.Addr().String())
    }
    return mergedAddr(strings.Join(parts, ","))
}

func (m *Merged) Close() error {
    var errs []error
    m.once.Do(func() {
        close(m.done)
        m.cancel()
        for _, l := range m.ls {
            if err := l.Close(); err != nil { errs = append(errs, err) }
        }
    })
    return errors.Join(errs...)
}

type mergedAddr string

func (mergedAddr) Network() string  { return "multi" }
func (a mergedAddr) String() string { return string(a) }
