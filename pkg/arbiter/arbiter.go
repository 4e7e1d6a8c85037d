// Package arbiter hands remote connections to a single shell session.
// Accepting and serving run on separate goroutines joined by a one-slot
// channel: while a connection is waiting in the slot, or a session is
// bound, every new arrival is told so and closed instead of queued.
package arbiter

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"

    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "meshroof/pkg/observability"
    "meshroof/pkg/shell"
    "meshroof/pkg/transport"
)

var (
    // ErrSlotOccupied rejects a connection while another one waits to be bound.
    ErrSlotOccupied = errors.New("arbiter: a connection is already pending")
    // ErrAlreadyBound rejects a connection while a remote session is active.
    ErrAlreadyBound = errors.New("arbiter: a remote session is already bound")
)

const DefaultRejectMessage = "Another session is active, bye!\n"

// Options configures an Arbiter.
type Options struct {
    // RejectMessage is written to refused clients before closing.
    RejectMessage string
    // NoEcho attaches remote sessions without character echo.
    NoEcho bool
    Logger *zap.Logger
}

// Arbiter owns the listener and the remote session.
type Arbiter struct {
    l    transport.Listener
    sess *shell.Session
    opts Options
    log  *zap.Logger

    slot chan transport.Conn

    mu      sync.Mutex
    pending bool
    bound   bool
    current transport.Conn
}

func New(l transport.Listener, sess *shell.Session, opts Options) *Arbiter {
    if opts.RejectMessage == "" { opts.RejectMessage = DefaultRejectMessage }
    if opts.Logger == nil { opts.Logger = zap.L() }
    return &Arbiter{
        l:    l,
        sess: sess,
        opts: opts,
        log:  opts.Logger.Named("arbiter"),
        slot: make(chan transport.Conn, 1),
    }
}

// Bound reports whether a remote session is attached.
func (a *Arbiter) Bound() bool {
    a.mu.Lock()
    defer a.mu.Unlock()
    return a.bound
}

// Pending reports whether a connection waits in the hand-off slot.
func (a *Arbiter) Pending() bool {
    a.mu.Lock()
    defer a.mu.Unlock()
    return a.pending
}

// Current returns the bound remote transport, nil when unbound.
func (a *Arbiter) Current() transport.Conn {
    a.mu.Lock()
    defer a.mu.Unlock()
    return a.current
}

// Run accepts and serves until ctx is done or the listener fails. On return
// the listener, the bound transport and any pending connection are closed.
func (a *Arbiter) Run(ctx context.Context) error {
    defer a.l.Close()
    a.log.Info("remote shell listening", zap.String("addr", a.l.Addr().String()))

    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error { return a.acceptLoop(gctx) })
    g.Go(func() error { return a.sessionLoop(gctx) })
    err := g.Wait()

    select {
    case c := <-a.slot:
        _ = c.Close()
    default:
    }
    a.mu.Lock()
    a.pending = false
    a.mu.Unlock()
    return err
}

func (a *Arbiter) acceptLoop(ctx context.Context) error {
    for {
        c, err := a.l.Accept(ctx)
        if err != nil {
            if ctx.Err() != nil { return nil }
            return fmt.Errorf("arbiter: accept: %w", err)
        }
        if err := a.offer(c); err != nil {
            go a.reject(c, err)
            continue
        }
        observability.ConnectionsTotal.WithLabelValues("accepted").Inc()
        a.log.Info("remote connection queued", zap.String("conn", transport.Label(c)))
    }
}

// offer places c in the slot without blocking.
func (a *Arbiter) offer(c transport.Conn) error {
    a.mu.Lock()
    defer a.mu.Unlock()
    if a.bound { return ErrAlreadyBound }
    if a.pending { return ErrSlotOccupied }
    select {
    case a.slot <- c:
        a.pending = true
        return nil
    default:
        return ErrSlotOccupied
    }
}

// reject runs on its own goroutine so a client that never reads cannot
// stall the acceptor.
func (a *Arbiter) reject(c transport.Conn, why error) {
    result := "rejected_pending"
    if errors.Is(why, ErrAlreadyBound) { result = "rejected_bound" }
    observability.ConnectionsTotal.WithLabelValues(result).Inc()
    a.log.Info("remote connection rejected", zap.String("conn", transport.Label(c)), zap.Error(why))

    _, _ = c.Write([]byte(strings.ReplaceAll(a.opts.RejectMessage, "\n", "\r\n")))
    _ = c.Close()
}

func (a *Arbiter) sessionLoop(ctx context.Context) error {
    for {
        var c transport.Conn
        select {
        case <-ctx.Done():
            return nil
        case c = <-a.slot:
        }

        a.mu.Lock()
        a.pending = false
        a.bound = true
        a.current = c
        a.mu.Unlock()
        observability.RemoteSessionBound.Set(1)

        a.serve(ctx, c)

        a.mu.Lock()
        a.bound = false
        a.current = nil
        a.mu.Unlock()
        observability.RemoteSessionBound.Set(0)
    }
}

func (a *Arbiter) serve(ctx context.Context, c transport.Conn) {
    a.log.Info("remote session attached", zap.String("conn", transport.Label(c)))
    a.sess.Attach(c, shell.AttachOptions{NoEcho: a.opts.NoEcho})
    a.sess.Prompt()

    var err error
    for err == nil {
        _, err = a.sess.Process(ctx)
    }

    a.sess.Detach()
    _ = c.Close()
    a.log.Info("remote session detached", zap.String("conn", transport.Label(c)), zap.NamedError("reason", err))
}
