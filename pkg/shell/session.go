// Package shell implements the line-oriented command shell. A Session is
// bound to one transport at a time; the local console keeps one Session
// attached for the life of the process and the arbiter cycles another
// through remote clients. Both share the same Env and command table.
package shell

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "io"
    "strings"
    "sync"
    "time"

    "go.uber.org/zap"

    "meshroof/pkg/device"
    "meshroof/pkg/nvm"
    "meshroof/pkg/observability"
    "meshroof/pkg/record"
    "meshroof/pkg/transport"
)

// ErrDetached is returned by Process when no transport is bound.
var ErrDetached = errors.New("shell: session detached")

// Env is everything command handlers act on. It is shared by all sessions.
type Env struct {
    Store *nvm.Store
    // Peers is rebuilt from the store after every roster change.
    Peers  AccessView
    Radio  device.Radio
    Wifi   device.Wifi
    Reboot func()

    Version string
    Built   string
    Started time.Time
}

// AccessView is the roster-derived access state. status reports its counts.
type AccessView interface {
    nvm.RosterConsumer
    Counts() record.Counts
}

// Options tunes a Session.
type Options struct {
    // LineMax is the line buffer size including the terminator slot.
    LineMax int
    MaxArgs int
    // ReadTimeout bounds each transport read in Process.
    ReadTimeout time.Duration
    Prompt      string
    Logger      *zap.Logger
}

const (
    DefaultLineMax     = 256
    DefaultMaxArgs     = 32
    DefaultReadTimeout = 100 * time.Millisecond
    DefaultPrompt      = "> "
)

func (o Options) withDefaults() Options {
    if o.LineMax <= 1 { o.LineMax = DefaultLineMax }
    if o.MaxArgs <= 0 { o.MaxArgs = DefaultMaxArgs }
    if o.ReadTimeout <= 0 { o.ReadTimeout = DefaultReadTimeout }
    if o.Prompt == "" { o.Prompt = DefaultPrompt }
    if o.Logger == nil { o.Logger = zap.L() }
    return o
}

// AttachOptions applies to one binding.
type AttachOptions struct {
    // NoEcho suppresses echo of typed characters for clients that echo
    // locally.
    NoEcho bool
}

// Session is one shell instance. Process and Feed must be called from a
// single goroutine; Attach, Detach and Attached may be called from any.
type Session struct {
    env  *Env
    opts Options
    log  *zap.Logger
    cmds []Command

    mu     sync.Mutex
    conn   transport.Conn
    noEcho bool

    line   []byte
    lastCR bool
    rbuf   []byte
}

// New creates a detached session over env.
func New(env *Env, opts Options) *Session {
    opts = opts.withDefaults()
    return &Session{
        env:  env,
        opts: opts,
        log:  opts.Logger.Named("shell"),
        cmds: Commands(),
        line: make([]byte, 0, opts.LineMax),
        rbuf: make([]byte, 128),
    }
}

// Attach binds c and clears any partial line.
func (s *Session) Attach(c transport.Conn, o AttachOptions) {
    s.mu.Lock()
    s.conn = c
    s.noEcho = o.NoEcho
    s.mu.Unlock()
    s.line = s.line[:0]
    s.lastCR = false
    s.log.Debug("session attached", zap.String("conn", transport.Label(c)), zap.Bool("no_echo", o.NoEcho))
}

// Detach unbinds and returns the previous transport. It does not close it.
func (s *Session) Detach() transport.Conn {
    s.mu.Lock()
    c := s.conn
    s.conn = nil
    s.mu.Unlock()
    if c != nil {
        s.log.Debug("session detached", zap.String("conn", transport.Label(c)))
    }
    return c
}

func (s *Session) Attached() bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.conn != nil
}

// Conn returns the bound transport, nil when detached.
func (s *Session) Conn() transport.Conn {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.conn
}

// Env returns the shared environment.
func (s *Session) Env() *Env { return s.env }

// Process performs one bounded read on the bound transport and runs every
// completed line. It returns the number of bytes consumed; an error means
// the transport is unusable and the caller should detach.
func (s *Session) Process(ctx context.Context) (int, error) {
    if err := ctx.Err(); err != nil { return 0, err }
    c := s.Conn()
    if c == nil { return 0, ErrDetached }
    n, err := c.ReadTimeout(s.rbuf, s.opts.ReadTimeout)
    if n > 0 {
        s.Feed(s.rbuf[:n])
    }
    return n, err
}

// Feed runs the line discipline over p.
func (s *Session) Feed(p []byte) {
    for _, c := range p {
        switch {
        case c == '\r' || (c == '\n' && !s.lastCR):
            s.Printf("\n")
            line := string(s.line)
            s.line = s.line[:0]
            s.execute(line)
            s.Prompt()
        case c == '\n':
            // second half of CRLF
        case c == 0x7f || c == 0x08:
            if len(s.line) > 0 {
                s.write([]byte("\b \b"))
                s.line = s.line[:len(s.line)-1]
            }
        case c == 0x03:
            s.line = s.line[:0]
            s.Printf("^C\n%s", s.opts.Prompt)
        case c >= 0x20 && c < 0x7f:
            if len(s.line) < s.opts.LineMax-1 {
                s.line = append(s.line, c)
                if !s.echoOff() {
                    s.write([]byte{c})
                }
            }
        }
        s.lastCR = c == '\r'
    }
}

func (s *Session) echoOff() bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.noEcho
}

// Prompt prints the prompt.
func (s *Session) Prompt() { s.Printf("%s", s.opts.Prompt) }

// Printf writes to the bound transport, translating \n to \r\n.
func (s *Session) Printf(format string, a ...any) {
    out := fmt.Sprintf(format, a...)
    s.write([]byte(strings.ReplaceAll(out, "\n", "\r\n")))
}

func (s *Session) write(p []byte) {
    c := s.Conn()
    if c == nil { return }
    if _, err := c.Write(p); err != nil && !errors.Is(err, transport.ErrClosed) {
        s.log.Debug("shell write failed", zap.String("conn", transport.Label(c)), zap.Error(err))
    }
}

func (s *Session) execute(line string) {
    args := strings.Fields(line)
    if len(args) == 0 { return }
    if len(args) > s.opts.MaxArgs {
        args = args[:s.opts.MaxArgs]
    }
    cmd := s.lookup(args[0])
    if cmd == nil {
        observability.CommandsTotal.WithLabelValues("unknown", "unknown").Inc()
        s.Printf("Unknown command: '%s'!\n", args[0])
        return
    }
    err := cmd.Run(s, args)
    observability.CommandsTotal.WithLabelValues(cmd.Name, observability.Result(err)).Inc()
    if err != nil {
        s.log.Debug("command failed", zap.Strings("args", args), zap.Error(err))
        s.Printf("%s\n", err)
    }
}

func (s *Session) lookup(name string) *Command {
    for i := range s.cmds {
        if s.cmds[i].Name == name { return &s.cmds[i] }
    }
    return nil
}

// Serve keeps s processing until ctx is done or the transport reaches EOF.
// Used for the local console, which is never arbitrated.
func Serve(ctx context.Context, s *Session) error {
    s.Prompt()
    for {
        if _, err := s.Process(ctx); err != nil {
            if ctx.Err() != nil { return nil }
            if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
                s.log.Info("local console closed", zap.Error(err))
                return nil
            }
            return err
        }
    }
}

// columns prints names four per row, each right aligned in 16 columns.
func (s *Session) columns(names []string) {
    var b bytes.Buffer
    for i, n := range names {
        if i%4 == 0 { b.WriteString("  ") }
        fmt.Fprintf(&b, "%16s  ", n)
        if i%4 == 3 { b.WriteString("\n") }
    }
    if len(names)%4 != 0 { b.WriteString("\n") }
    s.Printf("%s", b.String())
}
