package main

import (
    "context"
    "errors"
    "fmt"
    "io"
    "os"
    "time"

    "github.com/spf13/cobra"

    "meshroof/pkg/transport"
    "meshroof/pkg/transport/quic"
    "meshroof/pkg/transport/tcp"
)

type connectOptions struct {
    QUIC    bool
    Verify  bool
    Timeout time.Duration
}

// newConnectCmd is a minimal remote shell client. The terminal stays in
// line mode, so typing is echoed locally and a whole line is sent on enter.
func newConnectCmd() *cobra.Command {
    var co connectOptions
    cmd := &cobra.Command{
        Use:   "connect <addr>",
        Short: "Open a remote shell on a running node",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx := cmd.Context()
            if ctx == nil { ctx = context.Background() }
            dctx, cancel := context.WithTimeout(ctx, co.Timeout)
            defer cancel()
            c, err := dial(dctx, args[0], co)
            if err != nil { return fmt.Errorf("dial %s: %w", args[0], err) }
            return pipe(ctx, c, os.Stdin, cmd.OutOrStdout())
        },
    }
    cmd.Flags().BoolVar(&co.QUIC, "quic", false, "connect over QUIC instead of TCP")
    cmd.Flags().BoolVar(&co.Verify, "verify", false, "verify the QUIC server certificate")
    cmd.Flags().DurationVar(&co.Timeout, "timeout", 5*time.Second, "dial timeout")
    return cmd
}

func dial(ctx context.Context, addr string, co connectOptions) (transport.Conn, error) {
    if co.QUIC {
        return quic.Dial(ctx, addr, co.Verify)
    }
    return tcp.Dial(ctx, addr)
}

// pipe copies in to c and c to out until the node hangs up, in ends or ctx
// is done. The connection is closed on return.
func pipe(ctx context.Context, c transport.Conn, in io.Reader, out io.Writer) error {
    defer c.Close()
    go func() {
        _, _ = io.Copy(connWriter{c}, in)
        _ = c.Close()
    }()
    buf := make([]byte, 512)
    for ctx.Err() == nil {
        n, err := c.ReadTimeout(buf, 200*time.Millisecond)
        if n > 0 {
            if _, werr := out.Write(buf[:n]); werr != nil { return werr }
        }
        if err != nil {
            if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
                return nil
            }
            return err
        }
    }
    return nil
}

type connWriter struct{ c transport.Conn }

func (w connWriter) Write(p []byte) (int, error) { return w.c.Write(p) }
