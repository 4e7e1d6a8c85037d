// Package quic implements the remote shell transport over a QUIC
// connection carrying one bidirectional stream. The server opens the
// stream as soon as the handshake completes; the client accepts it, which
// succeeds once the server has written its first bytes (the prompt or the
// reject message).
package quic

import (
    "context"
    "crypto/ecdsa"
    "crypto/elliptic"
    "crypto/rand"
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "math/big"
    "net"
    "sync"
    "time"

    quicgo "github.com/quic-go/quic-go"
    "go.uber.org/zap"

    "meshroof/pkg/transport"
)

// ALPN is the application protocol negotiated on shell connections.
const ALPN = "meshroof-shell"

const (
    openTimeout = 5 * time.Second
    // closeLinger bounds how long a closed stream waits for the peer to
    // read the final bytes before the connection is torn down.
    closeLinger = 2 * time.Second
)

func quicConfig() *quicgo.Config {
    return &quicgo.Config{
        KeepAlivePeriod: 15 * time.Second,
        MaxIdleTimeout:  60 * time.Second,
    }
}

// ServerTLS loads certFile/keyFile, or generates an ephemeral self-signed
// certificate when both are empty.
func ServerTLS(certFile, keyFile string) (*tls.Config, error) {
    var cert tls.Certificate
    var err error
    if certFile == "" && keyFile == "" {
        cert, err = selfSignedCert()
    } else {
        cert, err = tls.LoadX509KeyPair(certFile, keyFile)
    }
    if err != nil {
        return nil, fmt.Errorf("quic tls: %w", err)
    }
    return &tls.Config{
        Certificates: []tls.Certificate{cert},
        NextProtos:   []string{ALPN},
        MinVersion:   tls.VersionTLS13,
    }, nil
}

// Listener accepts QUIC connections in a background loop and hands out the
// shell stream of each through Accept. Connections arriving while the
// queue is full are closed.
type Listener struct {
    l       *quicgo.Listener
    newCh   chan transport.Conn
    closeCh chan struct{}
    once    sync.Once
}

// Listen starts accepting on address. The listener closes when ctx is done.
func Listen(ctx context.Context, address string, tlsConf *tls.Config) (*Listener, error) {
    l, err := quicgo.ListenAddr(address, tlsConf, quicConfig())
    if err != nil { return nil, err }
    ql := &Listener{l: l, newCh: make(chan transport.Conn, 8), closeCh: make(chan struct{})}
    go ql.acceptLoop()
    go func() {
        select {
        case <-ctx.Done():
        case <-ql.closeCh:
        }
        _ = ql.Close()
    }()
    return ql, nil
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
        qc, err := l.l.Accept(context.Background())
        if err != nil { return }
        ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
        st, err := qc.OpenStreamSync(ctx)
        cancel()
        if err != nil {
            zap.L().Warn("quic stream open failed", zap.String("remote", qc.RemoteAddr().String()), zap.Error(err))
            _ = qc.CloseWithError(0, "")
            continue
        }
        s := transport.NewStreamConn(&streamConn{Stream: st, qc: qc}, transport.KindQUIC)
        select {
        case l.newCh <- s:
        default:
            zap.L().Warn("quic accept queue full, dropping", zap.String("remote", qc.RemoteAddr().String()))
            _ = s.Close()
        }
    }
}

// Dial connects to a remote shell. It returns once the server has opened
// the shell stream, which may take until the first server write. Server
// certificates are not verified unless verify is set.
func Dial(ctx context.Context, address string, verify bool) (*transport.StreamConn, error) {
    tlsConf := &tls.Config{
        InsecureSkipVerify: !verify,
        NextProtos:         []string{ALPN},
        MinVersion:         tls.VersionTLS13,
    }
    qc, err := quicgo.DialAddr(ctx, address, tlsConf, quicConfig())
    if err != nil { return nil, err }
    st, err := qc.AcceptStream(ctx)
    if err != nil {
        _ = qc.CloseWithError(0, "")
        return nil, err
    }
    return transport.NewStreamConn(&streamConn{Stream: st, qc: qc}, transport.KindQUIC), nil
}

// streamConn presents a QUIC stream as a net.Conn. Close finishes the send
// side and tears the connection down once the peer hangs up or after
// closeLinger.
type streamConn struct {
    quicgo.Stream
    qc quicgo.Connection
}

func (c *streamConn) LocalAddr() net.Addr  { return c.qc.LocalAddr() }
func (c *streamConn) RemoteAddr() net.Addr { return c.qc.RemoteAddr() }

func (c *streamConn) Close() error {
    err := c.Stream.Close()
    c.Stream.CancelRead(0)
    go func() {
        select {
        case <-c.qc.Context().Done():
        case <-time.After(closeLinger):
        }
        _ = c.qc.CloseWithError(0, "")
    }()
    return err
}

func (c *streamConn) Read(p []byte) (int, error) {
    n, err := c.Stream.Read(p)
    var appErr *quicgo.ApplicationError
    if errors.As(err, &appErr) && appErr.ErrorCode == 0 {
        // a clean CloseWithError from the peer is a hangup
        return n, transport.ErrClosed
    }
    return n, err
}

func selfSignedCert() (tls.Certificate, error) {
    priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
    if err != nil { return tls.Certificate{}, err }
    tmpl := x509.Certificate{
        SerialNumber:          big.NewInt(time.Now().UnixNano()),
        NotBefore:             time.Now().Add(-time.Minute),
        NotAfter:              time.Now().Add(365 * 24 * time.Hour),
        KeyUsage:              x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
        BasicConstraintsValid: true,
        DNSNames:              []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
    if err != nil { return tls.Certificate{}, err }
    return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}
