package observability

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "go.uber.org/zap"
)

var (
    // CommandsTotal counts shell commands by name and outcome (ok, error, unknown).
    CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "meshroof_commands_total",
        Help: "Shell commands executed.",
    }, []string{"cmd", "status"})

    // ConnectionsTotal counts remote connection attempts by result
    // (accepted, rejected_pending, rejected_bound).
    ConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "meshroof_connections_total",
        Help: "Remote shell connection attempts.",
    }, []string{"result"})

    // RemoteSessionBound is 1 while a remote session is attached.
    RemoteSessionBound = promauto.NewGauge(prometheus.GaugeOpts{
        Name: "meshroof_remote_session_bound",
        Help: "Whether a remote shell session is attached.",
    })

    // NVMOpsTotal counts record store loads and saves.
    NVMOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "meshroof_nvm_ops_total",
        Help: "Record store operations.",
    }, []string{"op", "result"})

    // NVMBlobBytes is the size of the last encoded record.
    NVMBlobBytes = promauto.NewGauge(prometheus.GaugeOpts{
        Name: "meshroof_nvm_blob_bytes",
        Help: "Size of the last saved or loaded record blob.",
    })
)

// Result maps an error to the label used by the counters above.
func Result(err error) string {
    if err != nil {
        return "error"
    }
    return "ok"
}

// ServeMetrics exposes /metrics on addr until ctx is done. An empty addr
// disables the exporter.
func ServeMetrics(ctx context.Context, addr string) error {
    if addr == "" {
        <-ctx.Done()
        return nil
    }
    mux := http.NewServeMux()
    mux.Handle("/metrics", promhttp.Handler())
    srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

    go func() {
        <-ctx.Done()
        sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = srv.Shutdown(sctx)
    }()

    zap.L().Info("metrics exporter listening", zap.String("addr", addr))
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
        return err
    }
    return nil
}
