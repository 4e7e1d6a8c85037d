package main

import (
    "context"
    "errors"
    "fmt"
    "os"
    "os/signal"
    "path/filepath"
    "syscall"
    "time"

    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "meshroof/pkg/arbiter"
    "meshroof/pkg/config"
    "meshroof/pkg/device"
    "meshroof/pkg/flash"
    "meshroof/pkg/flash/badgerfs"
    "meshroof/pkg/flash/memfs"
    "meshroof/pkg/memkv"
    "meshroof/pkg/nvm"
    "meshroof/pkg/observability"
    "meshroof/pkg/peers"
    "meshroof/pkg/record"
    "meshroof/pkg/shell"
    "meshroof/pkg/transport"
    "meshroof/pkg/transport/console"
    "meshroof/pkg/transport/quic"
    "meshroof/pkg/transport/tcp"
)

// setup loads the configuration and installs the global logger.
func setup(opts Options) (*config.Config, *zap.Logger, error) {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        return nil, nil, fmt.Errorf("load config: %w", err)
    }
    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        return nil, nil, fmt.Errorf("setup logger: %w", err)
    }
    return cfg, logger, nil
}

// openBackend opens the flash backend named by the configuration. The
// returned close func releases it.
func openBackend(cfg *config.Config, logger *zap.Logger) (flash.Backend, func(), error) {
    switch cfg.NVM.Backend {
    case "memory":
        return memfs.New(uint64(cfg.NVM.Capacity) * 4), func() {}, nil
    case "badger":
        if err := os.MkdirAll(filepath.Dir(cfg.NVM.Path), 0o755); err != nil {
            return nil, nil, fmt.Errorf("create nvm dir: %w", err)
        }
        b, err := badgerfs.Open(badgerfs.Options{Path: cfg.NVM.Path, Logger: logger})
        if err != nil {
            return nil, nil, err
        }
        return b, func() {
            if err := b.Close(); err != nil {
                logger.Warn("close nvm backend", zap.Error(err))
            }
        }, nil
    }
    return nil, nil, fmt.Errorf("unknown nvm backend %q", cfg.NVM.Backend)
}

// loadStore loads the record, falling back to a saved empty record when
// none is stored yet or the stored one is unreadable.
func loadStore(backend flash.Backend, cfg *config.Config, logger *zap.Logger) (*nvm.Store, error) {
    store := nvm.New(backend, nvm.Options{
        Namespace: cfg.NVM.Namespace,
        Capacity:  cfg.NVM.Capacity,
        Logger:    logger,
    })
    err := store.Load()
    if err == nil {
        return store, nil
    }
    if errors.Is(err, nvm.ErrBackendIO) {
        return nil, err
    }
    if errors.Is(err, flash.ErrNotFound) {
        logger.Info("no stored record, writing defaults")
    } else {
        logger.Warn("stored record unusable, writing defaults", zap.Error(err))
    }
    if err := store.Save(); err != nil {
        return nil, err
    }
    return store, nil
}

// newDevice builds the offline radio from the static mesh directory.
func newDevice(m config.MeshConfig, store *nvm.Store, logger *zap.Logger) (*device.Offline, error) {
    me := device.NodeInfo{ShortName: m.NodeName, LongName: m.LongName}
    if m.NodeID != "" {
        id, err := record.ParseNodeID(m.NodeID)
        if err != nil { return nil, fmt.Errorf("mesh.node_id: %w", err) }
        me.ID = id
    }
    var channels []device.ChannelInfo
    for _, c := range m.Channels {
        ch := device.ChannelInfo{Name: c.Name}
        if c.PSK != "" {
            psk, err := device.ParseKey(c.PSK)
            if err != nil { return nil, fmt.Errorf("mesh channel %s: %w", c.Name, err) }
            ch.PSK = psk
        }
        channels = append(channels, ch)
    }
    var nodes []device.NodeInfo
    for _, n := range m.Nodes {
        id, err := record.ParseNodeID(n.ID)
        if err != nil { return nil, fmt.Errorf("mesh node %s: %w", n.ID, err) }
        info := device.NodeInfo{ID: id, ShortName: n.Name, LongName: n.LongName}
        if n.PublicKey != "" {
            key, err := device.ParseKey(n.PublicKey)
            if err != nil { return nil, fmt.Errorf("mesh node %s: %w", n.ID, err) }
            info.PublicKey = key
        }
        nodes = append(nodes, info)
    }
    ssid := func() string { return string(store.WifiSSID()) }
    return device.NewOffline(device.OfflineOptions{
        Me:       me,
        Channels: channels,
        Nodes:    nodes,
        Logger:   logger,
    }, ssid), nil
}

// remoteListeners opens the configured remote shell listeners. They are
// merged behind one arbiter so at most one remote session exists across
// all of them.
func remoteListeners(ctx context.Context, sc config.ShellConfig) ([]transport.Listener, error) {
    var ls []transport.Listener
    closeAll := func() {
        for _, l := range ls {
            _ = l.Close()
        }
    }
    if sc.RemoteListen != "" {
        l, err := tcp.Listen(ctx, sc.RemoteListen)
        if err != nil { return nil, fmt.Errorf("remote shell listen: %w", err) }
        ls = append(ls, l)
    }
    if sc.QUICListen != "" {
        tlsConf, err := quic.ServerTLS(sc.QUICCertFile, sc.QUICKeyFile)
        if err != nil {
            closeAll()
            return nil, err
        }
        l, err := quic.Listen(ctx, sc.QUICListen, tlsConf)
        if err != nil {
            closeAll()
            return nil, fmt.Errorf("quic shell listen: %w", err)
        }
        ls = append(ls, l)
    }
    return ls, nil
}

// runNode is the main entry point of the run subcommand.
func runNode(parent context.Context, opts Options) error {
    if parent == nil { parent = context.Background() }
    cfg, logger, err := setup(opts)
    if err != nil { return err }
    defer func() { _ = logger.Sync() }()

    logger.Info("meshroof starting",
        zap.String("app", cfg.AppName),
        zap.String("version", version),
        zap.String("built", built))
    logger.Debug("effective configuration", zap.Any("config", cfg))

    ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
    defer stop()
    ctx, reboot := context.WithCancel(ctx)
    defer reboot()

    backend, closeBackend, err := openBackend(cfg, logger)
    if err != nil { return err }
    defer closeBackend()

    store, err := loadStore(backend, cfg, logger)
    if err != nil { return err }

    kv := memkv.New(memkv.Options{})
    defer kv.Close()
    ps := peers.NewStore(kv)
    if err := store.ApplyRosters(ps); err != nil {
        logger.Warn("some roster entries were not applied", zap.Error(err))
    }

    dev, err := newDevice(cfg.Mesh, store, logger)
    if err != nil { return err }
    if err := dev.WantConfig(); err != nil {
        logger.Warn("radio config request failed", zap.Error(err))
    }

    env := &shell.Env{
        Store:   store,
        Peers:   ps,
        Radio:   dev,
        Wifi:    dev.Wifi(),
        Version: version,
        Built:   built,
        Started: time.Now(),
        Reboot: func() {
            logger.Info("reboot requested")
            reboot()
        },
    }
    sopts := shell.Options{
        LineMax: cfg.Shell.LineMax,
        MaxArgs: cfg.Shell.MaxArgs,
        Prompt:  cfg.Shell.Prompt,
        Logger:  logger,
    }

    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error { return observability.ServeMetrics(gctx, cfg.Metrics.Listen) })

    if cfg.Shell.Local {
        con, err := console.Open(os.Stdin, os.Stdout)
        if err != nil { return fmt.Errorf("open console: %w", err) }
        defer con.Close()
        lopts := sopts
        lopts.ReadTimeout = cfg.Shell.LocalReadTimeout()
        local := shell.New(env, lopts)
        local.Attach(con, shell.AttachOptions{})
        g.Go(func() error { return shell.Serve(gctx, local) })
    }

    listeners, err := remoteListeners(gctx, cfg.Shell)
    if err != nil { return err }
    if len(listeners) > 0 {
        ropts := sopts
        ropts.ReadTimeout = cfg.Shell.RemoteReadTimeout()
        remote := shell.New(env, ropts)
        arb := arbiter.New(transport.Merge(listeners...), remote, arbiter.Options{
            RejectMessage: cfg.Shell.RejectMessage,
            NoEcho:        !cfg.Shell.RemoteEcho,
            Logger:        logger,
        })
        g.Go(func() error { return arb.Run(gctx) })
    }

    logger.Info("node is running; press Ctrl+C to exit")
    err = g.Wait()
    if err != nil && !errors.Is(err, context.Canceled) {
        logger.Error("node stopped", zap.Error(err))
        return err
    }
    logger.Info("node stopped")
    return nil
}
