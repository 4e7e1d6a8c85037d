// Package observability wires logging and Prometheus metrics for the node.
package observability

import (
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "gopkg.in/natefinch/lumberjack.v2"

    "meshroof/pkg/config"
)

// SetupLogger builds a zap.Logger from the provided configuration, sets it as
// the global logger, and redirects the stdlib log package. The caller should
// defer logger.Sync(). A file output that cannot be opened is an error.
func SetupLogger(c config.LogConfig) (*zap.Logger, error) {
    level, err := parseLevel(c.Level)
    if err != nil { return nil, err }

    encCfg := encoderConfig(c.Development)
    var encoder zapcore.Encoder
    if strings.EqualFold(c.Format, "json") {
        encoder = zapcore.NewJSONEncoder(encCfg)
    } else {
        encoder = zapcore.NewConsoleEncoder(encCfg)
    }

    var cores []zapcore.Core
    for _, out := range c.Outputs {
        ws, err := writerFor(out, c)
        if err != nil {
            return nil, err
        }
        cores = append(cores, zapcore.NewCore(encoder, ws, level))
    }
    if len(cores) == 0 {
        cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
    }

    opts := []zap.Option{
        zap.AddCaller(),
        zap.AddStacktrace(zap.ErrorLevel),
    }
    if c.Development {
        opts = append(opts, zap.Development())
    }

    logger := zap.New(zapcore.NewTee(cores...), opts...)
    zap.ReplaceGlobals(logger)
    _, _ = zap.RedirectStdLogAt(logger, zap.InfoLevel)
    return logger, nil
}

func parseLevel(s string) (zap.AtomicLevel, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "debug":
        return zap.NewAtomicLevelAt(zap.DebugLevel), nil
    case "", "info":
        return zap.NewAtomicLevelAt(zap.InfoLevel), nil
    case "warn", "warning":
        return zap.NewAtomicLevelAt(zap.WarnLevel), nil
    case "error":
        return zap.NewAtomicLevelAt(zap.ErrorLevel), nil
    }
    return zap.AtomicLevel{}, fmt.Errorf("unknown log level %q", s)
}

func writerFor(out string, c config.LogConfig) (zapcore.WriteSyncer, error) {
    switch strings.ToLower(out) {
    case "stdout":
        return zapcore.Lock(os.Stdout), nil
    case "stderr":
        return zapcore.Lock(os.Stderr), nil
    }
    name := out
    if c.Rotation.Enable && strings.TrimSpace(c.Rotation.Filename) != "" {
        name = c.Rotation.Filename
    }
    if dir := filepath.Dir(name); dir != "." {
        if err := os.MkdirAll(dir, 0o755); err != nil {
            return nil, fmt.Errorf("log output %s: %w", name, err)
        }
    }
    if c.Rotation.Enable {
        return zapcore.AddSync(&lumberjack.Logger{
            Filename:   name,
            MaxSize:    max(c.Rotation.MaxSizeMB, 1),
            MaxBackups: max(c.Rotation.MaxBackups, 1),
            MaxAge:     max(c.Rotation.MaxAgeDays, 1),
            Compress:   c.Rotation.Compress,
        }), nil
    }
    f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
    if err != nil {
        return nil, fmt.Errorf("log output %s: %w", name, err)
    }
    return zapcore.AddSync(f), nil
}

func encoderConfig(dev bool) zapcore.EncoderConfig {
    if dev {
        cfg := zap.NewDevelopmentEncoderConfig()
        cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
        return cfg
    }
    cfg := zap.NewProductionEncoderConfig()
    cfg.EncodeTime = zapcore.ISO8601TimeEncoder
    return cfg
}
