// Package config provides YAML-based configuration loading for meshroof.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName optional logical name of the node
    AppName string `mapstructure:"app_name"`

    // DataDir base directory for persistent data (the flash database lives here)
    DataDir string `mapstructure:"data_dir"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // NVM selects and sizes the record store backend.
    NVM NVMConfig `mapstructure:"nvm"`

    // Shell controls the local console and the remote shell listener.
    Shell ShellConfig `mapstructure:"shell"`

    // Metrics controls the Prometheus exporter.
    Metrics MetricsConfig `mapstructure:"metrics"`

    // Mesh is the static radio directory used by the offline device.
    Mesh MeshConfig `mapstructure:"mesh"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
// Logs go to stderr since stdout belongs to the local console.
func Default() *Config {
    return &Config{
        AppName: "meshroof",
        DataDir: "./data",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stderr"},
            Development: false,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/meshroof.log",
                MaxSizeMB:  10,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        NVM: NVMConfig{
            Backend:   "badger",
            Namespace: "meshroof",
            Capacity:  8192,
        },
        Shell: ShellConfig{
            Local:               true,
            RemoteListen:        ":2323",
            LineMax:             256,
            MaxArgs:             32,
            LocalReadTimeoutMS:  100,
            RemoteReadTimeoutMS: 500,
            RemoteEcho:          false,
            RejectMessage:       "Another session is active, bye!\n",
            Prompt:              "> ",
        },
        Metrics: MetricsConfig{Listen: ""},
        Mesh:    MeshConfig{NodeName: "roof"},
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix MESHROOF and `.`/`-` are replaced with `_`.
// Example: MESHROOF_SHELL_REMOTE_LISTEN=127.0.0.1:2323
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("MESHROOF")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    seedDefaults(v, cfg)

    // Choose config file
    if path == "" {
        // Allow override via env var
        if envPath := os.Getenv("MESHROOF_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `meshroof`
        v.SetConfigName("meshroof")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".meshroof"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var notFound viper.ConfigFileNotFoundError
        if !errors.As(err, &notFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

// seedDefaults registers every key with viper. AutomaticEnv only resolves
// keys viper already knows, so env-only configs need the full key set.
func seedDefaults(v *viper.Viper, cfg *Config) {
    defaults := map[string]any{
        "app_name":                     cfg.AppName,
        "data_dir":                     cfg.DataDir,
        "log.level":                    cfg.Log.Level,
        "log.format":                   cfg.Log.Format,
        "log.outputs":                  cfg.Log.Outputs,
        "log.development":              cfg.Log.Development,
        "log.rotation.enable":          cfg.Log.Rotation.Enable,
        "log.rotation.filename":        cfg.Log.Rotation.Filename,
        "log.rotation.max_size_mb":     cfg.Log.Rotation.MaxSizeMB,
        "log.rotation.max_backups":     cfg.Log.Rotation.MaxBackups,
        "log.rotation.max_age_days":    cfg.Log.Rotation.MaxAgeDays,
        "log.rotation.compress":        cfg.Log.Rotation.Compress,
        "nvm.backend":                  cfg.NVM.Backend,
        "nvm.path":                     cfg.NVM.Path,
        "nvm.namespace":                cfg.NVM.Namespace,
        "nvm.capacity":                 cfg.NVM.Capacity,
        "shell.local":                  cfg.Shell.Local,
        "shell.remote_listen":          cfg.Shell.RemoteListen,
        "shell.quic_listen":            cfg.Shell.QUICListen,
        "shell.quic_cert_file":         cfg.Shell.QUICCertFile,
        "shell.quic_key_file":          cfg.Shell.QUICKeyFile,
        "shell.line_max":               cfg.Shell.LineMax,
        "shell.max_args":               cfg.Shell.MaxArgs,
        "shell.local_read_timeout_ms":  cfg.Shell.LocalReadTimeoutMS,
        "shell.remote_read_timeout_ms": cfg.Shell.RemoteReadTimeoutMS,
        "shell.remote_echo":            cfg.Shell.RemoteEcho,
        "shell.reject_message":         cfg.Shell.RejectMessage,
        "shell.prompt":                 cfg.Shell.Prompt,
        "metrics.listen":               cfg.Metrics.Listen,
        "mesh.node_name":               cfg.Mesh.NodeName,
        "mesh.node_id":                 cfg.Mesh.NodeID,
        "mesh.long_name":               cfg.Mesh.LongName,
    }
    for k, val := range defaults {
        v.SetDefault(k, val)
    }
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stderr"}
    }
    if err := c.NVM.validate(c.DataDir); err != nil {
        return err
    }
    if err := c.Shell.validate(); err != nil {
        return err
    }
    return c.Mesh.validate()
}
