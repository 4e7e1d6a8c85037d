package config

import (
    "fmt"
    "time"
)

// ShellConfig controls the command shell transports.
type ShellConfig struct {
    // Local attaches a session to the process's terminal
    Local bool `mapstructure:"local"`
    // RemoteListen is the TCP address of the remote shell; empty disables it
    RemoteListen string `mapstructure:"remote_listen"`
    // QUICListen is the UDP address of the QUIC remote shell; empty disables
    // it. Both remote listeners share one session slot.
    QUICListen string `mapstructure:"quic_listen"`
    // QUICCertFile and QUICKeyFile hold the server certificate. When both
    // are empty an ephemeral self-signed certificate is generated.
    QUICCertFile string `mapstructure:"quic_cert_file"`
    QUICKeyFile  string `mapstructure:"quic_key_file"`

    LineMax int `mapstructure:"line_max"`
    MaxArgs int `mapstructure:"max_args"`

    LocalReadTimeoutMS  int `mapstructure:"local_read_timeout_ms"`
    RemoteReadTimeoutMS int `mapstructure:"remote_read_timeout_ms"`

    // RemoteEcho echoes typed characters back to remote clients
    RemoteEcho    bool   `mapstructure:"remote_echo"`
    RejectMessage string `mapstructure:"reject_message"`
    Prompt        string `mapstructure:"prompt"`
}

func (s *ShellConfig) LocalReadTimeout() time.Duration {
    return time.Duration(s.LocalReadTimeoutMS) * time.Millisecond
}

func (s *ShellConfig) RemoteReadTimeout() time.Duration {
    return time.Duration(s.RemoteReadTimeoutMS) * time.Millisecond
}

func (s *ShellConfig) validate() error {
    if s.LineMax < 2 {
        return fmt.Errorf("invalid shell.line_max %d", s.LineMax)
    }
    if s.MaxArgs < 1 {
        return fmt.Errorf("invalid shell.max_args %d", s.MaxArgs)
    }
    if s.LocalReadTimeoutMS <= 0 { s.LocalReadTimeoutMS = 100 }
    if s.RemoteReadTimeoutMS <= 0 { s.RemoteReadTimeoutMS = 500 }
    if s.Prompt == "" { s.Prompt = "> " }
    if (s.QUICCertFile == "") != (s.QUICKeyFile == "") {
        return fmt.Errorf("shell.quic_cert_file and shell.quic_key_file must be set together")
    }
    return nil
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
    // Listen address for /metrics; empty disables the exporter
    Listen string `mapstructure:"listen"`
}
