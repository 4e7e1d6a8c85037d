package config

import (
    "fmt"
    "strings"
)

// MeshConfig is the static radio directory. Example YAML:
//
//  mesh:
//    node_name: roof
//    node_id: "!a1b2c3d4"
//    channels:
//      - name: LongFast
//        psk: AQ==...
//    nodes:
//      - id: "!0badcafe"
//        name: bob
//        long_name: Bob Base
//        public_key: 3a0f...
type MeshConfig struct {
    NodeName string          `mapstructure:"node_name"`
    NodeID   string          `mapstructure:"node_id"`
    LongName string          `mapstructure:"long_name"`
    Channels []ChannelConfig `mapstructure:"channels"`
    Nodes    []NodeConfig    `mapstructure:"nodes"`
}

// ChannelConfig is one radio channel; PSK is hex or base64.
type ChannelConfig struct {
    Name string `mapstructure:"name"`
    PSK  string `mapstructure:"psk"`
}

// NodeConfig is one known mesh node; PublicKey is hex or base64.
type NodeConfig struct {
    ID        string `mapstructure:"id"`
    Name      string `mapstructure:"name"`
    LongName  string `mapstructure:"long_name"`
    PublicKey string `mapstructure:"public_key"`
}

func (m *MeshConfig) validate() error {
    seen := make(map[string]bool, len(m.Channels))
    for i := range m.Channels {
        name := strings.TrimSpace(m.Channels[i].Name)
        if name == "" {
            return fmt.Errorf("mesh.channels[%d]: empty name", i)
        }
        if seen[name] {
            return fmt.Errorf("mesh.channels[%d]: duplicate name %q", i, name)
        }
        seen[name] = true
        m.Channels[i].Name = name
    }
    for i := range m.Nodes {
        m.Nodes[i].ID = strings.TrimSpace(m.Nodes[i].ID)
        if m.Nodes[i].ID == "" {
            return fmt.Errorf("mesh.nodes[%d]: empty id", i)
        }
    }
    return nil
}
