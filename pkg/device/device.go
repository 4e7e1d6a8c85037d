// Package device models the hardware and radio the shell drives: the mesh
// radio link, the wifi station and the network interface. Offline is a
// self-contained implementation configured from a static directory, used
// when the node runs without radio hardware and in tests.
package device

import (
    "encoding/base64"
    "encoding/hex"
    "errors"
    "fmt"
    "strings"

    "meshroof/pkg/record"
)

var (
    ErrNotConnected   = errors.New("device: radio not connected")
    ErrUnknownNode    = errors.New("device: unknown node")
    ErrUnknownChannel = errors.New("device: unknown channel")
)

// NodeInfo is one entry of the radio's node directory.
type NodeInfo struct {
    ID        record.NodeID
    ShortName string
    LongName  string
    PublicKey record.Key
}

// DisplayName is the short name when known, the !id form otherwise.
func (n NodeInfo) DisplayName() string {
    if n.ShortName != "" { return n.ShortName }
    return n.ID.String()
}

// ChannelInfo is one configured radio channel.
type ChannelInfo struct {
    Index int
    Name  string
    PSK   record.Key
}

// Status is what the radio reports about itself and the mesh.
type Status struct {
    Connected bool
    Me        NodeInfo
    Channels  []ChannelInfo
    Nodes     []NodeInfo
}

// Radio is the mesh radio link.
type Radio interface {
    Status() Status
    WantConfig() error
    Disconnect() error
    Heartbeat() error
    // ResolveNode maps a short name, long name or node id to a directory entry.
    ResolveNode(s string) (NodeInfo, error)
    ResolveChannel(name string) (ChannelInfo, error)
    DisplayName(id record.NodeID) string
    // TextMessage sends text to dest on the channel with the given index.
    // Broadcast addresses every node on the channel.
    TextMessage(dest record.NodeID, channel int, text string) error
}

// Broadcast is the destination that reaches every node on a channel.
const Broadcast record.NodeID = 0xffffffff

// TextMessage is one text message handed to the radio.
type TextMessage struct {
    Dest    record.NodeID
    Channel int
    Text    string
}

// WifiStatus describes the station association.
type WifiStatus struct {
    Connected bool
    SSID      string
    BSSID     [6]byte
    Channel   int
    RSSI      int
}

// NetifStatus holds the addresses in effect on the interface.
type NetifStatus struct {
    IP, Netmask, Gateway record.IPv4
    DNS1, DNS2, DNS3     record.IPv4
}

// Wifi is the station interface.
type Wifi interface {
    Status() WifiStatus
    Start() error
    Stop() error
    // ApplyNetif pushes the addressing in cfg to the live interface.
    ApplyNetif(cfg record.Config) error
    Netif() NetifStatus
}

// ParseKey decodes a 32 byte key written as hex or base64. An empty string
// is the zero key.
func ParseKey(s string) (record.Key, error) {
    var k record.Key
    s = strings.TrimSpace(s)
    if s == "" { return k, nil }
    if b, err := hex.DecodeString(s); err == nil && len(b) == record.KeySize {
        copy(k[:], b)
        return k, nil
    }
    for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
        if b, err := enc.DecodeString(s); err == nil {
            if len(b) != record.KeySize {
                return k, fmt.Errorf("%w: key is %d bytes, want %d", record.ErrInvalidInput, len(b), record.KeySize)
            }
            copy(k[:], b)
            return k, nil
        }
    }
    return k, fmt.Errorf("%w: key is neither hex nor base64", record.ErrInvalidInput)
}
