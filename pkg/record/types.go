// Package record defines the persisted node configuration and its fixed
// binary layout.
package record

import (
    "encoding/hex"
    "fmt"
    "net/netip"
    "strconv"
    "strings"
)

// Field capacities in bytes. Each bounded string occupies exactly this many
// bytes in the blob, NUL padded.
const (
    SSIDMax        = 32
    PassphraseMax  = 64
    SecretMax      = 32
    ChannelNameMax = 16
    KeySize        = 32
)

// SSID is a wifi network name of at most SSIDMax bytes.
type SSID string

// Passphrase is a wifi passphrase of at most PassphraseMax bytes.
type Passphrase string

// Secret is the network interface password of at most SecretMax bytes.
type Secret string

// ChannelName is a mesh channel name of at most ChannelNameMax bytes.
type ChannelName string

// ParseSSID validates s against the SSID capacity.
func ParseSSID(s string) (SSID, error) {
    if err := bounded("ssid", s, SSIDMax); err != nil { return "", err }
    return SSID(s), nil
}

// ParsePassphrase validates s against the passphrase capacity.
func ParsePassphrase(s string) (Passphrase, error) {
    if err := bounded("passwd", s, PassphraseMax); err != nil { return "", err }
    return Passphrase(s), nil
}

// ParseSecret validates s against the netif password capacity.
func ParseSecret(s string) (Secret, error) {
    if err := bounded("netif password", s, SecretMax); err != nil { return "", err }
    return Secret(s), nil
}

// ParseChannelName validates s against the channel name capacity.
// Empty names are rejected.
func ParseChannelName(s string) (ChannelName, error) {
    if s == "" {
        return "", fmt.Errorf("%w: empty channel name", ErrInvalidInput)
    }
    if err := bounded("channel name", s, ChannelNameMax); err != nil { return "", err }
    return ChannelName(s), nil
}

func bounded(field, s string, max int) error {
    if len(s) > max {
        return &InputTooLongError{Field: field, Len: len(s), Max: max}
    }
    if strings.IndexByte(s, 0) >= 0 {
        return fmt.Errorf("%w: %s contains NUL", ErrInvalidInput, field)
    }
    return nil
}

// IPv4 holds an address as the big-endian value of its four octets.
// The zero value means "use DHCP" when stored as the node address.
type IPv4 uint32

// ParseIPv4 parses dotted quad notation.
func ParseIPv4(s string) (IPv4, error) {
    a, err := netip.ParseAddr(strings.TrimSpace(s))
    if err != nil || !a.Is4() {
        return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
    }
    b := a.As4()
    return IPv4(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])), nil
}

func (ip IPv4) String() string {
    return netip.AddrFrom4([4]byte{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)}).String()
}

// NodeID identifies a mesh node.
type NodeID uint32

// ParseNodeID accepts "!a1b2c3d4" (the mesh display form), "0x..." hex or
// decimal.
func ParseNodeID(s string) (NodeID, error) {
    s = strings.TrimSpace(s)
    var (
        v   uint64
        err error
    )
    switch {
    case strings.HasPrefix(s, "!"):
        v, err = strconv.ParseUint(s[1:], 16, 32)
    case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
        v, err = strconv.ParseUint(s[2:], 16, 32)
    default:
        v, err = strconv.ParseUint(s, 10, 32)
    }
    if err != nil {
        return 0, fmt.Errorf("%w: node id %q", ErrInvalidInput, s)
    }
    return NodeID(v), nil
}

func (id NodeID) String() string { return fmt.Sprintf("!%08x", uint32(id)) }

// Key is a 32 byte pre-shared or public key.
type Key [KeySize]byte

// IsZero reports whether no key material is set.
func (k Key) IsZero() bool { return k == Key{} }

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// Config is the fixed part of the persisted record.
type Config struct {
    WifiSSID      SSID
    WifiPasswd    Passphrase
    IP            IPv4
    Netmask       IPv4
    Gateway       IPv4
    DNS1          IPv4
    DNS2          IPv4
    DNS3          IPv4
    NetifPassword Secret
}

// DHCP reports whether the node should obtain its address dynamically.
func (c Config) DHCP() bool { return c.IP == 0 }

// AuthChannel is a channel the node accepts commands on.
type AuthChannel struct {
    Name ChannelName
    PSK  Key
}

// Admin is a node allowed to administer this one.
type Admin struct {
    NodeID    NodeID
    PublicKey Key
}

// Mate is a trusted peer node.
type Mate struct {
    NodeID    NodeID
    PublicKey Key
}

// Rosters holds the three variable-length lists in arrival order.
type Rosters struct {
    AuthChannels []AuthChannel
    Admins       []Admin
    Mates        []Mate
}

// Counts mirrors the count fields written after the fixed part.
type Counts struct {
    AuthChannels uint32
    Admins       uint32
    Mates        uint32
}

// Counts derives the counts from the list lengths.
func (r Rosters) Counts() Counts {
    return Counts{
        AuthChannels: uint32(len(r.AuthChannels)),
        Admins:       uint32(len(r.Admins)),
        Mates:        uint32(len(r.Mates)),
    }
}

// Clone returns a deep copy so callers cannot alias store-owned slices.
func (r Rosters) Clone() Rosters {
    return Rosters{
        AuthChannels: append([]AuthChannel(nil), r.AuthChannels...),
        Admins:       append([]Admin(nil), r.Admins...),
        Mates:        append([]Mate(nil), r.Mates...),
    }
}
