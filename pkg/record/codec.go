package record

import "fmt"

// Blob layout constants.
const (
    HeaderMagic uint32 = 0x4d524f46
    FooterMagic uint32 = 0x464f4f54

    // DefaultCapacity is the flash target size of the reference device.
    DefaultCapacity = 8192

    HeaderSize      = 4
    FixedSize       = SSIDMax + PassphraseMax + 6*4 + SecretMax
    CountsSize      = 3 * 4
    AuthChannelSize = ChannelNameMax + KeySize
    AdminSize       = 4 + KeySize
    MateSize        = 4 + KeySize
    FooterSize      = 8

    // MinBlobSize is the size of a record with empty rosters.
    MinBlobSize = HeaderSize + FixedSize + CountsSize + FooterSize
)

// EncodedSize returns the blob size for the given rosters.
func EncodedSize(r Rosters) int {
    return int(sizeFor(r.Counts()))
}

// sizeFor is computed in uint64 so that corrupt 32-bit counts cannot wrap.
func sizeFor(c Counts) uint64 {
    return uint64(HeaderSize+FixedSize+CountsSize+FooterSize) +
        uint64(c.AuthChannels)*AuthChannelSize +
        uint64(c.Admins)*AdminSize +
        uint64(c.Mates)*MateSize
}

// Encode lays out cfg and r contiguously. Counts are taken from the slice
// lengths. The footer CRC is written as zero and is not validated on decode.
func Encode(cfg Config, r Rosters, capacity int) ([]byte, error) {
    size := sizeFor(r.Counts())
    if size > uint64(capacity) {
        return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrCapacityExceeded, size, capacity)
    }

    buf := make([]byte, size)
    c := NewCursor(buf)
    c.PutUint32(HeaderMagic)

    c.PutFixed(string(cfg.WifiSSID), SSIDMax)
    c.PutFixed(string(cfg.WifiPasswd), PassphraseMax)
    for _, ip := range []IPv4{cfg.IP, cfg.Netmask, cfg.Gateway, cfg.DNS1, cfg.DNS2, cfg.DNS3} {
        c.PutUint32(uint32(ip))
    }
    c.PutFixed(string(cfg.NetifPassword), SecretMax)

    counts := r.Counts()
    c.PutUint32(counts.AuthChannels)
    c.PutUint32(counts.Admins)
    c.PutUint32(counts.Mates)

    for _, e := range r.AuthChannels {
        c.PutFixed(string(e.Name), ChannelNameMax)
        c.PutKey(e.PSK)
    }
    for _, e := range r.Admins {
        c.PutUint32(uint32(e.NodeID))
        c.PutKey(e.PublicKey)
    }
    for _, e := range r.Mates {
        c.PutUint32(uint32(e.NodeID))
        c.PutKey(e.PublicKey)
    }

    c.PutUint32(FooterMagic)
    c.PutUint32(0) // crc32, never computed

    if err := c.Err(); err != nil {
        return nil, err
    }
    return buf, nil
}

// Decode validates b and copies its contents into owned storage.
//
// The header magic is checked before anything else. The counts stored after
// the fixed part determine where the footer is; that offset is checked
// against capacity and the buffer length before the footer is read, and no
// field or roster entry is decoded until both magics match.
func Decode(b []byte, capacity int) (Config, Rosters, error) {
    var cfg Config
    var r Rosters

    c := NewCursor(b)
    if c.Uint32() != HeaderMagic || c.Err() != nil {
        return cfg, r, ErrCorruptHeader
    }

    c.Seek(HeaderSize + FixedSize)
    counts := Counts{AuthChannels: c.Uint32(), Admins: c.Uint32(), Mates: c.Uint32()}
    if c.Err() != nil {
        return cfg, r, fmt.Errorf("%w: blob truncated at %d bytes", ErrCorruptFooter, len(b))
    }

    size := sizeFor(counts)
    if size > uint64(capacity) {
        return cfg, r, fmt.Errorf("%w: counts describe %d bytes, capacity %d", ErrCapacityExceeded, size, capacity)
    }
    if size > uint64(len(b)) {
        return cfg, r, fmt.Errorf("%w: counts describe %d bytes, blob has %d", ErrCorruptFooter, size, len(b))
    }

    c.Seek(int(size) - FooterSize)
    if c.Uint32() != FooterMagic || c.Err() != nil {
        return cfg, r, ErrCorruptFooter
    }
    _ = c.Uint32() // crc32, unchecked

    c.Seek(HeaderSize)
    cfg.WifiSSID = SSID(c.Fixed(SSIDMax))
    cfg.WifiPasswd = Passphrase(c.Fixed(PassphraseMax))
    cfg.IP = IPv4(c.Uint32())
    cfg.Netmask = IPv4(c.Uint32())
    cfg.Gateway = IPv4(c.Uint32())
    cfg.DNS1 = IPv4(c.Uint32())
    cfg.DNS2 = IPv4(c.Uint32())
    cfg.DNS3 = IPv4(c.Uint32())
    cfg.NetifPassword = Secret(c.Fixed(SecretMax))

    c.Seek(HeaderSize + FixedSize + CountsSize)
    if counts.AuthChannels > 0 {
        r.AuthChannels = make([]AuthChannel, counts.AuthChannels)
        for i := range r.AuthChannels {
            r.AuthChannels[i].Name = ChannelName(c.Fixed(ChannelNameMax))
            r.AuthChannels[i].PSK = c.Key()
        }
    }
    if counts.Admins > 0 {
        r.Admins = make([]Admin, counts.Admins)
        for i := range r.Admins {
            r.Admins[i].NodeID = NodeID(c.Uint32())
            r.Admins[i].PublicKey = c.Key()
        }
    }
    if counts.Mates > 0 {
        r.Mates = make([]Mate, counts.Mates)
        for i := range r.Mates {
            r.Mates[i].NodeID = NodeID(c.Uint32())
            r.Mates[i].PublicKey = c.Key()
        }
    }

    if err := c.Err(); err != nil {
        return Config{}, Rosters{}, err
    }
    return cfg, r, nil
}
