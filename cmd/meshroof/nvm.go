package main

import (
    "fmt"
    "io"

    "gopkg.in/yaml.v3"

    "meshroof/pkg/nvm"
    "meshroof/pkg/record"
)

type recordView struct {
    Wifi         wifiView          `yaml:"wifi"`
    Net          netView           `yaml:"net"`
    AuthChannels []authChannelView `yaml:"auth_channels"`
    Admins       []peerView        `yaml:"admins"`
    Mates        []peerView        `yaml:"mates"`
    BlobBytes    int               `yaml:"blob_bytes"`
}

type wifiView struct {
    SSID   string `yaml:"ssid"`
    Passwd string `yaml:"passwd"`
}

type netView struct {
    DHCP     bool     `yaml:"dhcp"`
    IP       string   `yaml:"ip,omitempty"`
    Netmask  string   `yaml:"netmask,omitempty"`
    Gateway  string   `yaml:"gateway,omitempty"`
    DNS      []string `yaml:"dns,omitempty"`
    Password string   `yaml:"password"`
}

type authChannelView struct {
    Name string `yaml:"name"`
    PSK  string `yaml:"psk,omitempty"`
}

type peerView struct {
    NodeID    string `yaml:"node_id"`
    PublicKey string `yaml:"public_key"`
}

// mask hides a secret but keeps its length visible.
func mask(s string) string {
    if s == "" { return "" }
    return fmt.Sprintf("<%d bytes>", len(s))
}

func maskKey(k record.Key) string {
    if k.IsZero() { return "" }
    return mask(string(k[:]))
}

func newRecordView(cfg record.Config, r record.Rosters, blobBytes int) recordView {
    v := recordView{
        Wifi: wifiView{SSID: string(cfg.WifiSSID), Passwd: mask(string(cfg.WifiPasswd))},
        Net: netView{
            DHCP:     cfg.DHCP(),
            Password: mask(string(cfg.NetifPassword)),
        },
        BlobBytes: blobBytes,
    }
    if !cfg.DHCP() {
        v.Net.IP = cfg.IP.String()
        v.Net.Netmask = cfg.Netmask.String()
        v.Net.Gateway = cfg.Gateway.String()
        for _, d := range []record.IPv4{cfg.DNS1, cfg.DNS2, cfg.DNS3} {
            if d != 0 {
                v.Net.DNS = append(v.Net.DNS, d.String())
            }
        }
    }
    for _, a := range r.AuthChannels {
        v.AuthChannels = append(v.AuthChannels, authChannelView{Name: string(a.Name), PSK: maskKey(a.PSK)})
    }
    for _, a := range r.Admins {
        v.Admins = append(v.Admins, peerView{NodeID: a.NodeID.String(), PublicKey: a.PublicKey.String()})
    }
    for _, m := range r.Mates {
        v.Mates = append(v.Mates, peerView{NodeID: m.NodeID.String(), PublicKey: m.PublicKey.String()})
    }
    return v
}

func writeRecord(w io.Writer, store *nvm.Store) error {
    blob, err := store.Blob()
    if err != nil { return err }
    cfg, rosters := store.Snapshot()
    enc := yaml.NewEncoder(w)
    enc.SetIndent(2)
    if err := enc.Encode(newRecordView(cfg, rosters, len(blob))); err != nil {
        return err
    }
    return enc.Close()
}

// dumpNVM loads the persisted record and prints it. Unlike run it never
// writes: a missing or corrupt record is reported as an error.
func dumpNVM(opts Options, w io.Writer) error {
    cfg, logger, err := setup(opts)
    if err != nil { return err }
    defer func() { _ = logger.Sync() }()

    backend, closeBackend, err := openBackend(cfg, logger)
    if err != nil { return err }
    defer closeBackend()

    store := nvm.New(backend, nvm.Options{Namespace: cfg.NVM.Namespace, Capacity: cfg.NVM.Capacity, Logger: logger})
    if err := store.Load(); err != nil {
        return fmt.Errorf("load record: %w", err)
    }
    return writeRecord(w, store)
}

func resetNVM(opts Options, w io.Writer) error {
    cfg, logger, err := setup(opts)
    if err != nil { return err }
    defer func() { _ = logger.Sync() }()

    backend, closeBackend, err := openBackend(cfg, logger)
    if err != nil { return err }
    defer closeBackend()

    store := nvm.New(backend, nvm.Options{Namespace: cfg.NVM.Namespace, Capacity: cfg.NVM.Capacity, Logger: logger})
    store.Reset()
    if err := store.Save(); err != nil {
        return fmt.Errorf("save record: %w", err)
    }
    _, err = fmt.Fprintln(w, "record reset")
    return err
}
