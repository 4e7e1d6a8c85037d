package device

import (
    "fmt"
    "sort"
    "strings"
    "sync"

    "go.uber.org/zap"

    "meshroof/pkg/record"
)

// OfflineOptions seeds the offline radio's directory.
type OfflineOptions struct {
    Me       NodeInfo
    Channels []ChannelInfo
    Nodes    []NodeInfo
    Logger   *zap.Logger
}

// Offline implements Radio and Wifi without hardware. The radio becomes
// connected after WantConfig and drops after Disconnect; the wifi station
// associates with whatever SSID it was started with.
type Offline struct {
    log *zap.Logger

    mu        sync.Mutex
    me        NodeInfo
    channels  []ChannelInfo
    nodes     map[record.NodeID]NodeInfo
    connected bool
    beats     int
    sent      []TextMessage

    ssid  func() string
    wifi  WifiStatus
    netif NetifStatus
}

// NewOffline builds the offline device. ssid supplies the configured
// network name when the station starts.
func NewOffline(o OfflineOptions, ssid func() string) *Offline {
    if o.Logger == nil { o.Logger = zap.L() }
    if ssid == nil { ssid = func() string { return "" } }
    d := &Offline{
        log:      o.Logger.Named("device"),
        me:       o.Me,
        channels: append([]ChannelInfo(nil), o.Channels...),
        nodes:    make(map[record.NodeID]NodeInfo, len(o.Nodes)+1),
        ssid:     ssid,
    }
    for i := range d.channels {
        d.channels[i].Index = i
    }
    for _, n := range o.Nodes {
        d.nodes[n.ID] = n
    }
    if o.Me.ID != 0 {
        d.nodes[o.Me.ID] = o.Me
    }
    return d
}

func (d *Offline) Status() Status {
    d.mu.Lock()
    defer d.mu.Unlock()
    st := Status{Connected: d.connected, Me: d.me}
    if !d.connected { return st }
    st.Channels = append([]ChannelInfo(nil), d.channels...)
    for _, n := range d.nodes {
        st.Nodes = append(st.Nodes, n)
    }
    sort.Slice(st.Nodes, func(i, j int) bool { return st.Nodes[i].ID < st.Nodes[j].ID })
    return st
}

func (d *Offline) WantConfig() error {
    d.mu.Lock()
    d.connected = true
    d.mu.Unlock()
    d.log.Info("radio config requested", zap.Int("nodes", len(d.nodes)), zap.Int("channels", len(d.channels)))
    return nil
}

func (d *Offline) Disconnect() error {
    d.mu.Lock()
    d.connected = false
    d.mu.Unlock()
    d.log.Info("radio disconnected")
    return nil
}

func (d *Offline) Heartbeat() error {
    d.mu.Lock()
    defer d.mu.Unlock()
    if !d.connected { return ErrNotConnected }
    d.beats++
    return nil
}

// Heartbeats returns how many heartbeats were sent while connected.
func (d *Offline) Heartbeats() int {
    d.mu.Lock()
    defer d.mu.Unlock()
    return d.beats
}

func (d *Offline) TextMessage(dest record.NodeID, channel int, text string) error {
    d.mu.Lock()
    defer d.mu.Unlock()
    if !d.connected { return ErrNotConnected }
    if channel < 0 || channel >= len(d.channels) {
        return fmt.Errorf("%w: index %d", ErrUnknownChannel, channel)
    }
    d.sent = append(d.sent, TextMessage{Dest: dest, Channel: channel, Text: text})
    d.log.Debug("text message", zap.Stringer("dest", dest), zap.Int("channel", channel), zap.Int("len", len(text)))
    return nil
}

// Sent returns the text messages accepted while connected, oldest first.
func (d *Offline) Sent() []TextMessage {
    d.mu.Lock()
    defer d.mu.Unlock()
    return append([]TextMessage(nil), d.sent...)
}

func (d *Offline) ResolveNode(s string) (NodeInfo, error) {
    s = strings.TrimSpace(s)
    d.mu.Lock()
    defer d.mu.Unlock()
    for _, n := range d.nodes {
        if strings.EqualFold(n.ShortName, s) || strings.EqualFold(n.LongName, s) {
            return n, nil
        }
    }
    id, err := record.ParseNodeID(s)
    if err != nil {
        return NodeInfo{}, fmt.Errorf("%w: %q", ErrUnknownNode, s)
    }
    if n, ok := d.nodes[id]; ok { return n, nil }
    return NodeInfo{ID: id}, nil
}

func (d *Offline) ResolveChannel(name string) (ChannelInfo, error) {
    d.mu.Lock()
    defer d.mu.Unlock()
    for _, c := range d.channels {
        if c.Name == name { return c, nil }
    }
    return ChannelInfo{}, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

func (d *Offline) DisplayName(id record.NodeID) string {
    d.mu.Lock()
    defer d.mu.Unlock()
    if n, ok := d.nodes[id]; ok { return n.DisplayName() }
    return id.String()
}

// Wifi returns the station half of the device.
func (d *Offline) Wifi() Wifi { return offlineWifi{d} }

type offlineWifi struct{ d *Offline }

func (w offlineWifi) Status() WifiStatus {
    w.d.mu.Lock()
    defer w.d.mu.Unlock()
    return w.d.wifi
}

func (w offlineWifi) Start() error {
    ssid := w.d.ssid()
    w.d.mu.Lock()
    if ssid == "" {
        w.d.wifi = WifiStatus{}
    } else {
        w.d.wifi = WifiStatus{Connected: true, SSID: ssid, BSSID: [6]byte{0x02, 0, 0, 0, 0, 0x01}, Channel: 1}
    }
    w.d.mu.Unlock()
    w.d.log.Info("wifi started", zap.String("ssid", ssid))
    return nil
}

func (w offlineWifi) Stop() error {
    w.d.mu.Lock()
    w.d.wifi = WifiStatus{}
    w.d.mu.Unlock()
    w.d.log.Info("wifi stopped")
    return nil
}

func (w offlineWifi) ApplyNetif(cfg record.Config) error {
    w.d.mu.Lock()
    if cfg.DHCP() {
        w.d.netif = NetifStatus{}
    } else {
        w.d.netif = NetifStatus{IP: cfg.IP, Netmask: cfg.Netmask, Gateway: cfg.Gateway, DNS1: cfg.DNS1, DNS2: cfg.DNS2, DNS3: cfg.DNS3}
    }
    w.d.mu.Unlock()
    w.d.log.Info("netif applied", zap.Bool("dhcp", cfg.DHCP()), zap.Stringer("ip", cfg.IP))
    return nil
}

func (w offlineWifi) Netif() NetifStatus {
    w.d.mu.Lock()
    defer w.d.mu.Unlock()
    return w.d.netif
}
