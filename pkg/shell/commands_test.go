package shell

import (
    "errors"
    "reflect"
    "strings"
    "testing"
    "time"

    "meshroof/pkg/device"
    "meshroof/pkg/flash"
    "meshroof/pkg/nvm"
    "meshroof/pkg/record"
    "meshroof/pkg/transport"
)

func TestHelpListsCommandsFourPerRow(t *testing.T) {
    f := newFixture(t)
    s, r := f.session(transport.KindLocal, false)
    got := run(t, s, r, "help")
    want := "Available commands:\r\n" +
        "\thelp\tversion\tsystem\treboot\t\r\n" +
        "\tstatus\twcfg\tdisc\thb\t\r\n" +
        "\tdm\tcm\tauthchan\tadmin\t\r\n" +
        "\tmate\tnvm\twifi\tnet\t\r\n" +
        "\tapply\texit\t\r\n"
    if got != want {
        t.Fatalf("help =\n%q\nwant\n%q", got, want)
    }
}

func TestVersionAndSystem(t *testing.T) {
    f := newFixture(t)
    s, r := f.session(transport.KindLocal, false)
    if got := run(t, s, r, "version"); got != "Version: 1.2.3\r\nBuilt: ci@builder 2025-01-01\r\n" {
        t.Fatalf("version = %q", got)
    }
    got := run(t, s, r, "system")
    if !strings.HasPrefix(got, "   Up-time: 00:01:3") || !strings.Contains(got, "Total Heap: ") || !strings.Contains(got, " Used Heap: ") {
        t.Fatalf("system = %q", got)
    }
}

func TestFormatUptime(t *testing.T) {
    cases := []struct {
        d    time.Duration
        want string
    }{
        {0, "00:00:00"},
        {59 * time.Second, "00:00:59"},
        {time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
        {49*time.Hour + 5*time.Second, "2d 01:00:05"},
    }
    for _, tc := range cases {
        if got := formatUptime(tc.d); got != tc.want {
            t.Errorf("formatUptime(%v) = %q, want %q", tc.d, got, tc.want)
        }
    }
}

func TestStatusAndRadioCommands(t *testing.T) {
    f := newFixture(t)
    s, r := f.session(transport.KindLocal, false)

    if got := run(t, s, r, "hb"); got != "hb failed: device: radio not connected\r\n" {
        t.Fatalf("hb = %q", got)
    }
    if got := run(t, s, r, "wcfg"); got != "" {
        t.Fatalf("wcfg = %q", got)
    }
    if got := run(t, s, r, "admin add bob"); got != "ok\r\n" {
        t.Fatalf("admin add = %q", got)
    }
    got := run(t, s, r, "status")
    want := "Me: roof Roof Relay\r\n" +
        "Channels: 2\r\n" +
        "chan#0: LongFast\r\n" +
        "chan#1: ops\r\n" +
        "Nodes: 3 seen\r\n" +
        "  " + pad("roof") + pad("cat") + pad("bob") + "\r\n" +
        "Access: 0 authchans, 1 admins, 0 mates\r\n"
    if got != want {
        t.Fatalf("status =\n%q\nwant\n%q", got, want)
    }
    if got := run(t, s, r, "hb"); got != "" || f.dev.Heartbeats() != 1 {
        t.Fatalf("hb = %q", got)
    }
    _ = run(t, s, r, "disc")
    if got := run(t, s, r, "status"); got != "Not connected\r\n" {
        t.Fatalf("status after disc = %q", got)
    }
}

func TestMessageCommands(t *testing.T) {
    f := newFixture(t)
    s, r := f.session(transport.KindLocal, false)
    _ = f.dev.WantConfig()

    cases := []struct {
        line string
        want string
    }{
        {"dm", "Usage: dm [name] message\r\n"},
        {"dm bob", "Usage: dm [name] message\r\n"},
        {"cm LongFast", "Usage: cm [chan] message\r\n"},
        {"dm carol hi", "name 'carol' is invalid!\r\n"},
        {"dm roof hi", "name 'roof' is invalid!\r\n"},
        {"cm nope hi", "channel 'nope' is invalid!\r\n"},
        {"dm bob hello there", ""},
        {"cm ops hello all", ""},
        {"dm !00000042 raw id", ""},
    }
    for _, tc := range cases {
        if got := run(t, s, r, tc.line); got != tc.want {
            t.Errorf("%s = %q, want %q", tc.line, got, tc.want)
        }
    }
    want := []device.TextMessage{
        {Dest: 0xa1b2c3d4, Channel: 0, Text: "hello there"},
        {Dest: device.Broadcast, Channel: 1, Text: "hello all"},
        {Dest: 0x42, Channel: 0, Text: "raw id"},
    }
    if got := f.dev.Sent(); !reflect.DeepEqual(got, want) {
        t.Fatalf("sent = %+v, want %+v", got, want)
    }

    _ = f.dev.Disconnect()
    if got := run(t, s, r, "cm LongFast hello"); got != "cm failed: device: radio not connected\r\n" {
        t.Fatalf("cm while disconnected = %q", got)
    }
}

func pad(s string) string { return strings.Repeat(" ", 16-len(s)) + s + "  " }

func TestRosterCommands(t *testing.T) {
    f := newFixture(t)
    s, r := f.session(transport.KindTCP, true)

    if got := run(t, s, r, "admin add bob"); got != "ok\r\n" {
        t.Fatalf("admin add = %q", got)
    }
    if f.view.Counts().Admins != 1 {
        t.Fatalf("access view not rebuilt")
    }
    if a := f.store.Admins(); len(a) != 1 || a[0].PublicKey[0] != 9 {
        t.Fatalf("admins = %+v", a)
    }
    if got := run(t, s, r, "admin add !a1b2c3d4"); !strings.HasPrefix(got, "add admin failed: nvm: duplicate entry") {
        t.Fatalf("duplicate admin = %q", got)
    }
    if got := run(t, s, r, "admin add carol"); !strings.HasPrefix(got, "add admin failed: device: unknown node") {
        t.Fatalf("unknown admin = %q", got)
    }
    if got := run(t, s, r, "admin"); got != "list of admins:\r\n  "+pad("bob")+"\r\n" {
        t.Fatalf("admin list = %q", got)
    }

    for _, m := range []string{"cat", "!00000001", "2", "0x3", "bob"} {
        if got := run(t, s, r, "mate add "+m); got != "ok\r\n" {
            t.Fatalf("mate add %s = %q", m, got)
        }
    }
    got := run(t, s, r, "mate list")
    want := "list of mates:\r\n  " + pad("cat") + pad("!00000001") + pad("!00000002") + pad("!00000003") + "\r\n  " + pad("bob") + "\r\n"
    if got != want {
        t.Fatalf("mate list =\n%q\nwant\n%q", got, want)
    }
    if got := run(t, s, r, "mate del 2"); got != "ok\r\n" || f.view.Counts().Mates != 4 {
        t.Fatalf("mate del = %q", got)
    }
    if got := run(t, s, r, "mate del 2"); !strings.HasPrefix(got, "del mate failed: nvm: entry not found") {
        t.Fatalf("mate del missing = %q", got)
    }

    if got := run(t, s, r, "authchan add ops"); got != "ok\r\n" {
        t.Fatalf("authchan add = %q", got)
    }
    if got := run(t, s, r, "authchan add nope"); !strings.HasPrefix(got, "add authchan failed: device: unknown channel") {
        t.Fatalf("authchan add unknown = %q", got)
    }
    if got := run(t, s, r, "authchan"); got != "list of authchans:\r\n  ops\r\n" {
        t.Fatalf("authchan list = %q", got)
    }
    if c := f.view.Counts(); c.AuthChannels != 1 {
        t.Fatalf("view counts = %+v", c)
    }
    if a := f.store.AuthChannels(); len(a) != 1 || a[0].PSK[0] != 1 {
        t.Fatalf("authchans = %+v", a)
    }
    if got := run(t, s, r, "authchan del ops"); got != "ok\r\n" {
        t.Fatalf("authchan del = %q", got)
    }
    if got := run(t, s, r, "authchan frob x"); got != "syntax error!\r\n" {
        t.Fatalf("authchan syntax = %q", got)
    }

    // every successful change was persisted
    if err := f.store.Load(); err != nil {
        t.Fatalf("reload: %v", err)
    }
    if len(f.store.Mates()) != 4 || len(f.store.AuthChannels()) != 0 {
        t.Fatalf("persisted rosters: %+v %+v", f.store.Mates(), f.store.AuthChannels())
    }
}

func TestRosterSaveFailureReported(t *testing.T) {
    f := newFixture(t)
    s, r := f.session(transport.KindLocal, false)
    f.backend.FailCommit(errors.New("flash worn out"))
    got := run(t, s, r, "mate add cat")
    if !strings.HasPrefix(got, "save failed: nvm: backend i/o") {
        t.Fatalf("output = %q", got)
    }
}

func TestWifiCommands(t *testing.T) {
    f := newFixture(t)
    s, r := f.session(transport.KindLocal, false)

    if got := run(t, s, r, "wifi ssid roofnet"); got != "ok\r\n" {
        t.Fatalf("ssid = %q", got)
    }
    if got := run(t, s, r, "wifi passwd s3cret"); got != "ok\r\n" {
        t.Fatalf("passwd = %q", got)
    }
    long := strings.Repeat("x", 33)
    if got := run(t, s, r, "wifi ssid "+long); got != "set failed: record: ssid is 33 bytes, max 32\r\n" {
        t.Fatalf("long ssid = %q", got)
    }
    if got := run(t, s, r, "wifi"); got != "ssid: roofnet\r\npasswd: s3cret\r\n" {
        t.Fatalf("wifi = %q", got)
    }
    if got := run(t, s, r, "wifi status"); got != "Wifi not connected\r\n" {
        t.Fatalf("status = %q", got)
    }
    if got := run(t, s, r, "wifi apply"); got != "ok\r\n" {
        t.Fatalf("apply = %q", got)
    }
    want := "ssid: roofnet\r\nbssid: 02:00:00:00:00:01\r\nchannel: 1\r\nrssi: 0\r\n"
    if got := run(t, s, r, "wifi status"); got != want {
        t.Fatalf("status = %q", got)
    }
    if got := run(t, s, r, "wifi stop"); got != "ok\r\n" || f.env.Wifi.Status().Connected {
        t.Fatalf("stop = %q", got)
    }
    if got := run(t, s, r, "wifi bogus"); got != "syntax error!\r\n" {
        t.Fatalf("bogus = %q", got)
    }

    if err := f.store.Load(); err != nil || f.store.WifiSSID() != "roofnet" {
        t.Fatalf("ssid not persisted: %v", err)
    }
}

func TestNetCommands(t *testing.T) {
    f := newFixture(t)
    s, r := f.session(transport.KindLocal, false)

    if got := run(t, s, r, "net"); got != "ip: dhcp\r\n" {
        t.Fatalf("net = %q", got)
    }
    if got := run(t, s, r, "net ip 192.168.1.20 netmask 255.255.255.0 gw 192.168.1.1"); got != "ok\r\n" {
        t.Fatalf("7-arg = %q", got)
    }
    if n := f.env.Wifi.Netif(); n.IP.String() != "192.168.1.20" || n.Gateway.String() != "192.168.1.1" {
        t.Fatalf("not applied: %+v", n)
    }
    for _, l := range []string{"net dns1 1.1.1.1", "net dns2 8.8.8.8", "net dns3 9.9.9.9", "net password hunter2"} {
        if got := run(t, s, r, l); got != "ok\r\n" {
            t.Fatalf("%s = %q", l, got)
        }
    }
    want := "ip:      192.168.1.20\r\n" +
        "netmask: 255.255.255.0\r\n" +
        "gateway: 192.168.1.1\r\n" +
        "dns1:    1.1.1.1\r\n" +
        "dns2:    8.8.8.8\r\n" +
        "dns3:    9.9.9.9\r\n"
    if got := run(t, s, r, "net"); got != want {
        t.Fatalf("net =\n%q\nwant\n%q", got, want)
    }
    if f.store.NetifPassword() != "hunter2" {
        t.Fatalf("password = %q", f.store.NetifPassword())
    }

    // a bad gateway rejects the whole form
    got := run(t, s, r, "net ip 10.0.0.2 netmask 255.0.0.0 gateway 10.0.0.300")
    if !strings.HasPrefix(got, "set failed: record: invalid ipv4 address") {
        t.Fatalf("bad 7-arg = %q", got)
    }
    if f.store.IP().String() != "192.168.1.20" {
        t.Fatalf("partial update: ip = %s", f.store.IP())
    }

    if got := run(t, s, r, "net ip dhcp"); got != "ok\r\n" {
        t.Fatalf("dhcp = %q", got)
    }
    if cfg, _ := f.store.Snapshot(); f.env.Wifi.Netif().IP != 0 || !cfg.DHCP() {
        t.Fatalf("dhcp not applied")
    }
    if got := run(t, s, r, "net status"); !strings.HasPrefix(got, "ip:      0.0.0.0\r\n") {
        t.Fatalf("status = %q", got)
    }
    if got := run(t, s, r, "net mtu 1500"); got != "syntax error!\r\n" {
        t.Fatalf("unknown field = %q", got)
    }
    if got := run(t, s, r, "apply"); got != "ok\r\n" {
        t.Fatalf("apply = %q", got)
    }
}

func TestNVMCommands(t *testing.T) {
    f := newFixture(t)
    s, r := f.session(transport.KindLocal, false)

    _ = run(t, s, r, "wifi ssid roofnet")
    _ = run(t, s, r, "admin add bob")
    got := run(t, s, r, "nvm")
    want := "ssid: roofnet\r\npasswd: \r\n" +
        "ip: dhcp\r\n" +
        "list of authchans:\r\n" +
        "list of admins:\r\n  " + pad("bob") + "\r\n" +
        "list of mates:\r\n"
    if got != want {
        t.Fatalf("nvm =\n%q\nwant\n%q", got, want)
    }

    _ = f.store.SetWifiSSID("unsaved")
    if got := run(t, s, r, "nvm load"); got != "ok\r\n" || f.store.WifiSSID() != "roofnet" {
        t.Fatalf("load = %q ssid %q", got, f.store.WifiSSID())
    }
    if got := run(t, s, r, "nvm reset"); got != "ok\r\n" {
        t.Fatalf("reset = %q", got)
    }
    if f.view.Counts().Admins != 0 || len(f.store.Admins()) != 0 {
        t.Fatalf("reset left admins")
    }
    if got := run(t, s, r, "nvm save"); got != "ok\r\n" {
        t.Fatalf("save = %q", got)
    }
    f.backend.Store().Delete(flash.Key(nvm.DefaultNamespace, nvm.MetaKey))
    if got := run(t, s, r, "nvm load"); !strings.HasPrefix(got, "load failed: ") {
        t.Fatalf("load missing = %q", got)
    }
    if got := run(t, s, r, "nvm frob"); got != "syntax error!\r\n" {
        t.Fatalf("frob = %q", got)
    }
}

func TestExitAndReboot(t *testing.T) {
    f := newFixture(t)
    local, lr := f.session(transport.KindLocal, false)
    if got := run(t, local, lr, "exit"); !strings.HasPrefix(got, "exit: not a remote session") {
        t.Fatalf("local exit = %q", got)
    }

    remote, rr := f.session(transport.KindTCP, true)
    rr.take()
    remote.Feed([]byte("exit\r"))
    if !rr.closed {
        t.Fatalf("exit did not close the transport")
    }

    _ = f.dev.WantConfig()
    if got := run(t, local, lr, "reboot"); got != "Rebooting...\r\n" || f.reboots != 1 {
        t.Fatalf("reboot = %q (%d)", got, f.reboots)
    }
    if f.dev.Status().Connected {
        t.Fatalf("reboot should disconnect the radio")
    }
}

func TestStepErrorUnwraps(t *testing.T) {
    err := failed("save", record.ErrCapacityExceeded)
    if !errors.Is(err, record.ErrCapacityExceeded) || err.Error() != "save failed: record: capacity exceeded" {
        t.Fatalf("err = %v", err)
    }
    if failed("x", nil) != nil {
        t.Fatalf("nil cause must stay nil")
    }
}
