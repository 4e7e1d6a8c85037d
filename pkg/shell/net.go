package shell

import (
    "meshroof/pkg/record"
)

func showWifi(s *Session) {
    s.Printf("ssid: %s\n", s.env.Store.WifiSSID())
    s.Printf("passwd: %s\n", s.env.Store.WifiPasswd())
}

func showNet(s *Session) {
    cfg, _ := s.env.Store.Snapshot()
    if cfg.DHCP() {
        s.Printf("ip: dhcp\n")
        return
    }
    s.Printf("ip:      %s\n", cfg.IP)
    s.Printf("netmask: %s\n", cfg.Netmask)
    s.Printf("gateway: %s\n", cfg.Gateway)
    s.Printf("dns1:    %s\n", cfg.DNS1)
    s.Printf("dns2:    %s\n", cfg.DNS2)
    s.Printf("dns3:    %s\n", cfg.DNS3)
}

// setAndSave applies one setter and persists. The record is left unchanged
// when the setter rejects the value.
func (s *Session) setAndSave(set func() error) error {
    if err := set(); err != nil { return failed("set", err) }
    if err := s.env.Store.Save(); err != nil { return failed("save", err) }
    s.Printf("ok\n")
    return nil
}

func cmdWifi(s *Session, args []string) error {
    w := s.env.Wifi
    switch {
    case len(args) == 1:
        showWifi(s)
        return nil
    case len(args) == 2 && args[1] == "status":
        st := w.Status()
        if !st.Connected {
            s.Printf("Wifi not connected\n")
            return nil
        }
        b := st.BSSID
        s.Printf("ssid: %s\n", st.SSID)
        s.Printf("bssid: %02x:%02x:%02x:%02x:%02x:%02x\n", b[0], b[1], b[2], b[3], b[4], b[5])
        s.Printf("channel: %d\n", st.Channel)
        s.Printf("rssi: %d\n", st.RSSI)
        return nil
    case len(args) == 2 && args[1] == "start":
        return s.ok(failed("wifi start", w.Start()))
    case len(args) == 2 && args[1] == "stop":
        return s.ok(failed("wifi stop", w.Stop()))
    case len(args) == 2 && args[1] == "apply":
        if err := w.Stop(); err != nil { return failed("wifi stop", err) }
        return s.ok(failed("wifi start", w.Start()))
    case len(args) == 3 && args[1] == "ssid":
        return s.setAndSave(func() error { return s.env.Store.SetWifiSSID(args[2]) })
    case len(args) == 3 && args[1] == "passwd":
        return s.setAndSave(func() error { return s.env.Store.SetWifiPasswd(args[2]) })
    }
    return errSyntax
}

func cmdNet(s *Session, args []string) error {
    st := s.env.Store
    switch {
    case len(args) == 1:
        showNet(s)
        return nil
    case len(args) == 2 && args[1] == "status":
        n := s.env.Wifi.Netif()
        s.Printf("ip:      %s\n", n.IP)
        s.Printf("netmask: %s\n", n.Netmask)
        s.Printf("gateway: %s\n", n.Gateway)
        s.Printf("dns1:    %s\n", n.DNS1)
        s.Printf("dns2:    %s\n", n.DNS2)
        s.Printf("dns3:    %s\n", n.DNS3)
        return nil
    case len(args) == 2 && args[1] == "apply":
        return s.ok(s.applyNetif())
    case len(args) == 7 && args[1] == "ip" && args[3] == "netmask" && (args[5] == "gateway" || args[5] == "gw"):
        // validate all three before touching the record
        for _, a := range []string{args[2], args[4], args[6]} {
            if _, err := record.ParseIPv4(a); err != nil { return failed("set", err) }
        }
        if err := st.SetIP(args[2]); err != nil { return failed("set", err) }
        if err := st.SetNetmask(args[4]); err != nil { return failed("set", err) }
        if err := st.SetGateway(args[6]); err != nil { return failed("set", err) }
        if err := st.Save(); err != nil { return failed("save", err) }
        return s.ok(s.applyNetif())
    case len(args) == 3 && args[1] == "ip" && args[2] == "dhcp":
        st.SetDHCP()
        if err := st.Save(); err != nil { return failed("save", err) }
        return s.ok(s.applyNetif())
    case len(args) == 3:
        set := map[string]func(string) error{
            "ip":       st.SetIP,
            "netmask":  st.SetNetmask,
            "gateway":  st.SetGateway,
            "gw":       st.SetGateway,
            "dns1":     st.SetDNS1,
            "dns2":     st.SetDNS2,
            "dns3":     st.SetDNS3,
            "password": st.SetNetifPassword,
        }[args[1]]
        if set == nil { return errSyntax }
        return s.setAndSave(func() error { return set(args[2]) })
    }
    return errSyntax
}

func (s *Session) applyNetif() error {
    cfg, _ := s.env.Store.Snapshot()
    return failed("netif apply", s.env.Wifi.ApplyNetif(cfg))
}

// cmdApply pushes the stored wifi and addressing settings to the live
// interface.
func cmdApply(s *Session, _ []string) error {
    if err := s.env.Wifi.Stop(); err != nil { return failed("wifi stop", err) }
    if err := s.env.Wifi.Start(); err != nil { return failed("wifi start", err) }
    return s.ok(s.applyNetif())
}

// ok prints the success marker when err is nil and passes err through.
func (s *Session) ok(err error) error {
    if err == nil { s.Printf("ok\n") }
    return err
}
