package nvm

import "meshroof/pkg/record"

func (s *Store) WifiSSID() record.SSID {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.cfg.WifiSSID
}

func (s *Store) SetWifiSSID(v string) error {
    ssid, err := record.ParseSSID(v)
    if err != nil { return err }
    s.mu.Lock()
    s.cfg.WifiSSID = ssid
    s.mu.Unlock()
    return nil
}

func (s *Store) WifiPasswd() record.Passphrase {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.cfg.WifiPasswd
}

func (s *Store) SetWifiPasswd(v string) error {
    p, err := record.ParsePassphrase(v)
    if err != nil { return err }
    s.mu.Lock()
    s.cfg.WifiPasswd = p
    s.mu.Unlock()
    return nil
}

func (s *Store) NetifPassword() record.Secret {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.cfg.NetifPassword
}

func (s *Store) SetNetifPassword(v string) error {
    p, err := record.ParseSecret(v)
    if err != nil { return err }
    s.mu.Lock()
    s.cfg.NetifPassword = p
    s.mu.Unlock()
    return nil
}

// address returns a pointer to one of the IPv4 fields. Callers hold mu.
type address func(c *record.Config) *record.IPv4

func (s *Store) getAddr(f address) record.IPv4 {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return *f(&s.cfg)
}

func (s *Store) setAddr(f address, v string) error {
    ip, err := record.ParseIPv4(v)
    if err != nil { return err }
    s.mu.Lock()
    *f(&s.cfg) = ip
    s.mu.Unlock()
    return nil
}

func ipField(c *record.Config) *record.IPv4      { return &c.IP }
func netmaskField(c *record.Config) *record.IPv4 { return &c.Netmask }
func gatewayField(c *record.Config) *record.IPv4 { return &c.Gateway }
func dns1Field(c *record.Config) *record.IPv4    { return &c.DNS1 }
func dns2Field(c *record.Config) *record.IPv4    { return &c.DNS2 }
func dns3Field(c *record.Config) *record.IPv4    { return &c.DNS3 }

// IP returns the static address; zero means DHCP.
func (s *Store) IP() record.IPv4           { return s.getAddr(ipField) }
func (s *Store) Netmask() record.IPv4      { return s.getAddr(netmaskField) }
func (s *Store) Gateway() record.IPv4      { return s.getAddr(gatewayField) }
func (s *Store) DNS1() record.IPv4         { return s.getAddr(dns1Field) }
func (s *Store) DNS2() record.IPv4         { return s.getAddr(dns2Field) }
func (s *Store) DNS3() record.IPv4         { return s.getAddr(dns3Field) }
func (s *Store) SetIP(v string) error      { return s.setAddr(ipField, v) }
func (s *Store) SetNetmask(v string) error { return s.setAddr(netmaskField, v) }
func (s *Store) SetGateway(v string) error { return s.setAddr(gatewayField, v) }
func (s *Store) SetDNS1(v string) error    { return s.setAddr(dns1Field, v) }
func (s *Store) SetDNS2(v string) error    { return s.setAddr(dns2Field, v) }
func (s *Store) SetDNS3(v string) error    { return s.setAddr(dns3Field, v) }

// SetDHCP clears the static address.
func (s *Store) SetDHCP() {
    s.mu.Lock()
    s.cfg.IP = 0
    s.mu.Unlock()
}
