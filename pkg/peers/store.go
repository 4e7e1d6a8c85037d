// Package peers keeps the mesh access view derived from the persisted
// rosters: which channels are authorized and which nodes are admins or
// mates. The record store rebuilds it after every roster change.
package peers

import (
    "encoding/json"
    "fmt"

    "go.uber.org/zap"

    "meshroof/pkg/memkv"
    "meshroof/pkg/record"
)

const (
    prefixChan  = "authchan:"
    prefixAdmin = "admin:"
    prefixMate  = "mate:"
)

// Store holds the access view in the in-memory KV.
type Store struct {
    kv *memkv.Store
}

func NewStore(kv *memkv.Store) *Store { return &Store{kv: kv} }

// PeerMeta is what the view keeps per admin or mate.
type PeerMeta struct {
    NodeID    record.NodeID `json:"node_id"`
    Role      string        `json:"role"`
    PublicKey []byte        `json:"public_key,omitempty"`
}

// ChannelMeta is what the view keeps per authorized channel.
type ChannelMeta struct {
    Name string `json:"name"`
    PSK  []byte `json:"psk,omitempty"`
}

func keyChan(name record.ChannelName) string { return prefixChan + string(name) }
func keyAdmin(id record.NodeID) string       { return prefixAdmin + id.String() }
func keyMate(id record.NodeID) string        { return prefixMate + id.String() }

// ClearRosters drops every entry.
func (s *Store) ClearRosters() {
    n := s.kv.DeletePrefix(prefixChan) + s.kv.DeletePrefix(prefixAdmin) + s.kv.DeletePrefix(prefixMate)
    zap.L().Debug("access view cleared", zap.Int("entries", n))
}

func (s *Store) AddAuthChannel(a record.AuthChannel) error {
    key := keyChan(a.Name)
    if s.kv.Exists(key) {
        return fmt.Errorf("peers: authchan %s already present", a.Name)
    }
    b, err := json.Marshal(ChannelMeta{Name: string(a.Name), PSK: keyBytes(a.PSK)})
    if err != nil { return fmt.Errorf("peers: authchan %s: %w", a.Name, err) }
    if err := s.kv.Set(key, b); err != nil {
        return fmt.Errorf("peers: authchan %s: %w", a.Name, err)
    }
    zap.L().Debug("authchan added", zap.String("name", string(a.Name)))
    return nil
}

func (s *Store) AddAdmin(a record.Admin) error {
    return s.addPeer(keyAdmin(a.NodeID), "admin", a.NodeID, a.PublicKey)
}

func (s *Store) AddMate(m record.Mate) error {
    return s.addPeer(keyMate(m.NodeID), "mate", m.NodeID, m.PublicKey)
}

func (s *Store) addPeer(key, role string, id record.NodeID, pub record.Key) error {
    if s.kv.Exists(key) {
        return fmt.Errorf("peers: %s %s already present", role, id)
    }
    b, err := json.Marshal(PeerMeta{NodeID: id, Role: role, PublicKey: keyBytes(pub)})
    if err != nil { return fmt.Errorf("peers: %s %s: %w", role, id, err) }
    if err := s.kv.Set(key, b); err != nil {
        return fmt.Errorf("peers: %s %s: %w", role, id, err)
    }
    zap.L().Debug("peer added", zap.String("role", role), zap.Stringer("node", id))
    return nil
}

// Counts reports how many entries of each kind the view holds.
func (s *Store) Counts() record.Counts {
    return record.Counts{
        AuthChannels: uint32(len(s.kv.Keys(prefixChan))),
        Admins:       uint32(len(s.kv.Keys(prefixAdmin))),
        Mates:        uint32(len(s.kv.Keys(prefixMate))),
    }
}

func keyBytes(k record.Key) []byte {
    if k.IsZero() { return nil }
    return append([]byte(nil), k[:]...)
}
