package nvm

import (
    "fmt"

    "meshroof/pkg/record"
)

func (s *Store) AuthChannels() []record.AuthChannel {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return append([]record.AuthChannel(nil), s.rosters.AuthChannels...)
}

func (s *Store) Admins() []record.Admin {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return append([]record.Admin(nil), s.rosters.Admins...)
}

func (s *Store) Mates() []record.Mate {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return append([]record.Mate(nil), s.rosters.Mates...)
}

// fits reports whether growing the encoded record by n bytes stays within
// capacity. Callers hold mu.
func (s *Store) fits(n int) error {
    size := record.EncodedSize(s.rosters) + n
    if size > s.capacity {
        return fmt.Errorf("%w: record would be %d bytes, capacity %d", record.ErrCapacityExceeded, size, s.capacity)
    }
    return nil
}

// AddAuthChannel appends a channel. Names are unique.
func (s *Store) AddAuthChannel(a record.AuthChannel) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, e := range s.rosters.AuthChannels {
        if e.Name == a.Name {
            return fmt.Errorf("%w: authchan %s", ErrDuplicate, a.Name)
        }
    }
    if err := s.fits(record.AuthChannelSize); err != nil { return err }
    s.rosters.AuthChannels = append(s.rosters.AuthChannels, a)
    return nil
}

func (s *Store) DelAuthChannel(name record.ChannelName) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for i, e := range s.rosters.AuthChannels {
        if e.Name == name {
            s.rosters.AuthChannels = append(s.rosters.AuthChannels[:i:i], s.rosters.AuthChannels[i+1:]...)
            return nil
        }
    }
    return fmt.Errorf("%w: authchan %s", ErrNotFound, name)
}

// AddAdmin appends an admin. Node ids are unique.
func (s *Store) AddAdmin(a record.Admin) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, e := range s.rosters.Admins {
        if e.NodeID == a.NodeID {
            return fmt.Errorf("%w: admin %s", ErrDuplicate, a.NodeID)
        }
    }
    if err := s.fits(record.AdminSize); err != nil { return err }
    s.rosters.Admins = append(s.rosters.Admins, a)
    return nil
}

func (s *Store) DelAdmin(id record.NodeID) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for i, e := range s.rosters.Admins {
        if e.NodeID == id {
            s.rosters.Admins = append(s.rosters.Admins[:i:i], s.rosters.Admins[i+1:]...)
            return nil
        }
    }
    return fmt.Errorf("%w: admin %s", ErrNotFound, id)
}

// AddMate appends a mate. Node ids are unique.
func (s *Store) AddMate(m record.Mate) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, e := range s.rosters.Mates {
        if e.NodeID == m.NodeID {
            return fmt.Errorf("%w: mate %s", ErrDuplicate, m.NodeID)
        }
    }
    if err := s.fits(record.MateSize); err != nil { return err }
    s.rosters.Mates = append(s.rosters.Mates, m)
    return nil
}

func (s *Store) DelMate(id record.NodeID) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for i, e := range s.rosters.Mates {
        if e.NodeID == id {
            s.rosters.Mates = append(s.rosters.Mates[:i:i], s.rosters.Mates[i+1:]...)
            return nil
        }
    }
    return fmt.Errorf("%w: mate %s", ErrNotFound, id)
}
