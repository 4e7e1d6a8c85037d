package shell

import (
    "meshroof/pkg/record"
)

// mutateRosters runs one roster change followed by rebuilding the access
// view and persisting, stopping at the first failing step.
func (s *Session) mutateRosters(step string, mutate func() error) error {
    if err := mutate(); err != nil {
        return failed(step, err)
    }
    if s.env.Peers != nil {
        if err := s.env.Store.ApplyRosters(s.env.Peers); err != nil {
            return failed("apply rosters", err)
        }
    }
    if err := s.env.Store.Save(); err != nil {
        return failed("save", err)
    }
    s.Printf("ok\n")
    return nil
}

func cmdAuthChan(s *Session, args []string) error {
    switch {
    case len(args) == 1 || (len(args) == 2 && args[1] == "list"):
        listAuthChans(s)
        return nil
    case len(args) == 3 && args[1] == "add":
        return s.mutateRosters("add authchan", func() error {
            name, err := record.ParseChannelName(args[2])
            if err != nil { return err }
            ch, err := s.env.Radio.ResolveChannel(args[2])
            if err != nil { return err }
            return s.env.Store.AddAuthChannel(record.AuthChannel{Name: name, PSK: ch.PSK})
        })
    case len(args) == 3 && args[1] == "del":
        return s.mutateRosters("del authchan", func() error {
            return s.env.Store.DelAuthChannel(record.ChannelName(args[2]))
        })
    }
    return errSyntax
}

func listAuthChans(s *Session) {
    s.Printf("list of authchans:\n")
    for _, a := range s.env.Store.AuthChannels() {
        s.Printf("  %s\n", a.Name)
    }
}

func cmdAdmin(s *Session, args []string) error {
    switch {
    case len(args) == 1 || (len(args) == 2 && args[1] == "list"):
        listAdmins(s)
        return nil
    case len(args) == 3 && args[1] == "add":
        return s.mutateRosters("add admin", func() error {
            n, err := s.env.Radio.ResolveNode(args[2])
            if err != nil { return err }
            return s.env.Store.AddAdmin(record.Admin{NodeID: n.ID, PublicKey: n.PublicKey})
        })
    case len(args) == 3 && args[1] == "del":
        return s.mutateRosters("del admin", func() error {
            n, err := s.env.Radio.ResolveNode(args[2])
            if err != nil { return err }
            return s.env.Store.DelAdmin(n.ID)
        })
    }
    return errSyntax
}

func listAdmins(s *Session) {
    s.Printf("list of admins:\n")
    admins := s.env.Store.Admins()
    names := make([]string, 0, len(admins))
    for _, a := range admins {
        names = append(names, s.env.Radio.DisplayName(a.NodeID))
    }
    s.columns(names)
}

func cmdMate(s *Session, args []string) error {
    switch {
    case len(args) == 1 || (len(args) == 2 && args[1] == "list"):
        listMates(s)
        return nil
    case len(args) == 3 && args[1] == "add":
        return s.mutateRosters("add mate", func() error {
            n, err := s.env.Radio.ResolveNode(args[2])
            if err != nil { return err }
            return s.env.Store.AddMate(record.Mate{NodeID: n.ID, PublicKey: n.PublicKey})
        })
    case len(args) == 3 && args[1] == "del":
        return s.mutateRosters("del mate", func() error {
            n, err := s.env.Radio.ResolveNode(args[2])
            if err != nil { return err }
            return s.env.Store.DelMate(n.ID)
        })
    }
    return errSyntax
}

func listMates(s *Session) {
    s.Printf("list of mates:\n")
    mates := s.env.Store.Mates()
    names := make([]string, 0, len(mates))
    for _, m := range mates {
        names = append(names, s.env.Radio.DisplayName(m.NodeID))
    }
    s.columns(names)
}

// cmdNVM shows the whole record or moves it between memory and flash.
func cmdNVM(s *Session, args []string) error {
    if len(args) == 1 || (len(args) == 2 && args[1] == "show") {
        showWifi(s)
        showNet(s)
        listAuthChans(s)
        listAdmins(s)
        listMates(s)
        return nil
    }
    if len(args) != 2 { return errSyntax }
    switch args[1] {
    case "save":
        if err := s.env.Store.Save(); err != nil { return failed("save", err) }
    case "load":
        if err := s.env.Store.Load(); err != nil { return failed("load", err) }
        if s.env.Peers != nil {
            if err := s.env.Store.ApplyRosters(s.env.Peers); err != nil { return failed("apply rosters", err) }
        }
    case "reset":
        s.env.Store.Reset()
        if err := s.env.Store.Save(); err != nil { return failed("save", err) }
        if s.env.Peers != nil {
            if err := s.env.Store.ApplyRosters(s.env.Peers); err != nil { return failed("apply rosters", err) }
        }
    default:
        return errSyntax
    }
    s.Printf("ok\n")
    return nil
}
