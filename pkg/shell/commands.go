package shell

import (
    "fmt"
    "runtime"
    "strings"
    "time"

    "meshroof/pkg/device"
    "meshroof/pkg/transport"
)

// Command is one entry of the dispatch table. args[0] is the command name.
type Command struct {
    Name string
    Run  func(s *Session, args []string) error
}

// Commands returns the command table in help order.
func Commands() []Command {
    return []Command{
        {"help", cmdHelp},
        {"version", cmdVersion},
        {"system", cmdSystem},
        {"reboot", cmdReboot},
        {"status", cmdStatus},
        {"wcfg", cmdWantConfig},
        {"disc", cmdDisconnect},
        {"hb", cmdHeartbeat},
        {"dm", cmdDirectMessage},
        {"cm", cmdChannelMessage},
        {"authchan", cmdAuthChan},
        {"admin", cmdAdmin},
        {"mate", cmdMate},
        {"nvm", cmdNVM},
        {"wifi", cmdWifi},
        {"net", cmdNet},
        {"apply", cmdApply},
        {"exit", cmdExit},
    }
}

func cmdHelp(s *Session, _ []string) error {
    s.Printf("Available commands:\n")
    i := 0
    for ; i < len(s.cmds); i++ {
        if i%4 == 0 { s.Printf("\t") }
        s.Printf("%s\t", s.cmds[i].Name)
        if i%4 == 3 { s.Printf("\n") }
    }
    if i%4 != 0 { s.Printf("\n") }
    return nil
}

func cmdVersion(s *Session, _ []string) error {
    s.Printf("Version: %s\n", s.env.Version)
    s.Printf("Built: %s\n", s.env.Built)
    return nil
}

func cmdSystem(s *Session, _ []string) error {
    s.Printf("   Up-time: %s\n", formatUptime(time.Since(s.env.Started)))

    var ms runtime.MemStats
    runtime.ReadMemStats(&ms)
    s.Printf("Total Heap: %d\n", ms.HeapSys)
    s.Printf(" Free Heap: %d\n", ms.HeapSys-ms.HeapInuse)
    s.Printf(" Used Heap: %d\n", ms.HeapInuse)
    s.Printf("Goroutines: %d\n", runtime.NumGoroutine())
    return nil
}

// formatUptime renders HH:MM:SS, prefixed with the day count once past a day.
func formatUptime(d time.Duration) string {
    up := int64(d / time.Second)
    sec, mins, hour, days := up%60, (up/60)%60, (up/3600)%24, up/86400
    if days == 0 {
        return fmt.Sprintf("%02d:%02d:%02d", hour, mins, sec)
    }
    return fmt.Sprintf("%dd %02d:%02d:%02d", days, hour, mins, sec)
}

func cmdReboot(s *Session, _ []string) error {
    _ = s.env.Radio.Disconnect()
    s.Printf("Rebooting...\n")
    if s.env.Reboot != nil {
        s.env.Reboot()
    }
    return nil
}

func cmdStatus(s *Session, _ []string) error {
    st := s.env.Radio.Status()
    if !st.Connected {
        s.Printf("Not connected\n")
        return nil
    }
    s.Printf("Me: %s %s\n", st.Me.DisplayName(), st.Me.LongName)
    s.Printf("Channels: %d\n", len(st.Channels))
    for _, c := range st.Channels {
        s.Printf("chan#%d: %s\n", c.Index, c.Name)
    }
    s.Printf("Nodes: %d seen\n", len(st.Nodes))
    names := make([]string, 0, len(st.Nodes))
    for _, n := range st.Nodes {
        names = append(names, n.DisplayName())
    }
    s.columns(names)
    if s.env.Peers != nil {
        c := s.env.Peers.Counts()
        s.Printf("Access: %d authchans, %d admins, %d mates\n", c.AuthChannels, c.Admins, c.Mates)
    }
    return nil
}

func cmdWantConfig(s *Session, _ []string) error { return failed("wcfg", s.env.Radio.WantConfig()) }
func cmdDisconnect(s *Session, _ []string) error { return failed("disc", s.env.Radio.Disconnect()) }
func cmdHeartbeat(s *Session, _ []string) error  { return failed("hb", s.env.Radio.Heartbeat()) }

func cmdDirectMessage(s *Session, args []string) error {
    if len(args) < 3 {
        s.Printf("Usage: %s [name] message\n", args[0])
        return nil
    }
    n, err := s.env.Radio.ResolveNode(args[1])
    if err != nil || n.ID == s.env.Radio.Status().Me.ID || n.ID == device.Broadcast {
        return fmt.Errorf("name '%s' is invalid!", args[1])
    }
    return failed("dm", s.env.Radio.TextMessage(n.ID, 0, strings.Join(args[2:], " ")))
}

func cmdChannelMessage(s *Session, args []string) error {
    if len(args) < 3 {
        s.Printf("Usage: %s [chan] message\n", args[0])
        return nil
    }
    ch, err := s.env.Radio.ResolveChannel(args[1])
    if err != nil { return fmt.Errorf("channel '%s' is invalid!", args[1]) }
    return failed("cm", s.env.Radio.TextMessage(device.Broadcast, ch.Index, strings.Join(args[2:], " ")))
}

// cmdExit closes a remote session's transport; the arbiter notices on the
// next read and frees the slot.
func cmdExit(s *Session, _ []string) error {
    c := s.Conn()
    if c == nil || !c.Kind().Remote() {
        return fmt.Errorf("exit: not a remote session (%s)", transport.Label(c))
    }
    return c.Close()
}
