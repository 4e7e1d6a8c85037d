package record

import (
    "errors"
    "strings"
    "testing"
)

func TestParseBoundedStrings(t *testing.T) {
    tests := []struct {
        name  string
        parse func(string) error
        max   int
    }{
        {"ssid", func(s string) error { _, err := ParseSSID(s); return err }, SSIDMax},
        {"passwd", func(s string) error { _, err := ParsePassphrase(s); return err }, PassphraseMax},
        {"secret", func(s string) error { _, err := ParseSecret(s); return err }, SecretMax},
        {"channel", func(s string) error { _, err := ParseChannelName(s); return err }, ChannelNameMax},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            if err := tt.parse(strings.Repeat("a", tt.max)); err != nil {
                t.Fatalf("value at capacity rejected: %v", err)
            }
            err := tt.parse(strings.Repeat("a", tt.max+1))
            if !errors.Is(err, ErrInputTooLong) {
                t.Fatalf("expected ErrInputTooLong, got %v", err)
            }
            var tl *InputTooLongError
            if !errors.As(err, &tl) || tl.Len != tt.max+1 || tl.Max != tt.max {
                t.Fatalf("unexpected error detail: %#v", err)
            }
            if err := tt.parse("a\x00b"); !errors.Is(err, ErrInvalidInput) {
                t.Fatalf("expected ErrInvalidInput for NUL, got %v", err)
            }
        })
    }
    if _, err := ParseChannelName(""); !errors.Is(err, ErrInvalidInput) {
        t.Fatalf("empty channel name accepted")
    }
}

func TestParseIPv4(t *testing.T) {
    ip, err := ParseIPv4("10.0.1.254")
    if err != nil { t.Fatalf("parse: %v", err) }
    if uint32(ip) != 0x0a0001fe {
        t.Fatalf("value %#x", uint32(ip))
    }
    if ip.String() != "10.0.1.254" {
        t.Fatalf("string %q", ip.String())
    }
    for _, bad := range []string{"", "10.0.1", "256.1.1.1", "::1", "dhcp"} {
        if _, err := ParseIPv4(bad); !errors.Is(err, ErrInvalidAddress) {
            t.Fatalf("%q: expected ErrInvalidAddress, got %v", bad, err)
        }
    }
}

func TestParseNodeID(t *testing.T) {
    tests := map[string]NodeID{
        "!a1b2c3d4":  0xa1b2c3d4,
        "0x10":       16,
        "4294967295": 0xffffffff,
    }
    for in, want := range tests {
        got, err := ParseNodeID(in)
        if err != nil || got != want {
            t.Fatalf("%q: got %v %v want %v", in, got, err, want)
        }
    }
    if _, err := ParseNodeID("bob"); !errors.Is(err, ErrInvalidInput) {
        t.Fatalf("expected ErrInvalidInput, got %v", err)
    }
    if NodeID(0xa1b2c3d4).String() != "!a1b2c3d4" {
        t.Fatalf("display form %q", NodeID(0xa1b2c3d4).String())
    }
}

func TestCursorOverrunIsSticky(t *testing.T) {
    c := NewCursor(make([]byte, 6))
    c.PutUint32(1)
    c.PutUint32(2)
    if c.Err() == nil {
        t.Fatalf("expected overrun")
    }
    c.Seek(0)
    if c.Offset() != 4 {
        t.Fatalf("cursor moved after overrun: %d", c.Offset())
    }
}
