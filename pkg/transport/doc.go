// Package transport defines the byte-stream contract shell sessions run
// over and the adapters that implement it.
//
// Key concepts:
// - Conn: a raw byte channel with a bounded-wait read (console, TCP, pipe)
// - Listener: accepts remote Conns for the session arbiter
// - StreamConn: adapts any net.Conn to Conn using read deadlines
// - Merge: fans several Listeners into one so a single arbiter serves them
//
// Implementations live in subpackages: console (local terminal), tcp and
// quic (remote shell), mem (in-process pipes for tests).
package transport
