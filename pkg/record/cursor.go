package record

import (
    "encoding/binary"
    "errors"
)

var errCursorOverrun = errors.New("record: cursor overrun")

// Cursor walks a fixed-size buffer. Every access is bounds checked against
// the buffer length; an overrun sets a sticky error and subsequent calls are
// no-ops, so callers check Err once at the end.
type Cursor struct {
    buf []byte
    off int
    err error
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Offset is the current position.
func (c *Cursor) Offset() int { return c.off }

// Remaining is the number of bytes left after the current position.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

// Err returns the first overrun, if any.
func (c *Cursor) Err() error { return c.err }

// Seek moves to an absolute offset.
func (c *Cursor) Seek(off int) {
    if c.err != nil { return }
    if off < 0 || off > len(c.buf) {
        c.err = errCursorOverrun
        return
    }
    c.off = off
}

func (c *Cursor) take(n int) []byte {
    if c.err != nil { return nil }
    if n < 0 || n > c.Remaining() {
        c.err = errCursorOverrun
        return nil
    }
    b := c.buf[c.off : c.off+n]
    c.off += n
    return b
}

// PutUint32 writes v little-endian.
func (c *Cursor) PutUint32(v uint32) {
    if b := c.take(4); b != nil {
        binary.LittleEndian.PutUint32(b, v)
    }
}

// Uint32 reads a little-endian value.
func (c *Cursor) Uint32() uint32 {
    if b := c.take(4); b != nil {
        return binary.LittleEndian.Uint32(b)
    }
    return 0
}

// PutFixed writes s into a width-byte field, NUL padded. The caller has
// validated len(s) <= width.
func (c *Cursor) PutFixed(s string, width int) {
    b := c.take(width)
    if b == nil { return }
    n := copy(b, s)
    clear(b[n:])
}

// Fixed reads a width-byte NUL padded field.
func (c *Cursor) Fixed(width int) string {
    b := c.take(width)
    if b == nil { return "" }
    for i, ch := range b {
        if ch == 0 {
            return string(b[:i])
        }
    }
    return string(b)
}

// PutKey writes key material verbatim.
func (c *Cursor) PutKey(k Key) {
    if b := c.take(KeySize); b != nil {
        copy(b, k[:])
    }
}

// Key reads key material.
func (c *Cursor) Key() (k Key) {
    if b := c.take(KeySize); b != nil {
        copy(k[:], b)
    }
    return k
}
