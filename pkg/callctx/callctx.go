// Package callctx holds the call context attached to a failure watcher: a correlation ID,
// a static name, and an optional human-readable message describing the in-progress work.
package callctx

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf8"
)

// MaxMessageLength is the maximum number of characters kept from a formatted message.
// Longer messages are truncated.
const MaxMessageLength = 2047

var nextID atomic.Uint32

// NextID returns a new, non-zero, process-wide call context ID.
func NextID() uint32 {
	for {
		if id := nextID.Add(1); id != 0 {
			return id
		}
	}
}

var (
	bufPool = sync.Pool{
		New: func() any { return &bytes.Buffer{} },
	}
	// number of owned message buffers not yet returned to the pool
	outstanding atomic.Int64
)

// Outstanding returns the number of owned message buffers that have not been released.
func Outstanding() int64 { return outstanding.Load() }

func getBuffer() *bytes.Buffer {
	outstanding.Add(1)
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

func putBuffer(b *bytes.Buffer) {
	outstanding.Add(-1)
	bufPool.Put(b)
}

// Snapshot is an immutable copy of an [Info], stored on failure records.
type Snapshot struct {
	ID      uint32 `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// Info is a call context.
//
// The message is either borrowed (set with [Info.SetMessage]) or owned: formatted or copied into
// a pooled buffer that the Info releases when the message is replaced or cleared, or on [Info.Release].
//
// Info is not safe for concurrent use.
type Info struct {
	id   uint32
	name string

	msg string
	buf *bytes.Buffer
}

// New returns a call context with the given name and no ID.
func New(name string) *Info {
	return &Info{name: name}
}

func (c *Info) ID() uint32   { return c.id }
func (c *Info) Name() string { return c.name }

// SetID overrides the call context's correlation ID.
func (c *Info) SetID(id uint32) { c.id = id }

// EnsureID assigns a new ID from [NextID] if none is set, and returns the ID.
func (c *Info) EnsureID() uint32 {
	if c.id == 0 {
		c.id = NextID()
	}
	return c.id
}

// Message returns the current message, or "" if none is set.
func (c *Info) Message() string {
	if c.buf != nil {
		return c.buf.String()
	}
	return c.msg
}

// Owned returns true if the message is held in a buffer owned by c.
func (c *Info) Owned() bool { return c.buf != nil }

// SetMessage sets a borrowed message, releasing any owned one.
func (c *Info) SetMessage(msg string) {
	c.release()
	c.msg = msg
}

// SetMessagef formats a message into an owned buffer, truncating it to [MaxMessageLength].
//
// An empty result leaves the current message unchanged.
func (c *Info) SetMessagef(format string, args ...any) {
	b := getBuffer()
	fmt.Fprintf(b, format, args...)
	truncate(b)
	c.assign(b)
}

// SetMessageCopy copies msg into an owned buffer.
//
// An empty msg leaves the current message unchanged.
func (c *Info) SetMessageCopy(msg string) {
	if msg == "" {
		return
	}
	b := getBuffer()
	b.WriteString(msg)
	c.assign(b)
}

// ClearMessage removes the message, releasing any owned buffer.
func (c *Info) ClearMessage() {
	c.release()
	c.msg = ""
}

// Release returns an owned message buffer to the pool. The message is cleared.
//
// Safe to call multiple times.
func (c *Info) Release() { c.ClearMessage() }

// Clone returns an independent copy of c. An owned message is copied into a new owned buffer;
// a borrowed one stays borrowed.
func (c *Info) Clone() *Info {
	n := &Info{id: c.id, name: c.name, msg: c.msg}
	if c.buf != nil {
		n.buf = getBuffer()
		n.buf.Write(c.buf.Bytes())
	}
	return n
}

// Snapshot returns an immutable copy of the call context.
func (c *Info) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		ID:      c.id,
		Name:    c.name,
		Message: c.Message(),
	}
}

func (c *Info) assign(b *bytes.Buffer) {
	if b.Len() == 0 {
		putBuffer(b)
		return
	}
	c.release()
	c.msg = ""
	c.buf = b
}

func (c *Info) release() {
	if c.buf != nil {
		b := c.buf
		c.buf = nil
		putBuffer(b)
	}
}

// truncate cuts b down to MaxMessageLength characters without splitting a UTF-8 sequence.
func truncate(b *bytes.Buffer) {
	if b.Len() <= MaxMessageLength {
		return
	}
	p := b.Bytes()
	n, i := 0, 0
	for i < len(p) && n < MaxMessageLength {
		_, sz := utf8.DecodeRune(p[i:])
		i += sz
		n++
	}
	b.Truncate(i)
}
