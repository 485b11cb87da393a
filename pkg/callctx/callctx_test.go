package callctx

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func checkOutstanding(t *testing.T, want int64) {
	t.Helper()
	if n := outstanding.Load(); n != want {
		t.Fatalf("got %d outstanding message buffers, wanted %d", n, want)
	}
}

func TestMessageOwnership(t *testing.T) {
	base := outstanding.Load()

	c := New("ctx")
	c.SetMessage("borrowed")
	if c.Owned() {
		t.Fatal("borrowed message reported as owned")
	}
	checkOutstanding(t, base)

	c.SetMessagef("formatted %d", 1)
	if !c.Owned() {
		t.Fatal("formatted message not reported as owned")
	}
	checkOutstanding(t, base+1)

	// replacing an owned message releases the old buffer
	c.SetMessageCopy("copied")
	checkOutstanding(t, base+1)
	if m := c.Message(); m != "copied" {
		t.Fatalf("got message %q, wanted %q", m, "copied")
	}

	// empty messages are ignored
	c.SetMessagef("%s", "")
	c.SetMessageCopy("")
	if m := c.Message(); m != "copied" {
		t.Fatalf("got message %q after empty assignment, wanted %q", m, "copied")
	}
	checkOutstanding(t, base+1)

	clone := c.Clone()
	checkOutstanding(t, base+2)

	c.SetMessage("borrowed again")
	checkOutstanding(t, base+1)
	if m := clone.Message(); m != "copied" {
		t.Fatalf("clone message changed to %q", m)
	}

	clone.Release()
	clone.Release()
	c.Release()
	checkOutstanding(t, base)
}

func TestSetMessagefTruncates(t *testing.T) {
	c := New("ctx")
	defer c.Release()

	c.SetMessagef("%s", strings.Repeat("é", MaxMessageLength+10))
	m := c.Message()
	if n := utf8.RuneCountInString(m); n != MaxMessageLength {
		t.Fatalf("got %d characters, wanted %d", n, MaxMessageLength)
	}
	if !utf8.ValidString(m) {
		t.Fatal("truncated message is not valid UTF-8")
	}
}

func TestSnapshot(t *testing.T) {
	c := New("op")
	defer c.Release()

	id := c.EnsureID()
	if id == 0 {
		t.Fatal("EnsureID returned 0")
	}
	if id2 := c.EnsureID(); id2 != id {
		t.Fatalf("EnsureID changed id from %d to %d", id, id2)
	}
	c.SetMessagef("item %s", "a")

	want := Snapshot{ID: id, Name: "op", Message: "item a"}
	if diff := cmp.Diff(want, c.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	var nilInfo *Info
	if diff := cmp.Diff(Snapshot{}, nilInfo.Snapshot()); diff != "" {
		t.Fatalf("nil snapshot mismatch (-want +got):\n%s", diff)
	}
}
