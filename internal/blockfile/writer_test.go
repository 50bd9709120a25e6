package blockfile

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ShadowGHO/strata/internal/arena"
	"github.com/ShadowGHO/strata/internal/library"
	"github.com/ShadowGHO/strata/internal/schema"
)

type wtVertex struct {
	Co   [3]float32
	Flag int32
}

type wtNode struct {
	Next, Prev arena.Ptr
	Value      int32
}

type wtBlock struct {
	ID   library.ID
	Data arena.Ptr
}

func writerCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	cat := schema.NewCatalog()
	cat.MustRegister(wtVertex{})
	cat.MustRegister(wtNode{})
	cat.MustRegister(wtBlock{})
	return cat
}

// TestWriterNullSafety verifies null addresses and nil values are silent
// no-ops that leave the block stream untouched.
func TestWriterNullSafety(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, writerCatalog(t), arena.New(), SaveOptions{})

	w.WriteStruct("wtVertex", arena.Nil, &wtVertex{})
	w.WriteStruct("wtVertex", arena.Address(1), nil)
	w.WriteRaw(arena.Address(2), nil)
	w.WriteString(arena.Nil, "ignored")
	w.WriteInt32Array(arena.Address(3), nil)
	w.WriteFloat3Array(arena.Nil, []float32{1, 2, 3})
	w.WritePointerArray(arena.Address(4), nil)

	if w.blocks.Len() != 0 {
		t.Errorf("null-safe writes emitted %d bytes", w.blocks.Len())
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

// TestWriterDeduplication verifies a shared address is serialized once.
func TestWriterDeduplication(t *testing.T) {
	var out bytes.Buffer
	cat := writerCatalog(t)
	w := NewWriter(&out, cat, arena.New(), SaveOptions{})

	v := &wtVertex{Flag: 1}
	addr := arena.Address(7)
	w.WriteStruct("wtVertex", addr, v)
	w.WriteStruct("wtVertex", addr, v)

	desc := cat.ByName("wtVertex")
	if want := blockHeaderSize + desc.Size; w.blocks.Len() != want {
		t.Errorf("stream holds %d bytes, want one block of %d", w.blocks.Len(), want)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

// TestWriterUnknownStruct verifies an unregistered name poisons the session
// and suppresses all output.
func TestWriterUnknownStruct(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, writerCatalog(t), arena.New(), SaveOptions{})

	w.WriteStruct("wtVertex", arena.Address(1), &wtVertex{})
	w.WriteStruct("NoSuchStruct", arena.Address(2), &wtVertex{})
	w.WriteString(arena.Address(3), "after failure")

	if err := w.Close(); !errors.Is(err, ErrUnknownStruct) {
		t.Fatalf("Close error = %v, want ErrUnknownStruct", err)
	}
	if out.Len() != 0 {
		t.Errorf("failed session wrote %d bytes, want none", out.Len())
	}
}

// TestWriterTypeMismatch verifies a value of the wrong type fails the
// session.
func TestWriterTypeMismatch(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, writerCatalog(t), arena.New(), SaveOptions{})

	w.WriteStruct("wtVertex", arena.Address(1), &wtNode{})
	if err := w.Close(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Close error = %v, want ErrTypeMismatch", err)
	}
}

// TestWriterFloat3Components verifies the component-count contract.
func TestWriterFloat3Components(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, writerCatalog(t), arena.New(), SaveOptions{})

	w.WriteFloat3Array(arena.Address(1), []float32{1, 2, 3, 4})
	if err := w.Close(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Close error = %v, want ErrTypeMismatch", err)
	}
}

// TestWriterIDStructHeader verifies WriteIDStruct rejects values without an
// embedded ID header.
func TestWriterIDStructHeader(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, writerCatalog(t), arena.New(), SaveOptions{})

	w.WriteIDStruct("wtVertex", arena.Address(1), &wtVertex{})
	if err := w.Close(); !errors.Is(err, ErrNotIDStruct) {
		t.Errorf("Close error = %v, want ErrNotIDStruct", err)
	}
}

// TestWriterListRequiresLinks verifies WriteStructList rejects node types
// without Next/Prev fields.
func TestWriterListRequiresLinks(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, writerCatalog(t), arena.New(), SaveOptions{})

	w.WriteStructList("wtVertex", arena.ListBase{First: arena.Address(1)})
	if err := w.Close(); !errors.Is(err, ErrNoListLinks) {
		t.Errorf("Close error = %v, want ErrNoListLinks", err)
	}
}

// TestWriterListCycle verifies a list whose links loop back terminates,
// writing each node once.
func TestWriterListCycle(t *testing.T) {
	var out bytes.Buffer
	cat := writerCatalog(t)
	ar := arena.New()

	n1 := &wtNode{Value: 1}
	n2 := &wtNode{Value: 2}
	a1, a2 := ar.Put(n1), ar.Put(n2)
	n1.Next = a2
	n2.Prev, n2.Next = a1, a1 // corrupted link back to the head

	w := NewWriter(&out, cat, ar, SaveOptions{})
	w.WriteStructList("wtNode", arena.ListBase{First: a1, Last: a2})

	desc := cat.ByName("wtNode")
	if want := 2 * (blockHeaderSize + desc.Size); w.blocks.Len() != want {
		t.Errorf("stream holds %d bytes, want two blocks of %d", w.blocks.Len(), blockHeaderSize+desc.Size)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

// TestWriterCloseTwice verifies a session cannot be reused.
func TestWriterCloseTwice(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out, writerCatalog(t), arena.New(), SaveOptions{})

	if err := w.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := w.Close(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second Close error = %v, want ErrSessionClosed", err)
	}
}
