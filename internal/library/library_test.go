package library

import (
	"errors"
	"strings"
	"testing"

	"github.com/ShadowGHO/strata/internal/arena"
)

type asset struct {
	ID   ID
	Data arena.Ptr
}

type notAnAsset struct {
	Value int32
}

// TestIDName verifies fixed-width name handling including truncation.
func TestIDName(t *testing.T) {
	var id ID
	id.SetName("Cube")
	if got := id.NameString(); got != "Cube" {
		t.Errorf("NameString() = %q, want %q", got, "Cube")
	}

	long := strings.Repeat("x", 2*IDNameLen)
	id.SetName(long)
	if got := id.NameString(); len(got) != IDNameLen-1 {
		t.Errorf("truncated name length = %d, want %d", len(got), IDNameLen-1)
	}
}

// TestIDOf verifies embedded-header discovery.
func TestIDOf(t *testing.T) {
	a := &asset{}
	a.ID.SetName("Mesh")

	id, ok := IDOf(a)
	if !ok {
		t.Fatalf("IDOf(asset) failed")
	}
	if id.NameString() != "Mesh" {
		t.Errorf("IDOf returned wrong header: %q", id.NameString())
	}

	// Mutation through the returned header must be visible on the asset.
	id.Flag = 7
	if a.ID.Flag != 7 {
		t.Errorf("IDOf returned a copy, not the embedded header")
	}

	if _, ok := IDOf(&notAnAsset{}); ok {
		t.Errorf("IDOf accepted a struct without an ID header")
	}
	if _, ok := IDOf(nil); ok {
		t.Errorf("IDOf accepted nil")
	}
	if _, ok := IDOf(asset{}); ok {
		t.Errorf("IDOf accepted a non-pointer value")
	}
}

// TestMainSingleton verifies the per-(library, name) singleton invariant.
func TestMainSingleton(t *testing.T) {
	m := NewMain()

	a := &asset{}
	a.ID.SetName("Cube")
	b := &asset{}
	b.ID.SetName("Cube")
	c := &asset{}
	c.ID.SetName("Cube")
	c.ID.Lib = arena.Address(9) // same name, different library

	if _, err := m.Add("asset", arena.Address(1), a); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if _, err := m.Add("asset", arena.Address(2), b); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate Add error = %v, want ErrDuplicateID", err)
	}
	if _, err := m.Add("asset", arena.Address(3), c); err != nil {
		t.Errorf("Add with distinct library failed: %v", err)
	}

	if e := m.ByName(arena.Nil, "Cube"); e == nil || e.Addr != arena.Address(1) {
		t.Errorf("ByName(local, Cube) = %v", e)
	}
	if e := m.ByName(arena.Address(9), "Cube"); e == nil || e.Addr != arena.Address(3) {
		t.Errorf("ByName(lib 9, Cube) = %v", e)
	}
	if e := m.ByAddress(arena.Address(1)); e == nil || e.Obj != any(a) {
		t.Errorf("ByAddress(1) = %v", e)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

// TestLibraryFilepath verifies fixed-width path handling.
func TestLibraryFilepath(t *testing.T) {
	var lib Library
	lib.SetFilepath("//assets/characters.blend")
	if got := lib.FilepathString(); got != "//assets/characters.blend" {
		t.Errorf("FilepathString() = %q", got)
	}
	lib.SetFilepath(strings.Repeat("p", 400))
	if got := lib.FilepathString(); len(got) != 191 {
		t.Errorf("truncated path length = %d, want 191", len(got))
	}
}

// TestRefreshSessionUUID verifies a fresh runtime identifier per call.
func TestRefreshSessionUUID(t *testing.T) {
	var id ID
	id.RefreshSessionUUID()
	first := id.SessionUUID
	if first == "" {
		t.Fatalf("SessionUUID empty after refresh")
	}
	id.RefreshSessionUUID()
	if id.SessionUUID == first {
		t.Errorf("SessionUUID not regenerated")
	}
}
