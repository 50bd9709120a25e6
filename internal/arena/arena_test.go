package arena

import "testing"

// TestArenaPutLookup verifies handle assignment and dereferencing.
func TestArenaPutLookup(t *testing.T) {
	a := New()

	x := &struct{ V int }{V: 1}
	y := &struct{ V int }{V: 2}

	ax := a.Put(x)
	ay := a.Put(y)

	if ax == Nil || ay == Nil {
		t.Fatalf("Put returned the null token")
	}
	if ax == ay {
		t.Fatalf("Put returned the same address twice: %d", ax)
	}
	if got := a.Lookup(ax); got != any(x) {
		t.Errorf("Lookup(%d) = %v, want %v", ax, got, x)
	}
	if got := a.Lookup(ay); got != any(y) {
		t.Errorf("Lookup(%d) = %v, want %v", ay, got, y)
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}
}

// TestArenaNullSafety verifies the null token and unknown addresses
// dereference to nil rather than panicking.
func TestArenaNullSafety(t *testing.T) {
	a := New()
	if got := a.Lookup(Nil); got != nil {
		t.Errorf("Lookup(Nil) = %v, want nil", got)
	}
	if got := a.Lookup(Address(12345)); got != nil {
		t.Errorf("Lookup(unknown) = %v, want nil", got)
	}
}

// TestListBase verifies the empty-list helpers.
func TestListBase(t *testing.T) {
	var lb ListBase
	if !lb.IsEmpty() {
		t.Errorf("zero ListBase should be empty")
	}
	lb.First = Address(1)
	lb.Last = Address(1)
	if lb.IsEmpty() {
		t.Errorf("non-empty ListBase reported empty")
	}
	lb.Clear()
	if lb.First != Nil || lb.Last != Nil {
		t.Errorf("Clear left %v", lb)
	}
}
