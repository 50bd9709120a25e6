package arena

// ListBase is the header of a doubly-linked list of homogeneous nodes. Node
// structs declare their own Next and Prev fields as Ptr; ListBase holds the
// addresses of the first and last node.
type ListBase struct {
	First Ptr
	Last  Ptr
}

// IsEmpty reports whether the list has no nodes.
func (lb *ListBase) IsEmpty() bool {
	return lb.First == Nil
}

// Clear resets both ends to the null token.
func (lb *ListBase) Clear() {
	lb.First = Nil
	lb.Last = Nil
}
