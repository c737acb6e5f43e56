package hierarchy

// ClosureSet is the deduplicated set of a type and all of its transitive
// supertypes. Iteration order is depth-first pre-order: the type itself, the
// closure of its superclass, then the closure of each interface in
// declaration order.
type ClosureSet struct {
	types []*TypeDescriptor
	index map[string]struct{}
}

// ClosureOf computes the closure of t. A nil t yields an empty set.
//
// The descriptor graph must be acyclic; a Builder guarantees this. Already
// visited identities are skipped, which only matters for diamonds.
func ClosureOf(t *TypeDescriptor) ClosureSet {
	c := ClosureSet{index: make(map[string]struct{})}
	c.add(t)
	return c
}

func (c *ClosureSet) add(t *TypeDescriptor) {
	if t == nil {
		return
	}
	if _, seen := c.index[t.name]; seen {
		return
	}
	c.index[t.name] = struct{}{}
	c.types = append(c.types, t)

	c.add(t.superclass)
	for _, iface := range t.interfaces {
		c.add(iface)
	}
}

// Len returns the number of types in the set.
func (c ClosureSet) Len() int { return len(c.types) }

// Contains reports whether a type with the given qualified name is in the set.
func (c ClosureSet) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Types returns the types in closure order.
func (c ClosureSet) Types() []*TypeDescriptor {
	return append([]*TypeDescriptor(nil), c.types...)
}

// Names returns the qualified names in closure order.
func (c ClosureSet) Names() []string {
	names := make([]string, len(c.types))
	for i, t := range c.types {
		names[i] = t.name
	}
	return names
}
