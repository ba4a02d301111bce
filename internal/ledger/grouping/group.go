package grouping

// KeyFunc extracts the grouping key for an item.
type KeyFunc[T any] func(T) Key

// Group is a node of the grouping tree. Items holds every member in input
// order, including those also reachable through Children.
type Group[T any] struct {
	Key      Key
	Label    string
	Depth    int
	Items    []T
	Children []*Group[T]

	index map[string]*Group[T]
}

// IsLeaf reports whether the group has no sub-groups.
func (g *Group[T]) IsLeaf() bool { return len(g.Children) == 0 }

// GroupBy partitions items using the key functions, outermost first. Groups are
// emitted in first-seen order and the pass is linear in len(items).
func GroupBy[T any](items []T, keys ...KeyFunc[T]) []*Group[T] {
	if len(keys) == 0 {
		return nil
	}
	root := &Group[T]{Depth: -1}
	for _, item := range items {
		parent := root
		for depth, keyFn := range keys {
			parent = parent.child(keyFn(item), depth)
			parent.Items = append(parent.Items, item)
		}
	}
	for _, g := range root.Children {
		g.dropIndex()
	}
	return root.Children
}

func (g *Group[T]) child(key Key, depth int) *Group[T] {
	if g.index == nil {
		g.index = make(map[string]*Group[T])
	}
	id := key.ID()
	if existing, ok := g.index[id]; ok {
		return existing
	}
	grp := &Group[T]{Key: key, Label: key.Label(), Depth: depth}
	g.index[id] = grp
	g.Children = append(g.Children, grp)
	return grp
}

func (g *Group[T]) dropIndex() {
	g.index = nil
	for _, c := range g.Children {
		c.dropIndex()
	}
}

// Walk visits groups depth first, parents before children. Returning false
// from fn skips the group's children.
func Walk[T any](groups []*Group[T], fn func(*Group[T]) bool) {
	for _, g := range groups {
		if fn(g) {
			Walk(g.Children, fn)
		}
	}
}

// Leaves returns the innermost groups in order.
func Leaves[T any](groups []*Group[T]) []*Group[T] {
	var out []*Group[T]
	Walk(groups, func(g *Group[T]) bool {
		if g.IsLeaf() {
			out = append(out, g)
		}
		return true
	})
	return out
}

// Find returns the top-level group matching key.
func Find[T any](groups []*Group[T], key Key) (*Group[T], bool) {
	id := key.ID()
	for _, g := range groups {
		if g.Key.ID() == id {
			return g, true
		}
	}
	return nil, false
}
