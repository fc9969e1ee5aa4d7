package codecache

// The lookup tree indexes committed regions by native start address so a
// program counter can be mapped back to its owning Method in O(log n). It
// is a standard red-black tree keyed on start address, built with plain
// CLRS-style bottom-up insertion: root black, no red node with a red
// child, equal black-height on every root-to-leaf path.
//
// A single nilNode sentinel stands in for every leaf; it is always black
// and never compares less than a real key, so a search that reaches it
// has run off the indexed range.

func (c *Cache) initTree() {
	c.nilNode = &Method{color: black}
	c.nilNode.left = c.nilNode
	c.nilNode.right = c.nilNode
	c.nilNode.parent = c.nilNode
	c.root = c.nilNode
}

func (c *Cache) rotateLeft(x *Method) {
	y := x.right
	x.right = y.left
	if y.left != c.nilNode {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == c.nilNode:
		c.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (c *Cache) rotateRight(x *Method) {
	y := x.left
	x.left = y.right
	if y.right != c.nilNode {
		y.right.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == c.nilNode:
		c.root = y
	case x == x.parent.right:
		x.parent.right = y
	default:
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}

// insertMethod adds m, keyed by m.start, to the lookup tree. A region
// sharing a start address with one already present is silently dropped —
// committed regions never overlap, so this only guards against a caller
// bug rather than a real code path (matches the original cache's silent
// duplicate rejection).
func (c *Cache) insertMethod(m *Method) {
	m.left = c.nilNode
	m.right = c.nilNode
	m.color = red

	var parent = c.nilNode
	cur := c.root
	for cur != c.nilNode {
		parent = cur
		switch {
		case m.start < cur.start:
			cur = cur.left
		case m.start > cur.start:
			cur = cur.right
		default:
			return // duplicate key, drop
		}
	}
	m.parent = parent
	switch {
	case parent == c.nilNode:
		c.root = m
	case m.start < parent.start:
		parent.left = m
	default:
		parent.right = m
	}
	c.insertFixup(m)
}

func (c *Cache) insertFixup(z *Method) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
				continue
			}
			if z == z.parent.right {
				z = z.parent
				c.rotateLeft(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			c.rotateRight(z.parent.parent)
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
				continue
			}
			if z == z.parent.left {
				z = z.parent
				c.rotateRight(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			c.rotateLeft(z.parent.parent)
		}
	}
	c.root.color = black
}

// lookupPC returns the region whose [start, end) range contains pc, or nil
// if none does.
func (c *Cache) lookupPC(pc uintptr) *Method {
	cur := c.root
	for cur != c.nilNode {
		switch {
		case pc < cur.start:
			cur = cur.left
		case pc >= cur.end:
			cur = cur.right
		default:
			return cur
		}
	}
	return nil
}

// lookupExact returns the region whose start address is exactly addr, or
// nil if none does. Used by the debug-offset queries, which key off the
// region's own start rather than an arbitrary contained pc.
func (c *Cache) lookupExact(addr uintptr) *Method {
	m := c.lookupPC(addr)
	if m == nil || m.start != addr {
		return nil
	}
	return m
}

// inOrder returns every committed region in ascending start-address order.
func (c *Cache) inOrder() []*Method {
	var out []*Method
	var walk func(*Method)
	walk = func(m *Method) {
		if m == c.nilNode {
			return
		}
		walk(m.left)
		out = append(out, m)
		walk(m.right)
	}
	walk(c.root)
	return out
}

// listFunctions enumerates distinct functions in ascending start-address
// order, collapsing consecutive regions that share the same Func into one
// entry.
func (c *Cache) listFunctions() []Func {
	var out []Func
	var prev Func
	for _, m := range c.inOrder() {
		if m.fn != prev {
			out = append(out, m.fn)
			prev = m.fn
		}
	}
	return out
}
