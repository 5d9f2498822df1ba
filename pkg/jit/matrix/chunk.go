package matrix

// cursor walks one outer dimension. off holds one byte offset per operand.
type cursor struct {
	off    []int64
	stride []int64
	length int64
	index  int64
}

// Chunks enumerates the 2D slabs of matrices with more than two dimensions.
// Dimensions 0 and 1 form each slab; every outer dimension gets a cursor.
// The cursors advance like an odometer, innermost first, so slabs come out
// in the order of nested loops running from the outermost dimension in.
type Chunks struct {
	cursors  []cursor
	operands int
	started  bool
	done     bool
}

// NewChunks builds a chunk cursor over dims. strides holds each operand's
// byte stride per dimension, at least len(dims) long.
func NewChunks(dims []int64, strides ...[]int64) *Chunks {
	c := &Chunks{operands: len(strides)}
	for _, d := range dims {
		if d <= 0 {
			c.done = true
			return c
		}
	}
	for d := 2; d < len(dims); d++ {
		cur := cursor{
			off:    make([]int64, len(strides)),
			stride: make([]int64, len(strides)),
			length: dims[d],
		}
		for op, s := range strides {
			cur.stride[op] = s[d]
		}
		c.cursors = append(c.cursors, cur)
	}
	return c
}

// Next moves to the next slab. It must be called before the first slab.
func (c *Chunks) Next() bool {
	if c.done {
		return false
	}
	if !c.started {
		c.started = true
		return true
	}
	for k := range c.cursors {
		cur := &c.cursors[k]
		cur.index++
		for op := range cur.off {
			cur.off[op] += cur.stride[op]
		}
		if cur.index < cur.length {
			// Carry: every inner cursor restarts where this one now is.
			for j := 0; j < k; j++ {
				inner := &c.cursors[j]
				inner.index = 0
				copy(inner.off, cur.off)
			}
			return true
		}
	}
	c.done = true
	return false
}

// Offset returns the byte offset of the current slab for an operand.
func (c *Chunks) Offset(operand int) int64 {
	if len(c.cursors) == 0 {
		return 0
	}
	return c.cursors[0].off[operand]
}

// Index returns the outer dimension indexes of the current slab, innermost
// first.
func (c *Chunks) Index() []int64 {
	out := make([]int64, len(c.cursors))
	for i, cur := range c.cursors {
		out[i] = cur.index
	}
	return out
}
