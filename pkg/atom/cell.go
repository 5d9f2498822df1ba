package atom

import (
	"math"
	"sync/atomic"
)

// Float64Cell is a float64 that can be shared between the main thread and
// the audio thread without locking.
type Float64Cell struct {
	bits atomic.Uint64
}

// NewFloat64Cell returns a cell holding v.
func NewFloat64Cell(v float64) *Float64Cell {
	c := &Float64Cell{}
	c.Set(v)
	return c
}

func (c *Float64Cell) Get() float64  { return math.Float64frombits(c.bits.Load()) }
func (c *Float64Cell) Set(v float64) { c.bits.Store(math.Float64bits(v)) }

// Float32Cell is the float32 form of Float64Cell.
type Float32Cell struct {
	bits atomic.Uint32
}

func (c *Float32Cell) Get() float32  { return math.Float32frombits(c.bits.Load()) }
func (c *Float32Cell) Set(v float32) { c.bits.Store(math.Float32bits(v)) }

// Int64Cell is an int64 shared across threads.
type Int64Cell struct {
	v atomic.Int64
}

// NewInt64Cell returns a cell holding v.
func NewInt64Cell(v int64) *Int64Cell {
	c := &Int64Cell{}
	c.v.Store(v)
	return c
}

func (c *Int64Cell) Get() int64  { return c.v.Load() }
func (c *Int64Cell) Set(v int64) { c.v.Store(v) }

// Add adds delta and returns the new value.
func (c *Int64Cell) Add(delta int64) int64 { return c.v.Add(delta) }
