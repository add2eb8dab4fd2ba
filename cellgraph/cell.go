package cellgraph

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Cell is a primitive, externally writable reactive value.
type Cell[T any] struct {
	node

	value  T
	equals EqualFunc[T]
}

func NewCell[T any](e *Engine, initial T) *Cell[T] {
	c := &Cell[T]{value: initial}
	c.node.init(e, KindCell, nil)
	c.revision = e.tick()
	return c
}

func (c *Cell[T]) WithName(name string) *Cell[T] {
	c.name = name
	return c
}

// WithEquals replaces the default equality policy used to decide whether a
// write is a change.
func (c *Cell[T]) WithEquals(fn EqualFunc[T]) *Cell[T] {
	c.equals = fn
	return c
}

func (c *Cell[T]) Name() string {
	return c.label()
}

// Get returns the current value and, when called from a running computation,
// records the cell as one of its dependencies.
func (c *Cell[T]) Get() T {
	if c.disposed {
		panic(disposedErr(&c.node, "get"))
	}
	c.e.tracker.record(&c.node)
	return c.value
}

// Peek returns the current value without tracking.
func (c *Cell[T]) Peek() T {
	if c.disposed {
		panic(disposedErr(&c.node, "peek"))
	}
	return c.value
}

// Set writes v. Writes equal to the current value are ignored. Outside a batch
// the write flushes before Set returns and any computation failures from that
// flush are returned. Writes made while a computation is running, or while
// observers are being notified, are applied once the current pass completes.
func (c *Cell[T]) Set(v T) error {
	if c.disposed {
		return disposedErr(&c.node, "set")
	}
	if c.e.tracker.evaluating() || c.e.sched.flushing {
		c.e.sched.deferWrite(func() error {
			if c.disposed {
				return disposedErr(&c.node, "set")
			}
			c.write(v)
			return nil
		})
		return nil
	}
	c.write(v)
	if c.e.batchDepth > 0 {
		return nil
	}
	return c.e.sched.flush()
}

// Update sets the cell to fn applied to its current value.
func (c *Cell[T]) Update(fn func(T) T) error {
	if c.disposed {
		return disposedErr(&c.node, "set")
	}
	return c.Set(fn(c.value))
}

func (c *Cell[T]) Dispose() error {
	if c.disposed {
		return disposedErr(&c.node, "dispose")
	}
	c.e.dispose(&c.node)
	return nil
}

func (c *Cell[T]) write(v T) {
	if c.equal(c.value, v) {
		return
	}
	base, baseRev := c.value, c.revision
	c.e.sched.pend(&c.node, baseRev, func() bool {
		return c.equal(base, c.value)
	})
	c.value = v
	c.revision = c.e.tick()
	c.e.sched.invalidate(&c.node)
}

func (c *Cell[T]) equal(prev, next T) bool {
	if c.equals != nil {
		return c.equals(prev, next)
	}
	return defaultEqual(prev, next)
}

func (n *node) init(e *Engine, kind NodeKind, r runner) {
	n.kind = kind
	n.runner = r
	n.dependents = mapset.NewThreadUnsafeSet[*node]()
	n.sinks = mapset.NewThreadUnsafeSet[*Subscription]()
	e.register(n)
}
