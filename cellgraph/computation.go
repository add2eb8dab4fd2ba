package cellgraph

import "fmt"

// Computation is a derived value. Its function is rerun whenever something it
// read during its previous run changes; the set of dependencies is rediscovered
// on every run.
type Computation[T any] struct {
	node

	fn        func() (T, error)
	value     T
	equals    EqualFunc[T]
	evaluated bool

	baseValue T
	hasBase   bool
}

// NewComputation declares a computation. The function does not run until the
// computation is first read, or until it is part of a declared group.
func NewComputation[T any](e *Engine, fn func() (T, error)) *Computation[T] {
	c := &Computation[T]{fn: fn}
	c.node.init(e, KindComputation, c)
	c.state = CacheDirty
	return c
}

// Memo is NewComputation for functions that cannot fail.
func Memo[T any](e *Engine, fn func() T) *Computation[T] {
	return NewComputation(e, func() (T, error) {
		return fn(), nil
	})
}

func (c *Computation[T]) WithName(name string) *Computation[T] {
	c.name = name
	return c
}

func (c *Computation[T]) WithEquals(fn EqualFunc[T]) *Computation[T] {
	c.equals = fn
	return c
}

func (c *Computation[T]) Name() string {
	return c.label()
}

// Get settles the computation if needed and returns its value. Inside another
// computation the read is tracked. If the last run failed the last good value is
// returned; see Result and Err.
func (c *Computation[T]) Get() T {
	c.prepare("get")
	c.e.tracker.record(&c.node)
	return c.value
}

func (c *Computation[T]) Peek() T {
	c.prepare("peek")
	return c.value
}

// Result is Get with the error of the most recent run instead of panicking on
// disposal or cycles.
func (c *Computation[T]) Result() (T, error) {
	if c.disposed {
		return c.value, disposedErr(&c.node, "get")
	}
	if c.computing {
		return c.value, &CycleError{Path: c.e.tracker.path(&c.node)}
	}
	if c.state != CacheClean {
		c.e.sched.settleOnRead(&c.node)
	}
	c.e.tracker.record(&c.node)
	return c.value, c.err
}

// Err returns the error of the most recent run, nil if it succeeded.
func (c *Computation[T]) Err() error {
	return c.err
}

func (c *Computation[T]) State() CacheState {
	return c.state
}

func (c *Computation[T]) Dispose() error {
	if c.disposed {
		return disposedErr(&c.node, "dispose")
	}
	c.e.dispose(&c.node)
	return nil
}

func (c *Computation[T]) prepare(op string) {
	if c.disposed {
		panic(disposedErr(&c.node, op))
	}
	if c.computing {
		panic(&cyclePanic{
			origin: &c.node,
			err:    &CycleError{Path: c.e.tracker.path(&c.node)},
		})
	}
	if c.state != CacheClean {
		c.e.sched.settleOnRead(&c.node)
	}
}

func (c *Computation[T]) run() (changed bool, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if cp, ok := r.(*cyclePanic); ok {
			if cp.origin != &c.node {
				panic(r)
			}
			changed, err = false, cp.err
			return
		}
		if _, ok := r.(invariantError); ok {
			panic(r)
		}
		ce := &ComputationError{Name: c.label(), Panic: r}
		if rerr, ok := r.(error); ok {
			ce.Err = rerr
		} else {
			ce.Err = fmt.Errorf("panic: %v", r)
		}
		changed, err = false, ce
	}()

	v, err := c.fn()
	if err != nil {
		return false, &ComputationError{Name: c.label(), Err: err}
	}
	if c.evaluated && c.equal(c.value, v) {
		return false, nil
	}
	c.value = v
	c.evaluated = true
	return true, nil
}

func (c *Computation[T]) keepBase() {
	c.baseValue, c.hasBase = c.value, c.evaluated
}

func (c *Computation[T]) atBase() bool {
	return c.hasBase && c.equal(c.baseValue, c.value)
}

func (c *Computation[T]) equal(prev, next T) bool {
	if c.equals != nil {
		return c.equals(prev, next)
	}
	return defaultEqual(prev, next)
}
