package cellgraph

import (
	"errors"
	"fmt"
	"slices"
)

// Entry is one named value of a Group. Build entries with CellEntry,
// InitEntry and ComputedEntry.
type Entry interface {
	EntryName() string
	declare(g *Group) (handle, error)
}

type cellEntry[T any] struct {
	name    string
	initial T
	init    func(g *Group) (T, error)
	equals  EqualFunc[T]
}

func (ce *cellEntry[T]) EntryName() string {
	return ce.name
}

func (ce *cellEntry[T]) declare(g *Group) (handle, error) {
	v := ce.initial
	if ce.init != nil {
		var err error
		g.e.Untracked(func() {
			v, err = ce.init(g)
		})
		if err != nil {
			return nil, fmt.Errorf("cellgraph: init %q: %w", ce.name, err)
		}
	}
	c := NewCell(g.e, v).WithName(ce.name)
	if ce.equals != nil {
		c.WithEquals(ce.equals)
	}
	return c, nil
}

// CellEntry declares a primitive entry holding initial.
func CellEntry[T any](name string, initial T, equals ...EqualFunc[T]) Entry {
	return &cellEntry[T]{name: name, initial: initial, equals: firstEqual(equals)}
}

// InitEntry declares a primitive entry whose initial value is computed from
// entries declared before it. The initializer runs once; it does not track, so
// later changes to those entries do not touch this one.
func InitEntry[T any](name string, init func(g *Group) (T, error), equals ...EqualFunc[T]) Entry {
	return &cellEntry[T]{name: name, init: init, equals: firstEqual(equals)}
}

type computedEntry[T any] struct {
	name   string
	fn     func(g *Group) (T, error)
	equals EqualFunc[T]
}

func (ce *computedEntry[T]) EntryName() string {
	return ce.name
}

func (ce *computedEntry[T]) declare(g *Group) (handle, error) {
	c := NewComputation(g.e, func() (T, error) {
		return ce.fn(g)
	}).WithName(ce.name)
	if ce.equals != nil {
		c.WithEquals(ce.equals)
	}
	if _, err := c.Result(); err != nil {
		c.Dispose()
		return nil, err
	}
	return c, nil
}

// ComputedEntry declares a derived entry. fn reads other entries with Read or
// through the typed lookups; those reads are tracked.
func ComputedEntry[T any](name string, fn func(g *Group) (T, error), equals ...EqualFunc[T]) Entry {
	return &computedEntry[T]{name: name, fn: fn, equals: firstEqual(equals)}
}

func firstEqual[T any](equals []EqualFunc[T]) EqualFunc[T] {
	if len(equals) == 0 {
		return nil
	}
	return equals[0]
}

// Group is an ordered set of named entries declared together, the unit a root
// observer subscribes to.
type Group struct {
	e *Engine

	names   []string
	handles []handle
	byName  map[string]handle

	subs     []*Subscription
	disposed bool
}

// Declare creates the entries in order. Each one is evaluated immediately, so
// initializers and computed entries can read any entry declared before them.
// If any entry fails, everything created so far is disposed.
func (e *Engine) Declare(entries ...Entry) (*Group, error) {
	g := &Group{
		e:      e,
		byName: make(map[string]handle, len(entries)),
	}
	for i, entry := range entries {
		name := entry.EntryName()
		if name == "" {
			g.teardown()
			return nil, fmt.Errorf("cellgraph: entry %d has no name", i)
		}
		if _, ok := g.byName[name]; ok {
			g.teardown()
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, name)
		}
		h, err := entry.declare(g)
		if err != nil {
			g.teardown()
			return nil, err
		}
		g.names = append(g.names, name)
		g.handles = append(g.handles, h)
		g.byName[name] = h
	}
	e.logger.Debug("group declared", "entries", g.names)
	return g, nil
}

// Names returns the entry names in declaration order.
func (g *Group) Names() []string {
	return slices.Clone(g.names)
}

func (g *Group) lookup(name string) (handle, error) {
	if g.disposed {
		return nil, fmt.Errorf("%w: group entry %q", ErrUseAfterDispose, name)
	}
	h, ok := g.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntry, name)
	}
	return h, nil
}

func CellOf[T any](g *Group, name string) (*Cell[T], error) {
	h, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	c, ok := h.(*Cell[T])
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want %T", ErrEntryType, name, h, c)
	}
	return c, nil
}

func ComputationOf[T any](g *Group, name string) (*Computation[T], error) {
	h, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	c, ok := h.(*Computation[T])
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want %T", ErrEntryType, name, h, c)
	}
	return c, nil
}

// ReaderOf returns any entry holding a T, cell or computation.
func ReaderOf[T any](g *Group, name string) (Reader[T], error) {
	h, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	r, ok := h.(Reader[T])
	if !ok {
		var zero T
		return nil, fmt.Errorf("%w: %q is %T, want a reader of %T", ErrEntryType, name, h, zero)
	}
	return r, nil
}

// Read is a tracked read of an entry. It panics if the entry does not exist or
// holds another type; inside a computation that panic becomes its error.
func Read[T any](g *Group, name string) T {
	r, err := ReaderOf[T](g, name)
	if err != nil {
		panic(err)
	}
	return r.Get()
}

// changedSince lists, in declaration order, the entries whose revision moved
// past epoch.
func (g *Group) changedSince(epoch uint64) []string {
	var changed []string
	for i, h := range g.handles {
		n := h.base()
		if !n.disposed && n.revision > epoch {
			changed = append(changed, g.names[i])
		}
	}
	return changed
}

// ChangeFunc receives the names of the entries that changed during a flush,
// in declaration order.
type ChangeFunc func(changed []string)

// Observe registers fn to run once after every flush that changes at least one
// entry of the group.
func (g *Group) Observe(fn ChangeFunc) (*Subscription, error) {
	if g.disposed {
		return nil, fmt.Errorf("%w: observe group", ErrUseAfterDispose)
	}
	if fn == nil {
		return nil, errors.New("cellgraph: nil ChangeFunc")
	}
	g.e.lastSub++
	sub := &Subscription{id: g.e.lastSub, group: g, fn: fn}
	for _, h := range g.handles {
		h.base().sinks.Add(sub)
	}
	g.subs = append(g.subs, sub)
	g.e.logger.Debug("observer attached", "id", sub.id, "entries", len(g.handles))
	return sub, nil
}

// Dispose disposes every subscription and every entry of the group, last
// declared first.
func (g *Group) Dispose() error {
	if g.disposed {
		return fmt.Errorf("%w: dispose group", ErrUseAfterDispose)
	}
	for _, sub := range g.subs {
		sub.disposed = true
	}
	g.subs = nil
	g.teardown()
	return nil
}

func (g *Group) teardown() {
	g.disposed = true
	for i := len(g.handles) - 1; i >= 0; i-- {
		if n := g.handles[i].base(); !n.disposed {
			g.e.dispose(n)
		}
	}
}

// Subscription is the binding between a Group and one root observer.
type Subscription struct {
	id       uint64
	group    *Group
	fn       ChangeFunc
	disposed bool
}

func (s *Subscription) active() bool {
	return !s.disposed && !s.group.disposed
}

// Dispose stops notifications. A subscription disposed during a flush is not
// notified for that flush. Disposing the last subscription of a group also
// disposes the group.
func (s *Subscription) Dispose() error {
	if s.disposed {
		return fmt.Errorf("%w: subscription %d", ErrUseAfterDispose, s.id)
	}
	s.disposed = true
	g := s.group
	if g.disposed {
		return nil
	}
	for _, h := range g.handles {
		h.base().sinks.Remove(s)
	}
	g.subs = slices.DeleteFunc(g.subs, func(x *Subscription) bool {
		return x == s
	})
	if len(g.subs) == 0 {
		g.teardown()
	}
	return nil
}
