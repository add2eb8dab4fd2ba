package cellgraph

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

type CacheState uint8

const (
	CacheClean CacheState = iota // cached value is valid
	CacheCheck                   // a dependency might have changed, verify revisions before rerunning
	CacheDirty                   // must rerun: never evaluated, or the last run failed
)

func (s CacheState) String() string {
	switch s {
	case CacheClean:
		return "clean"
	case CacheCheck:
		return "check"
	case CacheDirty:
		return "dirty"
	default:
		return fmt.Sprintf("CacheState(%d)", uint8(s))
	}
}

type NodeKind uint8

const (
	KindCell NodeKind = iota
	KindComputation
)

func (k NodeKind) String() string {
	switch k {
	case KindCell:
		return "cell"
	case KindComputation:
		return "computation"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// Reader is anything whose value can be read, and tracked, from inside a
// computation.
type Reader[T any] interface {
	Get() T
}

// EqualFunc reports whether two values are equal for propagation purposes.
type EqualFunc[T any] func(prev, next T) bool

// edge is one entry of a computation's dependency list. rev is the revision of
// dep observed when it was read.
type edge struct {
	dep *node
	rev uint64
}

// runner is implemented by Computation[T]; cells have no runner.
type runner interface {
	run() (changed bool, err error)
	// keepBase remembers the current value as the one the open cycle started
	// from; atBase reports whether the value is back to it.
	keepBase()
	atBase() bool
}

type node struct {
	e    *Engine
	id   uint64
	name string
	kind NodeKind

	state    CacheState
	height   int
	revision uint64

	// generation is bumped every time the node is invalidated.
	generation uint64
	// evalPass is the scheduler pass of the last evaluation attempt, evalGen
	// the generation it ran at and passEvals how often it ran in that pass.
	evalPass  uint64
	evalGen   uint64
	passEvals int

	// baseCycle is the write cycle baseRev was recorded in. A computation that
	// settles back to its value from the start of the cycle gets baseRev back.
	baseCycle uint64
	baseRev   uint64

	deps       []edge
	dependents mapset.Set[*node]
	sinks      mapset.Set[*Subscription]

	runner    runner
	err       error
	computing bool
	queued    bool
	disposed  bool
}

func (n *node) label() string {
	if n.name != "" {
		return n.name
	}
	return fmt.Sprintf("%s#%d", n.kind, n.id)
}

func (n *node) base() *node {
	return n
}

// handle is implemented by *Cell[T] and *Computation[T] so groups can hold
// entries of mixed types.
type handle interface {
	base() *node
}
