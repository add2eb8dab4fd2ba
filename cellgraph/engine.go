package cellgraph

import (
	"github.com/hashicorp/go-hclog"
)

const DefaultMaxPasses = 100

type Option func(*Engine)

// WithName names the engine; the name prefixes its logger.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

func WithLogger(logger hclog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxPasses bounds how many passes a single flush may run when
// computations keep writing cells.
func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPasses = n
		}
	}
}

type Stats struct {
	Flushes     uint64
	Passes      uint64
	Evaluations uint64
	Failures    uint64
}

// Engine owns a reactive graph. It is not safe for concurrent use: every cell,
// computation and group created from an Engine must be used from one goroutine
// at a time. Separate engines never share state.
type Engine struct {
	name      string
	logger    hclog.Logger
	maxPasses int

	tracker tracker
	sched   scheduler

	clock   uint64
	lastID  uint64
	nodes   map[uint64]*node
	lastSub uint64

	batchDepth int
	stats      Stats
}

func New(opts ...Option) *Engine {
	e := &Engine{
		name:      "cellgraph",
		maxPasses: DefaultMaxPasses,
		nodes:     map[uint64]*node{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = hclog.NewNullLogger()
	}
	e.logger = e.logger.Named(e.name)
	e.sched.e = e
	return e
}

func (e *Engine) Name() string {
	return e.name
}

func (e *Engine) Stats() Stats {
	return e.stats
}

// Len returns the number of live cells and computations.
func (e *Engine) Len() int {
	return len(e.nodes)
}

func (e *Engine) tick() uint64 {
	e.clock++
	return e.clock
}

func (e *Engine) register(n *node) {
	e.lastID++
	n.e = e
	n.id = e.lastID
	e.nodes[n.id] = n
}

func (e *Engine) unregister(n *node) {
	delete(e.nodes, n.id)
}

// StartBatch defers flushing until the matching EndBatch. Batches nest; only
// the outermost EndBatch flushes.
func (e *Engine) StartBatch() {
	e.batchDepth++
}

func (e *Engine) EndBatch() error {
	if e.batchDepth == 0 {
		panic("cellgraph: EndBatch without StartBatch")
	}
	e.batchDepth--
	if e.batchDepth > 0 || e.sched.flushing {
		return nil
	}
	return e.sched.flush()
}

// Batch runs fn with flushing deferred, then flushes once. Writing the same
// cell several times inside fn produces a single notification that reflects
// the final value.
func (e *Engine) Batch(fn func()) error {
	e.StartBatch()
	done := false
	defer func() {
		if done {
			return
		}
		e.batchDepth--
		if e.batchDepth == 0 && !e.sched.flushing && !e.tracker.evaluating() {
			// fn panicked; its writes stand but nobody is notified of them
			e.sched.abandon()
		}
	}()
	fn()
	done = true
	return e.EndBatch()
}

// Untracked runs fn without recording any reads as dependencies of the
// running computation.
func (e *Engine) Untracked(fn func()) {
	f := e.tracker.push(nil)
	defer e.tracker.pop(f)
	fn()
}

// Flush settles any pending work. Writes normally flush on their own; this is
// for hosts that want to force pending batched writes through.
func (e *Engine) Flush() error {
	if e.sched.flushing || e.batchDepth > 0 {
		return nil
	}
	return e.sched.flush()
}

// dispose tears n out of the graph. Computations that still list n as a
// dependency notice on their next settle and rerun.
func (e *Engine) dispose(n *node) {
	n.disposed = true
	for _, ed := range n.deps {
		ed.dep.dependents.Remove(n)
	}
	n.deps = nil
	n.dependents.Clear()
	n.sinks.Clear()
	n.err = nil
	e.sched.forget(n)
	e.unregister(n)
	e.logger.Debug("disposed", "kind", n.kind, "name", n.label())
}
