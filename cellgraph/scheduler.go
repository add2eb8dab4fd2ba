package cellgraph

import (
	"cmp"
	"container/heap"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
)

// pendingWrite remembers the state a cell had before its first write of the
// current cycle, so writes that cancel out can be dropped at commit time.
type pendingWrite struct {
	n         *node
	baseRev   uint64
	unchanged func() bool
}

// scheduler turns cell writes into flushes. It is Idle unless flushing is set.
//
// A write marks every transitive dependent of the cell as check and queues it.
// A flush then runs one or more passes; each pass pops queued computations
// lowest height first and settles them. Settling a check computation settles
// its dependencies and only reruns it if one of their revisions moved, so a
// computation never sees a half updated input and runs at most once per pass.
// Writes made while a pass is running are deferred and start another pass.
// Observers are notified once after the last pass.
type scheduler struct {
	e *Engine

	flushing bool
	pass     uint64

	// open is true between the first write of a cycle and the end of the
	// flush that settles it. epoch is the engine clock before that first write;
	// anything with a revision above it changed during the cycle.
	open  bool
	epoch uint64
	cycle uint64

	queue    nodeHeap
	pending  []pendingWrite
	deferred []func() error
	errs     *multierror.Error
}

func (s *scheduler) pend(n *node, baseRev uint64, unchanged func() bool) {
	if !s.open {
		s.begin(s.e.clock)
	}
	for _, p := range s.pending {
		if p.n == n {
			return
		}
	}
	s.pending = append(s.pending, pendingWrite{n: n, baseRev: baseRev, unchanged: unchanged})
}

func (s *scheduler) begin(epoch uint64) {
	s.open = true
	s.epoch = epoch
	s.cycle++
}

func (s *scheduler) deferWrite(w func() error) {
	s.deferred = append(s.deferred, w)
}

// invalidate marks everything downstream of src as possibly stale.
func (s *scheduler) invalidate(src *node) {
	src.dependents.Each(func(d *node) bool {
		s.mark(d)
		return false
	})
}

func (s *scheduler) mark(n *node) {
	if n.disposed {
		return
	}
	n.generation++
	wasClean := n.state == CacheClean
	if wasClean {
		n.state = CacheCheck
	}
	if !n.queued {
		n.queued = true
		heap.Push(&s.queue, queueItem{n: n, height: n.height})
	} else if !wasClean {
		// already propagated when it left the clean state
		return
	}
	n.dependents.Each(func(d *node) bool {
		s.mark(d)
		return false
	})
}

func (s *scheduler) flush() error {
	if s.flushing {
		return nil
	}
	if !s.hasWork() {
		return nil
	}

	s.flushing = true
	s.e.stats.Flushes++
	passes := 0
	settled := false
	defer func() {
		s.flushing = false
		if !settled {
			// an observer panicked; its failures must not leak into the next flush
			s.errs = nil
		}
	}()

	for {
		touched := mapset.NewThreadUnsafeSet[*Subscription]()
		for {
			s.applyDeferred()
			if !s.open {
				break
			}
			if passes == s.e.maxPasses {
				s.abandon()
				s.errs = multierror.Append(s.errs, fmt.Errorf("%w after %d passes", ErrUnsettled, passes))
				settled = true
				return s.takeErrors()
			}
			passes++
			s.runPass(touched)
			if len(s.deferred) == 0 {
				break
			}
		}
		epoch := s.epoch
		s.open = false
		s.notify(touched, epoch)
		if !s.hasWork() {
			break
		}
	}

	s.e.logger.Trace("flush settled", "passes", passes, "evaluations", s.e.stats.Evaluations)
	settled = true
	return s.takeErrors()
}

func (s *scheduler) runPass(touched mapset.Set[*Subscription]) {
	s.pass++
	s.e.stats.Passes++
	s.e.logger.Trace("pass started", "pass", s.pass, "queued", s.queue.Len(), "writes", len(s.pending))

	pending := s.pending
	s.pending = nil
	for _, p := range pending {
		if !p.n.disposed && p.unchanged() {
			// every write since the cycle began cancelled out
			p.n.revision = p.baseRev
		}
	}

	for s.queue.Len() > 0 {
		n := heap.Pop(&s.queue).(queueItem).n
		n.queued = false
		if n.disposed {
			continue
		}
		s.settle(n)
		s.collect(n, touched)
	}

	for _, p := range pending {
		if !p.n.disposed {
			s.collect(p.n, touched)
		}
	}
}

func (s *scheduler) collect(n *node, touched mapset.Set[*Subscription]) {
	if n.revision <= s.epoch {
		return
	}
	n.sinks.Each(func(sub *Subscription) bool {
		touched.Add(sub)
		return false
	})
}

// notify runs after the last pass of a cycle. Observers may write cells or
// read computations; that work opens the next cycle.
func (s *scheduler) notify(touched mapset.Set[*Subscription], epoch uint64) {
	if touched.Cardinality() == 0 {
		return
	}
	subs := touched.ToSlice()
	slices.SortFunc(subs, func(a, b *Subscription) int {
		return cmp.Compare(a.id, b.id)
	})
	for _, sub := range subs {
		if !sub.active() {
			continue
		}
		changed := sub.group.changedSince(epoch)
		if len(changed) == 0 {
			continue
		}
		sub.fn(changed)
	}
}

// settle brings n up to date, rerunning it only when needed.
func (s *scheduler) settle(n *node) {
	if n.runner == nil || n.disposed || n.state == CacheClean {
		return
	}

	if n.state == CacheCheck {
		for _, ed := range n.deps {
			d := ed.dep
			if d.disposed {
				n.state = CacheDirty
				break
			}
			if d.computing {
				path := s.e.tracker.path(d)
				path = append(path[:len(path)-1], n.label(), d.label())
				panic(&cyclePanic{origin: d, err: &CycleError{Path: path}})
			}
			s.settle(d)
			if d.revision != ed.rev {
				n.state = CacheDirty
				break
			}
		}
		if n.state == CacheCheck {
			n.state = CacheClean
			return
		}
	}

	if s.flushing && n.evalPass == s.pass {
		switch {
		case n.err != nil:
			// already failed in this pass, retried on the next invalidation
			return
		case n.generation == n.evalGen:
			panic(invariantError(fmt.Sprintf("%s evaluated twice in pass %d", n.label(), s.pass)))
		case n.passEvals > 1:
			// something downstream keeps invalidating it again
			n.state = CacheDirty
			s.fail(n, &CycleError{Path: []string{n.label(), n.label()}})
			return
		}
	}
	s.evaluate(n)
}

// settleOnRead settles n for a direct read. Reads from outside any computation
// also apply writes that computations deferred while they ran.
func (s *scheduler) settleOnRead(n *node) {
	outer := !s.e.tracker.evaluating()
	s.settle(n)
	if !outer || s.flushing || s.e.batchDepth > 0 || !s.hasWork() {
		return
	}
	if err := s.flush(); err != nil {
		s.e.logger.Error("flush after read failed", "name", n.label(), "error", err)
	}
}

func (s *scheduler) evaluate(n *node) {
	prev := n.deps
	for _, ed := range prev {
		ed.dep.dependents.Remove(n)
	}
	n.deps = nil
	n.computing = true
	if n.evalPass != s.pass {
		n.passEvals = 0
	}
	n.evalPass = s.pass
	n.evalGen = n.generation
	n.passEvals++
	s.e.stats.Evaluations++
	if s.open && n.baseCycle != s.cycle {
		n.baseCycle = s.cycle
		n.baseRev = n.revision
		n.runner.keepBase()
	}

	f := s.e.tracker.push(n)
	defer func() {
		if r := recover(); r != nil {
			s.e.tracker.pop(f)
			n.computing = false
			s.restore(n, f.deps, prev)
			if cp, ok := r.(*cyclePanic); ok {
				// part of a cycle closed further up; the origin reports it
				n.err = cp.err
			}
			panic(r)
		}
	}()

	changed, err := n.runner.run()
	s.e.tracker.pop(f)
	n.computing = false

	if err != nil {
		s.restore(n, f.deps, prev)
		s.fail(n, err)
		return
	}

	n.deps = f.deps
	n.err = nil
	n.state = CacheClean
	n.height = heightOf(f.deps)
	if changed {
		epoch := s.e.clock
		if s.open && n.baseCycle == s.cycle && n.runner.atBase() {
			// back where the cycle started, e.g. a read inside a batch saw an
			// intermediate value
			n.revision = n.baseRev
		} else {
			n.revision = s.e.tick()
		}
		s.restale(n, epoch)
	}
	s.e.logger.Trace("evaluated", "name", n.label(), "changed", changed, "deps", len(f.deps))
}

// restale marks dependents that still consider themselves clean after n
// changed outside of their own settle, e.g. a failed computation that was
// retried by a direct read.
func (s *scheduler) restale(n *node, epoch uint64) {
	n.dependents.Each(func(d *node) bool {
		if d.state != CacheClean {
			return false
		}
		if !s.open {
			s.begin(epoch)
		}
		s.mark(d)
		return false
	})
}

func (s *scheduler) hasWork() bool {
	return s.open || len(s.deferred) > 0
}

// restore leaves a failed computation with its last good value, dirty, and
// subscribed to both its previous and its partial new dependencies so the next
// change to any of them retries it.
func (s *scheduler) restore(n *node, fresh, prev []edge) {
	deps := fresh
	for _, ed := range prev {
		if ed.dep.disposed || slices.ContainsFunc(fresh, func(x edge) bool { return x.dep == ed.dep }) {
			continue
		}
		ed.dep.dependents.Add(n)
		deps = append(deps, ed)
	}
	n.deps = deps
	n.state = CacheDirty
}

func (s *scheduler) fail(n *node, err error) {
	n.err = err
	s.e.stats.Failures++
	s.e.logger.Warn("computation failed", "name", n.label(), "error", err)
	if s.flushing {
		s.errs = multierror.Append(s.errs, err)
	}
}

func (s *scheduler) applyDeferred() {
	for len(s.deferred) > 0 {
		writes := s.deferred
		s.deferred = nil
		for _, w := range writes {
			if err := w(); err != nil {
				s.errs = multierror.Append(s.errs, err)
			}
		}
	}
}

// abandon drops the remaining work of a flush that did not settle. Queued
// computations keep their stale state and settle on their next read.
func (s *scheduler) abandon() {
	for s.queue.Len() > 0 {
		n := heap.Pop(&s.queue).(queueItem).n
		n.queued = false
	}
	s.pending = nil
	s.deferred = nil
	s.open = false
}

func (s *scheduler) forget(n *node) {
	s.pending = slices.DeleteFunc(s.pending, func(p pendingWrite) bool {
		return p.n == n
	})
}

func (s *scheduler) takeErrors() error {
	err := s.errs.ErrorOrNil()
	s.errs = nil
	return err
}

func heightOf(deps []edge) int {
	h := 0
	for _, ed := range deps {
		if ed.dep.height+1 > h {
			h = ed.dep.height + 1
		}
	}
	return h
}

// queueItem pins the height a node had when it was queued; heights change as
// computations rerun and the heap must not see keys move.
type queueItem struct {
	n      *node
	height int
}

type nodeHeap []queueItem

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].height != h[j].height {
		return h[i].height < h[j].height
	}
	return h[i].n.id < h[j].n.id
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(queueItem)) }

func (h *nodeHeap) Pop() any {
	old := *h
	q := old[len(old)-1]
	old[len(old)-1] = queueItem{}
	*h = old[:len(old)-1]
	return q
}
