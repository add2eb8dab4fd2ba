package cellgraph

// frame records the reads of one running computation. A frame with a nil owner
// is pushed by Untracked and swallows reads.
type frame struct {
	owner *node
	deps  []edge
	seen  map[*node]struct{}
}

// tracker is the engine scoped execution context stack. Only the top frame
// receives reads.
type tracker struct {
	frames []*frame
}

func (t *tracker) push(owner *node) *frame {
	f := &frame{owner: owner}
	if owner != nil {
		f.seen = make(map[*node]struct{}, len(owner.deps))
	}
	t.frames = append(t.frames, f)
	return f
}

func (t *tracker) pop(f *frame) {
	last := len(t.frames) - 1
	if last < 0 || t.frames[last] != f {
		panic(invariantError("tracker stack out of balance"))
	}
	t.frames[last] = nil
	t.frames = t.frames[:last]
}

func (t *tracker) top() *frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

func (t *tracker) depth() int {
	return len(t.frames)
}

// evaluating reports whether any computation is running, tracked or not.
func (t *tracker) evaluating() bool {
	for _, f := range t.frames {
		if f.owner != nil {
			return true
		}
	}
	return false
}

// path returns the names from the frame owned by n up to the top, closed by n
// again, e.g. [a b a].
func (t *tracker) path(n *node) []string {
	start := -1
	for i, f := range t.frames {
		if f.owner == n {
			start = i
			break
		}
	}
	if start < 0 {
		return []string{n.label(), n.label()}
	}
	names := make([]string, 0, len(t.frames)-start+1)
	for _, f := range t.frames[start:] {
		if f.owner != nil {
			names = append(names, f.owner.label())
		}
	}
	return append(names, n.label())
}

// record links dep to the running computation, if any. Linking happens at read
// time so both directions of the edge exist while the function is still
// running.
func (t *tracker) record(dep *node) {
	f := t.top()
	if f == nil || f.owner == nil {
		return
	}
	if _, ok := f.seen[dep]; ok {
		return
	}
	f.seen[dep] = struct{}{}
	f.deps = append(f.deps, edge{dep: dep, rev: dep.revision})
	dep.dependents.Add(f.owner)
}
