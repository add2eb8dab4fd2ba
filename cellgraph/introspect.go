package cellgraph

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// NodeInfo is a point in time description of one cell or computation.
type NodeInfo struct {
	ID         uint64
	Name       string
	Kind       NodeKind
	State      CacheState
	Height     int
	Revision   uint64
	Generation uint64
	Deps       []string
	Dependents []string
	Err        error
}

// Snapshot describes every live node, ordered by creation.
func (e *Engine) Snapshot() []NodeInfo {
	infos := make([]NodeInfo, 0, len(e.nodes))
	for _, n := range e.nodes {
		info := NodeInfo{
			ID:         n.id,
			Name:       n.label(),
			Kind:       n.kind,
			State:      n.state,
			Height:     n.height,
			Revision:   n.revision,
			Generation: n.generation,
			Err:        n.err,
		}
		for _, ed := range n.deps {
			info.Deps = append(info.Deps, ed.dep.label())
		}
		n.dependents.Each(func(d *node) bool {
			info.Dependents = append(info.Dependents, d.label())
			return false
		})
		slices.Sort(info.Dependents)
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b NodeInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return infos
}

// Digest hashes the shape of the graph: node names, kinds and dependency
// edges. Values and revisions are left out, so two digests only differ when
// the topology did.
func (e *Engine) Digest() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, info := range e.Snapshot() {
		binary.LittleEndian.PutUint64(buf[:], info.ID)
		h.Write(buf[:])
		h.WriteString(info.Name)
		h.Write([]byte{byte(info.Kind), 0})
		for _, dep := range info.Deps {
			h.WriteString(dep)
			h.Write([]byte{0})
		}
		h.Write([]byte{0xff})
	}
	return h.Sum64()
}
