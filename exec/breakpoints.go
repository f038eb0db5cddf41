package exec

import "sync/atomic"

// breakpointSet is a copy-on-write set of node ids (spec §5: "Breakpoint set
// is a copy-on-write map; concurrent mutations from the debug API and reads
// from the scheduler are lock-free via atomic swap").
type breakpointSet struct {
	ptr atomic.Pointer[map[string]bool]
}

func newBreakpointSet(initial []string) *breakpointSet {
	m := make(map[string]bool, len(initial))
	for _, id := range initial {
		m[id] = true
	}
	bs := &breakpointSet{}
	bs.ptr.Store(&m)
	return bs
}

func (bs *breakpointSet) Has(nodeID string) bool {
	m := bs.ptr.Load()
	if m == nil {
		return false
	}
	return (*m)[nodeID]
}

func (bs *breakpointSet) Add(nodeID string) {
	for {
		old := bs.ptr.Load()
		next := make(map[string]bool, len(*old)+1)
		for k := range *old {
			next[k] = true
		}
		next[nodeID] = true
		if bs.ptr.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (bs *breakpointSet) Remove(nodeID string) {
	for {
		old := bs.ptr.Load()
		if !(*old)[nodeID] {
			return
		}
		next := make(map[string]bool, len(*old))
		for k := range *old {
			if k != nodeID {
				next[k] = true
			}
		}
		if bs.ptr.CompareAndSwap(old, &next) {
			return
		}
	}
}

// List returns the current breakpoint node ids in no particular order.
func (bs *breakpointSet) List() []string {
	m := bs.ptr.Load()
	out := make([]string, 0, len(*m))
	for k := range *m {
		out = append(out, k)
	}
	return out
}
