package routing

import (
	"container/heap"
	"math"

	"github.com/matijazezelj/evroute/pkg/models"
)

// state is an arena element. parent is an index into the same arena, -1
// for the root.
type state struct {
	node     models.NodeID
	parent   int
	g        float64
	h        float64
	battery  float64
	action   models.Action
	charge   float64
	priority float64

	// detour marks a completed route through a charging detour. Its steps
	// after parent are held in tail.
	detour bool
	tail   []Step
}

type stateKey struct {
	node    models.NodeID
	battery int64
}

func quantize(battery float64, scale float64) int64 {
	return int64(math.Round(battery * scale))
}

type entry struct {
	idx      int
	priority float64
	late     bool
	seq      uint64
}

// frontier is a min-heap on priority. Equal priorities pop in insertion
// order, with completed detour routes after plain states.
type frontier []entry

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].priority != f[j].priority {
		return f[i].priority < f[j].priority
	}
	if f[i].late != f[j].late {
		return !f[i].late
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(entry)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	e := old[n-1]
	*f = old[:n-1]
	return e
}

var _ heap.Interface = (*frontier)(nil)
