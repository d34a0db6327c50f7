package routing

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/matijazezelj/evroute/pkg/models"
)

// FindRoute searches for the cheapest battery-feasible route from start to
// goal with A*, recharging at stations. It returns ErrNoRoute when no
// feasible route exists.
func FindRoute(ctx context.Context, net Network, start, goal models.NodeID, stations *Stations, v Vehicle, opts Options) (*Route, error) {
	return find(ctx, net, start, goal, stations, v, opts, false)
}

// FindRouteCostOnly is FindRoute with states ordered by accumulated cost
// alone (uniform-cost search).
func FindRouteCostOnly(ctx context.Context, net Network, start, goal models.NodeID, stations *Stations, v Vehicle, opts Options) (*Route, error) {
	return find(ctx, net, start, goal, stations, v, opts, true)
}

// search holds what every leg of one invocation shares.
type search struct {
	net      Network
	stations *Stations
	goal     models.NodeID
	vehicle  Vehicle
	opts     Options
	costOnly bool
	scale    float64

	expansions int
	stack      []*leg
	remainders map[models.NodeID]*remainder
}

// remainder is the outcome of a goal leg started at a station with a full
// battery. Step distances are relative to the station.
type remainder struct {
	found bool
	steps []Step
	cost  float64
}

// pendingDetour is a detour waiting for its remainder leg to finish.
type pendingDetour struct {
	cur     int
	station models.NodeID
	via     []Step
	arrival float64
	offset  float64
}

// leg is one best-first search. A goal leg runs toward the goal; a station
// leg stops at the first usable station.
type leg struct {
	s         *search
	toStation bool
	origin    models.NodeID

	arena    []state
	frontier frontier
	best     map[stateKey]float64
	seq      uint64
	pending  *pendingDetour
}

type legResult struct {
	found bool
	end   int
	child *leg
}

func find(ctx context.Context, net Network, start, goal models.NodeID, stations *Stations, v Vehicle, opts Options, costOnly bool) (*Route, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if !net.HasNode(start) {
		return nil, fmt.Errorf("%w: start %q", ErrUnknownNode, start)
	}
	if !net.HasNode(goal) {
		return nil, fmt.Errorf("%w: goal %q", ErrUnknownNode, goal)
	}

	s := &search{
		net:        net,
		stations:   stations,
		goal:       goal,
		vehicle:    v,
		opts:       opts,
		costOnly:   costOnly,
		scale:      math.Pow10(opts.Precision),
		remainders: make(map[models.NodeID]*remainder),
	}
	algorithm := AlgorithmAStar
	if costOnly {
		algorithm = AlgorithmCostOnly
	}

	s.stack = []*leg{s.newLeg(false, "", start, v.BatteryCapacity, 0)}
	for {
		top := s.stack[len(s.stack)-1]
		res, err := top.run(ctx)
		if err != nil {
			return nil, err
		}
		if res.child != nil {
			s.stack = append(s.stack, res.child)
			continue
		}
		if len(s.stack) == 1 {
			if !res.found {
				return nil, ErrNoRoute
			}
			return newRoute(algorithm, top.path(res.end), s.expansions), nil
		}

		rem := &remainder{found: res.found}
		if res.found {
			rem.steps = top.path(res.end)[1:]
			rem.cost = top.arena[res.end].g
		}
		s.remainders[top.origin] = rem
		s.stack = s.stack[:len(s.stack)-1]
		s.stack[len(s.stack)-1].resume(rem)
	}
}

func (s *search) newLeg(toStation bool, origin, node models.NodeID, battery, g float64) *leg {
	l := &leg{
		s:         s,
		toStation: toStation,
		origin:    origin,
		best:      make(map[stateKey]float64),
	}
	l.admit(state{
		node:    node,
		parent:  -1,
		g:       g,
		h:       l.heuristic(node),
		battery: battery,
		action:  models.ActionTravel,
	})
	return l
}

// blocked reports whether a station must not start another remainder leg:
// one is already running from it, or one failed.
func (s *search) blocked(id models.NodeID) bool {
	if rem, ok := s.remainders[id]; ok && !rem.found {
		return true
	}
	for _, l := range s.stack {
		if l.origin == id {
			return true
		}
	}
	return false
}

func (l *leg) run(ctx context.Context) (legResult, error) {
	s := l.s
	capacity := s.vehicle.BatteryCapacity

	for l.frontier.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return legResult{}, err
		}
		if s.opts.MaxExpansions > 0 && s.expansions >= s.opts.MaxExpansions {
			return legResult{}, fmt.Errorf("%w after %d expansions", ErrSearchLimit, s.expansions)
		}
		s.expansions++

		e := heap.Pop(&l.frontier).(entry)
		cur := l.arena[e.idx]
		if !cur.detour && l.best[l.key(cur)] < cur.g {
			continue
		}
		if l.isTarget(cur.node) {
			return legResult{found: true, end: e.idx}, nil
		}
		if l.toStation {
			l.expand(e.idx)
			continue
		}

		atStation := s.stations.Contains(cur.node)
		if atStation && cur.battery < capacity {
			l.admit(state{
				node:    cur.node,
				parent:  e.idx,
				g:       cur.g,
				h:       cur.h,
				battery: capacity,
				action:  models.ActionRecharge,
				charge:  capacity - cur.battery,
			})
		}

		if !atStation && l.needsDetour(cur) {
			child, err := l.detour(ctx, e.idx)
			if err != nil {
				return legResult{}, err
			}
			if child != nil {
				return legResult{child: child}, nil
			}
		}

		l.expand(e.idx)
	}
	return legResult{}, nil
}

func (l *leg) isTarget(id models.NodeID) bool {
	if l.toStation {
		return l.s.stations.Contains(id) && !l.s.blocked(id)
	}
	return id == l.s.goal
}

func (l *leg) needsDetour(cur state) bool {
	s := l.s
	if s.stations.Len() == 0 || len(s.stack)-1 >= s.opts.MaxRechargeLegs {
		return false
	}
	return cur.battery < cur.h*s.vehicle.ConsumptionRate*s.opts.SafetyMargin
}

// detour looks for a station reachable from cur. A station with a known
// remainder is spliced in directly; otherwise the leg suspends and the
// returned leg computes the remainder from the station.
func (l *leg) detour(ctx context.Context, cur int) (*leg, error) {
	s := l.s
	from := l.arena[cur]

	sl := s.newLeg(true, "", from.node, from.battery, from.g)
	res, err := sl.run(ctx)
	if err != nil || !res.found {
		return nil, err
	}

	arrived := sl.arena[res.end]
	p := &pendingDetour{
		cur:     cur,
		station: arrived.node,
		via:     sl.path(res.end)[1:],
		arrival: arrived.battery,
		offset:  arrived.g,
	}
	if rem, ok := s.remainders[arrived.node]; ok {
		l.splice(p, rem)
		return nil, nil
	}
	l.pending = p
	return s.newLeg(false, arrived.node, arrived.node, s.vehicle.BatteryCapacity, 0), nil
}

// resume finishes the suspended detour and carries on with the normal
// expansion of the state that triggered it.
func (l *leg) resume(rem *remainder) {
	p := l.pending
	l.pending = nil
	l.splice(p, rem)
	l.expand(p.cur)
}

// splice pushes the complete detour route as a candidate so that a cheaper
// direct route found later still wins.
func (l *leg) splice(p *pendingDetour, rem *remainder) {
	if !rem.found {
		return
	}
	s := l.s
	capacity := s.vehicle.BatteryCapacity

	tail := make([]Step, 0, len(p.via)+len(rem.steps)+1)
	tail = append(tail, p.via...)
	if len(rem.steps) > 0 && p.arrival < capacity {
		coord, _ := s.net.Coord(p.station)
		tail = append(tail, Step{
			Node:         p.station,
			Coord:        coord,
			Battery:      capacity,
			Distance:     p.offset,
			Action:       models.ActionRecharge,
			ChargeAmount: capacity - p.arrival,
		})
	}
	for _, st := range rem.steps {
		st.Distance += p.offset
		tail = append(tail, st)
	}

	last := tail[len(tail)-1]
	g := p.offset + rem.cost
	l.push(state{
		node:     s.goal,
		parent:   p.cur,
		g:        g,
		battery:  last.Battery,
		action:   last.Action,
		priority: g,
		detour:   true,
		tail:     tail,
	}, true)
}

// expand pushes a travel child for every affordable neighbour of idx. A
// state off-station with no affordable neighbour jumps to the nearest
// station in reach instead.
func (l *leg) expand(idx int) {
	s := l.s
	cur := l.arena[idx]
	rate := s.vehicle.ConsumptionRate

	affordable := 0
	for _, n := range s.net.Neighbors(cur.node) {
		w, ok := s.net.Weight(cur.node, n)
		if !ok {
			continue
		}
		energy := w * rate
		if energy > cur.battery {
			continue
		}
		affordable++
		l.admit(state{
			node:    n,
			parent:  idx,
			g:       cur.g + w,
			h:       l.heuristic(n),
			battery: cur.battery - energy,
			action:  models.ActionTravel,
		})
	}

	if affordable > 0 || l.toStation || s.stations.Contains(cur.node) {
		return
	}
	st, dist, ok := NearestReachable(s.net, s.stations, cur.node, cur.battery, rate)
	if !ok {
		return
	}
	l.admit(state{
		node:    st,
		parent:  idx,
		g:       cur.g + dist,
		h:       l.heuristic(st),
		battery: cur.battery - dist*rate,
		action:  models.ActionEmergencyRecharge,
	})
}

func (l *leg) heuristic(id models.NodeID) float64 {
	s := l.s
	if l.toStation {
		if s.costOnly {
			return 0
		}
		return nearestDistance(s.net, s.stations, id)
	}
	return s.net.Distance(id, s.goal)
}

func (l *leg) key(st state) stateKey {
	return stateKey{node: st.node, battery: quantize(st.battery, l.s.scale)}
}

// admit pushes st if it is the first arrival at its quantized battery
// level or strictly cheaper than the best one so far.
func (l *leg) admit(st state) bool {
	k := l.key(st)
	if best, ok := l.best[k]; ok && st.g >= best {
		return false
	}
	l.best[k] = st.g
	st.priority = st.g
	if !l.s.costOnly {
		st.priority += st.h
	}
	l.push(st, false)
	return true
}

func (l *leg) push(st state, late bool) {
	l.arena = append(l.arena, st)
	heap.Push(&l.frontier, entry{
		idx:      len(l.arena) - 1,
		priority: st.priority,
		late:     late,
		seq:      l.seq,
	})
	l.seq++
}

// path walks parent links from end back to the root and returns the steps
// in travel order.
func (l *leg) path(end int) []Step {
	var tail []Step
	if st := l.arena[end]; st.detour {
		tail = st.tail
		end = st.parent
	}

	var steps []Step
	for i := end; i >= 0; i = l.arena[i].parent {
		st := l.arena[i]
		coord, _ := l.s.net.Coord(st.node)
		steps = append(steps, Step{
			Node:         st.node,
			Coord:        coord,
			Battery:      st.battery,
			Distance:     st.g,
			Action:       st.action,
			ChargeAmount: st.charge,
		})
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return append(steps, tail...)
}
