package routing

import (
	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/paulmach/orb"
)

// Algorithm names reported on a Route.
const (
	AlgorithmAStar    = "astar"
	AlgorithmCostOnly = "ucs"
)

// Step is one state on a route. Distance is cumulative from the start.
type Step struct {
	Node         models.NodeID `json:"node"`
	Coord        orb.Point     `json:"coord"`
	Battery      float64       `json:"battery"`
	Distance     float64       `json:"distance"`
	Action       models.Action `json:"action"`
	ChargeAmount float64       `json:"charge_amount,omitempty"`
}

// Route is the result of a successful search.
type Route struct {
	Algorithm  string  `json:"algorithm"`
	Steps      []Step  `json:"steps"`
	Distance   float64 `json:"distance"`
	Recharges  int     `json:"recharges"`
	Charged    float64 `json:"charged"`
	Expansions int     `json:"expansions"`
}

func newRoute(algorithm string, steps []Step, expansions int) *Route {
	r := &Route{Algorithm: algorithm, Steps: steps, Expansions: expansions}
	if len(steps) > 0 {
		r.Distance = steps[len(steps)-1].Distance
	}
	for _, s := range steps {
		if s.ChargeAmount > 0 {
			r.Recharges++
			r.Charged += s.ChargeAmount
		}
	}
	return r
}

// Nodes returns the node sequence of the route with consecutive duplicates
// (recharge stops) collapsed.
func (r *Route) Nodes() []models.NodeID {
	var out []models.NodeID
	for _, s := range r.Steps {
		if len(out) > 0 && out[len(out)-1] == s.Node {
			continue
		}
		out = append(out, s.Node)
	}
	return out
}
