package routing

import (
	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSON renders the route for a map client: one LineString through the
// visited nodes plus a Point for the start, the goal and every charging stop.
func (r *Route) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(r.Steps) == 0 {
		return fc
	}

	var line orb.LineString
	for i, s := range r.Steps {
		if i > 0 && r.Steps[i-1].Node == s.Node {
			continue
		}
		line = append(line, s.Coord)
	}
	route := geojson.NewFeature(line)
	route.Properties["kind"] = "route"
	route.Properties["algorithm"] = r.Algorithm
	route.Properties["distance"] = r.Distance
	route.Properties["recharges"] = r.Recharges
	fc.Append(route)

	first, last := r.Steps[0], r.Steps[len(r.Steps)-1]
	fc.Append(stepFeature("start", first))
	for _, s := range r.Steps {
		if s.Action == models.ActionRecharge || s.Action == models.ActionEmergencyRecharge {
			fc.Append(stepFeature(string(s.Action), s))
		}
	}
	fc.Append(stepFeature("goal", last))
	return fc
}

func stepFeature(kind string, s Step) *geojson.Feature {
	f := geojson.NewFeature(s.Coord)
	f.Properties["kind"] = kind
	f.Properties["node"] = string(s.Node)
	f.Properties["battery"] = s.Battery
	f.Properties["distance"] = s.Distance
	if s.ChargeAmount > 0 {
		f.Properties["charge_amount"] = s.ChargeAmount
	}
	return f
}
