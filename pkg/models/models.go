package models

import "time"

// NodeID identifies an intersection or waypoint in the road network.
type NodeID string

// Action records how the vehicle arrived in a route step. The first step of a
// route carries ActionTravel.
type Action string

// Action constants reported on route steps.
const (
	ActionTravel            Action = "travel"
	ActionRecharge          Action = "recharge"
	ActionEmergencyRecharge Action = "emergency_recharge"
)

// Node is a point of the road network. Lon/Lat hold x/y for planar networks.
type Node struct {
	ID     NodeID  `json:"id"`
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	Source string  `json:"source,omitempty"`
}

// Edge is an undirected road segment between two nodes. Length is optional;
// when nil the metric distance between the endpoints is used.
type Edge struct {
	ID     string   `json:"id"`
	FromID NodeID   `json:"from_id"`
	ToID   NodeID   `json:"to_id"`
	Length *float64 `json:"length,omitempty"`
	Source string   `json:"source,omitempty"`
}

// Station is a charging station snapped to a network node.
type Station struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	NodeID NodeID  `json:"node_id"`
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	// SnapDistance is the distance between the raw coordinate and NodeID.
	SnapDistance float64   `json:"snap_distance"`
	Source       string    `json:"source,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
}

// RawStation is a station coordinate as delivered by a station dataset,
// before snapping.
type RawStation struct {
	Name string  `json:"name,omitempty"`
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
}

// Float returns a pointer to v, for optional fields such as Edge.Length.
func Float(v float64) *float64 {
	return &v
}
