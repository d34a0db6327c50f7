package routing

import (
	"errors"
	"fmt"
	"math"

	"github.com/matijazezelj/evroute/pkg/models"
	"github.com/paulmach/orb"
)

var (
	// ErrNoRoute means no feasible route exists between the two nodes.
	ErrNoRoute = errors.New("no feasible route")
	// ErrUnknownNode means the start, goal or a station is not part of the network.
	ErrUnknownNode = errors.New("unknown node")
	// ErrInvalidVehicle means the battery capacity or consumption rate is unusable.
	ErrInvalidVehicle = errors.New("invalid vehicle")
	// ErrInvalidOptions means the search options are out of range.
	ErrInvalidOptions = errors.New("invalid search options")
	// ErrSearchLimit means the search popped MaxExpansions states without finishing.
	ErrSearchLimit = errors.New("search expansion limit reached")
)

// Network is the read-only graph the router searches. *graph.Network
// implements it.
type Network interface {
	HasNode(id models.NodeID) bool
	Coord(id models.NodeID) (orb.Point, bool)
	Neighbors(id models.NodeID) []models.NodeID
	Weight(from, to models.NodeID) (float64, bool)
	Distance(a, b models.NodeID) float64
}

// Vehicle describes the battery of the routed vehicle. Energy is consumed
// at ConsumptionRate per unit of network distance.
type Vehicle struct {
	BatteryCapacity float64 `json:"battery_capacity"`
	ConsumptionRate float64 `json:"consumption_rate"`
}

func (v Vehicle) validate() error {
	if !(v.BatteryCapacity > 0) || math.IsInf(v.BatteryCapacity, 0) {
		return fmt.Errorf("%w: battery capacity must be positive, got %v", ErrInvalidVehicle, v.BatteryCapacity)
	}
	if !(v.ConsumptionRate > 0) || math.IsInf(v.ConsumptionRate, 0) {
		return fmt.Errorf("%w: consumption rate must be positive, got %v", ErrInvalidVehicle, v.ConsumptionRate)
	}
	return nil
}

// Options tune the search.
type Options struct {
	// SafetyMargin multiplies the estimated energy to the goal before it is
	// compared with the remaining battery to decide on a charging detour.
	SafetyMargin float64
	// Precision is the number of decimal places battery levels are rounded
	// to when deduplicating states.
	Precision int
	// MaxRechargeLegs bounds how many nested station-to-goal legs a planned
	// detour may spawn. Zero disables planned detours.
	MaxRechargeLegs int
	// MaxExpansions caps the number of frontier pops across all legs.
	// Zero means unlimited.
	MaxExpansions int
}

// Defaults for Options.
const (
	DefaultSafetyMargin    = 1.2
	DefaultPrecision       = 1
	DefaultMaxRechargeLegs = 16
)

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		SafetyMargin:    DefaultSafetyMargin,
		Precision:       DefaultPrecision,
		MaxRechargeLegs: DefaultMaxRechargeLegs,
	}
}

func (o Options) validate() error {
	switch {
	case !(o.SafetyMargin >= 1) || math.IsInf(o.SafetyMargin, 0):
		return fmt.Errorf("%w: safety margin must be >= 1, got %v", ErrInvalidOptions, o.SafetyMargin)
	case o.Precision < 0 || o.Precision > 9:
		return fmt.Errorf("%w: precision must be between 0 and 9, got %d", ErrInvalidOptions, o.Precision)
	case o.MaxRechargeLegs < 0:
		return fmt.Errorf("%w: max recharge legs must not be negative", ErrInvalidOptions)
	case o.MaxExpansions < 0:
		return fmt.Errorf("%w: max expansions must not be negative", ErrInvalidOptions)
	}
	return nil
}
