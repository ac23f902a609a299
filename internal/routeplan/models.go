// Package routeplan provides access to planned-route records: route
// discovery per site and day, vehicle assignments, and the planned journey
// geometry (waypoints, road segments, charging stops).
package routeplan

import (
	"errors"

	"github.com/routemaps/routemaps/pkg/polyline"
)

// Repository errors.
var (
	ErrRouteNotFound = errors.New("route plan not found")
)

// UnassignedVehicleID is the reserved vehicle ID meaning the route's vehicle
// is not tracked by telematics. A valid outcome, not an error.
const UnassignedVehicleID = "X"

// Assignment links a route to the vehicle that ran it and to the alias the
// telematics store keys its runs by.
type Assignment struct {
	RouteID    string
	VehicleID  string
	RouteAlias string
}

// Tracked reports whether telematics data can exist for this assignment.
func (a Assignment) Tracked() bool {
	return a.VehicleID != "" && a.VehicleID != UnassignedVehicleID
}

// Node is a sequenced waypoint along the planned journey.
type Node struct {
	Lat      float64
	Lon      float64
	Sequence int
}

// Segment is one road-network edge of the planned path.
type Segment struct {
	Points []polyline.Coordinate
}

// ChargingStop is a planned EV charging location along the journey.
type ChargingStop struct {
	Lat float64
	Lon float64
}
