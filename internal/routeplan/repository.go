package routeplan

import (
	"context"
	"time"
)

// Source discovers which routes ran for a site on a given day.
type Source interface {
	// ListRouteIDs returns the identifiers of routes planned for the site
	// and day. An empty result means there is nothing to report on.
	ListRouteIDs(ctx context.Context, siteID int, day time.Time) ([]string, error)
}

// Repository defines read access to planned-route data.
type Repository interface {
	// GetAssignment resolves a route to its vehicle and telematics alias.
	// Returns ErrRouteNotFound if no plan record exists.
	GetAssignment(ctx context.Context, routeID string) (Assignment, error)

	// ListNodes returns the planned waypoints ordered by sequence number.
	// May be empty.
	ListNodes(ctx context.Context, routeID string) ([]Node, error)

	// ListSegments returns the planned road-segment geometry. May be empty.
	ListSegments(ctx context.Context, routeID string) ([]Segment, error)

	// ListChargingStops returns the planned charging locations. May be empty.
	ListChargingStops(ctx context.Context, routeID string) ([]ChargingStop, error)
}
