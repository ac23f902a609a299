package telematics

import (
	"context"
	"time"
)

// Repository defines read access to recorded vehicle runs.
type Repository interface {
	// ResolveWindow returns the actual start/end of the run recorded for the
	// vehicle and alias on the given day. Returns ErrWindowNotFound when no
	// run is recorded.
	ResolveWindow(ctx context.Context, vehicleID, routeAlias string, day time.Time) (Window, error)

	// FetchTrack returns the GPS fixes recorded for the vehicle within the
	// window, ascending by timestamp. May be empty.
	FetchTrack(ctx context.Context, vehicleID string, window Window) ([]TrackPoint, error)
}
