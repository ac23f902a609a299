// Package pipeline orchestrates one report batch: per-route data assembly,
// map rendering, report building and publishing, with per-route failure
// isolation.
package pipeline

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/routemaps/routemaps/internal/routeplan"
	"github.com/routemaps/routemaps/internal/telematics"
)

// Batch-fatal errors.
var (
	// ErrNoRoutes means discovery returned nothing for the site/day.
	ErrNoRoutes = errors.New("no routes found for site and day")
)

// RouteRecord is the assembled view of one route: planned geometry plus
// whatever telematics data exists. Built fresh per route and not mutated
// after assembly.
type RouteRecord struct {
	RouteID    string
	VehicleID  string
	RouteAlias string

	// Window is nil when no telematics run was recorded.
	Window *telematics.Window
	// Track is empty when the vehicle is untracked, the window is
	// unresolved, or no fixes fell inside it.
	Track []telematics.TrackPoint

	Nodes         []routeplan.Node
	Segments      []routeplan.Segment
	ChargingStops []routeplan.ChargingStop
}

// Tracked reports whether the route's vehicle reports telematics.
func (r *RouteRecord) Tracked() bool {
	return r.VehicleID != "" && r.VehicleID != routeplan.UnassignedVehicleID
}

// MapArtifact is one rendered map, staged on disk until the report assembler
// consumes it.
type MapArtifact struct {
	RouteID    string
	RouteAlias string
	HTMLPath   string
}

// RouteStatus is the terminal state of one route within a batch.
type RouteStatus string

// Route outcomes.
const (
	StatusRendered      RouteStatus = "rendered"
	StatusSkipped       RouteStatus = "skipped_not_found"
	StatusRenderFailed  RouteStatus = "render_failed"
	StatusCaptureFailed RouteStatus = "capture_failed"
)

// RouteOutcome records how one route ended up.
type RouteOutcome struct {
	RouteID string
	Status  RouteStatus
	Reason  string
}

// BatchSummary is the inspectable result of one batch run.
type BatchSummary struct {
	RunID     string
	SiteID    int
	Day       time.Time
	StartedAt time.Time
	Duration  time.Duration

	Rendered int
	Skipped  int
	Failed   int
	Outcomes []RouteOutcome

	ReportPath   string
	PublishedURL string
}

// MapRenderer produces one staged map artifact from an assembled record.
type MapRenderer interface {
	Render(ctx context.Context, record *RouteRecord) (*MapArtifact, error)
}

// CaptureFailure identifies a route dropped at the capture stage.
type CaptureFailure struct {
	RouteID string
	Reason  string
}

// ReportResult is what the report builder hands back.
type ReportResult struct {
	Path          string
	CaptureFailed []CaptureFailure
}

// ReportBuilder captures the staged artifacts and assembles the final
// document, releasing staged files only after the document persists.
type ReportBuilder interface {
	Build(ctx context.Context, day time.Time, artifacts []*MapArtifact) (*ReportResult, error)
}

// Publisher pushes the finished document to external storage and returns a
// retrievable reference.
type Publisher interface {
	Publish(ctx context.Context, path, contentType string) (string, error)
}

var unsafeRouteIDChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SafeRouteID sanitizes a route identifier to a filesystem-safe form used
// for artifact naming.
func SafeRouteID(routeID string) string {
	return unsafeRouteIDChars.ReplaceAllString(routeID, "_")
}
