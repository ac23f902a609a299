package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/routemaps/routemaps/internal/routeplan"
	"github.com/routemaps/routemaps/internal/telematics"
	"github.com/routemaps/routemaps/pkg/polyline"
)

// Pipeline runs one report batch end to end.
type Pipeline struct {
	siteID     int
	routes     routeplan.Source
	plans      routeplan.Repository
	telematics telematics.Repository
	renderer   MapRenderer
	builder    ReportBuilder
	publisher  Publisher // optional
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// Config holds the collaborators of a Pipeline.
type Config struct {
	SiteID     int
	Routes     routeplan.Source
	Plans      routeplan.Repository
	Telematics telematics.Repository
	Renderer   MapRenderer
	Builder    ReportBuilder
	Publisher  Publisher // nil disables publishing
	Logger     zerolog.Logger
	Tracer     trace.Tracer // nil falls back to a noop tracer
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("pipeline")
	}

	return &Pipeline{
		siteID:     cfg.SiteID,
		routes:     cfg.Routes,
		plans:      cfg.Plans,
		telematics: cfg.Telematics,
		renderer:   cfg.Renderer,
		builder:    cfg.Builder,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		tracer:     tracer,
	}
}

// Run processes every route planned for the configured site on the given
// day. Per-route failures are downgraded to skip decisions; only empty
// discovery, a capture engine that cannot start, or a document that cannot
// persist abort the batch.
func (p *Pipeline) Run(ctx context.Context, day time.Time) (*BatchSummary, error) {
	summary := &BatchSummary{
		RunID:     uuid.New().String(),
		SiteID:    p.siteID,
		Day:       day,
		StartedAt: time.Now(),
	}

	logger := p.logger.With().
		Str("run_id", summary.RunID).
		Int("site_id", p.siteID).
		Str("day", day.Format("2006-01-02")).
		Logger()

	ctx, span := p.tracer.Start(ctx, "report.batch",
		trace.WithAttributes(attribute.Int("site.id", p.siteID)))
	defer span.End()

	routeIDs, err := p.routes.ListRouteIDs(ctx, p.siteID, day)
	if err != nil {
		return nil, fmt.Errorf("discover routes: %w", err)
	}
	if len(routeIDs) == 0 {
		return nil, ErrNoRoutes
	}
	sort.Strings(routeIDs)

	logger.Info().Int("routes", len(routeIDs)).Msg("starting report batch")

	var artifacts []*MapArtifact
	for _, routeID := range routeIDs {
		outcome := p.processRoute(ctx, logger, day, routeID, &artifacts)
		summary.Outcomes = append(summary.Outcomes, outcome)
		switch outcome.Status {
		case StatusSkipped:
			summary.Skipped++
		case StatusRenderFailed:
			summary.Failed++
		}
	}

	result, err := p.builder.Build(ctx, day, artifacts)
	if err != nil {
		return nil, fmt.Errorf("assemble report: %w", err)
	}
	summary.ReportPath = result.Path

	// Fold capture failures back into the per-route outcomes.
	captureFailed := make(map[string]string, len(result.CaptureFailed))
	for _, cf := range result.CaptureFailed {
		captureFailed[cf.RouteID] = cf.Reason
	}
	for i := range summary.Outcomes {
		if reason, ok := captureFailed[summary.Outcomes[i].RouteID]; ok {
			summary.Outcomes[i].Status = StatusCaptureFailed
			summary.Outcomes[i].Reason = reason
			summary.Failed++
		} else if summary.Outcomes[i].Status == StatusRendered {
			summary.Rendered++
		}
	}

	if p.publisher != nil {
		url, err := p.publisher.Publish(ctx, result.Path, "application/pdf")
		if err != nil {
			// The document still exists locally; publishing is best effort.
			logger.Warn().Err(err).Str("path", result.Path).Msg("publish failed")
		} else {
			summary.PublishedURL = url
			logger.Info().Str("url", url).Msg("report published")
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	logger.Info().
		Int("rendered", summary.Rendered).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Str("report", summary.ReportPath).
		Msg("report batch completed")

	return summary, nil
}

func (p *Pipeline) processRoute(ctx context.Context, logger zerolog.Logger, day time.Time, routeID string, artifacts *[]*MapArtifact) RouteOutcome {
	ctx, span := p.tracer.Start(ctx, "report.route",
		trace.WithAttributes(attribute.String("route.id", routeID)))
	defer span.End()

	routeLogger := logger.With().Str("route_id", routeID).Logger()

	record, err := p.assemble(ctx, routeLogger, day, routeID)
	if err != nil {
		// Only a missing plan record skips a route outright; everything else
		// degrades to partial data inside assemble.
		routeLogger.Warn().Err(err).Msg("route skipped")
		return RouteOutcome{RouteID: routeID, Status: StatusSkipped, Reason: err.Error()}
	}

	artifact, err := p.renderer.Render(ctx, record)
	if err != nil {
		routeLogger.Error().Err(err).Msg("map rendering failed")
		return RouteOutcome{RouteID: routeID, Status: StatusRenderFailed, Reason: err.Error()}
	}

	*artifacts = append(*artifacts, artifact)
	routeLogger.Debug().
		Int("nodes", len(record.Nodes)).
		Int("segments", len(record.Segments)).
		Int("track_points", len(record.Track)).
		Float64("track_meters", trackLength(record.Track)).
		Msg("route rendered")

	return RouteOutcome{RouteID: routeID, Status: StatusRendered}
}

// assemble builds the RouteRecord for one route. Sub-fetch errors degrade
// the affected field to empty; only an absent plan record is returned as an
// error.
func (p *Pipeline) assemble(ctx context.Context, logger zerolog.Logger, day time.Time, routeID string) (*RouteRecord, error) {
	record := &RouteRecord{RouteID: routeID}

	asg, err := p.plans.GetAssignment(ctx, routeID)
	switch {
	case errors.Is(err, routeplan.ErrRouteNotFound):
		return nil, err
	case err != nil:
		// Treat the route as untracked; planned geometry is keyed by route
		// ID and can still be rendered.
		logger.Warn().Err(err).Msg("assignment lookup failed, rendering planned data only")
	default:
		record.VehicleID = asg.VehicleID
		record.RouteAlias = asg.RouteAlias
	}

	if record.Tracked() {
		p.attachTelematics(ctx, logger, day, record)
	}

	if record.Nodes, err = p.plans.ListNodes(ctx, routeID); err != nil {
		logger.Warn().Err(err).Msg("node fetch failed, layer omitted")
		record.Nodes = nil
	}
	if record.Segments, err = p.plans.ListSegments(ctx, routeID); err != nil {
		logger.Warn().Err(err).Msg("segment fetch failed, layer omitted")
		record.Segments = nil
	}
	if record.ChargingStops, err = p.plans.ListChargingStops(ctx, routeID); err != nil {
		logger.Warn().Err(err).Msg("charging stop fetch failed, layer omitted")
		record.ChargingStops = nil
	}

	normalize(record)
	return record, nil
}

func (p *Pipeline) attachTelematics(ctx context.Context, logger zerolog.Logger, day time.Time, record *RouteRecord) {
	window, err := p.telematics.ResolveWindow(ctx, record.VehicleID, record.RouteAlias, day)
	switch {
	case errors.Is(err, telematics.ErrWindowNotFound):
		logger.Debug().Msg("no telematics window recorded")
		return
	case err != nil:
		logger.Warn().Err(err).Msg("window lookup failed, actual track omitted")
		return
	case !window.Valid():
		logger.Warn().
			Time("start", window.Start).
			Time("end", window.End).
			Msg("degenerate telematics window, actual track omitted")
		return
	}
	record.Window = &window

	// The track fetch is skipped entirely when the window is unresolved;
	// fixes outside a recorded run say nothing about this route.
	track, err := p.telematics.FetchTrack(ctx, record.VehicleID, window)
	if err != nil {
		logger.Warn().Err(err).Msg("track fetch failed, actual track omitted")
		return
	}
	record.Track = track
}

// trackLength is the driven distance covered by the fixes, in meters.
func trackLength(track []telematics.TrackPoint) float64 {
	if len(track) < 2 {
		return 0
	}
	coords := make([]polyline.Coordinate, 0, len(track))
	for _, pt := range track {
		coords = append(coords, polyline.Coordinate{Lat: pt.Lat, Lon: pt.Lon})
	}
	return polyline.Length(coords)
}

// normalize enforces the record's ordering invariants regardless of what
// the stores returned.
func normalize(record *RouteRecord) {
	sort.SliceStable(record.Nodes, func(i, j int) bool {
		return record.Nodes[i].Sequence < record.Nodes[j].Sequence
	})
	sort.SliceStable(record.Track, func(i, j int) bool {
		return record.Track[i].Timestamp.Before(record.Track[j].Timestamp)
	})
	if record.Window != nil {
		inWindow := record.Track[:0]
		for _, pt := range record.Track {
			if record.Window.Contains(pt.Timestamp) {
				inWindow = append(inWindow, pt)
			}
		}
		record.Track = inWindow
	}
}
