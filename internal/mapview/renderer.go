package mapview

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/routemaps/routemaps/internal/config"
	"github.com/routemaps/routemaps/internal/pipeline"
	"github.com/routemaps/routemaps/pkg/polyline"
)

//go:embed map.html.tmpl
var templateFS embed.FS

var mapTemplate = template.Must(template.ParseFS(templateFS, "map.html.tmpl"))

// Renderer turns assembled route records into staged Leaflet HTML documents.
type Renderer struct {
	cfg        config.MapConfig
	stagingDir string
	logger     zerolog.Logger
}

// NewRenderer creates a Renderer that stages artifacts under stagingDir.
func NewRenderer(cfg config.MapConfig, stagingDir string, logger zerolog.Logger) *Renderer {
	return &Renderer{cfg: cfg, stagingDir: stagingDir, logger: logger}
}

// Render builds the map scene for one route and writes it to the staging
// directory. The artifact persists until the report assembler releases it.
func (r *Renderer) Render(ctx context.Context, record *pipeline.RouteRecord) (*pipeline.MapArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scene := r.buildScene(record)

	sceneJSON, err := json.Marshal(scene)
	if err != nil {
		return nil, fmt.Errorf("encode scene: %w", err)
	}

	if err := os.MkdirAll(r.stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	path := filepath.Join(r.stagingDir, fmt.Sprintf("journey_map_%s.html", pipeline.SafeRouteID(record.RouteID)))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create map file: %w", err)
	}
	defer f.Close()

	data := struct {
		Title     string
		SceneJSON template.JS
	}{
		Title:     scene.Title,
		SceneJSON: template.JS(sceneJSON), //nolint:gosec // marshalled above, not user markup
	}
	if err := mapTemplate.Execute(f, data); err != nil {
		return nil, fmt.Errorf("render map template: %w", err)
	}

	r.logger.Debug().
		Str("route_id", record.RouteID).
		Str("path", path).
		Bool("has_track", scene.HasTrack()).
		Msg("map staged")

	return &pipeline.MapArtifact{
		RouteID:    record.RouteID,
		RouteAlias: record.RouteAlias,
		HTMLPath:   path,
	}, nil
}

func (r *Renderer) buildScene(record *pipeline.RouteRecord) *Scene {
	scene := &Scene{
		Title:  mapTitle(record),
		Center: LatLng{Lat: r.cfg.FallbackLat, Lon: r.cfg.FallbackLon},
		Zoom:   r.cfg.FallbackZoom,
		Depot:  LatLng{Lat: r.cfg.DepotLat, Lon: r.cfg.DepotLon},
	}

	if len(record.Nodes) > 0 {
		scene.Center = LatLng{Lat: record.Nodes[0].Lat, Lon: record.Nodes[0].Lon}
	}

	for _, n := range record.Nodes {
		scene.Nodes = append(scene.Nodes, NodeMarker{Lat: n.Lat, Lon: n.Lon, Label: n.Sequence})
	}

	arrowEvery := r.cfg.ArrowEvery
	if arrowEvery < 1 {
		arrowEvery = 1
	}
	for i, seg := range record.Segments {
		line := SegmentLine{
			// A directional indicator on every segment is unreadable noise,
			// so only every Nth segment carries one.
			Arrow: (i+1)%arrowEvery == 0,
		}
		for _, pt := range seg.Points {
			line.Points = append(line.Points, LatLng{Lat: pt.Lat, Lon: pt.Lon})
		}
		scene.Segments = append(scene.Segments, line)
	}

	for _, c := range record.ChargingStops {
		scene.ChargingStops = append(scene.ChargingStops, LatLng{Lat: c.Lat, Lon: c.Lon})
	}

	scene.Track = r.thinTrack(record)

	// Viewport fits the union of nodes, charging stops, depot and track;
	// segments are deliberately excluded, matching the plotted extremes.
	var fit []LatLng
	fit = append(fit, scene.ChargingStops...)
	for _, n := range scene.Nodes {
		fit = append(fit, LatLng{Lat: n.Lat, Lon: n.Lon})
	}
	fit = append(fit, scene.Depot)
	fit = append(fit, scene.Track...)
	scene.FitBounds = boundsOf(fit)

	return scene
}

// thinTrack reduces a dense GPS track to a renderable density while keeping
// the true first and last fixes for the start/end markers.
func (r *Renderer) thinTrack(record *pipeline.RouteRecord) []LatLng {
	if len(record.Track) == 0 {
		return nil
	}

	coords := make([]polyline.Coordinate, 0, len(record.Track))
	for _, pt := range record.Track {
		coords = append(coords, polyline.Coordinate{Lat: pt.Lat, Lon: pt.Lon})
	}
	coords = polyline.Sample(coords, r.cfg.TrackSampleMeters)

	track := make([]LatLng, 0, len(coords))
	for _, c := range coords {
		track = append(track, LatLng{Lat: c.Lat, Lon: c.Lon})
	}
	return track
}

// boundsOf returns the bounding box over the points, or nil when there is
// nothing to fit. The caller keeps the fallback center/zoom in that case.
func boundsOf(points []LatLng) *Bounds {
	if len(points) == 0 {
		return nil
	}

	b := &Bounds{
		South: points[0].Lat, North: points[0].Lat,
		West: points[0].Lon, East: points[0].Lon,
	}
	for _, p := range points[1:] {
		if p.Lat < b.South {
			b.South = p.Lat
		}
		if p.Lat > b.North {
			b.North = p.Lat
		}
		if p.Lon < b.West {
			b.West = p.Lon
		}
		if p.Lon > b.East {
			b.East = p.Lon
		}
	}
	return b
}

func mapTitle(record *pipeline.RouteRecord) string {
	if record.RouteAlias != "" {
		return fmt.Sprintf("Route %s (%s)", record.RouteID, record.RouteAlias)
	}
	return fmt.Sprintf("Route %s", record.RouteID)
}

// Ensure Renderer satisfies the pipeline contract.
var _ pipeline.MapRenderer = (*Renderer)(nil)
