package mapview_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/routemaps/routemaps/internal/config"
	"github.com/routemaps/routemaps/internal/mapview"
	"github.com/routemaps/routemaps/internal/pipeline"
	"github.com/routemaps/routemaps/internal/routeplan"
	"github.com/routemaps/routemaps/internal/telematics"
	"github.com/routemaps/routemaps/pkg/polyline"
)

func testMapConfig() config.MapConfig {
	return config.MapConfig{
		DepotLat:          51.463121,
		DepotLon:          0.246687,
		FallbackLat:       51.5,
		FallbackLon:       -0.1,
		FallbackZoom:      12,
		ArrowEvery:        2,
		TrackSampleMeters: 50,
	}
}

// renderScene renders the record and parses the scene JSON back out of the
// staged document, the same way the page script reads it.
func renderScene(t *testing.T, record *pipeline.RouteRecord) (*pipeline.MapArtifact, *mapview.Scene, *goquery.Document) {
	t.Helper()

	renderer := mapview.NewRenderer(testMapConfig(), t.TempDir(), zerolog.Nop())
	artifact, err := renderer.Render(context.Background(), record)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	f, err := os.Open(artifact.HTMLPath)
	if err != nil {
		t.Fatalf("staged map missing: %v", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatalf("staged map is not parseable HTML: %v", err)
	}

	raw := doc.Find("script#route-data").Text()
	if raw == "" {
		t.Fatal("staged map has no scene data island")
	}
	var scene mapview.Scene
	if err := json.Unmarshal([]byte(raw), &scene); err != nil {
		t.Fatalf("scene data is not valid JSON: %v", err)
	}

	return artifact, &scene, doc
}

func TestRenderPlannedOnlyScene(t *testing.T) {
	record := &pipeline.RouteRecord{
		RouteID:    "R1",
		RouteAlias: "DA-1",
		VehicleID:  routeplan.UnassignedVehicleID,
		Nodes: []routeplan.Node{
			{Lat: 51.45, Lon: 0.20, Sequence: 1},
			{Lat: 51.46, Lon: 0.22, Sequence: 2},
			{Lat: 51.47, Lon: 0.24, Sequence: 3},
		},
		ChargingStops: []routeplan.ChargingStop{{Lat: 51.44, Lon: 0.21}},
	}

	artifact, scene, doc := renderScene(t, record)

	if filepath.Base(artifact.HTMLPath) != "journey_map_R1.html" {
		t.Errorf("unexpected artifact name %s", filepath.Base(artifact.HTMLPath))
	}
	if got := doc.Find("title").Text(); got != "Route R1 (DA-1)" {
		t.Errorf("unexpected document title %q", got)
	}

	if len(scene.Nodes) != 3 {
		t.Fatalf("expected 3 node markers, got %d", len(scene.Nodes))
	}
	for i, n := range scene.Nodes {
		if n.Label != i+1 {
			t.Errorf("node %d has label %d", i, n.Label)
		}
	}
	if len(scene.ChargingStops) != 1 {
		t.Errorf("expected 1 charging stop, got %d", len(scene.ChargingStops))
	}
	if scene.Depot.Lat != 51.463121 || scene.Depot.Lon != 0.246687 {
		t.Errorf("depot not plotted at configured location: %+v", scene.Depot)
	}
	if len(scene.Track) != 0 {
		t.Errorf("untracked route must have no track layer, got %d points", len(scene.Track))
	}

	// Center snaps to the first node when one exists.
	if scene.Center.Lat != 51.45 || scene.Center.Lon != 0.20 {
		t.Errorf("center should be the first node, got %+v", scene.Center)
	}

	if scene.FitBounds == nil {
		t.Fatal("expected fit bounds")
	}
	if scene.FitBounds.South != 51.44 || scene.FitBounds.North != 51.47 {
		t.Errorf("bounds must cover nodes and charging stops: %+v", scene.FitBounds)
	}
	if scene.FitBounds.East != 0.246687 {
		t.Errorf("bounds must include the depot: %+v", scene.FitBounds)
	}
}

func TestRenderEmptyRouteUsesFallbackCenter(t *testing.T) {
	record := &pipeline.RouteRecord{RouteID: "R2"}

	_, scene, _ := renderScene(t, record)

	if scene.Center.Lat != 51.5 || scene.Center.Lon != -0.1 {
		t.Errorf("expected fallback center, got %+v", scene.Center)
	}
	if scene.Zoom != 12 {
		t.Errorf("expected fallback zoom 12, got %d", scene.Zoom)
	}
	// The depot is always plotted, so there is still something to fit.
	if scene.FitBounds == nil {
		t.Fatal("expected bounds around the depot")
	}
	if scene.FitBounds.South != scene.Depot.Lat || scene.FitBounds.West != scene.Depot.Lon {
		t.Errorf("bounds should collapse onto the depot: %+v", scene.FitBounds)
	}
}

func TestRenderArrowPlacement(t *testing.T) {
	seg := func(lat float64) routeplan.Segment {
		return routeplan.Segment{Points: []polyline.Coordinate{
			{Lat: lat, Lon: 0.2}, {Lat: lat + 0.01, Lon: 0.21},
		}}
	}
	record := &pipeline.RouteRecord{
		RouteID:  "R3",
		Segments: []routeplan.Segment{seg(51.40), seg(51.41), seg(51.42), seg(51.43)},
	}

	_, scene, _ := renderScene(t, record)

	if len(scene.Segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(scene.Segments))
	}
	// ArrowEvery is 2 in the test config: arrows on the 2nd and 4th segment.
	want := []bool{false, true, false, true}
	for i, s := range scene.Segments {
		if s.Arrow != want[i] {
			t.Errorf("segment %d: arrow=%v, want %v", i, s.Arrow, want[i])
		}
	}
}

func TestRenderTrackKeepsEndpoints(t *testing.T) {
	window := telematics.Window{
		Start: time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC),
	}
	record := &pipeline.RouteRecord{
		RouteID:   "R4",
		VehicleID: "EV101",
		Window:    &window,
		Track: []telematics.TrackPoint{
			{Lat: 51.4500, Lon: 0.2000, Timestamp: window.Start},
			{Lat: 51.4501, Lon: 0.2001, Timestamp: window.Start.Add(time.Minute)},
			{Lat: 51.4600, Lon: 0.2200, Timestamp: window.Start.Add(2 * time.Minute)},
		},
	}

	_, scene, _ := renderScene(t, record)

	if len(scene.Track) < 2 {
		t.Fatalf("thinned track lost its endpoints, %d points left", len(scene.Track))
	}
	first, last := scene.Track[0], scene.Track[len(scene.Track)-1]
	if first.Lat != 51.4500 || first.Lon != 0.2000 {
		t.Errorf("start fix not preserved: %+v", first)
	}
	if last.Lat != 51.4600 || last.Lon != 0.2200 {
		t.Errorf("end fix not preserved: %+v", last)
	}
}

func TestRenderSanitizesArtifactName(t *testing.T) {
	record := &pipeline.RouteRecord{RouteID: "DA/1 2026"}

	artifact, _, _ := renderScene(t, record)

	if filepath.Base(artifact.HTMLPath) != "journey_map_DA_1_2026.html" {
		t.Errorf("route ID not sanitized: %s", filepath.Base(artifact.HTMLPath))
	}
}

func TestRenderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	renderer := mapview.NewRenderer(testMapConfig(), t.TempDir(), zerolog.Nop())
	if _, err := renderer.Render(ctx, &pipeline.RouteRecord{RouteID: "R1"}); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
