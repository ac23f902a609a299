package routeplan_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/routemaps/routemaps/internal/routeplan"
	"github.com/routemaps/routemaps/pkg/polyline"
)

var day = time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

func TestAssignmentTracked(t *testing.T) {
	cases := []struct {
		vehicleID string
		want      bool
	}{
		{"EV101", true},
		{routeplan.UnassignedVehicleID, false},
		{"", false},
	}
	for _, c := range cases {
		asg := routeplan.Assignment{RouteID: "R1", VehicleID: c.vehicleID}
		if got := asg.Tracked(); got != c.want {
			t.Errorf("Tracked() with vehicle %q = %v, want %v", c.vehicleID, got, c.want)
		}
	}
}

func TestListRouteIDsSortedPerSiteAndDay(t *testing.T) {
	repo := routeplan.NewInMemoryRepository()
	repo.AddRoute(10, day, routeplan.Assignment{RouteID: "R9", VehicleID: "EV1"})
	repo.AddRoute(10, day, routeplan.Assignment{RouteID: "R1", VehicleID: "EV2"})
	repo.AddRoute(11, day, routeplan.Assignment{RouteID: "R5", VehicleID: "EV3"})
	repo.AddRoute(10, day.AddDate(0, 0, 1), routeplan.Assignment{RouteID: "R7", VehicleID: "EV4"})

	ids, err := repo.ListRouteIDs(context.Background(), 10, day)
	if err != nil {
		t.Fatalf("ListRouteIDs returned error: %v", err)
	}

	want := []string{"R1", "R9"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestGetAssignmentNotFound(t *testing.T) {
	repo := routeplan.NewInMemoryRepository()
	repo.AddRouteID(10, day, "R2") // discovered, no plan record

	ids, err := repo.ListRouteIDs(context.Background(), 10, day)
	if err != nil || len(ids) != 1 {
		t.Fatalf("ListRouteIDs = %v, %v", ids, err)
	}

	_, err = repo.GetAssignment(context.Background(), "R2")
	if !errors.Is(err, routeplan.ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
}

func TestGeometryRoundTrip(t *testing.T) {
	repo := routeplan.NewInMemoryRepository()
	repo.AddRoute(10, day, routeplan.Assignment{RouteID: "R1", VehicleID: "EV1", RouteAlias: "DA-1"})
	repo.SetGeometry("R1",
		[]routeplan.Node{{Lat: 51.46, Lon: 0.24, Sequence: 1}, {Lat: 51.47, Lon: 0.25, Sequence: 2}},
		[]routeplan.Segment{{Points: []polyline.Coordinate{{Lat: 51.46, Lon: 0.24}, {Lat: 51.47, Lon: 0.25}}}},
		[]routeplan.ChargingStop{{Lat: 51.44, Lon: 0.21}},
	)

	ctx := context.Background()

	nodes, err := repo.ListNodes(ctx, "R1")
	if err != nil || len(nodes) != 2 {
		t.Fatalf("ListNodes = %v, %v", nodes, err)
	}
	segments, err := repo.ListSegments(ctx, "R1")
	if err != nil || len(segments) != 1 {
		t.Fatalf("ListSegments = %v, %v", segments, err)
	}
	stops, err := repo.ListChargingStops(ctx, "R1")
	if err != nil || len(stops) != 1 {
		t.Fatalf("ListChargingStops = %v, %v", stops, err)
	}

	// A route without geometry yields empty layers, not errors.
	nodes, err = repo.ListNodes(ctx, "R-unknown")
	if err != nil || len(nodes) != 0 {
		t.Fatalf("unknown route should yield no nodes, got %v, %v", nodes, err)
	}
}

func TestRepositoryErrorInjection(t *testing.T) {
	repo := routeplan.NewInMemoryRepository()
	repo.Err = errors.New("connection reset")

	if _, err := repo.ListRouteIDs(context.Background(), 10, day); err == nil {
		t.Error("expected injected error from ListRouteIDs")
	}
	if _, err := repo.GetAssignment(context.Background(), "R1"); err == nil {
		t.Error("expected injected error from GetAssignment")
	}
}
