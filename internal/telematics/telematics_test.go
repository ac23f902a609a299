package telematics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/routemaps/routemaps/internal/telematics"
)

var day = time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

func TestWindowValid(t *testing.T) {
	valid := telematics.Window{Start: day.Add(6 * time.Hour), End: day.Add(14 * time.Hour)}
	if !valid.Valid() {
		t.Error("ascending window should be valid")
	}

	inverted := telematics.Window{Start: day.Add(14 * time.Hour), End: day.Add(6 * time.Hour)}
	if inverted.Valid() {
		t.Error("inverted window should be invalid")
	}

	if (telematics.Window{Start: day, End: day}).Valid() {
		t.Error("zero-length window should be invalid")
	}
}

func TestWindowContains(t *testing.T) {
	w := telematics.Window{Start: day.Add(6 * time.Hour), End: day.Add(14 * time.Hour)}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{day.Add(6 * time.Hour), true},  // start is inclusive
		{day.Add(14 * time.Hour), true}, // end is inclusive
		{day.Add(10 * time.Hour), true},
		{day.Add(5 * time.Hour), false},
		{day.Add(15 * time.Hour), false},
	}
	for _, c := range cases {
		if got := w.Contains(c.at); got != c.want {
			t.Errorf("Contains(%s) = %v, want %v", c.at, got, c.want)
		}
	}
}

func TestResolveWindowNotFound(t *testing.T) {
	repo := telematics.NewInMemoryRepository()

	_, err := repo.ResolveWindow(context.Background(), "EV101", "DA-1", day)
	if !errors.Is(err, telematics.ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
	if repo.WindowCalls != 1 {
		t.Errorf("expected 1 window call, got %d", repo.WindowCalls)
	}
}

func TestResolveWindowKeyedByVehicleAliasDay(t *testing.T) {
	repo := telematics.NewInMemoryRepository()
	w := telematics.Window{Start: day.Add(6 * time.Hour), End: day.Add(14 * time.Hour)}
	repo.SetWindow("EV101", "DA-1", day, w)

	got, err := repo.ResolveWindow(context.Background(), "EV101", "DA-1", day)
	if err != nil {
		t.Fatalf("ResolveWindow returned error: %v", err)
	}
	if !got.Start.Equal(w.Start) || !got.End.Equal(w.End) {
		t.Errorf("got window %+v, want %+v", got, w)
	}

	if _, err := repo.ResolveWindow(context.Background(), "EV101", "DA-2", day); !errors.Is(err, telematics.ErrWindowNotFound) {
		t.Error("different alias must not resolve the window")
	}
	if _, err := repo.ResolveWindow(context.Background(), "EV101", "DA-1", day.AddDate(0, 0, 1)); !errors.Is(err, telematics.ErrWindowNotFound) {
		t.Error("different day must not resolve the window")
	}
}

func TestFetchTrackFiltersAndSorts(t *testing.T) {
	repo := telematics.NewInMemoryRepository()
	repo.SetTrack("EV101", []telematics.TrackPoint{
		{Lat: 51.47, Lon: 0.25, Timestamp: day.Add(9 * time.Hour)},
		{Lat: 51.46, Lon: 0.24, Timestamp: day.Add(7 * time.Hour)},
		{Lat: 51.99, Lon: 0.99, Timestamp: day.Add(20 * time.Hour)},
	})
	w := telematics.Window{Start: day.Add(6 * time.Hour), End: day.Add(14 * time.Hour)}

	track, err := repo.FetchTrack(context.Background(), "EV101", w)
	if err != nil {
		t.Fatalf("FetchTrack returned error: %v", err)
	}

	if len(track) != 2 {
		t.Fatalf("expected 2 in-window points, got %d", len(track))
	}
	if !track[0].Timestamp.Before(track[1].Timestamp) {
		t.Error("track not sorted ascending")
	}
	if repo.TrackCalls != 1 {
		t.Errorf("expected 1 track call, got %d", repo.TrackCalls)
	}
}

func TestRepositoryErrorInjection(t *testing.T) {
	repo := telematics.NewInMemoryRepository()
	repo.Err = errors.New("connection reset")

	if _, err := repo.ResolveWindow(context.Background(), "EV101", "DA-1", day); err == nil {
		t.Error("expected injected error from ResolveWindow")
	}
	if _, err := repo.FetchTrack(context.Background(), "EV101", telematics.Window{}); err == nil {
		t.Error("expected injected error from FetchTrack")
	}
}
