package telematics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	windows map[string]Window // "vehicle|alias|day"
	tracks  map[string][]TrackPoint

	// WindowCalls and TrackCalls count lookups, so tests can assert the
	// telematics branch was short-circuited.
	WindowCalls int
	TrackCalls  int

	// Err, when set, is returned by every lookup.
	Err error
}

// NewInMemoryRepository creates an empty in-memory telematics repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		windows: make(map[string]Window),
		tracks:  make(map[string][]TrackPoint),
	}
}

func windowKey(vehicleID, alias string, day time.Time) string {
	return vehicleID + "|" + alias + "|" + day.Format("2006-01-02")
}

// SetWindow records a run window for a vehicle/alias/day.
func (r *InMemoryRepository) SetWindow(vehicleID, alias string, day time.Time, w Window) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows[windowKey(vehicleID, alias, day)] = w
}

// SetTrack records GPS fixes for a vehicle.
func (r *InMemoryRepository) SetTrack(vehicleID string, points []TrackPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks[vehicleID] = points
}

// ResolveWindow returns the recorded window, or ErrWindowNotFound.
func (r *InMemoryRepository) ResolveWindow(_ context.Context, vehicleID, routeAlias string, day time.Time) (Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.WindowCalls++
	if r.Err != nil {
		return Window{}, r.Err
	}

	w, ok := r.windows[windowKey(vehicleID, routeAlias, day)]
	if !ok {
		return Window{}, ErrWindowNotFound
	}
	return w, nil
}

// FetchTrack returns the recorded fixes inside the window, sorted ascending.
func (r *InMemoryRepository) FetchTrack(_ context.Context, vehicleID string, window Window) ([]TrackPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.TrackCalls++
	if r.Err != nil {
		return nil, r.Err
	}

	var track []TrackPoint
	for _, p := range r.tracks[vehicleID] {
		if window.Contains(p.Timestamp) {
			track = append(track, p)
		}
	}
	sort.Slice(track, func(i, j int) bool {
		return track[i].Timestamp.Before(track[j].Timestamp)
	})
	return track, nil
}

var _ Repository = (*InMemoryRepository)(nil)
