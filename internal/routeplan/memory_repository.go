package routeplan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Source and Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu            sync.RWMutex
	routesByDay   map[string][]string // "site|day" -> route IDs
	assignments   map[string]Assignment
	nodes         map[string][]Node
	segments      map[string][]Segment
	chargingStops map[string][]ChargingStop

	// Err, when set, is returned by every lookup. For failure-path tests.
	Err error
}

// NewInMemoryRepository creates an empty in-memory route-plan repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		routesByDay:   make(map[string][]string),
		assignments:   make(map[string]Assignment),
		nodes:         make(map[string][]Node),
		segments:      make(map[string][]Segment),
		chargingStops: make(map[string][]ChargingStop),
	}
}

func dayKey(siteID int, day time.Time) string {
	return fmt.Sprintf("%d|%s", siteID, day.Format("2006-01-02"))
}

// AddRoute registers a route for a site/day together with its assignment.
func (r *InMemoryRepository) AddRoute(siteID int, day time.Time, asg Assignment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := dayKey(siteID, day)
	r.routesByDay[key] = append(r.routesByDay[key], asg.RouteID)
	r.assignments[asg.RouteID] = asg
}

// AddRouteID registers a route for a site/day without an assignment, so
// lookups for it return ErrRouteNotFound.
func (r *InMemoryRepository) AddRouteID(siteID int, day time.Time, routeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := dayKey(siteID, day)
	r.routesByDay[key] = append(r.routesByDay[key], routeID)
}

// SetGeometry attaches planned geometry to a route.
func (r *InMemoryRepository) SetGeometry(routeID string, nodes []Node, segments []Segment, stops []ChargingStop) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes[routeID] = nodes
	r.segments[routeID] = segments
	r.chargingStops[routeID] = stops
}

// ListRouteIDs returns the routes registered for a site/day, sorted.
func (r *InMemoryRepository) ListRouteIDs(_ context.Context, siteID int, day time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}

	ids := append([]string(nil), r.routesByDay[dayKey(siteID, day)]...)
	sort.Strings(ids)
	return ids, nil
}

// GetAssignment resolves a registered route.
func (r *InMemoryRepository) GetAssignment(_ context.Context, routeID string) (Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return Assignment{}, r.Err
	}

	asg, ok := r.assignments[routeID]
	if !ok {
		return Assignment{}, ErrRouteNotFound
	}
	return asg, nil
}

// ListNodes returns the registered waypoints.
func (r *InMemoryRepository) ListNodes(_ context.Context, routeID string) ([]Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return append([]Node(nil), r.nodes[routeID]...), nil
}

// ListSegments returns the registered road geometry.
func (r *InMemoryRepository) ListSegments(_ context.Context, routeID string) ([]Segment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return append([]Segment(nil), r.segments[routeID]...), nil
}

// ListChargingStops returns the registered charging locations.
func (r *InMemoryRepository) ListChargingStops(_ context.Context, routeID string) ([]ChargingStop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return append([]ChargingStop(nil), r.chargingStops[routeID]...), nil
}

var (
	_ Source     = (*InMemoryRepository)(nil)
	_ Repository = (*InMemoryRepository)(nil)
)
