package routeplan

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/routemaps/routemaps/pkg/polyline"
)

// PostgresRepository is a PostgreSQL implementation of Source and Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL route-plan repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListRouteIDs returns the routes planned for a site on the given day.
func (r *PostgresRepository) ListRouteIDs(ctx context.Context, siteID int, day time.Time) ([]string, error) {
	query := `
		SELECT route_no
		FROM v_onroute_charge_daily_plan
		WHERE plan_departure_time::date = $1 AND site_id = $2
	`

	rows, err := r.pool.Query(ctx, query, day, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Deterministic batch order regardless of plan insertion order.
	sort.Strings(ids)
	return ids, nil
}

// GetAssignment resolves a route to its vehicle and telematics alias.
func (r *PostgresRepository) GetAssignment(ctx context.Context, routeID string) (Assignment, error) {
	query := `
		SELECT vehicle_id, route_alias
		FROM t_route_plan
		WHERE route_id = $1
	`

	asg := Assignment{RouteID: routeID}
	err := r.pool.QueryRow(ctx, query, routeID).Scan(&asg.VehicleID, &asg.RouteAlias)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrRouteNotFound
		}
		return Assignment{}, err
	}

	return asg, nil
}

// ListNodes returns the planned waypoints ordered by sequence number.
func (r *PostgresRepository) ListNodes(ctx context.Context, routeID string) ([]Node, error) {
	query := `
		SELECT jn.y_cord, jn.x_cord, jn.node_sequence
		FROM t_journey_nodes jn
		JOIN t_journeys j ON jn.journey_id = j.journey_id
		WHERE j.route_plan_route_id = $1
		  AND jn.y_cord IS NOT NULL AND jn.x_cord IS NOT NULL
		ORDER BY jn.node_sequence
	`

	rows, err := r.pool.Query(ctx, query, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.Lat, &n.Lon, &n.Sequence); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ListSegments returns the planned road geometry. Segment shapes are stored
// in PostGIS and come back polyline-encoded.
func (r *PostgresRepository) ListSegments(ctx context.Context, routeID string) ([]Segment, error) {
	query := `
		SELECT ST_AsEncodedPolyline(l.geom_way)
		FROM t_journeys j
		JOIN t_road_segments_per_journey rs ON j.journey_id = rs.journey_id
		JOIN hh_2po_4pgr l ON rs.osm_road_segment_id = l.osm_id
		WHERE j.route_plan_route_id = $1
		ORDER BY rs.segment_sequence
	`

	rows, err := r.pool.Query(ctx, query, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, err
		}
		points := polyline.Decode(encoded)
		if len(points) == 0 {
			continue
		}
		segments = append(segments, Segment{Points: points})
	}
	return segments, rows.Err()
}

// ListChargingStops returns the planned charging locations.
func (r *PostgresRepository) ListChargingStops(ctx context.Context, routeID string) ([]ChargingStop, error) {
	query := `
		SELECT s.latitude, s.longitude
		FROM t_journey_nodes jn
		JOIN t_ev_charging_stations s ON jn.ev_charge_station_id = s.id
		JOIN t_journeys j ON jn.journey_id = j.journey_id
		WHERE j.route_plan_route_id = $1
		  AND jn.node_type = 'CHARGE'
	`

	rows, err := r.pool.Query(ctx, query, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []ChargingStop
	for rows.Next() {
		var s ChargingStop
		if err := rows.Scan(&s.Lat, &s.Lon); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// Ensure PostgresRepository implements both interfaces.
var (
	_ Source     = (*PostgresRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)
