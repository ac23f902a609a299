package telematics

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	builder sq.StatementBuilderType
}

// NewPostgresRepository creates a new PostgreSQL telematics repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool:    pool,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ResolveWindow returns the recorded run window for a vehicle/alias/day.
func (r *PostgresRepository) ResolveWindow(ctx context.Context, vehicleID, routeAlias string, day time.Time) (Window, error) {
	query, args, err := r.builder.
		Select("route_start_time", "route_end_time").
		From("t_route_data_from_telematics").
		Where(sq.Eq{"route_alias": routeAlias, "vehicle_id": vehicleID}).
		Where(sq.Expr("route_start_time::date = ?", day)).
		OrderBy("route_start_time").
		Limit(1).
		ToSql()
	if err != nil {
		return Window{}, err
	}

	var w Window
	err = r.pool.QueryRow(ctx, query, args...).Scan(&w.Start, &w.End)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Window{}, ErrWindowNotFound
		}
		return Window{}, err
	}

	return w, nil
}

// FetchTrack returns the GPS fixes within the window, ascending by time.
func (r *PostgresRepository) FetchTrack(ctx context.Context, vehicleID string, window Window) ([]TrackPoint, error) {
	query, args, err := r.builder.
		Select("latitude", "longitude", "date", "speed").
		From("stg_masternaut_last_n_days").
		Where(sq.Eq{"vehicle_id": vehicleID}).
		Where(sq.GtOrEq{"date": window.Start}).
		Where(sq.LtOrEq{"date": window.End}).
		OrderBy("date").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var track []TrackPoint
	for rows.Next() {
		var p TrackPoint
		if err := rows.Scan(&p.Lat, &p.Lon, &p.Timestamp, &p.Speed); err != nil {
			return nil, err
		}
		track = append(track, p)
	}
	return track, rows.Err()
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
