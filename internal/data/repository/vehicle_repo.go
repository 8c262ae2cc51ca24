package repository

import (
	"context"
	"errors"
	"fmt"

	"bus-booking/internal/data/entity"
	"bus-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type VehicleRepository interface {
	Create(ctx context.Context, vehicle *entity.Vehicle) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Vehicle, error)
	FindAll(ctx context.Context, limit, offset int) ([]*entity.Vehicle, error)
	CountAll(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type vehicleRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewVehicleRepository(db database.PgxIface, log *zap.Logger) VehicleRepository {
	return &vehicleRepository{
		db:  db,
		log: log.With(zap.String("repository", "vehicle")),
	}
}

const vehicleColumns = `id, name, plate_number, origin, destination, departs_at, fare, total_seats, created_at, updated_at, deleted_at`

func scanVehicle(row pgx.Row) (*entity.Vehicle, error) {
	var v entity.Vehicle
	err := row.Scan(
		&v.ID,
		&v.Name,
		&v.PlateNumber,
		&v.Origin,
		&v.Destination,
		&v.DepartsAt,
		&v.Fare,
		&v.TotalSeats,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *vehicleRepository) Create(ctx context.Context, vehicle *entity.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, name, plate_number, origin, destination, departs_at, fare, total_seats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		vehicle.ID,
		vehicle.Name,
		vehicle.PlateNumber,
		vehicle.Origin,
		vehicle.Destination,
		vehicle.DepartsAt,
		vehicle.Fare,
		vehicle.TotalSeats,
		vehicle.CreatedAt,
		vehicle.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create vehicle",
			zap.Error(err),
			zap.String("plate_number", vehicle.PlateNumber),
		)
		return fmt.Errorf("create vehicle %s: %w", vehicle.PlateNumber, err)
	}

	return nil
}

func (r *vehicleRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1 AND deleted_at IS NULL`

	vehicle, err := scanVehicle(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find vehicle by ID",
			zap.Error(err),
			zap.String("vehicle_id", id.String()),
		)
		return nil, fmt.Errorf("find vehicle by ID %s: %w", id.String(), err)
	}

	return vehicle, nil
}

func (r *vehicleRepository) FindAll(ctx context.Context, limit, offset int) ([]*entity.Vehicle, error) {
	query := `
		SELECT ` + vehicleColumns + `
		FROM vehicles
		WHERE deleted_at IS NULL
		ORDER BY departs_at
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.Error("Failed to list vehicles",
			zap.Error(err),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*entity.Vehicle
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			r.log.Error("Failed to scan vehicle row", zap.Error(err))
			return nil, fmt.Errorf("scan vehicle row: %w", err)
		}
		vehicles = append(vehicles, vehicle)
	}

	return vehicles, rows.Err()
}

func (r *vehicleRepository) CountAll(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM vehicles WHERE deleted_at IS NULL`

	var count int64
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		r.log.Error("Failed to count vehicles", zap.Error(err))
		return 0, fmt.Errorf("count vehicles: %w", err)
	}

	return count, nil
}

// Delete hard-deletes the vehicle; its seat map goes with it (ON DELETE CASCADE).
func (r *vehicleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM vehicles WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to delete vehicle",
			zap.Error(err),
			zap.String("vehicle_id", id.String()),
		)
		return fmt.Errorf("delete vehicle %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("vehicle %s: %w", id.String(), entity.ErrVehicleNotFound)
	}

	r.log.Info("Vehicle deleted", zap.String("vehicle_id", id.String()))
	return nil
}
