package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bus-booking/internal/data/entity"
	"bus-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SeatMapRepository stores one seat map document per vehicle. The document is
// the unit of atomicity: seats and available_count are always written by the
// same statement.
type SeatMapRepository interface {
	Create(ctx context.Context, seatMap *entity.SeatMap) error
	FindByVehicleID(ctx context.Context, vehicleID uuid.UUID) (*entity.SeatMap, error)

	// CompareAndSwap writes next only if the stored version still equals
	// expectedVersion. It reports false, nil when another writer got there first.
	CompareAndSwap(ctx context.Context, next *entity.SeatMap, expectedVersion int64) (bool, error)
	Delete(ctx context.Context, vehicleID uuid.UUID) error
}

type seatMapRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSeatMapRepository(db database.PgxIface, log *zap.Logger) SeatMapRepository {
	return &seatMapRepository{
		db:  db,
		log: log.With(zap.String("repository", "seat_map")),
	}
}

func (r *seatMapRepository) Create(ctx context.Context, seatMap *entity.SeatMap) error {
	seats, err := json.Marshal(seatMap.Seats)
	if err != nil {
		return fmt.Errorf("encode seats for vehicle %s: %w", seatMap.VehicleID.String(), err)
	}

	query := `
		INSERT INTO seat_maps (vehicle_id, total_seats, available_count, seats, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.Exec(ctx, query,
		seatMap.VehicleID,
		seatMap.TotalSeats,
		seatMap.AvailableCount,
		seats,
		seatMap.Version,
		seatMap.CreatedAt,
		seatMap.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create seat map",
			zap.Error(err),
			zap.String("vehicle_id", seatMap.VehicleID.String()),
			zap.Int("total_seats", seatMap.TotalSeats),
		)
		return fmt.Errorf("create seat map for vehicle %s: %w", seatMap.VehicleID.String(), err)
	}

	return nil
}

func (r *seatMapRepository) FindByVehicleID(ctx context.Context, vehicleID uuid.UUID) (*entity.SeatMap, error) {
	query := `
		SELECT vehicle_id, total_seats, available_count, seats, version, created_at, updated_at
		FROM seat_maps
		WHERE vehicle_id = $1
	`

	var (
		seatMap entity.SeatMap
		seats   []byte
	)
	err := r.db.QueryRow(ctx, query, vehicleID).Scan(
		&seatMap.VehicleID,
		&seatMap.TotalSeats,
		&seatMap.AvailableCount,
		&seats,
		&seatMap.Version,
		&seatMap.CreatedAt,
		&seatMap.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find seat map",
			zap.Error(err),
			zap.String("vehicle_id", vehicleID.String()),
		)
		return nil, fmt.Errorf("find seat map for vehicle %s: %w", vehicleID.String(), err)
	}

	if err := json.Unmarshal(seats, &seatMap.Seats); err != nil {
		r.log.Error("Failed to decode seat map",
			zap.Error(err),
			zap.String("vehicle_id", vehicleID.String()),
		)
		return nil, fmt.Errorf("decode seats for vehicle %s: %w", vehicleID.String(), err)
	}

	return &seatMap, nil
}

func (r *seatMapRepository) CompareAndSwap(ctx context.Context, next *entity.SeatMap, expectedVersion int64) (bool, error) {
	seats, err := json.Marshal(next.Seats)
	if err != nil {
		return false, fmt.Errorf("encode seats for vehicle %s: %w", next.VehicleID.String(), err)
	}

	query := `
		UPDATE seat_maps
		SET seats = $2, available_count = $3, version = $4, updated_at = $5
		WHERE vehicle_id = $1 AND version = $6
	`

	result, err := r.db.Exec(ctx, query,
		next.VehicleID,
		seats,
		next.AvailableCount,
		next.Version,
		next.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		r.log.Error("Failed to swap seat map",
			zap.Error(err),
			zap.String("vehicle_id", next.VehicleID.String()),
			zap.Int64("expected_version", expectedVersion),
		)
		return false, fmt.Errorf("update seat map for vehicle %s: %w", next.VehicleID.String(), err)
	}

	if result.RowsAffected() == 0 {
		r.log.Debug("Seat map version conflict",
			zap.String("vehicle_id", next.VehicleID.String()),
			zap.Int64("expected_version", expectedVersion),
		)
		return false, nil
	}

	return true, nil
}

func (r *seatMapRepository) Delete(ctx context.Context, vehicleID uuid.UUID) error {
	query := `DELETE FROM seat_maps WHERE vehicle_id = $1`

	if _, err := r.db.Exec(ctx, query, vehicleID); err != nil {
		r.log.Error("Failed to delete seat map",
			zap.Error(err),
			zap.String("vehicle_id", vehicleID.String()),
		)
		return fmt.Errorf("delete seat map for vehicle %s: %w", vehicleID.String(), err)
	}

	r.log.Info("Seat map deleted", zap.String("vehicle_id", vehicleID.String()))
	return nil
}
