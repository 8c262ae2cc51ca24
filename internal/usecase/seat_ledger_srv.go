package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultClaimAttempts = 5

// SeatLedger owns the per-vehicle seat maps. Every write goes through a
// versioned compare-and-swap of the whole map, so the seat statuses and the
// available counter always move together.
type SeatLedger interface {
	ProvisionSeatMap(ctx context.Context, vehicleID uuid.UUID) (*entity.SeatMap, error)
	ClaimSeat(ctx context.Context, vehicleID uuid.UUID, label, claimant string) error
	ReleaseSeat(ctx context.Context, vehicleID uuid.UUID, label string) error
	ReleaseClaim(ctx context.Context, vehicleID uuid.UUID, label, claimant string) (bool, error)
	ListAvailableSeats(ctx context.Context, vehicleID uuid.UUID) ([]string, error)
	SeatMapSummary(ctx context.Context, vehicleID uuid.UUID) (*SeatSummary, error)
}

// SeatCatalog tells the ledger how many seats a vehicle's map should hold.
type SeatCatalog interface {
	GetSeatMapShape(ctx context.Context, vehicleID uuid.UUID) (int, error)
}

type SeatSummary struct {
	VehicleID      uuid.UUID
	TotalSeats     int
	AvailableCount int
	Available      []string
}

type seatLedger struct {
	seatMaps repository.SeatMapRepository
	catalog  SeatCatalog
	attempts int
	now      func() time.Time
	log      *zap.Logger
}

func NewSeatLedger(
	seatMaps repository.SeatMapRepository,
	catalog SeatCatalog,
	claimAttempts int,
	log *zap.Logger,
) SeatLedger {
	if claimAttempts < 1 {
		claimAttempts = defaultClaimAttempts
	}
	return &seatLedger{
		seatMaps: seatMaps,
		catalog:  catalog,
		attempts: claimAttempts,
		now:      time.Now,
		log:      log.With(zap.String("service", "seat_ledger")),
	}
}

func (s *seatLedger) ProvisionSeatMap(ctx context.Context, vehicleID uuid.UUID) (*entity.SeatMap, error) {
	totalSeats, err := s.catalog.GetSeatMapShape(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	seatMap, err := entity.NewSeatMap(vehicleID, totalSeats, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("provision seat map for vehicle %s: %w", vehicleID, err)
	}

	if err := s.seatMaps.Create(ctx, seatMap); err != nil {
		return nil, err
	}

	s.log.Info("Seat map provisioned",
		zap.String("vehicle_id", vehicleID.String()),
		zap.Int("total_seats", seatMap.TotalSeats),
	)
	return seatMap, nil
}

func (s *seatLedger) load(ctx context.Context, vehicleID uuid.UUID) (*entity.SeatMap, error) {
	seatMap, err := s.seatMaps.FindByVehicleID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if seatMap == nil {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, entity.ErrVehicleNotFound)
	}
	if err := seatMap.Validate(); err != nil {
		s.log.Error("Stored seat map failed validation",
			zap.Error(err),
			zap.String("vehicle_id", vehicleID.String()),
			zap.Int64("version", seatMap.Version),
		)
		return nil, fmt.Errorf("%w: %w", entity.ErrCorruptSeatMap, err)
	}
	return seatMap, nil
}

// errNoChange tells update that the mutation left the map untouched and no
// write is needed.
var errNoChange = errors.New("no change")

// update runs mutate against a fresh copy of the stored map and swaps it in.
// A version conflict means another writer committed first; the map is read
// again and mutate re-evaluated against the new state.
func (s *seatLedger) update(ctx context.Context, vehicleID uuid.UUID, mutate func(m *entity.SeatMap) error) error {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		current, err := s.load(ctx, vehicleID)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		next.Version = current.Version + 1
		next.UpdatedAt = s.now().UTC()

		swapped, err := s.seatMaps.CompareAndSwap(ctx, next, current.Version)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}

		s.log.Debug("Seat map changed underneath, retrying",
			zap.String("vehicle_id", vehicleID.String()),
			zap.Int("attempt", attempt),
		)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return errConflictsExhausted
}

var errConflictsExhausted = errors.New("seat map write conflicts exhausted")

func (s *seatLedger) ClaimSeat(ctx context.Context, vehicleID uuid.UUID, label, claimant string) error {
	if claimant == "" {
		return fmt.Errorf("%w: empty claimant", entity.ErrInvalidInput)
	}

	err := s.update(ctx, vehicleID, func(m *entity.SeatMap) error {
		return m.Claim(label, claimant)
	})
	if errors.Is(err, errConflictsExhausted) {
		s.log.Warn("Claim gave up after repeated conflicts",
			zap.String("vehicle_id", vehicleID.String()),
			zap.String("seat", label),
		)
		return fmt.Errorf("seat %s: %w", label, entity.ErrSeatUnavailable)
	}
	if err != nil {
		return err
	}

	s.log.Info("Seat claimed",
		zap.String("vehicle_id", vehicleID.String()),
		zap.String("seat", label),
		zap.String("claimant", claimant),
	)
	return nil
}

func (s *seatLedger) ReleaseSeat(ctx context.Context, vehicleID uuid.UUID, label string) error {
	err := s.update(ctx, vehicleID, func(m *entity.SeatMap) error {
		changed, err := m.Release(label)
		if err != nil {
			return err
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return nil
	}
	if errors.Is(err, errConflictsExhausted) {
		return fmt.Errorf("release seat %s on vehicle %s: %w", label, vehicleID, err)
	}
	if err != nil {
		return err
	}

	s.log.Info("Seat released",
		zap.String("vehicle_id", vehicleID.String()),
		zap.String("seat", label),
	)
	return nil
}

func (s *seatLedger) ReleaseClaim(ctx context.Context, vehicleID uuid.UUID, label, claimant string) (bool, error) {
	err := s.update(ctx, vehicleID, func(m *entity.SeatMap) error {
		changed, err := m.ReleaseIfClaimedBy(label, claimant)
		if err != nil {
			return err
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if errors.Is(err, errConflictsExhausted) {
		return false, fmt.Errorf("release seat %s on vehicle %s: %w", label, vehicleID, err)
	}
	if err != nil {
		return false, err
	}

	s.log.Info("Seat claim released",
		zap.String("vehicle_id", vehicleID.String()),
		zap.String("seat", label),
		zap.String("claimant", claimant),
	)
	return true, nil
}

func (s *seatLedger) ListAvailableSeats(ctx context.Context, vehicleID uuid.UUID) ([]string, error) {
	seatMap, err := s.load(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return seatMap.AvailableSeats(), nil
}

func (s *seatLedger) SeatMapSummary(ctx context.Context, vehicleID uuid.UUID) (*SeatSummary, error) {
	seatMap, err := s.load(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	return &SeatSummary{
		VehicleID:      seatMap.VehicleID,
		TotalSeats:     seatMap.TotalSeats,
		AvailableCount: seatMap.AvailableCount,
		Available:      seatMap.AvailableSeats(),
	}, nil
}
