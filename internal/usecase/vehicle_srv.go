package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/data/repository"
	"bus-booking/internal/dto/request"
	"bus-booking/internal/dto/response"
	"bus-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type VehicleService interface {
	// Public endpoints
	GetVehicles(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.VehicleResponse], error)
	GetVehicleByID(ctx context.Context, vehicleID string) (*response.VehicleResponse, error)
	GetSeatAvailability(ctx context.Context, vehicleID string) (*response.SeatAvailabilityResponse, error)

	// Admin endpoints
	CreateVehicle(ctx context.Context, req *request.CreateVehicleRequest) (*response.VehicleResponse, error)
	DeleteVehicle(ctx context.Context, vehicleID string) error
	ReleaseSeat(ctx context.Context, vehicleID, label string) error
}

type vehicleService struct {
	repo   *repository.Repository
	ledger SeatLedger
	log    *zap.Logger
}

func NewVehicleService(repo *repository.Repository, ledger SeatLedger, log *zap.Logger) VehicleService {
	return &vehicleService{
		repo:   repo,
		ledger: ledger,
		log:    log.With(zap.String("service", "vehicle")),
	}
}

type seatCatalog struct {
	vehicles repository.VehicleRepository
}

// NewSeatCatalog serves seat map shapes from the vehicle catalog.
func NewSeatCatalog(vehicles repository.VehicleRepository) SeatCatalog {
	return &seatCatalog{vehicles: vehicles}
}

func (c *seatCatalog) GetSeatMapShape(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	vehicle, err := c.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return 0, fmt.Errorf("find vehicle: %w", err)
	}
	if vehicle == nil {
		return 0, fmt.Errorf("vehicle %s: %w", vehicleID, entity.ErrVehicleNotFound)
	}
	return vehicle.TotalSeats, nil
}

func parseVehicleID(vehicleID string) (uuid.UUID, error) {
	id, err := uuid.Parse(vehicleID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: vehicle ID %q", entity.ErrInvalidInput, vehicleID)
	}
	return id, nil
}

func (s *vehicleService) CreateVehicle(ctx context.Context, req *request.CreateVehicleRequest) (*response.VehicleResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create vehicle validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", entity.ErrValidation, utils.FormatValidationErrors(errs))
	}

	now := time.Now().UTC()
	vehicle := &entity.Vehicle{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:        strings.TrimSpace(req.Name),
		PlateNumber: strings.ToUpper(strings.TrimSpace(req.PlateNumber)),
		Origin:      strings.TrimSpace(req.Origin),
		Destination: strings.TrimSpace(req.Destination),
		DepartsAt:   req.DepartsAt.UTC(),
		Fare:        req.Fare,
		TotalSeats:  req.TotalSeats,
	}

	if err := s.repo.Vehicle.Create(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("create vehicle: %w", err)
	}

	// A vehicle without a seat map cannot be booked, so undo the catalog
	// entry if provisioning fails.
	if _, err := s.ledger.ProvisionSeatMap(ctx, vehicle.ID); err != nil {
		s.log.Error("Failed to provision seat map, removing vehicle",
			zap.Error(err),
			zap.String("vehicle_id", vehicle.ID.String()),
		)
		cleanupCtx, cancel := cleanupContext(ctx)
		defer cancel()
		if delErr := s.repo.Vehicle.Delete(cleanupCtx, vehicle.ID); delErr != nil {
			s.log.Error("Failed to remove vehicle after provisioning error",
				zap.Error(delErr),
				zap.String("vehicle_id", vehicle.ID.String()),
			)
		}
		return nil, fmt.Errorf("provision seat map: %w", err)
	}

	s.log.Info("Vehicle created",
		zap.String("vehicle_id", vehicle.ID.String()),
		zap.String("plate_number", vehicle.PlateNumber),
		zap.Int("total_seats", vehicle.TotalSeats),
	)

	resp := response.VehicleToResponse(vehicle)
	return &resp, nil
}

func (s *vehicleService) GetVehicles(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.VehicleResponse], error) {
	vehicles, err := s.repo.Vehicle.FindAll(ctx, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}

	total, err := s.repo.Vehicle.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count vehicles: %w", err)
	}

	data := make([]response.VehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		data = append(data, response.VehicleToResponse(v))
	}

	return response.NewPaginatedResponse(data, req.Page, req.Limit(), total), nil
}

func (s *vehicleService) GetVehicleByID(ctx context.Context, vehicleID string) (*response.VehicleResponse, error) {
	id, err := parseVehicleID(vehicleID)
	if err != nil {
		return nil, err
	}

	vehicle, err := s.repo.Vehicle.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, fmt.Errorf("vehicle %s: %w", vehicleID, entity.ErrVehicleNotFound)
	}

	resp := response.VehicleToResponse(vehicle)
	return &resp, nil
}


func (s *vehicleService) GetSeatAvailability(ctx context.Context, vehicleID string) (*response.SeatAvailabilityResponse, error) {
	id, err := parseVehicleID(vehicleID)
	if err != nil {
		return nil, err
	}

	summary, err := s.ledger.SeatMapSummary(ctx, id)
	if err != nil {
		return nil, err
	}

	return &response.SeatAvailabilityResponse{
		VehicleID:      summary.VehicleID.String(),
		TotalSeats:     summary.TotalSeats,
		AvailableCount: summary.AvailableCount,
		AvailableSeats: summary.Available,
	}, nil
}

func (s *vehicleService) DeleteVehicle(ctx context.Context, vehicleID string) error {
	id, err := parseVehicleID(vehicleID)
	if err != nil {
		return err
	}

	if err := s.repo.SeatMap.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Vehicle.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info("Vehicle deleted", zap.String("vehicle_id", vehicleID))
	return nil
}

// ReleaseSeat is the operator override: it frees a seat whoever holds it.
func (s *vehicleService) ReleaseSeat(ctx context.Context, vehicleID, label string) error {
	id, err := parseVehicleID(vehicleID)
	if err != nil {
		return err
	}
	if label == "" {
		return fmt.Errorf("%w: empty seat label", entity.ErrInvalidInput)
	}

	return s.ledger.ReleaseSeat(ctx, id, label)
}
