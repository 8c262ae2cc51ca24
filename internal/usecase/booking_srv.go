package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/data/repository"
	"bus-booking/internal/dto/request"
	"bus-booking/internal/dto/response"
	"bus-booking/pkg/notify"
	"bus-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	expireBatchSize = 100
	publishTimeout  = 5 * time.Second
)

type BookingService interface {
	// Rider endpoints (auth required)
	CreateBooking(ctx context.Context, userID string, req *request.CreateBookingRequest) (*response.BookingResponse, error)
	ConfirmBooking(ctx context.Context, userID, bookingID string) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, userID, bookingID string, admin bool) error
	GetUserBookings(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error)

	// Admin endpoints
	GetBookingByID(ctx context.Context, bookingID string) (*response.BookingDetailResponse, error)

	// Background
	ExpirePendingBookings(ctx context.Context, now time.Time) (int, error)
}

type bookingService struct {
	repo      *repository.Repository
	ledger    SeatLedger
	publisher notify.Publisher
	hold      time.Duration
	now       func() time.Time
	log       *zap.Logger
}

func NewBookingService(
	repo *repository.Repository,
	ledger SeatLedger,
	publisher notify.Publisher,
	config *utils.Config,
	log *zap.Logger,
) BookingService {
	hold := config.Booking.HoldDuration()
	if hold <= 0 {
		hold = 15 * time.Minute
	}
	return &bookingService{
		repo:      repo,
		ledger:    ledger,
		publisher: publisher,
		hold:      hold,
		now:       time.Now,
		log:       log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, userID string, req *request.CreateBookingRequest) (*response.BookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", entity.ErrValidation, utils.FormatValidationErrors(errs))
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user ID %q", entity.ErrInvalidInput, userID)
	}

	vehicleID, err := parseVehicleID(req.VehicleID)
	if err != nil {
		return nil, err
	}

	vehicle, err := s.repo.Vehicle.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("find vehicle: %w", err)
	}
	if vehicle == nil {
		return nil, fmt.Errorf("vehicle %s: %w", req.VehicleID, entity.ErrVehicleNotFound)
	}

	now := s.now().UTC()
	if !vehicle.DepartsAt.After(now) {
		return nil, fmt.Errorf("vehicle %s: %w", req.VehicleID, entity.ErrVehicleDeparted)
	}

	booking := &entity.Booking{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		OrderID:   utils.GenerateOrderID(now),
		UserID:    userUUID,
		VehicleID: vehicleID,
		SeatLabel: req.SeatLabel,
		Fare:      vehicle.Fare,
		Status:    entity.BookingStatusPending,
		ExpiresAt: now.Add(s.hold),
	}

	// The ledger is the arbiter: claim first, record second.
	if err := s.ledger.ClaimSeat(ctx, vehicleID, req.SeatLabel, booking.Claimant()); err != nil {
		s.log.Info("Seat claim rejected",
			zap.Error(err),
			zap.String("vehicle_id", req.VehicleID),
			zap.String("seat", req.SeatLabel),
			zap.String("user_id", userID),
		)
		return nil, err
	}

	if err := s.repo.Booking.Create(ctx, booking); err != nil {
		s.log.Error("Failed to record booking, releasing seat",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("seat", req.SeatLabel),
		)
		cleanupCtx, cancel := cleanupContext(ctx)
		defer cancel()
		if _, relErr := s.ledger.ReleaseClaim(cleanupCtx, vehicleID, req.SeatLabel, booking.Claimant()); relErr != nil {
			s.log.Error("Failed to release seat after booking error",
				zap.Error(relErr),
				zap.String("booking_id", booking.ID.String()),
				zap.String("vehicle_id", req.VehicleID),
				zap.String("seat", req.SeatLabel),
			)
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("order_id", booking.OrderID),
		zap.String("vehicle_id", req.VehicleID),
		zap.String("seat", booking.SeatLabel),
	)

	event := bookingEvent(notify.EventBookingCreated, booking, now)
	event.VehicleName = vehicle.Name
	event.Origin = vehicle.Origin
	event.Destination = vehicle.Destination
	event.DepartsAt = vehicle.DepartsAt
	go s.publish(event)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) ConfirmBooking(ctx context.Context, userID, bookingID string) (*response.BookingResponse, error) {
	booking, err := s.findOwned(ctx, userID, bookingID, false)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if booking.Status != entity.BookingStatusPending || !booking.ExpiresAt.After(now) {
		return nil, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, entity.ErrBookingState)
	}

	ok, err := s.repo.Booking.TransitionStatus(ctx, booking.ID,
		[]entity.BookingStatus{entity.BookingStatusPending}, entity.BookingStatusConfirmed, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("booking %s changed concurrently: %w", bookingID, entity.ErrBookingState)
	}

	booking.Status = entity.BookingStatusConfirmed
	booking.UpdatedAt = now

	s.log.Info("Booking confirmed", zap.String("booking_id", bookingID))

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, userID, bookingID string, admin bool) error {
	booking, err := s.findOwned(ctx, userID, bookingID, admin)
	if err != nil {
		return err
	}

	if !booking.Status.HoldsSeat() {
		return fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, entity.ErrBookingState)
	}

	now := s.now().UTC()
	ok, err := s.repo.Booking.TransitionStatus(ctx, booking.ID,
		[]entity.BookingStatus{entity.BookingStatusPending, entity.BookingStatusConfirmed},
		entity.BookingStatusCancelled, now)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("booking %s changed concurrently: %w", bookingID, entity.ErrBookingState)
	}

	if err := s.releaseBookingSeat(ctx, booking); err != nil {
		return fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", bookingID),
		zap.Bool("by_admin", admin),
	)

	booking.Status = entity.BookingStatusCancelled
	go s.publish(bookingEvent(notify.EventBookingCancelled, booking, now))
	return nil
}

func (s *bookingService) GetUserBookings(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.BookingResponse], error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user ID %q", entity.ErrInvalidInput, userID)
	}

	bookings, err := s.repo.Booking.FindByUserID(ctx, userUUID, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByUserID(ctx, userUUID)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	data := make([]response.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		data = append(data, response.BookingToResponse(b))
	}

	return response.NewPaginatedResponse(data, req.Page, req.Limit(), total), nil
}

func (s *bookingService) GetBookingByID(ctx context.Context, bookingID string) (*response.BookingDetailResponse, error) {
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	detail := &response.BookingDetailResponse{
		BookingResponse: response.BookingToResponse(booking),
	}

	vehicle, err := s.repo.Vehicle.FindByID(ctx, booking.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("find vehicle: %w", err)
	}
	if vehicle != nil {
		v := response.VehicleToResponse(vehicle)
		detail.Vehicle = &v
	}

	return detail, nil
}

// ExpirePendingBookings moves pending bookings whose hold has lapsed to
// expired and gives their seats back. It returns how many were expired.
func (s *bookingService) ExpirePendingBookings(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	expired := 0

	for {
		bookings, err := s.repo.Booking.FindExpiredPending(ctx, now, expireBatchSize)
		if err != nil {
			return expired, err
		}

		progressed := false
		for _, booking := range bookings {
			ok, err := s.repo.Booking.TransitionStatus(ctx, booking.ID,
				[]entity.BookingStatus{entity.BookingStatusPending}, entity.BookingStatusExpired, now)
			if err != nil {
				return expired, err
			}
			if !ok {
				// confirmed or cancelled in the meantime
				continue
			}
			progressed = true
			expired++

			if err := s.releaseBookingSeat(ctx, booking); err != nil {
				s.log.Error("Failed to release seat of expired booking",
					zap.Error(err),
					zap.String("booking_id", booking.ID.String()),
					zap.String("vehicle_id", booking.VehicleID.String()),
					zap.String("seat", booking.SeatLabel),
				)
			}

			booking.Status = entity.BookingStatusExpired
			go s.publish(bookingEvent(notify.EventBookingExpired, booking, now))
		}

		if len(bookings) < expireBatchSize || !progressed {
			break
		}
	}

	if expired > 0 {
		s.log.Info("Expired pending bookings", zap.Int("count", expired))
	}
	return expired, nil
}

// releaseBookingSeat frees the booking's seat only if the booking still holds
// it. A vehicle removed from the catalog has nothing left to release. The
// booking row has already left a seat-holding status, so the release runs
// even if ctx is cancelled.
func (s *bookingService) releaseBookingSeat(ctx context.Context, booking *entity.Booking) error {
	ctx, cancel := cleanupContext(ctx)
	defer cancel()

	released, err := s.ledger.ReleaseClaim(ctx, booking.VehicleID, booking.SeatLabel, booking.Claimant())
	if errors.Is(err, entity.ErrVehicleNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !released {
		s.log.Warn("Seat no longer held by booking",
			zap.String("booking_id", booking.ID.String()),
			zap.String("seat", booking.SeatLabel),
		)
	}
	return nil
}

func (s *bookingService) findBooking(ctx context.Context, bookingID string) (*entity.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: booking ID %q", entity.ErrInvalidInput, bookingID)
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, entity.ErrBookingNotFound)
	}
	return booking, nil
}

func (s *bookingService) findOwned(ctx context.Context, userID, bookingID string, admin bool) (*entity.Booking, error) {
	booking, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if admin {
		return booking, nil
	}

	if booking.UserID.String() != userID {
		s.log.Warn("Booking access by non-owner",
			zap.String("booking_id", bookingID),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("booking %s: %w", bookingID, entity.ErrForbidden)
	}
	return booking, nil
}

func (s *bookingService) publish(event notify.BookingEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("Booking notification not sent",
			zap.Error(err),
			zap.String("type", string(event.Type)),
			zap.String("booking_id", event.BookingID),
		)
	}
}

func bookingEvent(t notify.EventType, b *entity.Booking, now time.Time) notify.BookingEvent {
	return notify.BookingEvent{
		Type:       t,
		BookingID:  b.ID.String(),
		OrderID:    b.OrderID,
		UserID:     b.UserID.String(),
		VehicleID:  b.VehicleID.String(),
		SeatLabel:  b.SeatLabel,
		Fare:       b.Fare,
		OccurredAt: now,
	}
}
