package usecase

import (
	"context"
	"time"

	"bus-booking/internal/data/repository"
	"bus-booking/pkg/notify"
	"bus-booking/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Auth    AuthService
	Vehicle VehicleService
	Ledger  SeatLedger
	Booking BookingService
}

func NewService(repo *repository.Repository, publisher notify.Publisher, config *utils.Config, log *zap.Logger) *Service {
	ledger := NewSeatLedger(repo.SeatMap, NewSeatCatalog(repo.Vehicle), config.Booking.ClaimAttempts, log)

	return &Service{
		Auth:    NewAuthService(repo, config, log),
		Vehicle: NewVehicleService(repo, ledger, log),
		Ledger:  ledger,
		Booking: NewBookingService(repo, ledger, publisher, config, log),
	}
}

const cleanupTimeout = 5 * time.Second

// cleanupContext keeps the request's values but not its cancellation, so
// compensating writes still reach the store after the caller has gone away.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}
