package usecase

import (
	"context"
	"time"

	"bus-booking/internal/data/repository"

	"go.uber.org/zap"
)

// ExpiryWorker periodically returns the seats of pending bookings whose hold
// ran out, and drops expired sessions.
type ExpiryWorker struct {
	bookings BookingService
	sessions repository.SessionRepository
	interval time.Duration
	log      *zap.Logger
}

func NewExpiryWorker(bookings BookingService, sessions repository.SessionRepository, interval time.Duration, log *zap.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ExpiryWorker{
		bookings: bookings,
		sessions: sessions,
		interval: interval,
		log:      log.With(zap.String("worker", "expiry")),
	}
}

// Run blocks until ctx is cancelled.
func (w *ExpiryWorker) Run(ctx context.Context) {
	w.log.Info("Expiry worker started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Expiry worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) Sweep(ctx context.Context) {
	if _, err := w.bookings.ExpirePendingBookings(ctx, time.Now()); err != nil && ctx.Err() == nil {
		w.log.Error("Booking expiry sweep failed", zap.Error(err))
	}

	if w.sessions == nil {
		return
	}
	if err := w.sessions.CleanExpiredSessions(ctx); err != nil && ctx.Err() == nil {
		w.log.Error("Session cleanup failed", zap.Error(err))
	}
}
