package repository

import (
	"bus-booking/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	User    UserRepository
	Session SessionRepository
	Vehicle VehicleRepository
	SeatMap SeatMapRepository
	Booking BookingRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User:    NewUserRepository(db, log),
		Session: NewSessionRepository(db, log),
		Vehicle: NewVehicleRepository(db, log),
		SeatMap: NewSeatMapRepository(db, log),
		Booking: NewBookingRepository(db, log),
	}
}
