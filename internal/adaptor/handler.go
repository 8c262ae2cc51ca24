package adaptor

import (
	"bus-booking/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Auth    *AuthHandler
	Vehicle *VehicleHandler
	Booking *BookingHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(service.Auth, log),
		Vehicle: NewVehicleHandler(service.Vehicle, log),
		Booking: NewBookingHandler(service.Booking, log),
	}
}
