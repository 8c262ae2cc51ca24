package request

import "time"

type CreateVehicleRequest struct {
	Name        string    `json:"name" validate:"required,min=1,max=100"`
	PlateNumber string    `json:"plate_number" validate:"required,min=1,max=20"`
	Origin      string    `json:"origin" validate:"required,min=1,max=100"`
	Destination string    `json:"destination" validate:"required,min=1,max=100"`
	DepartsAt   time.Time `json:"departs_at" validate:"required"`
	Fare        float64   `json:"fare" validate:"gte=0"`
	TotalSeats  int       `json:"total_seats" validate:"required,min=1,max=500"`
}
