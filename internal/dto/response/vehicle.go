package response

import (
	"time"

	"bus-booking/internal/data/entity"
)

type VehicleResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PlateNumber string    `json:"plate_number"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	DepartsAt   time.Time `json:"departs_at"`
	Fare        float64   `json:"fare"`
	TotalSeats  int       `json:"total_seats"`
	CreatedAt   time.Time `json:"created_at"`
}

// SeatAvailabilityResponse is what riders see when picking a seat.
type SeatAvailabilityResponse struct {
	VehicleID      string   `json:"vehicle_id"`
	TotalSeats     int      `json:"total_seats"`
	AvailableCount int      `json:"available_count"`
	AvailableSeats []string `json:"available_seats"`
}

func VehicleToResponse(v *entity.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:          v.ID.String(),
		Name:        v.Name,
		PlateNumber: v.PlateNumber,
		Origin:      v.Origin,
		Destination: v.Destination,
		DepartsAt:   v.DepartsAt,
		Fare:        v.Fare,
		TotalSeats:  v.TotalSeats,
		CreatedAt:   v.CreatedAt,
	}
}
