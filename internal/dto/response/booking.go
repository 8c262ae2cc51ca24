package response

import (
	"time"

	"bus-booking/internal/data/entity"
)

type BookingResponse struct {
	ID        string               `json:"id"`
	OrderID   string               `json:"order_id"`
	UserID    string               `json:"user_id"`
	VehicleID string               `json:"vehicle_id"`
	SeatLabel string               `json:"seat_label"`
	Fare      float64              `json:"fare"`
	Status    entity.BookingStatus `json:"status"`
	ExpiresAt time.Time            `json:"expires_at"`
	CreatedAt time.Time            `json:"created_at"`
}

type BookingDetailResponse struct {
	BookingResponse
	Vehicle *VehicleResponse `json:"vehicle,omitempty"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:        b.ID.String(),
		OrderID:   b.OrderID,
		UserID:    b.UserID.String(),
		VehicleID: b.VehicleID.String(),
		SeatLabel: b.SeatLabel,
		Fare:      b.Fare,
		Status:    b.Status,
		ExpiresAt: b.ExpiresAt,
		CreatedAt: b.CreatedAt,
	}
}
