package request

type CreateBookingRequest struct {
	VehicleID string `json:"vehicle_id" validate:"required,uuid4"`
	SeatLabel string `json:"seat_label" validate:"required,max=10"`
}
