// Package notify carries booking events from the booking workflow to the
// notification dispatcher over RabbitMQ.
package notify

import "time"

type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingExpired   EventType = "booking.expired"
)

// BookingEvent carries enough context for the dispatcher to render an email
// or ticket without reading the primary database.
type BookingEvent struct {
	Type        EventType `json:"type"`
	BookingID   string    `json:"booking_id"`
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	VehicleID   string    `json:"vehicle_id"`
	VehicleName string    `json:"vehicle_name,omitempty"`
	Origin      string    `json:"origin,omitempty"`
	Destination string    `json:"destination,omitempty"`
	DepartsAt   time.Time `json:"departs_at,omitempty"`
	SeatLabel   string    `json:"seat_label"`
	Fare        float64   `json:"fare"`
	OccurredAt  time.Time `json:"occurred_at"`
}
