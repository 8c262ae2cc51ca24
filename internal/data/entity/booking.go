package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

// HoldsSeat reports whether a booking in this status still owns its seat.
func (s BookingStatus) HoldsSeat() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Booking struct {
	Base
	OrderID   string        `db:"order_id"`
	UserID    uuid.UUID     `db:"user_id"`
	VehicleID uuid.UUID     `db:"vehicle_id"`
	SeatLabel string        `db:"seat_label"`
	Fare      float64       `db:"fare"`
	Status    BookingStatus `db:"status"`
	ExpiresAt time.Time     `db:"expires_at"`
}

// Claimant is the owner reference written into the seat map for this booking.
func (b *Booking) Claimant() string {
	return b.ID.String()
}
