package entity

import "time"

// Vehicle is a catalog entry for one vehicle on one departure. Its seat map
// is provisioned from TotalSeats when the vehicle is registered.
type Vehicle struct {
	Base
	Name        string    `db:"name"`
	PlateNumber string    `db:"plate_number"`
	Origin      string    `db:"origin"`
	Destination string    `db:"destination"`
	DepartsAt   time.Time `db:"departs_at"`
	Fare        float64   `db:"fare"`
	TotalSeats  int       `db:"total_seats"`
}
