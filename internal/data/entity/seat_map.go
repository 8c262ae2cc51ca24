package entity

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MaxSeatsPerVehicle bounds the seat map size accepted at provisioning time.
const MaxSeatsPerVehicle = 500

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatBooked    SeatStatus = "booked"
)

func (s SeatStatus) Valid() bool {
	return s == SeatAvailable || s == SeatBooked
}

// SeatEntry is one seat of a seat map. ClaimedBy is set iff Status is booked.
type SeatEntry struct {
	Status    SeatStatus `json:"status"`
	ClaimedBy *string    `json:"claimedBy"`
}

// SeatMap is the per-vehicle seat document. It is persisted as a single row
// and every mutation replaces Seats and AvailableCount together, guarded by
// Version.
type SeatMap struct {
	VehicleID      uuid.UUID            `db:"vehicle_id"`
	TotalSeats     int                  `db:"total_seats"`
	AvailableCount int                  `db:"available_count"`
	Seats          map[string]SeatEntry `db:"seats"`
	Version        int64                `db:"version"`
	CreatedAt      time.Time            `db:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at"`
}

// NewSeatMap builds a fresh seat map with labels "1".."totalSeats", all available.
func NewSeatMap(vehicleID uuid.UUID, totalSeats int, now time.Time) (*SeatMap, error) {
	if totalSeats <= 0 || totalSeats > MaxSeatsPerVehicle {
		return nil, fmt.Errorf("%w: total seats %d must be between 1 and %d", ErrInvalidInput, totalSeats, MaxSeatsPerVehicle)
	}

	seats := make(map[string]SeatEntry, totalSeats)
	for i := 1; i <= totalSeats; i++ {
		seats[strconv.Itoa(i)] = SeatEntry{Status: SeatAvailable}
	}

	return &SeatMap{
		VehicleID:      vehicleID,
		TotalSeats:     totalSeats,
		AvailableCount: totalSeats,
		Seats:          seats,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Clone returns a deep copy so a candidate state can be built without
// touching the snapshot it was read from.
func (m *SeatMap) Clone() *SeatMap {
	c := *m
	c.Seats = make(map[string]SeatEntry, len(m.Seats))
	for label, entry := range m.Seats {
		if entry.ClaimedBy != nil {
			claimant := *entry.ClaimedBy
			entry.ClaimedBy = &claimant
		}
		c.Seats[label] = entry
	}
	return &c
}

// Claim moves seat label from available to booked on behalf of claimant.
func (m *SeatMap) Claim(label, claimant string) error {
	entry, ok := m.Seats[label]
	if !ok {
		return fmt.Errorf("seat %s: %w", label, ErrSeatNotFound)
	}
	if entry.Status != SeatAvailable {
		return fmt.Errorf("seat %s: %w", label, ErrSeatUnavailable)
	}

	m.Seats[label] = SeatEntry{Status: SeatBooked, ClaimedBy: &claimant}
	m.AvailableCount--
	return nil
}

// Release makes seat label available again. Releasing an available seat is a
// no-op and reports changed == false.
func (m *SeatMap) Release(label string) (bool, error) {
	entry, ok := m.Seats[label]
	if !ok {
		return false, fmt.Errorf("seat %s: %w", label, ErrSeatNotFound)
	}
	if entry.Status == SeatAvailable {
		return false, nil
	}

	m.Seats[label] = SeatEntry{Status: SeatAvailable}
	m.AvailableCount++
	return true, nil
}

// ReleaseIfClaimedBy releases label only while it is still held by claimant.
func (m *SeatMap) ReleaseIfClaimedBy(label, claimant string) (bool, error) {
	entry, ok := m.Seats[label]
	if !ok {
		return false, fmt.Errorf("seat %s: %w", label, ErrSeatNotFound)
	}
	if entry.Status != SeatBooked || entry.ClaimedBy == nil || *entry.ClaimedBy != claimant {
		return false, nil
	}
	return m.Release(label)
}

// CountAvailable counts available seats directly from the seat entries.
func (m *SeatMap) CountAvailable() int {
	n := 0
	for _, entry := range m.Seats {
		if entry.Status == SeatAvailable {
			n++
		}
	}
	return n
}

// AvailableSeats returns available labels ordered by numeric value. Labels
// that are not numbers sort after numeric ones, lexicographically.
func (m *SeatMap) AvailableSeats() []string {
	labels := make([]string, 0, m.AvailableCount)
	for label, entry := range m.Seats {
		if entry.Status == SeatAvailable {
			labels = append(labels, label)
		}
	}
	SortSeatLabels(labels)
	return labels
}

// SortSeatLabels sorts labels in place, numeric labels first by value.
func SortSeatLabels(labels []string) {
	sort.Slice(labels, func(i, j int) bool {
		a, errA := strconv.Atoi(labels[i])
		b, errB := strconv.Atoi(labels[j])
		switch {
		case errA == nil && errB == nil:
			if a != b {
				return a < b
			}
			return labels[i] < labels[j]
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return labels[i] < labels[j]
		}
	})
}

// Validate checks the structural invariants of the map: counter matches the
// seat entries, every status is known and claimedBy is set iff booked.
func (m *SeatMap) Validate() error {
	if m.TotalSeats != len(m.Seats) {
		return fmt.Errorf("seat map %s: total seats %d does not match %d entries", m.VehicleID, m.TotalSeats, len(m.Seats))
	}
	for label, entry := range m.Seats {
		if !entry.Status.Valid() {
			return fmt.Errorf("seat map %s: seat %s has unknown status %q", m.VehicleID, label, entry.Status)
		}
		if (entry.Status == SeatBooked) != (entry.ClaimedBy != nil) {
			return fmt.Errorf("seat map %s: seat %s has status %s with claimant %v", m.VehicleID, label, entry.Status, entry.ClaimedBy)
		}
	}
	if n := m.CountAvailable(); n != m.AvailableCount {
		return fmt.Errorf("seat map %s: available count %d does not match %d available seats", m.VehicleID, m.AvailableCount, n)
	}
	return nil
}
