package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bus-booking/internal/data/entity"
	"bus-booking/internal/data/repository"
	"bus-booking/pkg/notify"

	"github.com/google/uuid"
)

// fakeSeatMapRepo mimics the versioned row: CompareAndSwap succeeds only when
// the stored version matches, under a single lock. Like pgx, every call fails
// once ctx is done.
type fakeSeatMapRepo struct {
	mu    sync.Mutex
	maps  map[uuid.UUID]*entity.SeatMap
	swaps int

	// beforeSwap runs against the stored map just before the version check,
	// letting tests simulate a write that lands between read and swap.
	beforeSwap func(stored *entity.SeatMap)
}

func newFakeSeatMapRepo() *fakeSeatMapRepo {
	return &fakeSeatMapRepo{maps: make(map[uuid.UUID]*entity.SeatMap)}
}

func (r *fakeSeatMapRepo) Create(ctx context.Context, m *entity.SeatMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.maps[m.VehicleID]; ok {
		return fmt.Errorf("seat map %s already exists", m.VehicleID)
	}
	r.maps[m.VehicleID] = m.Clone()
	return nil
}

func (r *fakeSeatMapRepo) FindByVehicleID(ctx context.Context, vehicleID uuid.UUID) (*entity.SeatMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.maps[vehicleID]
	if !ok {
		return nil, nil
	}
	return m.Clone(), nil
}

func (r *fakeSeatMapRepo) CompareAndSwap(ctx context.Context, next *entity.SeatMap, expectedVersion int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swaps++

	stored, ok := r.maps[next.VehicleID]
	if !ok {
		return false, nil
	}
	if r.beforeSwap != nil {
		r.beforeSwap(stored)
	}
	if stored.Version != expectedVersion {
		return false, nil
	}
	r.maps[next.VehicleID] = next.Clone()
	return true, nil
}

func (r *fakeSeatMapRepo) Delete(_ context.Context, vehicleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.maps, vehicleID)
	return nil
}

// corrupt overwrites the stored map without any checks.
func (r *fakeSeatMapRepo) corrupt(vehicleID uuid.UUID, mutate func(m *entity.SeatMap)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mutate(r.maps[vehicleID])
}

func (r *fakeSeatMapRepo) snapshot(vehicleID uuid.UUID) *entity.SeatMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.maps[vehicleID]; ok {
		return m.Clone()
	}
	return nil
}

func (r *fakeSeatMapRepo) swapCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.swaps
}

type fakeVehicleRepo struct {
	mu       sync.Mutex
	vehicles map[uuid.UUID]*entity.Vehicle
}

func newFakeVehicleRepo() *fakeVehicleRepo {
	return &fakeVehicleRepo{vehicles: make(map[uuid.UUID]*entity.Vehicle)}
}

func (r *fakeVehicleRepo) Create(_ context.Context, v *entity.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *v
	r.vehicles[v.ID] = &c
	return nil
}

func (r *fakeVehicleRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, nil
	}
	c := *v
	return &c, nil
}

func (r *fakeVehicleRepo) FindAll(_ context.Context, limit, offset int) ([]*entity.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*entity.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		c := *v
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].DepartsAt.Before(all[j].DepartsAt) })
	if offset >= len(all) {
		return []*entity.Vehicle{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *fakeVehicleRepo) CountAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.vehicles)), nil
}

func (r *fakeVehicleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[id]; !ok {
		return fmt.Errorf("delete vehicle %s: %w", id, entity.ErrVehicleNotFound)
	}
	delete(r.vehicles, id)
	return nil
}

type fakeBookingRepo struct {
	mu        sync.Mutex
	bookings  map[uuid.UUID]*entity.Booking
	createErr error

	// onCreate replaces the insert when set.
	onCreate func(ctx context.Context) error
	// afterTransition runs once a status change has been applied.
	afterTransition func()
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*entity.Booking)}
}

func (r *fakeBookingRepo) Create(ctx context.Context, b *entity.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onCreate != nil {
		return r.onCreate(ctx)
	}
	if r.createErr != nil {
		return r.createErr
	}
	c := *b
	r.bookings[b.ID] = &c
	return nil
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (r *fakeBookingRepo) byUser(userID uuid.UUID) []*entity.Booking {
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeBookingRepo) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.byUser(userID)
	if offset >= len(all) {
		return []*entity.Booking{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *fakeBookingRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byUser(userID))), nil
}

func (r *fakeBookingRepo) TransitionStatus(_ context.Context, id uuid.UUID, from []entity.BookingStatus, to entity.BookingStatus, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			b.UpdatedAt = now
			if r.afterTransition != nil {
				r.afterTransition()
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBookingRepo) FindExpiredPending(_ context.Context, now time.Time, limit int) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.Status == entity.BookingStatusPending && b.ExpiresAt.Before(now) {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeBookingRepo) status(id uuid.UUID) entity.BookingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bookings[id]; ok {
		return b.Status
	}
	return ""
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) find(match func(u *entity.User) bool) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			c := *u
			return &c
		}
	}
	return nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Email == email }), nil
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Username == username }), nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*entity.Session
	cleaned  int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*entity.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, s *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.sessions[s.Token.String()] = &c
	return nil
}

func (r *fakeSessionRepo) FindValidSession(_ context.Context, token string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok || s.RevokedAt != nil || s.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r *fakeSessionRepo) Revoke(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[token]; ok {
		now := time.Now()
		s.RevokedAt = &now
	}
	return nil
}

func (r *fakeSessionRepo) CleanExpiredSessions(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleaned++
	return nil
}

type fakeRepos struct {
	seatMaps *fakeSeatMapRepo
	vehicles *fakeVehicleRepo
	bookings *fakeBookingRepo
	users    *fakeUserRepo
	sessions *fakeSessionRepo
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		seatMaps: newFakeSeatMapRepo(),
		vehicles: newFakeVehicleRepo(),
		bookings: newFakeBookingRepo(),
		users:    newFakeUserRepo(),
		sessions: newFakeSessionRepo(),
	}
}

func (f *fakeRepos) repository() *repository.Repository {
	return &repository.Repository{
		User:    f.users,
		Session: f.sessions,
		Vehicle: f.vehicles,
		SeatMap: f.seatMaps,
		Booking: f.bookings,
	}
}

type recordingPublisher struct {
	events chan notify.BookingEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(chan notify.BookingEvent, 32)}
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.BookingEvent) error {
	p.events <- e
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) next(timeout time.Duration) (notify.BookingEvent, bool) {
	select {
	case e := <-p.events:
		return e, true
	case <-time.After(timeout):
		return notify.BookingEvent{}, false
	}
}
