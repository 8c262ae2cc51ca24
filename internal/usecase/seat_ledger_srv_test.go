package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"bus-booking/internal/data/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func seedVehicle(t *testing.T, repos *fakeRepos, totalSeats int) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	v := &entity.Vehicle{
		Base:        entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:        "Night Express",
		PlateNumber: "B 1234 XY",
		Origin:      "Jakarta",
		Destination: "Bandung",
		DepartsAt:   now.Add(48 * time.Hour),
		Fare:        150000,
		TotalSeats:  totalSeats,
	}
	if err := repos.vehicles.Create(context.Background(), v); err != nil {
		t.Fatal(err)
	}
	return v.ID
}

func newLedgerFixture(t *testing.T, totalSeats, attempts int) (SeatLedger, *fakeRepos, uuid.UUID) {
	t.Helper()
	repos := newFakeRepos()
	ledger := NewSeatLedger(repos.seatMaps, NewSeatCatalog(repos.vehicles), attempts, zap.NewNop())
	vehicleID := seedVehicle(t, repos, totalSeats)
	if _, err := ledger.ProvisionSeatMap(context.Background(), vehicleID); err != nil {
		t.Fatalf("ProvisionSeatMap: %v", err)
	}
	return ledger, repos, vehicleID
}

func TestProvisionSeatMap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, repos, vehicleID := newLedgerFixture(t, 4, 0)

	m := repos.seatMaps.snapshot(vehicleID)
	if m == nil {
		t.Fatal("seat map not stored")
	}
	if m.TotalSeats != 4 || m.AvailableCount != 4 {
		t.Errorf("total=%d available=%d, want 4/4", m.TotalSeats, m.AvailableCount)
	}

	if _, err := ledger.ProvisionSeatMap(ctx, uuid.New()); !errors.Is(err, entity.ErrVehicleNotFound) {
		t.Errorf("provision unknown vehicle: got %v, want ErrVehicleNotFound", err)
	}
}

type stubCatalog map[uuid.UUID]int

func (c stubCatalog) GetSeatMapShape(_ context.Context, vehicleID uuid.UUID) (int, error) {
	n, ok := c[vehicleID]
	if !ok {
		return 0, fmt.Errorf("vehicle %s: %w", vehicleID, entity.ErrVehicleNotFound)
	}
	return n, nil
}

func TestProvisionSeatMapUsesCatalogShape(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sized, empty, oversized := uuid.New(), uuid.New(), uuid.New()
	catalog := stubCatalog{sized: 3, empty: 0, oversized: entity.MaxSeatsPerVehicle + 1}
	repo := newFakeSeatMapRepo()
	ledger := NewSeatLedger(repo, catalog, 0, zap.NewNop())

	m, err := ledger.ProvisionSeatMap(ctx, sized)
	if err != nil {
		t.Fatalf("ProvisionSeatMap: %v", err)
	}
	if m.TotalSeats != 3 || len(repo.snapshot(sized).Seats) != 3 {
		t.Errorf("provisioned %d seats, want 3", m.TotalSeats)
	}

	for _, id := range []uuid.UUID{empty, oversized} {
		if _, err := ledger.ProvisionSeatMap(ctx, id); !errors.Is(err, entity.ErrInvalidInput) {
			t.Errorf("shape %d: got %v, want ErrInvalidInput", catalog[id], err)
		}
		if repo.snapshot(id) != nil {
			t.Errorf("shape %d: seat map stored", catalog[id])
		}
	}
}

func TestCorruptSeatMapIsRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(m *entity.SeatMap)
	}{
		{"counter drift", func(m *entity.SeatMap) { m.AvailableCount = 1 }},
		{"unknown status", func(m *entity.SeatMap) { m.Seats["2"] = entity.SeatEntry{Status: "held"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ledger, repos, v1 := newLedgerFixture(t, 4, 0)
			repos.seatMaps.corrupt(v1, tt.mutate)
			swaps := repos.seatMaps.swapCount()

			if err := ledger.ClaimSeat(ctx, v1, "1", "riderA"); !errors.Is(err, entity.ErrCorruptSeatMap) {
				t.Errorf("ClaimSeat: got %v, want ErrCorruptSeatMap", err)
			}
			if err := ledger.ReleaseSeat(ctx, v1, "2"); !errors.Is(err, entity.ErrCorruptSeatMap) {
				t.Errorf("ReleaseSeat: got %v, want ErrCorruptSeatMap", err)
			}
			if _, err := ledger.ListAvailableSeats(ctx, v1); !errors.Is(err, entity.ErrCorruptSeatMap) {
				t.Errorf("ListAvailableSeats: got %v, want ErrCorruptSeatMap", err)
			}
			if n := repos.seatMaps.swapCount(); n != swaps {
				t.Errorf("%d writes against a corrupt map", n-swaps)
			}
		})
	}
}

func TestClaimSeat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, repos, v1 := newLedgerFixture(t, 4, 0)

	if err := ledger.ClaimSeat(ctx, v1, "2", "riderA"); err != nil {
		t.Fatalf("ClaimSeat: %v", err)
	}

	seats, err := ledger.ListAvailableSeats(ctx, v1)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"1", "3", "4"}; !reflect.DeepEqual(seats, want) {
		t.Errorf("ListAvailableSeats = %v, want %v", seats, want)
	}

	m := repos.seatMaps.snapshot(v1)
	if m.AvailableCount != 3 {
		t.Errorf("available count = %d, want 3", m.AvailableCount)
	}
	if m.Version != 2 {
		t.Errorf("version = %d, want 2", m.Version)
	}
}

func TestClaimSeatErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, repos, v1 := newLedgerFixture(t, 4, 0)
	if err := ledger.ClaimSeat(ctx, v1, "1", "riderA"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		vehicleID uuid.UUID
		label     string
		claimant  string
		want      error
	}{
		{"unknown seat", v1, "9", "riderA", entity.ErrSeatNotFound},
		{"unknown vehicle", uuid.New(), "1", "riderA", entity.ErrVehicleNotFound},
		{"already booked", v1, "1", "riderB", entity.ErrSeatUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ledger.ClaimSeat(ctx, tt.vehicleID, tt.label, tt.claimant)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	m := repos.seatMaps.snapshot(v1)
	if m.AvailableCount != 3 || *m.Seats["1"].ClaimedBy != "riderA" {
		t.Errorf("failed claims changed the map: count=%d seat1=%+v", m.AvailableCount, m.Seats["1"])
	}
	if err := ledger.ClaimSeat(ctx, v1, "2", ""); err == nil {
		t.Error("empty claimant accepted")
	}
}

func TestConcurrentClaimsSameSeat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, repos, v1 := newLedgerFixture(t, 4, 0)

	const riders = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []string
		failures  int
	)
	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(rider string) {
			defer wg.Done()
			err := ledger.ClaimSeat(ctx, v1, "2", rider)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes = append(successes, rider)
			case errors.Is(err, entity.ErrSeatUnavailable):
				failures++
			default:
				t.Errorf("rider %s: unexpected error %v", rider, err)
			}
		}("rider" + strconv.Itoa(i))
	}
	wg.Wait()

	if len(successes) != 1 || failures != riders-1 {
		t.Fatalf("successes=%v failures=%d, want exactly one winner", successes, failures)
	}

	m := repos.seatMaps.snapshot(v1)
	if m.AvailableCount != 3 {
		t.Errorf("available count = %d, want 3", m.AvailableCount)
	}
	if got := *m.Seats["2"].ClaimedBy; got != successes[0] {
		t.Errorf("seat 2 claimed by %s, want winner %s", got, successes[0])
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
}

func TestConcurrentClaimsDistinctSeats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const seats = 10
	// Each lost swap means another claimant committed, so seats attempts
	// always suffice.
	ledger, repos, v1 := newLedgerFixture(t, seats, seats)

	var wg sync.WaitGroup
	errs := make(chan error, seats)
	for i := 1; i <= seats; i++ {
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			errs <- ledger.ClaimSeat(ctx, v1, label, "booking-"+label)
		}(strconv.Itoa(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("claim failed: %v", err)
		}
	}

	m := repos.seatMaps.snapshot(v1)
	if m.AvailableCount != 0 {
		t.Errorf("available count = %d, want 0", m.AvailableCount)
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
}

func TestClaimRetriesAfterConflictOnOtherSeat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, repos, v1 := newLedgerFixture(t, 4, 3)

	interfered := false
	repos.seatMaps.beforeSwap = func(stored *entity.SeatMap) {
		if interfered {
			return
		}
		interfered = true
		if err := stored.Claim("3", "riderB"); err != nil {
			t.Errorf("interfering claim: %v", err)
		}
		stored.Version++
	}

	if err := ledger.ClaimSeat(ctx, v1, "2", "riderA"); err != nil {
		t.Fatalf("ClaimSeat: %v", err)
	}
	if n := repos.seatMaps.swapCount(); n != 2 {
		t.Errorf("swaps = %d, want 2", n)
	}

	m := repos.seatMaps.snapshot(v1)
	if m.AvailableCount != 2 || *m.Seats["2"].ClaimedBy != "riderA" || *m.Seats["3"].ClaimedBy != "riderB" {
		t.Errorf("unexpected final map: count=%d seats=%+v", m.AvailableCount, m.Seats)
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
}

func TestClaimConflictOnSameSeatIsUnavailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, repos, v1 := newLedgerFixture(t, 4, 5)

	interfered := false
	repos.seatMaps.beforeSwap = func(stored *entity.SeatMap) {
		if interfered {
			return
		}
		interfered = true
		_ = stored.Claim("2", "riderB")
		stored.Version++
	}

	err := ledger.ClaimSeat(ctx, v1, "2", "riderA")
	if !errors.Is(err, entity.ErrSeatUnavailable) {
		t.Fatalf("got %v, want ErrSeatUnavailable", err)
	}
	if n := repos.seatMaps.swapCount(); n != 1 {
		t.Errorf("swaps = %d, want 1 (no blind retry of a taken seat)", n)
	}
}

func TestClaimGivesUpAfterAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, repos, v1 := newLedgerFixture(t, 4, 3)
	repos.seatMaps.beforeSwap = func(stored *entity.SeatMap) {
		stored.Version++
	}

	err := ledger.ClaimSeat(ctx, v1, "1", "riderA")
	if !errors.Is(err, entity.ErrSeatUnavailable) {
		t.Fatalf("got %v, want ErrSeatUnavailable", err)
	}
	if n := repos.seatMaps.swapCount(); n != 3 {
		t.Errorf("swaps = %d, want 3", n)
	}
	if m := repos.seatMaps.snapshot(v1); m.AvailableCount != 4 || m.Seats["1"].Status != entity.SeatAvailable {
		t.Errorf("map changed after giving up: %+v", m)
	}
}

func TestReleaseSeatIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, repos, v1 := newLedgerFixture(t, 4, 0)

	// Releasing an available seat succeeds without a write.
	if err := ledger.ReleaseSeat(ctx, v1, "2"); err != nil {
		t.Fatalf("release available seat: %v", err)
	}
	if n := repos.seatMaps.swapCount(); n != 0 {
		t.Errorf("no-op release wrote %d times", n)
	}

	if err := ledger.ClaimSeat(ctx, v1, "2", "riderA"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := ledger.ReleaseSeat(ctx, v1, "2"); err != nil {
			t.Fatalf("release #%d: %v", i+1, err)
		}
	}

	m := repos.seatMaps.snapshot(v1)
	if m.AvailableCount != 4 {
		t.Errorf("available count = %d, want 4", m.AvailableCount)
	}

	if err := ledger.ReleaseSeat(ctx, v1, "99"); !errors.Is(err, entity.ErrSeatNotFound) {
		t.Errorf("release unknown seat: got %v", err)
	}
	if err := ledger.ReleaseSeat(ctx, uuid.New(), "1"); !errors.Is(err, entity.ErrVehicleNotFound) {
		t.Errorf("release on unknown vehicle: got %v", err)
	}
}

func TestClaimReleaseRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, repos, v1 := newLedgerFixture(t, 4, 0)
	before := repos.seatMaps.snapshot(v1).AvailableCount

	if err := ledger.ClaimSeat(ctx, v1, "1", "riderA"); err != nil {
		t.Fatal(err)
	}
	if err := ledger.ReleaseSeat(ctx, v1, "1"); err != nil {
		t.Fatal(err)
	}

	m := repos.seatMaps.snapshot(v1)
	if entry := m.Seats["1"]; entry.Status != entity.SeatAvailable || entry.ClaimedBy != nil {
		t.Errorf("seat 1 = %+v after round trip", entry)
	}
	if m.AvailableCount != before {
		t.Errorf("available count = %d, want %d", m.AvailableCount, before)
	}

	if err := ledger.ClaimSeat(ctx, v1, "1", "riderB"); err != nil {
		t.Fatal(err)
	}
	m = repos.seatMaps.snapshot(v1)
	if *m.Seats["1"].ClaimedBy != "riderB" || m.AvailableCount != before-1 {
		t.Errorf("after reclaim: seat1=%+v count=%d", m.Seats["1"], m.AvailableCount)
	}
}

func TestReleaseClaimOnlyForOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, repos, v1 := newLedgerFixture(t, 2, 0)
	if err := ledger.ClaimSeat(ctx, v1, "1", "booking-new"); err != nil {
		t.Fatal(err)
	}

	released, err := ledger.ReleaseClaim(ctx, v1, "1", "booking-old")
	if err != nil || released {
		t.Fatalf("stale release: released=%v err=%v", released, err)
	}
	if m := repos.seatMaps.snapshot(v1); *m.Seats["1"].ClaimedBy != "booking-new" {
		t.Fatal("stale claimant freed the seat")
	}

	released, err = ledger.ReleaseClaim(ctx, v1, "1", "booking-new")
	if err != nil || !released {
		t.Fatalf("owner release: released=%v err=%v", released, err)
	}
	if m := repos.seatMaps.snapshot(v1); m.AvailableCount != 2 {
		t.Errorf("available count = %d, want 2", m.AvailableCount)
	}
}

func TestSeatMapSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger, _, v1 := newLedgerFixture(t, 3, 0)
	if err := ledger.ClaimSeat(ctx, v1, "3", "riderA"); err != nil {
		t.Fatal(err)
	}

	summary, err := ledger.SeatMapSummary(ctx, v1)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalSeats != 3 || summary.AvailableCount != 2 || !reflect.DeepEqual(summary.Available, []string{"1", "2"}) {
		t.Errorf("summary = %+v", summary)
	}

	if _, err := ledger.ListAvailableSeats(ctx, uuid.New()); !errors.Is(err, entity.ErrVehicleNotFound) {
		t.Errorf("list on unknown vehicle: got %v", err)
	}
}

// Random claims and releases against a model: the counter and the listing
// always agree with the seat statuses.
func TestRandomOperationsKeepMapConsistent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const seats = 12
	ledger, repos, v1 := newLedgerFixture(t, seats, 0)
	model := make(map[string]bool, seats) // label -> available
	for i := 1; i <= seats; i++ {
		model[strconv.Itoa(i)] = true
	}

	rng := rand.New(rand.NewSource(42))
	for step := 0; step < 300; step++ {
		label := strconv.Itoa(rng.Intn(seats) + 1)
		if rng.Intn(2) == 0 {
			err := ledger.ClaimSeat(ctx, v1, label, "c"+strconv.Itoa(step))
			switch {
			case model[label] && err != nil:
				t.Fatalf("step %d: claim of free seat %s failed: %v", step, label, err)
			case !model[label] && !errors.Is(err, entity.ErrSeatUnavailable):
				t.Fatalf("step %d: claim of taken seat %s: got %v", step, label, err)
			}
			model[label] = false
		} else {
			if err := ledger.ReleaseSeat(ctx, v1, label); err != nil {
				t.Fatalf("step %d: release %s: %v", step, label, err)
			}
			model[label] = true
		}

		var want []string
		for i := 1; i <= seats; i++ {
			if l := strconv.Itoa(i); model[l] {
				want = append(want, l)
			}
		}
		got, err := ledger.ListAvailableSeats(ctx, v1)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(want) || (len(want) > 0 && !reflect.DeepEqual(got, want)) {
			t.Fatalf("step %d: available = %v, want %v", step, got, want)
		}

		m := repos.seatMaps.snapshot(v1)
		if m.AvailableCount != len(want) {
			t.Fatalf("step %d: available count %d, want %d", step, m.AvailableCount, len(want))
		}
		if err := m.Validate(); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}
}
