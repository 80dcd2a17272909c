package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/oceanview/resort/internal/backend"
	"github.com/oceanview/resort/internal/filestore"
	"github.com/oceanview/resort/internal/model"
	"github.com/oceanview/resort/internal/pricing"
	"github.com/oceanview/resort/internal/repository"
)

var fixedNow = time.Date(2025, 2, 1, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type fileRepos struct {
	rooms   *repository.RoomCatalog
	ledger  *repository.ReservationLedger
	users   *repository.UserDirectory
	storage Storage
	dir     string
}

// newRepos собирает хранилища поверх реляционного backend b и файлов в каталоге dir.
func newRepos(t *testing.T, b repository.Backend, storage Storage, dir string) fileRepos {
	t.Helper()

	logger := zap.NewNop()

	roomsFile, err := filestore.NewCollection[model.Room](dir, "rooms")
	if err != nil {
		t.Fatalf("rooms collection: %v", err)
	}
	resFile, err := filestore.NewCollection[model.Reservation](dir, "reservations")
	if err != nil {
		t.Fatalf("reservations collection: %v", err)
	}
	usersFile, err := filestore.NewCollection[model.User](dir, "users")
	if err != nil {
		t.Fatalf("users collection: %v", err)
	}

	rooms := repository.NewRoomCatalog(b, roomsFile, logger)
	return fileRepos{
		rooms:   rooms,
		ledger:  repository.NewReservationLedger(b, resFile, rooms, logger),
		users:   repository.NewUserDirectory(b, usersFile, logger),
		storage: storage,
		dir:     dir,
	}
}

// newFileRepos собирает хранилища без реляционной базы: все обращения идут в файлы.
func newFileRepos(t *testing.T) fileRepos {
	t.Helper()

	conn := backend.Open(context.Background(), nil, zap.NewNop())
	return newRepos(t, conn, conn, t.TempDir())
}

// flakyBackend отказывает во всех обращениях к базе, пока выставлен failing.
type flakyBackend struct {
	*backend.Connection
	failing atomic.Bool
}

func (b *flakyBackend) Do(ctx context.Context, fn func(db *sqlx.DB) error) error {
	if b.failing.Load() {
		return errors.New("connection reset by peer")
	}
	return b.Connection.Do(ctx, fn)
}

// newSQLiteRepos собирает хранилища поверх встроенной SQLite и файлов в том же каталоге.
func newSQLiteRepos(t *testing.T) (fileRepos, *flakyBackend) {
	t.Helper()

	dir := t.TempDir()
	conn := backend.Open(context.Background(), []backend.Driver{backend.SQLite(dir)}, zap.NewNop())
	if !conn.IsAvailable() {
		t.Skip("sqlite driver unavailable in this build")
	}
	t.Cleanup(func() { conn.Close() })

	flaky := &flakyBackend{Connection: conn}
	return newRepos(t, flaky, flaky, dir), flaky
}

func newServiceOver(repos fileRepos) *Service {
	return NewService(repos.rooms, repos.ledger, repos.users, pricing.Default(), zap.NewNop(),
		WithClock(fixedClock), WithStorage(repos.storage))
}

func newFileService(t *testing.T) (*Service, fileRepos) {
	t.Helper()

	repos := newFileRepos(t)
	return newServiceOver(repos), repos
}

func newSQLiteService(t *testing.T) (*Service, fileRepos) {
	t.Helper()

	repos, _ := newSQLiteRepos(t)
	return newServiceOver(repos), repos
}

var serviceBackends = map[string]func(t *testing.T) (*Service, fileRepos){
	"file":   newFileService,
	"sqlite": newSQLiteService,
}

var silva = model.Guest{Name: "A. Silva", Email: "silva@example.com", ContactNumber: "0771234567"}

func TestCreateBooking_FileFallbackTransparency(t *testing.T) {
	svc, _ := newFileService(t)
	ctx := context.Background()

	if got := svc.StorageBackend(); got != backend.FileMode {
		t.Fatalf("StorageBackend = %q, want %q", got, backend.FileMode)
	}

	number, err := svc.CreateBooking(ctx, silva, "R101", "2025-03-01", "2025-03-04")
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}

	res, err := svc.GetReservation(ctx, number)
	if err != nil {
		t.Fatalf("GetReservation error: %v", err)
	}
	if res.Status != model.StatusConfirmed {
		t.Fatalf("Status = %s, want CONFIRMED", res.Status)
	}
	if res.Nights != 3 {
		t.Fatalf("Nights = %d, want 3", res.Nights)
	}
	if res.TotalAmount != 15000 {
		t.Fatalf("TotalAmount = %v, want 15000", res.TotalAmount)
	}
	if res.Guest.Name != "A. Silva" {
		t.Fatalf("Guest = %q, want A. Silva", res.Guest.Name)
	}

	room, err := svc.GetRoom(ctx, "R101")
	if err != nil {
		t.Fatalf("GetRoom error: %v", err)
	}
	if room.Available {
		t.Fatalf("room R101 must be marked unavailable after booking")
	}
}

func TestCreateBooking_Validation(t *testing.T) {
	tests := []struct {
		name     string
		guest    model.Guest
		room     string
		checkIn  string
		checkOut string
		want     error
	}{
		{name: "bad check-in format", guest: silva, room: "R101", checkIn: "01/03/2025", checkOut: "2025-03-04", want: ErrValidation},
		{name: "check-out before check-in", guest: silva, room: "R101", checkIn: "2025-03-04", checkOut: "2025-03-01", want: ErrValidation},
		{name: "same day", guest: silva, room: "R101", checkIn: "2025-03-01", checkOut: "2025-03-01", want: ErrValidation},
		{name: "check-in in the past", guest: silva, room: "R101", checkIn: "2025-01-31", checkOut: "2025-02-03", want: ErrValidation},
		{name: "missing guest name", guest: model.Guest{Email: "x@example.com"}, room: "R101", checkIn: "2025-03-01", checkOut: "2025-03-04", want: ErrValidation},
		{name: "bad email", guest: model.Guest{Name: "A. Silva", Email: "nope"}, room: "R101", checkIn: "2025-03-01", checkOut: "2025-03-04", want: ErrValidation},
		{name: "bad room format", guest: silva, room: "101", checkIn: "2025-03-01", checkOut: "2025-03-04", want: ErrValidation},
		{name: "unknown room", guest: silva, room: "R999", checkIn: "2025-03-01", checkOut: "2025-03-04", want: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newFileService(t)

			_, err := svc.CreateBooking(context.Background(), tt.guest, tt.room, tt.checkIn, tt.checkOut)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateBooking_CheckInTodayAllowed(t *testing.T) {
	svc, _ := newFileService(t)

	if _, err := svc.CreateBooking(context.Background(), silva, "r102", "2025-02-01", "2025-02-02"); err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
}

func TestCreateBooking_UnavailableRoom(t *testing.T) {
	svc, _ := newFileService(t)
	ctx := context.Background()

	if _, err := svc.CreateBooking(ctx, silva, "R201", "2025-03-01", "2025-03-04"); err != nil {
		t.Fatalf("first booking error: %v", err)
	}

	_, err := svc.CreateBooking(ctx, silva, "R201", "2025-04-01", "2025-04-04")
	if !errors.Is(err, ErrRoomUnavailable) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}
}

func TestCreateBooking_DateConflicts(t *testing.T) {
	svc, repos := newFileService(t)
	ctx := context.Background()

	room, err := repos.rooms.FindByNumber(ctx, "R102")
	if err != nil {
		t.Fatalf("FindByNumber error: %v", err)
	}

	// Действующее бронирование при номере, всё ещё отмеченном свободным.
	existing := model.Reservation{
		Number:    "RES-EXISTING",
		Guest:     silva,
		Room:      room,
		CheckIn:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:  time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
		Nights:    3,
		Status:    model.StatusConfirmed,
		CreatedAt: fixedNow,
	}
	if err := repos.ledger.Save(ctx, existing); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	_, err = svc.CreateBooking(ctx, silva, "R102", "2025-03-03", "2025-03-05")
	if !errors.Is(err, ErrDatesUnavailable) {
		t.Fatalf("expected ErrDatesUnavailable, got %v", err)
	}

	if _, err := svc.CreateBooking(ctx, silva, "R102", "2025-03-04", "2025-03-06"); err != nil {
		t.Fatalf("adjacent booking must succeed, got %v", err)
	}
}

func TestCreateBooking_NoDoubleBooking(t *testing.T) {
	for name, newService := range serviceBackends {
		t.Run(name, func(t *testing.T) {
			svc, repos := newService(t)
			assertSingleBooking(t, svc, repos)
		})
	}
}

func assertSingleBooking(t *testing.T, svc *Service, repos fileRepos) {
	t.Helper()

	ctx := context.Background()

	const workers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []string
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			in := fmt.Sprintf("2025-03-%02d", 1+i%3)
			out := fmt.Sprintf("2025-03-%02d", 5+i%3)
			number, err := svc.CreateBooking(ctx, silva, "R301", in, out)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes = append(successes, number)
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(successes) != 1 {
		t.Fatalf("expected exactly one confirmed booking, got %d", len(successes))
	}
	if conflicts != workers-1 {
		t.Fatalf("expected %d conflicts, got %d", workers-1, conflicts)
	}

	rs, err := repos.ledger.FindByRoom(ctx, "R301")
	if err != nil {
		t.Fatalf("FindByRoom error: %v", err)
	}
	var active []model.Reservation
	for _, r := range rs {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	for i := range active {
		for j := i + 1; j < len(active); j++ {
			if active[i].Overlaps(active[j].CheckIn, active[j].CheckOut) {
				t.Fatalf("reservations %s and %s overlap", active[i].Number, active[j].Number)
			}
		}
	}
}

func TestCreateBooking_DifferentRoomsInParallel(t *testing.T) {
	svc, _ := newFileService(t)
	ctx := context.Background()

	rooms := []string{"R101", "R102", "R103", "R201", "R202", "R401"}
	errs := make([]error, len(rooms))

	var wg sync.WaitGroup
	for i, room := range rooms {
		wg.Add(1)
		go func(i int, room string) {
			defer wg.Done()
			_, errs[i] = svc.CreateBooking(ctx, silva, room, "2025-03-01", "2025-03-04")
		}(i, room)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("booking %s failed: %v", rooms[i], err)
		}
	}

	all, err := svc.ListReservations(ctx)
	if err != nil {
		t.Fatalf("ListReservations error: %v", err)
	}
	if len(all) != len(rooms) {
		t.Fatalf("expected %d reservations, got %d", len(rooms), len(all))
	}
}

func TestReservationNumbers_Format(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, nil, WithClock(fixedClock))
	pattern := regexp.MustCompile(`^RES20250201103000\d{4}$`)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n := svc.nextReservationNumber()
		if !pattern.MatchString(n) {
			t.Fatalf("unexpected reservation number %q", n)
		}
		if seen[n] {
			t.Fatalf("duplicate reservation number %q", n)
		}
		seen[n] = true
	}
}

func TestCalculateBill_RepricesAndPersists(t *testing.T) {
	svc, repos := newFileService(t)
	ctx := context.Background()

	number, err := svc.CreateBooking(ctx, silva, "R401", "2025-03-01", "2025-03-08")
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}

	bill, err := svc.CalculateBill(ctx, number)
	if err != nil {
		t.Fatalf("CalculateBill error: %v", err)
	}

	want := []string{
		"     OCEAN VIEW RESORT - BILL",
		"Reservation: " + number,
		"Guest: A. Silva",
		"Room: R401",
		"Check-in: 2025-03-01",
		"Check-out: 2025-03-08",
		"Nights: 7",
		"Rate: Rs. 15000.00/night",
		"TOTAL: Rs. 94500.00",
	}
	for _, line := range want {
		if !strings.Contains(bill, line+"\n") {
			t.Fatalf("bill missing line %q:\n%s", line, bill)
		}
	}
	if !strings.HasPrefix(bill, billRule+"\n") || !strings.HasSuffix(bill, billRule+"\n") {
		t.Fatalf("bill must be framed by rules:\n%s", bill)
	}

	// Та же бронь, пересчитанная другой политикой.
	flat := NewService(repos.rooms, repos.ledger, repos.users, pricing.Flat{}, zap.NewNop(), WithClock(fixedClock))
	bill, err = flat.CalculateBill(ctx, number)
	if err != nil {
		t.Fatalf("CalculateBill error: %v", err)
	}
	if !strings.Contains(bill, "TOTAL: Rs. 105000.00\n") {
		t.Fatalf("expected undiscounted total:\n%s", bill)
	}

	res, err := svc.GetReservation(ctx, number)
	if err != nil {
		t.Fatalf("GetReservation error: %v", err)
	}
	if res.TotalAmount != 105000 {
		t.Fatalf("persisted TotalAmount = %v, want 105000", res.TotalAmount)
	}

	if _, err := svc.CalculateBill(ctx, "RES-MISSING"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelReservation(t *testing.T) {
	svc, _ := newFileService(t)
	ctx := context.Background()

	number, err := svc.CreateBooking(ctx, silva, "R202", "2025-03-01", "2025-03-04")
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}

	if err := svc.CancelReservation(ctx, number); err != nil {
		t.Fatalf("CancelReservation error: %v", err)
	}

	res, err := svc.GetReservation(ctx, number)
	if err != nil {
		t.Fatalf("GetReservation error: %v", err)
	}
	if res.Status != model.StatusCancelled {
		t.Fatalf("Status = %s, want CANCELLED", res.Status)
	}

	room, err := svc.GetRoom(ctx, "R202")
	if err != nil {
		t.Fatalf("GetRoom error: %v", err)
	}
	if !room.Available {
		t.Fatalf("room must be released after cancellation")
	}

	if err := svc.CancelReservation(ctx, number); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second cancel, got %v", err)
	}
	if err := svc.CancelReservation(ctx, "RES-MISSING"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := svc.CreateBooking(ctx, silva, "R202", "2025-03-01", "2025-03-04"); err != nil {
		t.Fatalf("rebooking cancelled dates must succeed, got %v", err)
	}
}

func TestSearchAndListRooms(t *testing.T) {
	svc, _ := newFileService(t)
	ctx := context.Background()

	kamal := model.Guest{Name: "Kamal Perera"}
	if _, err := svc.CreateBooking(ctx, silva, "R103", "2025-03-01", "2025-03-04"); err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
	if _, err := svc.CreateBooking(ctx, kamal, "R104", "2025-03-01", "2025-03-04"); err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}

	found, err := svc.SearchReservationsByGuestName(ctx, "perera")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(found) != 1 || found[0].Guest.Name != "Kamal Perera" {
		t.Fatalf("unexpected search result: %+v", found)
	}

	all, err := svc.ListRooms(ctx, false)
	if err != nil {
		t.Fatalf("ListRooms error: %v", err)
	}
	available, err := svc.ListRooms(ctx, true)
	if err != nil {
		t.Fatalf("ListRooms error: %v", err)
	}
	if len(all) != 28 || len(available) != 26 {
		t.Fatalf("rooms = %d/%d, want 28/26", len(available), len(all))
	}

	if _, err := svc.GetRoom(ctx, "R999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetReservation(ctx, "RES-MISSING"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newFileService(t)
	ctx := context.Background()

	u, err := svc.Authenticate(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if u.Role != model.RoleAdmin {
		t.Fatalf("Role = %s, want ADMIN", u.Role)
	}

	tests := []struct{ user, pass string }{
		{"admin", "wrong"},
		{"ghost", "admin123"},
		{"", "admin123"},
		{"admin", ""},
	}
	for _, tt := range tests {
		if _, err := svc.Authenticate(ctx, tt.user, tt.pass); !errors.Is(err, ErrAuthFailed) {
			t.Fatalf("Authenticate(%q, %q) expected ErrAuthFailed, got %v", tt.user, tt.pass, err)
		}
	}
}

type stubUsers struct {
	err error
}

func (s stubUsers) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return model.User{}, s.err
}

func TestAuthenticate_StorageFailureIsNotAuthFailure(t *testing.T) {
	svc := NewService(nil, nil, stubUsers{err: repository.ErrPersistence}, nil, nil)

	_, err := svc.Authenticate(context.Background(), "admin", "admin123")
	if errors.Is(err, ErrAuthFailed) || !errors.Is(err, repository.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestBillingAndCancellation_KeepStoredRoomSnapshot(t *testing.T) {
	svc, repos := newFileService(t)
	ctx := context.Background()

	// Номера R999 нет в каталоге: при чтении он восстанавливается как Single.
	stored := model.Reservation{
		Number:      "RES-PENTHOUSE",
		Guest:       silva,
		Room:        model.Room{Number: "R999", Type: "PENTHOUSE", Capacity: 6, Features: "Pool"},
		CheckIn:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:    time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		Nights:      2,
		TotalAmount: 70000,
		Status:      model.StatusConfirmed,
		CreatedAt:   fixedNow,
	}
	if err := repos.ledger.Save(ctx, stored); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	raw, err := filestore.NewCollection[model.Reservation](repos.dir, "reservations")
	if err != nil {
		t.Fatalf("collection error: %v", err)
	}
	loadRaw := func() model.Reservation {
		t.Helper()

		items, err := raw.Load()
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("expected 1 stored reservation, got %d", len(items))
		}
		return items[0]
	}
	assertSnapshot := func(r model.Reservation) {
		t.Helper()

		if r.Room.Type != "PENTHOUSE" || r.Room.Capacity != 6 || r.Room.Features != "Pool" {
			t.Fatalf("stored room snapshot changed: %+v", r.Room)
		}
	}

	bill, err := svc.CalculateBill(ctx, stored.Number)
	if err != nil {
		t.Fatalf("CalculateBill error: %v", err)
	}
	if !strings.Contains(bill, "TOTAL: Rs. 10000.00\n") {
		t.Fatalf("unexpected bill:\n%s", bill)
	}

	afterBill := loadRaw()
	assertSnapshot(afterBill)
	if afterBill.TotalAmount != 10000 {
		t.Fatalf("stored TotalAmount = %v, want 10000", afterBill.TotalAmount)
	}

	if err := svc.CancelReservation(ctx, stored.Number); err != nil {
		t.Fatalf("CancelReservation error: %v", err)
	}

	afterCancel := loadRaw()
	assertSnapshot(afterCancel)
	if afterCancel.Status != model.StatusCancelled {
		t.Fatalf("Status = %s, want CANCELLED", afterCancel.Status)
	}
	if afterCancel.Guest != silva {
		t.Fatalf("stored guest changed: %+v", afterCancel.Guest)
	}
}

func TestCreateBooking_SeesBookingsWrittenDuringOutage(t *testing.T) {
	repos, flaky := newSQLiteRepos(t)
	svc := newServiceOver(repos)
	ctx := context.Background()

	flaky.failing.Store(true)
	first, err := svc.CreateBooking(ctx, silva, "R101", "2025-03-01", "2025-03-04")
	if err != nil {
		t.Fatalf("booking during outage must fall back to files: %v", err)
	}
	flaky.failing.Store(false)

	_, err = svc.CreateBooking(ctx, silva, "R101", "2025-03-02", "2025-03-05")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("overlapping booking after recovery: expected ErrConflict, got %v", err)
	}

	res, err := svc.GetReservation(ctx, first)
	if err != nil {
		t.Fatalf("booking made during outage must stay visible: %v", err)
	}
	if res.Status != model.StatusConfirmed {
		t.Fatalf("Status = %s, want CONFIRMED", res.Status)
	}

	if err := svc.CancelReservation(ctx, first); err != nil {
		t.Fatalf("CancelReservation error: %v", err)
	}
	if _, err := svc.CreateBooking(ctx, silva, "R101", "2025-03-02", "2025-03-05"); err != nil {
		t.Fatalf("booking after cancellation must succeed: %v", err)
	}
}

func TestReconcile_ReplaysFileRecordsIntoDatabase(t *testing.T) {
	repos, flaky := newSQLiteRepos(t)
	svc := newServiceOver(repos)
	ctx := context.Background()

	flaky.failing.Store(true)
	number, err := svc.CreateBooking(ctx, silva, "R102", "2025-03-01", "2025-03-04")
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
	flaky.failing.Store(false)

	report, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	// Бронирование и флаг занятости номера.
	if report.Replayed != 2 {
		t.Fatalf("Replayed = %d, want 2", report.Replayed)
	}

	// Журнал с пустым файловым каталогом видит только базу.
	dbOnly := newRepos(t, flaky, flaky, t.TempDir())
	res, err := dbOnly.ledger.FindByNumber(ctx, number)
	if err != nil {
		t.Fatalf("reservation must be replayed into the database: %v", err)
	}
	if res.Status != model.StatusConfirmed || res.Room.Number != "R102" {
		t.Fatalf("unexpected replayed reservation: %+v", res)
	}
	room, err := dbOnly.rooms.FindByNumber(ctx, "R102")
	if err != nil {
		t.Fatalf("FindByNumber error: %v", err)
	}
	if room.Available {
		t.Fatalf("room flag must be replayed into the database")
	}

	report, err = svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if report.Replayed != 0 {
		t.Fatalf("second pass must replay nothing, got %d", report.Replayed)
	}
}

func TestCreateBooking_TakenNumberIsNotOverwritten(t *testing.T) {
	rooms, ledger := newMemRooms(), newMemLedger()
	svc := newMemService(rooms, ledger)
	ctx := context.Background()

	// Бронирование предыдущего запуска с номером, который счётчик выдаст следующим.
	taken := fmt.Sprintf("RES%s%04d", fixedNow.Format("20060102150405"), (svc.seq.Load()+1)%10000)
	ledger.items[taken] = model.Reservation{Number: taken, Guest: model.Guest{Name: "Earlier Guest"}, Status: model.StatusConfirmed}

	number, err := svc.CreateBooking(ctx, silva, "R101", "2025-03-01", "2025-03-04")
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
	if number == taken {
		t.Fatalf("reservation number %s reused", number)
	}
	if ledger.items[taken].Guest.Name != "Earlier Guest" {
		t.Fatalf("existing reservation %s was overwritten", taken)
	}
}
