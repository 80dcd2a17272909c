package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oceanview/resort/internal/filestore"
	"github.com/oceanview/resort/internal/model"
)

// fallbackCapacity задаёт вместимость восстановленного номера, если он не найден в каталоге.
const fallbackCapacity = 2

// stamp возвращает момент записи с точностью, которую сохраняют все хранилища.
func stamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

type roomLister interface {
	FindAll(ctx context.Context) ([]model.Room, error)
}

// ReservationLedger хранит бронирования. Записи не удаляются, отмена меняет только статус.
type ReservationLedger struct {
	store  *RecordStore[string, model.Reservation]
	rooms  roomLister
	logger *zap.Logger
}

// NewReservationLedger создаёт журнал бронирований. rooms используется для восстановления
// актуальных данных номера при чтении.
func NewReservationLedger(
	b Backend,
	file *filestore.Collection[model.Reservation],
	rooms roomLister,
	logger *zap.Logger,
) *ReservationLedger {
	store := NewRecordStore("reservations", b, Table[string, model.Reservation](reservationTable{}), file,
		func(r model.Reservation) string { return r.Number }, logger).
		MergeBy(model.Reservation.Newer)

	return &ReservationLedger{store: store, rooms: rooms, logger: logger}
}

// Save сохраняет бронирование, заменяя запись с тем же номером.
func (l *ReservationLedger) Save(ctx context.Context, r model.Reservation) error {
	r.UpdatedAt = stamp()
	if err := l.store.Upsert(ctx, r); err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}
	return nil
}

// Create сохраняет новое бронирование. Если номер брони уже занят, возвращает ErrDuplicate.
func (l *ReservationLedger) Create(ctx context.Context, r model.Reservation) error {
	_, found, err := l.store.FindByKey(ctx, r.Number)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	if found {
		return fmt.Errorf("reservation %s: %w", r.Number, ErrDuplicate)
	}
	return l.Save(ctx, r)
}

// UpdateStatus меняет статус сохранённого бронирования. Снимки гостя и номера
// записываются обратно в том виде, в каком хранились.
func (l *ReservationLedger) UpdateStatus(ctx context.Context, number string, status model.ReservationStatus) error {
	return l.update(ctx, number, func(r *model.Reservation) { r.Status = status })
}

// UpdateAmount меняет сумму сохранённого бронирования, не затрагивая снимки.
func (l *ReservationLedger) UpdateAmount(ctx context.Context, number string, amount float64) error {
	return l.update(ctx, number, func(r *model.Reservation) { r.TotalAmount = amount })
}

// update читает запись без восстановления номера из каталога, меняет её и сохраняет.
func (l *ReservationLedger) update(ctx context.Context, number string, change func(r *model.Reservation)) error {
	r, found, err := l.store.FindByKey(ctx, number)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if !found {
		return fmt.Errorf("reservation %s: %w", number, ErrNotFound)
	}

	change(&r)
	return l.Save(ctx, r)
}

// Sync переносит в базу бронирования, записанные в файл во время её недоступности.
func (l *ReservationLedger) Sync(ctx context.Context) (int, error) {
	return l.store.Sync(ctx)
}

// FindByNumber возвращает бронирование или ErrNotFound.
func (l *ReservationLedger) FindByNumber(ctx context.Context, number string) (model.Reservation, error) {
	r, found, err := l.store.FindByKey(ctx, number)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("find reservation: %w", err)
	}
	if !found {
		return model.Reservation{}, fmt.Errorf("reservation %s: %w", number, ErrNotFound)
	}

	rs := []model.Reservation{r}
	l.rehydrate(ctx, rs)
	return rs[0], nil
}

// FindAll возвращает все бронирования, новые первыми.
func (l *ReservationLedger) FindAll(ctx context.Context) ([]model.Reservation, error) {
	rs, err := l.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("find reservations: %w", err)
	}

	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})

	l.rehydrate(ctx, rs)
	return rs, nil
}

// FindByGuestName ищет бронирования по подстроке имени гостя без учёта регистра.
func (l *ReservationLedger) FindByGuestName(ctx context.Context, fragment string) ([]model.Reservation, error) {
	return l.filter(ctx, func(r model.Reservation) bool {
		return strings.Contains(strings.ToLower(r.Guest.Name), strings.ToLower(fragment))
	})
}

// FindByRoom возвращает все бронирования номера.
func (l *ReservationLedger) FindByRoom(ctx context.Context, roomNumber string) ([]model.Reservation, error) {
	return l.filter(ctx, func(r model.Reservation) bool {
		return r.Room.Number == roomNumber
	})
}

func (l *ReservationLedger) filter(ctx context.Context, keep func(model.Reservation) bool) ([]model.Reservation, error) {
	all, err := l.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]model.Reservation, 0)
	for _, r := range all {
		if keep(r) {
			result = append(result, r)
		}
	}
	return result, nil
}

// Source возвращает имя хранилища, обслужившего последний вызов.
func (l *ReservationLedger) Source() string {
	return l.store.Source()
}

// rehydrate заменяет сохранённый снимок номера актуальными данными каталога.
// Номер, которого нет в каталоге, восстанавливается из номера и категории бронирования.
func (l *ReservationLedger) rehydrate(ctx context.Context, rs []model.Reservation) {
	if len(rs) == 0 {
		return
	}

	byNumber := make(map[string]model.Room)
	rooms, err := l.rooms.FindAll(ctx)
	if err != nil {
		l.logger.Warn("room lookup failed, using stored room data", zap.Error(err))
	}
	for _, room := range rooms {
		byNumber[room.Number] = room
	}

	for i := range rs {
		if room, ok := byNumber[rs[i].Room.Number]; ok {
			rs[i].Room = room
			continue
		}
		rs[i].Room = reconstructRoom(rs[i].Room)
	}
}

func reconstructRoom(stored model.Room) model.Room {
	t, ok := model.ParseRoomType(string(stored.Type))
	if !ok {
		t = model.RoomSingle
	}
	return model.Room{
		Number:    stored.Number,
		Type:      t,
		Available: true,
		Capacity:  fallbackCapacity,
	}
}
