// Package service реализует бизнес-логику бронирования номеров отеля Ocean View Resort.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/oceanview/resort/internal/backend"
	"github.com/oceanview/resort/internal/model"
	"github.com/oceanview/resort/internal/pricing"
	"github.com/oceanview/resort/internal/repository"
)

var tracer = otel.Tracer("github.com/oceanview/resort/internal/service")

// RoomCatalog описывает доступ к номерному фонду.
type RoomCatalog interface {
	FindAll(ctx context.Context) ([]model.Room, error)
	FindAvailable(ctx context.Context) ([]model.Room, error)
	FindByNumber(ctx context.Context, number string) (model.Room, error)
	Save(ctx context.Context, room model.Room) error
}

// ReservationLedger описывает доступ к журналу бронирований.
type ReservationLedger interface {
	Create(ctx context.Context, r model.Reservation) error
	Save(ctx context.Context, r model.Reservation) error
	UpdateStatus(ctx context.Context, number string, status model.ReservationStatus) error
	UpdateAmount(ctx context.Context, number string, amount float64) error
	FindByNumber(ctx context.Context, number string) (model.Reservation, error)
	FindAll(ctx context.Context) ([]model.Reservation, error)
	FindByGuestName(ctx context.Context, fragment string) ([]model.Reservation, error)
	FindByRoom(ctx context.Context, roomNumber string) ([]model.Reservation, error)
}

// UserDirectory описывает доступ к учётным записям сотрудников.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
}

// syncer переносит в базу записи, сделанные в файловое хранилище во время её недоступности.
type syncer interface {
	Sync(ctx context.Context) (int, error)
}

// Storage сообщает, какое хранилище сейчас обслуживает запросы.
type Storage interface {
	Name() string
	IsAvailable() bool
}

// Service содержит бизнес-логику бронирования.
type Service struct {
	rooms   RoomCatalog
	ledger  ReservationLedger
	users   UserDirectory
	policy  pricing.Policy
	storage Storage
	logger  *zap.Logger
	now     func() time.Time

	locks   *roomLocks
	repairs *repairQueue
	seq     atomic.Uint32
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithStorage задаёт хранилище, о котором сообщает StorageBackend.
func WithStorage(storage Storage) Option {
	return func(s *Service) {
		s.storage = storage
	}
}

// NewService создаёт сервис бронирования. Если policy не задана, используется pricing.Default.
func NewService(
	rooms RoomCatalog,
	ledger ReservationLedger,
	users UserDirectory,
	policy pricing.Policy,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if policy == nil {
		policy = pricing.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		rooms:   rooms,
		ledger:  ledger,
		users:   users,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
		locks:   newRoomLocks(),
		repairs: newRepairQueue(),
	}
	// Счётчик номеров начинается со случайного значения.
	s.seq.Store(rand.Uint32N(10000))
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// StorageBackend возвращает имя хранилища, которое сейчас обслуживает запросы.
func (s *Service) StorageBackend() string {
	if s.storage == nil || !s.storage.IsAvailable() {
		return backend.FileMode
	}
	return s.storage.Name()
}

// GetReservation возвращает бронирование по номеру.
func (s *Service) GetReservation(ctx context.Context, number string) (*model.Reservation, error) {
	r, err := s.ledger.FindByNumber(ctx, number)
	if err != nil {
		return nil, notFound(err, "reservation %s", number)
	}
	return &r, nil
}

// ListReservations возвращает все бронирования, новые первыми.
func (s *Service) ListReservations(ctx context.Context) ([]model.Reservation, error) {
	return s.ledger.FindAll(ctx)
}

// SearchReservationsByGuestName ищет бронирования по части имени гостя.
func (s *Service) SearchReservationsByGuestName(ctx context.Context, fragment string) ([]model.Reservation, error) {
	return s.ledger.FindByGuestName(ctx, fragment)
}

// ListRooms возвращает все номера или только свободные.
func (s *Service) ListRooms(ctx context.Context, onlyAvailable bool) ([]model.Room, error) {
	if onlyAvailable {
		return s.rooms.FindAvailable(ctx)
	}
	return s.rooms.FindAll(ctx)
}

// GetRoom возвращает номер по его обозначению.
func (s *Service) GetRoom(ctx context.Context, number string) (*model.Room, error) {
	room, err := s.rooms.FindByNumber(ctx, number)
	if err != nil {
		return nil, notFound(err, "room %s", number)
	}
	return &room, nil
}

// notFound переводит отсутствие записи в ErrNotFound, остальные ошибки возвращает как есть.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

// nextReservationNumber возвращает номер вида RES<yyyymmddhhmmss><четырёхзначный счётчик>.
func (s *Service) nextReservationNumber() string {
	n := s.seq.Add(1) % 10000
	return fmt.Sprintf("RES%s%04d", s.now().Format("20060102150405"), n)
}
