package repository

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/oceanview/resort/internal/filestore"
	"github.com/oceanview/resort/internal/model"
)

// seededStore заполняет пустое хранилище значениями по умолчанию.
type seededStore[K comparable, V any] struct {
	store    *RecordStore[K, V]
	defaults func() []V
	logger   *zap.Logger

	mu   sync.Mutex
	done bool
}

// findAll возвращает все записи. Пустой результат заполняется значениями по умолчанию,
// после чего чтение повторяется один раз.
func (s *seededStore[K, V]) findAll(ctx context.Context) ([]V, error) {
	items, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		return items, nil
	}

	if err := s.seed(ctx); err != nil {
		return nil, err
	}

	return s.store.FindAll(ctx)
}

// ensure гарантирует, что заполнение выполнялось хотя бы раз за время жизни процесса.
func (s *seededStore[K, V]) ensure(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done {
		return nil
	}

	_, err := s.findAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.done = true
	s.mu.Unlock()

	return nil
}

func (s *seededStore[K, V]) seed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Параллельный вызов мог уже заполнить хранилище.
	items, err := s.store.FindAll(ctx)
	if err != nil {
		return err
	}
	if len(items) > 0 {
		s.done = true
		return nil
	}

	defaults := s.defaults()
	if err := s.store.UpsertAll(ctx, defaults); err != nil {
		return fmt.Errorf("seed %s: %w", s.store.name, err)
	}
	s.done = true

	s.logger.Info("seeded default records",
		zap.String("collection", s.store.name),
		zap.Int("count", len(defaults)),
		zap.String("storage", s.store.Source()),
	)
	return nil
}

// RoomCatalog хранит номерной фонд отеля.
type RoomCatalog struct {
	seeded *seededStore[string, model.Room]
}

// NewRoomCatalog создаёт каталог номеров поверх реляционного и файлового хранилищ.
func NewRoomCatalog(b Backend, file *filestore.Collection[model.Room], logger *zap.Logger) *RoomCatalog {
	store := NewRecordStore("rooms", b, Table[string, model.Room](roomTable{}), file,
		func(r model.Room) string { return r.Number }, logger).
		MergeBy(model.Room.Newer)

	return &RoomCatalog{
		seeded: &seededStore[string, model.Room]{store: store, defaults: model.DefaultRooms, logger: logger},
	}
}

// FindAll возвращает все номера, при пустом каталоге заполняя его номерами по умолчанию.
func (c *RoomCatalog) FindAll(ctx context.Context) ([]model.Room, error) {
	rooms, err := c.seeded.findAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("find rooms: %w", err)
	}
	return rooms, nil
}

// FindAvailable возвращает номера, отмеченные свободными.
func (c *RoomCatalog) FindAvailable(ctx context.Context) ([]model.Room, error) {
	rooms, err := c.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	available := make([]model.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.Available {
			available = append(available, r)
		}
	}
	return available, nil
}

// FindByNumber возвращает номер или ErrNotFound.
func (c *RoomCatalog) FindByNumber(ctx context.Context, number string) (model.Room, error) {
	if err := c.seeded.ensure(ctx); err != nil {
		return model.Room{}, fmt.Errorf("find room: %w", err)
	}

	room, found, err := c.seeded.store.FindByKey(ctx, number)
	if err != nil {
		return model.Room{}, fmt.Errorf("find room: %w", err)
	}
	if !found {
		return model.Room{}, fmt.Errorf("room %s: %w", number, ErrNotFound)
	}
	return room, nil
}

// Save сохраняет номер целиком.
func (c *RoomCatalog) Save(ctx context.Context, room model.Room) error {
	room.UpdatedAt = stamp()
	if err := c.seeded.store.Upsert(ctx, room); err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	return nil
}

// Source возвращает имя хранилища, обслужившего последний вызов.
func (c *RoomCatalog) Source() string {
	return c.seeded.store.Source()
}

// Sync переносит в базу состояние номеров, записанное в файл во время её недоступности.
func (c *RoomCatalog) Sync(ctx context.Context) (int, error) {
	return c.seeded.store.Sync(ctx)
}

// UserDirectory хранит учётные записи сотрудников.
type UserDirectory struct {
	seeded *seededStore[string, model.User]
}

// NewUserDirectory создаёт справочник пользователей поверх реляционного и файлового хранилищ.
func NewUserDirectory(b Backend, file *filestore.Collection[model.User], logger *zap.Logger) *UserDirectory {
	store := NewRecordStore("users", b, Table[string, model.User](userTable{}), file,
		func(u model.User) string { return u.Username }, logger)

	return &UserDirectory{
		seeded: &seededStore[string, model.User]{store: store, defaults: model.DefaultUsers, logger: logger},
	}
}

// FindAll возвращает всех пользователей, при пустом справочнике заполняя его учётными записями по умолчанию.
func (d *UserDirectory) FindAll(ctx context.Context) ([]model.User, error) {
	users, err := d.seeded.findAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return users, nil
}

// FindByUsername возвращает пользователя или ErrNotFound.
func (d *UserDirectory) FindByUsername(ctx context.Context, username string) (model.User, error) {
	if err := d.seeded.ensure(ctx); err != nil {
		return model.User{}, fmt.Errorf("find user: %w", err)
	}

	u, found, err := d.seeded.store.FindByKey(ctx, username)
	if err != nil {
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
	if !found {
		return model.User{}, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return u, nil
}

// Save сохраняет учётную запись целиком.
func (d *UserDirectory) Save(ctx context.Context, u model.User) error {
	if err := d.seeded.store.Upsert(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}
