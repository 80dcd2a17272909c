// Package repository хранит сущности сервиса бронирования.
//
// Каждое обращение сначала идёт в реляционное хранилище, а при его
// недоступности или ошибке повторяется против файлового хранилища.
// Хранилища со слиянием читают оба источника и для каждого ключа берут
// запись, сделанную позже.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/oceanview/resort/internal/backend"
	"github.com/oceanview/resort/internal/filestore"
)

var (
	// ErrNotFound возвращается, если запись с указанным ключом отсутствует.
	ErrNotFound = errors.New("record not found")
	// ErrPersistence возвращается, если операцию не выполнило ни одно хранилище.
	ErrPersistence = errors.New("persistence failed")
	// ErrDuplicate возвращается при создании записи с уже занятым ключом.
	ErrDuplicate = errors.New("record already exists")
)

// Backend описывает реляционное хранилище, которым пользуется RecordStore.
type Backend interface {
	IsAvailable() bool
	Do(ctx context.Context, fn func(db *sqlx.DB) error) error
	Name() string
}

// Table отображает сущность V с ключом K на таблицу реляционного хранилища.
type Table[K comparable, V any] interface {
	Find(ctx context.Context, q sqlx.ExtContext, key K) (V, bool, error)
	FindAll(ctx context.Context, q sqlx.ExtContext) ([]V, error)
	Insert(ctx context.Context, q sqlx.ExtContext, v V) error
	Update(ctx context.Context, q sqlx.ExtContext, v V) error
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeUnavailable
	outcomeFailed
)

// RecordStore хранит сущности одного типа с автоматическим выбором хранилища на каждый вызов.
type RecordStore[K comparable, V any] struct {
	name    string
	backend Backend
	table   Table[K, V]
	file    *filestore.Collection[V]
	key     func(V) K
	newer   func(a, b V) bool
	logger  *zap.Logger

	mu     sync.Mutex
	source string
}

// NewRecordStore создаёт хранилище сущностей name.
// backend может быть nil: тогда все обращения идут в файловое хранилище.
func NewRecordStore[K comparable, V any](
	name string,
	b Backend,
	table Table[K, V],
	file *filestore.Collection[V],
	key func(V) K,
	logger *zap.Logger,
) *RecordStore[K, V] {
	return &RecordStore[K, V]{
		name:    name,
		backend: b,
		table:   table,
		file:    file,
		key:     key,
		logger:  logger,
		source:  backend.FileMode,
	}
}

// MergeBy включает чтение из обоих хранилищ. newer(a, b) сообщает, записана ли a позже b;
// при равенстве остаётся реляционная копия.
func (s *RecordStore[K, V]) MergeBy(newer func(a, b V) bool) *RecordStore[K, V] {
	s.newer = newer
	return s
}

// Source возвращает имя хранилища, обслужившего последний успешный вызов.
func (s *RecordStore[K, V]) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.source
}

// Upsert сохраняет v, заменяя запись с тем же ключом.
func (s *RecordStore[K, V]) Upsert(ctx context.Context, v V) error {
	return s.UpsertAll(ctx, []V{v})
}

// UpsertAll сохраняет набор записей одной транзакцией или одной перезаписью файла.
func (s *RecordStore[K, V]) UpsertAll(ctx context.Context, vs []V) error {
	return s.run(ctx, "upsert",
		func(db *sqlx.DB) error {
			tx, err := db.BeginTxx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin tx: %w", err)
			}
			defer tx.Rollback()

			for _, v := range vs {
				if err := s.upsertTx(ctx, tx, v); err != nil {
					return err
				}
			}

			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit tx: %w", err)
			}
			return nil
		},
		func() error {
			return s.file.Update(func(items []V) ([]V, error) {
				for _, v := range vs {
					items = s.replaceOrAppend(items, v)
				}
				return items, nil
			})
		},
	)
}

func (s *RecordStore[K, V]) upsertTx(ctx context.Context, tx *sqlx.Tx, v V) error {
	_, found, err := s.table.Find(ctx, tx, s.key(v))
	if err != nil {
		return err
	}
	if found {
		return s.table.Update(ctx, tx, v)
	}
	return s.table.Insert(ctx, tx, v)
}

func (s *RecordStore[K, V]) replaceOrAppend(items []V, v V) []V {
	k := s.key(v)
	for i := range items {
		if s.key(items[i]) == k {
			items[i] = v
			return items
		}
	}
	return append(items, v)
}

// FindByKey возвращает запись по ключу и признак её наличия.
func (s *RecordStore[K, V]) FindByKey(ctx context.Context, k K) (V, bool, error) {
	if s.newer != nil {
		return s.findMerged(ctx, k)
	}

	var (
		result V
		found  bool
	)

	err := s.run(ctx, "find",
		func(db *sqlx.DB) error {
			v, ok, err := s.table.Find(ctx, db, k)
			if err != nil {
				return err
			}
			result, found = v, ok
			return nil
		},
		func() error {
			v, ok, err := s.findInFile(k)
			if err != nil {
				return err
			}
			result, found = v, ok
			return nil
		},
	)

	return result, found, err
}

func (s *RecordStore[K, V]) findInFile(k K) (V, bool, error) {
	var zero V

	items, err := s.file.Load()
	if err != nil {
		return zero, false, err
	}
	for _, v := range items {
		if s.key(v) == k {
			return v, true, nil
		}
	}
	return zero, false, nil
}

// FindAll возвращает все записи: из базы в порядке таблицы, из файла в порядке вставки.
// При слиянии записи, которые есть только в файле, идут после записей базы.
func (s *RecordStore[K, V]) FindAll(ctx context.Context) ([]V, error) {
	if s.newer != nil {
		return s.findAllMerged(ctx)
	}

	var result []V

	err := s.run(ctx, "find all",
		func(db *sqlx.DB) error {
			items, err := s.table.FindAll(ctx, db)
			if err != nil {
				return err
			}
			result = items
			return nil
		},
		func() error {
			items, err := s.file.Load()
			if err != nil {
				return err
			}
			result = items
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	if result == nil {
		result = []V{}
	}
	return result, nil
}

func (s *RecordStore[K, V]) findMerged(ctx context.Context, k K) (V, bool, error) {
	var (
		rel   V
		relOK bool
	)
	out, relErr := s.relational(ctx, func(db *sqlx.DB) error {
		v, ok, err := s.table.Find(ctx, db, k)
		if err != nil {
			return err
		}
		rel, relOK = v, ok
		return nil
	})

	file, fileOK, fileErr := s.findInFile(k)

	if err := s.mergeErr("find", out, relErr, fileErr); err != nil {
		var zero V
		return zero, false, err
	}

	switch {
	case out != outcomeOK:
		return file, fileOK, nil
	case fileErr != nil || !fileOK:
		return rel, relOK, nil
	case !relOK || s.newer(file, rel):
		return file, true, nil
	default:
		return rel, true, nil
	}
}

func (s *RecordStore[K, V]) findAllMerged(ctx context.Context) ([]V, error) {
	var rel []V
	out, relErr := s.relational(ctx, func(db *sqlx.DB) error {
		items, err := s.table.FindAll(ctx, db)
		if err != nil {
			return err
		}
		rel = items
		return nil
	})

	file, fileErr := s.file.Load()

	if err := s.mergeErr("find all", out, relErr, fileErr); err != nil {
		return nil, err
	}

	merged := make([]V, 0, len(rel)+len(file))
	index := make(map[K]int, len(rel))
	if out == outcomeOK {
		for _, v := range rel {
			index[s.key(v)] = len(merged)
			merged = append(merged, v)
		}
	}
	if fileErr == nil {
		for _, v := range file {
			i, ok := index[s.key(v)]
			if !ok {
				index[s.key(v)] = len(merged)
				merged = append(merged, v)
				continue
			}
			if s.newer(v, merged[i]) {
				merged[i] = v
			}
		}
	}

	return merged, nil
}

// mergeErr возвращает ошибку, только если не ответило ни одно хранилище.
func (s *RecordStore[K, V]) mergeErr(op string, out outcome, relErr, fileErr error) error {
	if out == outcomeFailed {
		s.logger.Warn("relational storage failed, reading file storage only",
			zap.String("collection", s.name),
			zap.String("op", op),
			zap.Error(relErr),
		)
	}

	if fileErr != nil {
		if out == outcomeOK {
			s.logger.Warn("file storage failed, reading relational storage only",
				zap.String("collection", s.name),
				zap.String("op", op),
				zap.Error(fileErr),
			)
			s.setSource(s.backend.Name())
			return nil
		}
		s.logger.Error("file storage failed",
			zap.String("collection", s.name),
			zap.String("op", op),
			zap.Error(fileErr),
		)
		return fmt.Errorf("%w: %s %s: %w", ErrPersistence, op, s.name, errors.Join(relErr, fileErr))
	}

	if out == outcomeOK {
		s.setSource(s.backend.Name())
	} else {
		s.setSource(backend.FileMode)
	}
	return nil
}

// Sync переносит в реляционное хранилище записи, которых там нет или которые в файле новее.
// Каждая запись переносится отдельной транзакцией; запись, которую перенести не удалось,
// остаётся в файле до следующего прохода. Возвращает число перенесённых записей.
func (s *RecordStore[K, V]) Sync(ctx context.Context) (int, error) {
	if s.newer == nil || s.backend == nil || !s.backend.IsAvailable() {
		return 0, nil
	}

	items, err := s.file.Load()
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", s.name, err)
	}

	var (
		replayed int
		errs     []error
	)
	for _, v := range items {
		copied := false
		err := s.backend.Do(ctx, func(db *sqlx.DB) error {
			tx, err := db.BeginTxx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin tx: %w", err)
			}
			defer tx.Rollback()

			cur, found, err := s.table.Find(ctx, tx, s.key(v))
			if err != nil {
				return err
			}
			switch {
			case !found:
				err = s.table.Insert(ctx, tx, v)
			case s.newer(v, cur):
				err = s.table.Update(ctx, tx, v)
			default:
				return nil
			}
			if err != nil {
				return err
			}

			if err := tx.Commit(); err != nil {
				return fmt.Errorf("commit tx: %w", err)
			}
			copied = true
			return nil
		})
		if err != nil {
			if errors.Is(err, backend.ErrUnavailable) {
				return replayed, err
			}
			errs = append(errs, fmt.Errorf("%v: %w", s.key(v), err))
			continue
		}
		if copied {
			replayed++
		}
	}

	if replayed > 0 {
		s.logger.Info("file records replayed into relational storage",
			zap.String("collection", s.name),
			zap.Int("count", replayed),
		)
	}
	if len(errs) > 0 {
		return replayed, fmt.Errorf("sync %s: %w", s.name, errors.Join(errs...))
	}
	return replayed, nil
}

// run выполняет операцию в реляционном хранилище, а при неудаче повторяет её в файловом.
func (s *RecordStore[K, V]) run(ctx context.Context, op string, relational func(db *sqlx.DB) error, file func() error) error {
	out, relErr := s.relational(ctx, relational)
	switch out {
	case outcomeOK:
		s.setSource(s.backend.Name())
		return nil
	case outcomeFailed:
		s.logger.Warn("relational storage failed, falling back to file storage",
			zap.String("collection", s.name),
			zap.String("op", op),
			zap.Error(relErr),
		)
	case outcomeUnavailable:
		s.logger.Debug("relational storage unavailable, using file storage",
			zap.String("collection", s.name),
			zap.String("op", op),
		)
	}

	if err := file(); err != nil {
		s.logger.Error("file storage failed",
			zap.String("collection", s.name),
			zap.String("op", op),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s %s: %w", ErrPersistence, op, s.name, errors.Join(relErr, err))
	}

	s.setSource(backend.FileMode)
	return nil
}

func (s *RecordStore[K, V]) relational(ctx context.Context, fn func(db *sqlx.DB) error) (outcome, error) {
	if s.backend == nil || !s.backend.IsAvailable() {
		return outcomeUnavailable, backend.ErrUnavailable
	}

	err := s.backend.Do(ctx, fn)
	switch {
	case err == nil:
		return outcomeOK, nil
	case errors.Is(err, backend.ErrUnavailable):
		return outcomeUnavailable, err
	default:
		return outcomeFailed, err
	}
}

func (s *RecordStore[K, V]) setSource(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.source = name
}
