// Package backend выбирает и обслуживает реляционное хранилище сервиса бронирования.
package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrUnavailable возвращается, если реляционное хранилище не выбрано или временно недоступно.
var ErrUnavailable = errors.New("relational backend unavailable")

// FileMode обозначает режим работы без реляционного хранилища.
const FileMode = "file"

const (
	probeTimeout = 5 * time.Second
	breakerTrip  = 3
)

// breakerTimeout задаёт, сколько предохранитель остаётся разомкнутым
// перед пробным обращением к базе.
var breakerTimeout = 30 * time.Second

// Driver описывает одного кандидата в списке опроса драйверов.
type Driver struct {
	Name       string
	DriverName string
	DSN        string
	Dialect    string
}

// Postgres возвращает кандидата для PostgreSQL через драйвер pgx.
func Postgres(dsn string) Driver {
	return Driver{Name: "postgres", DriverName: "pgx", DSN: dsn, Dialect: "postgres"}
}

// SQLite возвращает кандидата для встроенной базы SQLite в каталоге dir.
func SQLite(dir string) Driver {
	path := filepath.Join(dir, "resort.db")
	return Driver{
		Name:       "sqlite",
		DriverName: "sqlite3",
		DSN:        "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL",
		Dialect:    "sqlite3",
	}
}

// Connection владеет выбранным реляционным хранилищем.
// Если ни один драйвер не открылся, соединение навсегда остаётся в файловом режиме.
type Connection struct {
	mu      sync.Mutex
	db      *sqlx.DB
	driver  *Driver
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// Open перебирает драйверы по порядку и выбирает первый, который открылся,
// прошёл создание схемы и начальное заполнение.
func Open(ctx context.Context, drivers []Driver, logger *zap.Logger) *Connection {
	c := &Connection{logger: logger}

	for _, d := range drivers {
		if d.DSN == "" {
			continue
		}

		db, err := connect(ctx, d)
		if err != nil {
			logger.Info("database driver unavailable", zap.String("driver", d.Name), zap.Error(err))
			continue
		}

		if err := bootstrap(ctx, db, d.Dialect); err != nil {
			logger.Warn("database bootstrap failed", zap.String("driver", d.Name), zap.Error(err))
			db.Close()
			continue
		}

		selected := d
		c.db = db
		c.driver = &selected
		c.breaker = newBreaker(selected.Name, logger)

		logger.Info("connected to database", zap.String("driver", d.Name))
		return c
	}

	logger.Warn("no database driver available, using file-based storage")
	return c
}

func connect(ctx context.Context, d Driver) (*sqlx.DB, error) {
	db, err := sqlx.Open(d.DriverName, d.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}

	if d.DriverName == "sqlite3" {
		// Один открытый handle: операции над общим соединением не перемежаются.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}

	return db, nil
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isConnectionError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("database circuit state changed",
				zap.String("driver", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// IsAvailable сообщает, выбран ли драйвер и не разомкнут ли предохранитель.
func (c *Connection) IsAvailable() bool {
	if c == nil || c.breaker == nil {
		return false
	}
	return c.breaker.State() != gobreaker.StateOpen
}

// Name возвращает имя активного хранилища или FileMode.
func (c *Connection) Name() string {
	if c == nil || c.driver == nil {
		return FileMode
	}
	return c.driver.Name
}

// DB возвращает соединение, переподключаясь выбранным драйвером, если оно было сброшено.
func (c *Connection) DB(ctx context.Context) (*sqlx.DB, error) {
	if c == nil {
		return nil, ErrUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver == nil {
		return nil, ErrUnavailable
	}
	if c.db != nil {
		return c.db, nil
	}

	db, err := connect(ctx, *c.driver)
	if err != nil {
		return nil, fmt.Errorf("%w: reconnect: %v", ErrUnavailable, err)
	}
	c.db = db
	c.logger.Info("reconnected to database", zap.String("driver", c.driver.Name))

	return db, nil
}

// Do выполняет одно обращение к реляционному хранилищу через предохранитель.
// Ошибки соединения сбрасывают handle, следующий вызов переподключится.
func (c *Connection) Do(ctx context.Context, fn func(db *sqlx.DB) error) error {
	if !c.IsAvailable() {
		return ErrUnavailable
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		db, err := c.DB(ctx)
		if err != nil {
			return nil, err
		}

		err = withRetry(ctx, func() error { return fn(db) })
		if err != nil && isConnectionError(err) {
			c.drop(db)
		}
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return err
}

func (c *Connection) drop(db *sqlx.DB) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != db {
		return
	}
	if err := c.db.Close(); err != nil {
		c.logger.Debug("close dropped connection", zap.Error(err))
	}
	c.db = nil
}

// Close закрывает соединение с базой данных.
func (c *Connection) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
