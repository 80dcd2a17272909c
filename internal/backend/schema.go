package backend

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/oceanview/resort/internal/model"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// goose хранит диалект и файловую систему в глобальном состоянии.
var gooseMu sync.Mutex

var migrationDirs = map[string]string{
	"postgres": "migrations/postgres",
	"sqlite3":  "migrations/sqlite",
}

func bootstrap(ctx context.Context, db *sqlx.DB, dialect string) error {
	if err := runMigrations(ctx, db, dialect); err != nil {
		return err
	}
	if err := seed(ctx, db); err != nil {
		return fmt.Errorf("seed default data: %w", err)
	}
	return nil
}

func runMigrations(ctx context.Context, db *sqlx.DB, dialect string) error {
	dir, ok := migrationDirs[dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// seed заполняет пустые таблицы учётной записью администратора и номерным фондом.
func seed(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var users int
	if err := tx.GetContext(ctx, &users, `SELECT COUNT(*) FROM users`); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if users == 0 {
		admin := model.DefaultUsers()[0]
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO users (username, password, full_name, role) VALUES (?, ?, ?, ?)`),
			admin.Username, admin.Password, admin.FullName, string(admin.Role),
		)
		if err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
	}

	var rooms int
	if err := tx.GetContext(ctx, &rooms, `SELECT COUNT(*) FROM rooms`); err != nil {
		return fmt.Errorf("count rooms: %w", err)
	}
	if rooms == 0 {
		query := tx.Rebind(`INSERT INTO rooms (room_number, room_type, is_available, capacity, features, base_rate)
			VALUES (?, ?, ?, ?, ?, ?)`)
		for _, r := range model.DefaultRooms() {
			_, err := tx.ExecContext(ctx, query,
				r.Number, string(r.Type), r.Available, r.Capacity, r.Features, r.Rate(),
			)
			if err != nil {
				return fmt.Errorf("insert room %s: %w", r.Number, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
