package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/oceanview/resort/internal/model"
)

const dateLayout = "2006-01-02"

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

type roomRow struct {
	Number    string         `db:"room_number"`
	Type      string         `db:"room_type"`
	Available bool           `db:"is_available"`
	Capacity  int            `db:"capacity"`
	Features  sql.NullString `db:"features"`
	UpdatedAt sql.NullTime   `db:"updated_at"`
}

func (r roomRow) toModel() model.Room {
	return model.Room{
		Number:    r.Number,
		Type:      model.RoomType(r.Type),
		Available: r.Available,
		Capacity:  r.Capacity,
		Features:  r.Features.String,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

// roomTable хранит номера. base_rate записывается из категории и при чтении не используется.
type roomTable struct{}

const roomColumns = `room_number, room_type, is_available, capacity, features, updated_at`

func (roomTable) Find(ctx context.Context, q sqlx.ExtContext, number string) (model.Room, bool, error) {
	var row roomRow
	err := sqlx.GetContext(ctx, q, &row,
		q.Rebind(`SELECT `+roomColumns+` FROM rooms WHERE room_number = ?`), number)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Room{}, false, nil
	}
	if err != nil {
		return model.Room{}, false, fmt.Errorf("select room: %w", err)
	}
	return row.toModel(), true, nil
}

func (roomTable) FindAll(ctx context.Context, q sqlx.ExtContext) ([]model.Room, error) {
	var rows []roomRow
	if err := sqlx.SelectContext(ctx, q, &rows, `SELECT `+roomColumns+` FROM rooms ORDER BY room_number`); err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}

	rooms := make([]model.Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.toModel())
	}
	return rooms, nil
}

func (roomTable) Insert(ctx context.Context, q sqlx.ExtContext, r model.Room) error {
	_, err := q.ExecContext(ctx,
		q.Rebind(`INSERT INTO rooms (room_number, room_type, is_available, capacity, features, base_rate, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
		r.Number, string(r.Type), r.Available, r.Capacity, r.Features, r.Rate(), nullTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (roomTable) Update(ctx context.Context, q sqlx.ExtContext, r model.Room) error {
	_, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE rooms SET room_type = ?, is_available = ?, capacity = ?, features = ?, base_rate = ?,
			updated_at = ? WHERE room_number = ?`),
		string(r.Type), r.Available, r.Capacity, r.Features, r.Rate(), nullTime(r.UpdatedAt), r.Number,
	)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

// userTable хранит учётные записи сотрудников.
type userTable struct{}

const userColumns = `username, password, full_name, role`

func (userTable) Find(ctx context.Context, q sqlx.ExtContext, username string) (model.User, bool, error) {
	var u model.User
	err := sqlx.GetContext(ctx, q, &u,
		q.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("select user: %w", err)
	}
	return u, true, nil
}

func (userTable) FindAll(ctx context.Context, q sqlx.ExtContext) ([]model.User, error) {
	var users []model.User
	if err := sqlx.SelectContext(ctx, q, &users, `SELECT `+userColumns+` FROM users ORDER BY username`); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return users, nil
}

func (userTable) Insert(ctx context.Context, q sqlx.ExtContext, u model.User) error {
	_, err := q.ExecContext(ctx,
		q.Rebind(`INSERT INTO users (username, password, full_name, role) VALUES (?, ?, ?, ?)`),
		u.Username, u.Password, u.FullName, string(u.Role),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (userTable) Update(ctx context.Context, q sqlx.ExtContext, u model.User) error {
	_, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE users SET password = ?, full_name = ?, role = ? WHERE username = ?`),
		u.Password, u.FullName, string(u.Role), u.Username,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

type reservationRow struct {
	Number       string         `db:"reservation_number"`
	GuestName    string         `db:"guest_name"`
	GuestAddress sql.NullString `db:"guest_address"`
	GuestContact sql.NullString `db:"guest_contact"`
	GuestEmail   sql.NullString `db:"guest_email"`
	GuestNIC     sql.NullString `db:"guest_nic"`
	RoomNumber   string         `db:"room_number"`
	RoomType     string         `db:"room_type"`
	CheckIn      time.Time      `db:"check_in_date"`
	CheckOut     time.Time      `db:"check_out_date"`
	Nights       int            `db:"number_of_nights"`
	TotalAmount  float64        `db:"total_amount"`
	Status       string         `db:"status"`
	CreatedAt    time.Time      `db:"reservation_date"`
	UpdatedAt    sql.NullTime   `db:"updated_at"`
}

// toModel возвращает бронирование с номером, известным только по номеру и категории.
// Полный снимок номера восстанавливает ReservationLedger.
func (r reservationRow) toModel() model.Reservation {
	return model.Reservation{
		Number: r.Number,
		Guest: model.Guest{
			Name:          r.GuestName,
			Address:       r.GuestAddress.String,
			ContactNumber: r.GuestContact.String,
			Email:         r.GuestEmail.String,
			NIC:           r.GuestNIC.String,
		},
		Room:        model.Room{Number: r.RoomNumber, Type: model.RoomType(r.RoomType)},
		CheckIn:     model.Date(r.CheckIn),
		CheckOut:    model.Date(r.CheckOut),
		Nights:      r.Nights,
		TotalAmount: r.TotalAmount,
		Status:      model.ReservationStatus(r.Status),
		CreatedAt:   model.Date(r.CreatedAt),
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

// reservationTable хранит бронирования с денормализованными данными гостя.
type reservationTable struct{}

const reservationColumns = `reservation_number, guest_name, guest_address, guest_contact, guest_email, guest_nic,
	room_number, room_type, check_in_date, check_out_date, number_of_nights, total_amount, status, reservation_date, updated_at`

func (reservationTable) Find(ctx context.Context, q sqlx.ExtContext, number string) (model.Reservation, bool, error) {
	var row reservationRow
	err := sqlx.GetContext(ctx, q, &row,
		q.Rebind(`SELECT `+reservationColumns+` FROM reservations WHERE reservation_number = ?`), number)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, false, nil
	}
	if err != nil {
		return model.Reservation{}, false, fmt.Errorf("select reservation: %w", err)
	}
	return row.toModel(), true, nil
}

func (reservationTable) FindAll(ctx context.Context, q sqlx.ExtContext) ([]model.Reservation, error) {
	var rows []reservationRow
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+reservationColumns+` FROM reservations ORDER BY reservation_date DESC, reservation_number DESC`)
	if err != nil {
		return nil, fmt.Errorf("select reservations: %w", err)
	}

	reservations := make([]model.Reservation, 0, len(rows))
	for _, row := range rows {
		reservations = append(reservations, row.toModel())
	}
	return reservations, nil
}

func (reservationTable) Insert(ctx context.Context, q sqlx.ExtContext, r model.Reservation) error {
	_, err := q.ExecContext(ctx,
		q.Rebind(`INSERT INTO reservations (`+reservationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.Number, r.Guest.Name, r.Guest.Address, r.Guest.ContactNumber, r.Guest.Email, r.Guest.NIC,
		r.Room.Number, string(r.Room.Type),
		r.CheckIn.Format(dateLayout), r.CheckOut.Format(dateLayout),
		r.Nights, r.TotalAmount, string(r.Status), r.CreatedAt.Format(dateLayout), nullTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (reservationTable) Update(ctx context.Context, q sqlx.ExtContext, r model.Reservation) error {
	_, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE reservations SET
			guest_name = ?, guest_address = ?, guest_contact = ?, guest_email = ?, guest_nic = ?,
			room_number = ?, room_type = ?, check_in_date = ?, check_out_date = ?,
			number_of_nights = ?, total_amount = ?, status = ?, updated_at = ?
			WHERE reservation_number = ?`),
		r.Guest.Name, r.Guest.Address, r.Guest.ContactNumber, r.Guest.Email, r.Guest.NIC,
		r.Room.Number, string(r.Room.Type),
		r.CheckIn.Format(dateLayout), r.CheckOut.Format(dateLayout),
		r.Nights, r.TotalAmount, string(r.Status), nullTime(r.UpdatedAt), r.Number,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	return nil
}
