// Package model содержит доменные сущности сервиса бронирования отеля.
package model

import (
	"strings"
	"time"
)

// RoomType описывает категорию номера. Тариф определяется только категорией.
type RoomType string

const (
	RoomSingle RoomType = "SINGLE"
	RoomDouble RoomType = "DOUBLE"
	RoomDeluxe RoomType = "DELUXE"
	RoomSuite  RoomType = "SUITE"
)

var roomRates = map[RoomType]float64{
	RoomSingle: 5000,
	RoomDouble: 8000,
	RoomDeluxe: 12000,
	RoomSuite:  15000,
}

var roomDescriptions = map[RoomType]string{
	RoomSingle: "Single Room",
	RoomDouble: "Double Room",
	RoomDeluxe: "Deluxe Room",
	RoomSuite:  "Suite",
}

// Rate возвращает базовую стоимость ночи для категории. Для неизвестной категории возвращает 0.
func (t RoomType) Rate() float64 {
	return roomRates[t]
}

// Description возвращает человекочитаемое название категории.
func (t RoomType) Description() string {
	return roomDescriptions[t]
}

// ParseRoomType разбирает строковое представление категории без учёта регистра.
func ParseRoomType(s string) (RoomType, bool) {
	t := RoomType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := roomRates[t]; !ok {
		return RoomSingle, false
	}
	return t, true
}

// Room описывает номер отеля.
type Room struct {
	Number    string    `json:"number"`
	Type      RoomType  `json:"type"`
	Available bool      `json:"available"`
	Capacity  int       `json:"capacity"`
	Features  string    `json:"features"`
	// UpdatedAt проставляется хранилищем при каждой записи.
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Newer сообщает, записан ли r позже other.
func (r Room) Newer(other Room) bool {
	return r.UpdatedAt.After(other.UpdatedAt)
}

// Rate возвращает стоимость ночи, выведенную из категории номера.
func (r Room) Rate() float64 {
	return r.Type.Rate()
}

// Guest содержит снимок данных гостя на момент бронирования.
type Guest struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	ContactNumber string `json:"contactNumber"`
	Email         string `json:"email"`
	NIC           string `json:"nic"`
}

// ReservationStatus описывает состояние бронирования.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusCancelled ReservationStatus = "CANCELLED"
)

// Reservation описывает бронирование номера. Гость и номер хранятся как снимки.
type Reservation struct {
	Number      string            `json:"number"`
	Guest       Guest             `json:"guest"`
	Room        Room              `json:"room"`
	CheckIn     time.Time         `json:"checkIn"`
	CheckOut    time.Time         `json:"checkOut"`
	Nights      int               `json:"nights"`
	TotalAmount float64           `json:"totalAmount"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt,omitzero"`
}

// Newer сообщает, записана ли r позже other.
func (r Reservation) Newer(other Reservation) bool {
	return r.UpdatedAt.After(other.UpdatedAt)
}

// IsActive сообщает, участвует ли бронирование в проверке пересечений.
func (r Reservation) IsActive() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// Overlaps проверяет пересечение полуоткрытых интервалов [CheckIn, CheckOut).
func (r Reservation) Overlaps(checkIn, checkOut time.Time) bool {
	return Overlaps(r.CheckIn, r.CheckOut, checkIn, checkOut)
}

// Overlaps проверяет, пересекаются ли интервалы [a, b) и [c, d):
// конфликт есть, если не выполняется ни b <= c, ни a >= d.
func Overlaps(a, b, c, d time.Time) bool {
	return a.Before(d) && c.Before(b)
}

// NightsBetween возвращает количество ночей между датами, но не меньше одной.
func NightsBetween(checkIn, checkOut time.Time) int {
	days := int(Date(checkOut).Sub(Date(checkIn)).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// Date отбрасывает время суток и приводит момент к полуночи UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Role описывает роль сотрудника.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleStaff Role = "STAFF"
)

// User представляет учётную запись сотрудника отеля.
type User struct {
	Username string `json:"username" db:"username"`
	Password string `json:"password" db:"password"`
	FullName string `json:"fullName" db:"full_name"`
	Role     Role   `json:"role" db:"role"`
}
