package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation возвращается при некорректных входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound возвращается, если номер или бронирование не найдены.
	ErrNotFound = errors.New("not found")
	// ErrConflict возвращается, если операция противоречит текущему состоянию.
	ErrConflict = errors.New("conflict")
	// ErrRoomUnavailable возвращается, если номер отмечен занятым.
	ErrRoomUnavailable = fmt.Errorf("%w: room is not available", ErrConflict)
	// ErrDatesUnavailable возвращается, если даты пересекаются с действующим бронированием.
	ErrDatesUnavailable = fmt.Errorf("%w: room is already booked for the selected dates", ErrConflict)
	// ErrAuthFailed возвращается при неверном логине или пароле.
	ErrAuthFailed = errors.New("invalid credentials")
)

// PersistenceError возвращается, если бронирование не удалось сохранить целиком.
// Compensated означает, что частично записанное состояние откачено.
type PersistenceError struct {
	ReservationNumber string
	Compensated       bool
	Err               error
}

func (e *PersistenceError) Error() string {
	state := "compensated"
	if !e.Compensated {
		state = "queued for repair"
	}
	return fmt.Sprintf("persist reservation %s (%s): %v", e.ReservationNumber, state, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
