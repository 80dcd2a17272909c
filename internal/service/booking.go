package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/oceanview/resort/internal/model"
	"github.com/oceanview/resort/internal/repository"
	"github.com/oceanview/resort/internal/validation"
)

// numberAttempts ограничивает число попыток подобрать свободный номер брони.
const numberAttempts = 3

type bookingState int

const (
	stateValidating bookingState = iota
	stateCheckingAvailability
	stateCheckingConflicts
	statePricing
	statePersisting
	stateDone
	stateAborted
)

func (s bookingState) String() string {
	switch s {
	case stateValidating:
		return "validating"
	case stateCheckingAvailability:
		return "checking_availability"
	case stateCheckingConflicts:
		return "checking_conflicts"
	case statePricing:
		return "pricing"
	case statePersisting:
		return "persisting"
	case stateDone:
		return "done"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// bookingAttempt отслеживает состояние одной попытки бронирования.
type bookingAttempt struct {
	state  bookingState
	span   trace.Span
	logger *zap.Logger
}

func (a *bookingAttempt) advance(next bookingState) {
	a.logger.Debug("booking state changed",
		zap.Stringer("from", a.state),
		zap.Stringer("to", next),
	)
	a.span.AddEvent(next.String())
	a.state = next
}

func (a *bookingAttempt) abort(err error) {
	a.logger.Info("booking aborted",
		zap.Stringer("state", a.state),
		zap.Error(err),
	)
	a.span.RecordError(err)
	a.span.SetStatus(codes.Error, err.Error())
	a.state = stateAborted
}

// CreateBooking бронирует номер roomNumber на даты [checkIn, checkOut) и возвращает номер брони.
// Проверка занятости, поиск пересечений и запись выполняются под блокировкой номера.
func (s *Service) CreateBooking(ctx context.Context, guest model.Guest, roomNumber, checkIn, checkOut string) (string, error) {
	roomNumber = strings.ToUpper(strings.TrimSpace(roomNumber))

	ctx, span := tracer.Start(ctx, "booking.create", trace.WithAttributes(
		attribute.String("room", roomNumber),
		attribute.String("check_in", checkIn),
		attribute.String("check_out", checkOut),
	))
	defer span.End()

	attempt := &bookingAttempt{
		state:  stateValidating,
		span:   span,
		logger: s.logger.With(zap.String("room", roomNumber)),
	}

	number, err := s.createBooking(ctx, attempt, guest, roomNumber, checkIn, checkOut)
	if err != nil {
		attempt.abort(err)
		return "", err
	}

	attempt.advance(stateDone)
	span.SetAttributes(attribute.String("reservation", number))
	s.logger.Info("reservation created",
		zap.String("reservation", number),
		zap.String("room", roomNumber),
	)

	return number, nil
}

func (s *Service) createBooking(
	ctx context.Context,
	attempt *bookingAttempt,
	guest model.Guest,
	roomNumber, checkInRaw, checkOutRaw string,
) (string, error) {
	guest = sanitizeGuest(guest)
	if err := validation.ValidateGuest(guest); err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !validation.IsValidRoomNumber(roomNumber) {
		return "", fmt.Errorf("%w: invalid room number %q", ErrValidation, roomNumber)
	}

	checkIn, err := validation.ParseDate(checkInRaw)
	if err != nil {
		return "", fmt.Errorf("%w: check-in: %w", ErrValidation, err)
	}
	checkOut, err := validation.ParseDate(checkOutRaw)
	if err != nil {
		return "", fmt.Errorf("%w: check-out: %w", ErrValidation, err)
	}
	if !checkOut.After(checkIn) {
		return "", fmt.Errorf("%w: check-out date must be after check-in date", ErrValidation)
	}
	if checkIn.Before(model.Date(s.now())) {
		return "", fmt.Errorf("%w: check-in date cannot be in the past", ErrValidation)
	}

	unlock := s.locks.lock(roomNumber)
	defer unlock()

	attempt.advance(stateCheckingAvailability)
	room, err := s.rooms.FindByNumber(ctx, roomNumber)
	if err != nil {
		return "", notFound(err, "room %s", roomNumber)
	}
	if !room.Available {
		return "", fmt.Errorf("room %s: %w", roomNumber, ErrRoomUnavailable)
	}

	attempt.advance(stateCheckingConflicts)
	existing, err := s.ledger.FindByRoom(ctx, roomNumber)
	if err != nil {
		return "", fmt.Errorf("find room reservations: %w", err)
	}
	for _, r := range existing {
		if r.IsActive() && r.Overlaps(checkIn, checkOut) {
			return "", fmt.Errorf("room %s conflicts with %s: %w", roomNumber, r.Number, ErrDatesUnavailable)
		}
	}

	attempt.advance(statePricing)
	res := model.Reservation{
		Guest:     guest,
		Room:      room,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Nights:    model.NightsBetween(checkIn, checkOut),
		Status:    model.StatusConfirmed,
		CreatedAt: s.now(),
	}
	res.TotalAmount = s.policy.Price(res)

	attempt.advance(statePersisting)
	for i := 0; ; i++ {
		res.Number = s.nextReservationNumber()

		err := s.persist(ctx, res)
		if err == nil {
			return res.Number, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) || i == numberAttempts-1 {
			return "", err
		}
		attempt.logger.Warn("reservation number taken, retrying", zap.String("reservation", res.Number))
	}
}

// persist записывает бронирование и отмечает номер занятым.
// Если номер отметить не удалось, бронирование отменяется; если не удалась и отмена,
// бронирование ставится в очередь на восстановление.
func (s *Service) persist(ctx context.Context, res model.Reservation) error {
	if err := s.ledger.Create(ctx, res); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		return &PersistenceError{ReservationNumber: res.Number, Compensated: true, Err: err}
	}

	room := res.Room
	room.Available = false
	roomErr := s.rooms.Save(ctx, room)
	if roomErr == nil {
		return nil
	}

	s.logger.Warn("room update failed, cancelling reservation",
		zap.String("reservation", res.Number),
		zap.Error(roomErr),
	)

	res.Status = model.StatusCancelled
	if err := s.ledger.Save(ctx, res); err != nil {
		s.repairs.add(res.Number)
		s.logger.Error("compensation failed, reservation queued for repair",
			zap.String("reservation", res.Number),
			zap.Error(err),
		)
		return &PersistenceError{
			ReservationNumber: res.Number,
			Compensated:       false,
			Err:               errors.Join(roomErr, err),
		}
	}

	return &PersistenceError{ReservationNumber: res.Number, Compensated: true, Err: roomErr}
}

func sanitizeGuest(g model.Guest) model.Guest {
	return model.Guest{
		Name:          validation.Sanitize(g.Name),
		Address:       validation.Sanitize(g.Address),
		ContactNumber: validation.Sanitize(g.ContactNumber),
		Email:         validation.Sanitize(g.Email),
		NIC:           validation.Sanitize(g.NIC),
	}
}

// CancelReservation отменяет бронирование. Запись остаётся в журнале со статусом CANCELLED,
// номер освобождается, если на него не осталось действующих бронирований.
func (s *Service) CancelReservation(ctx context.Context, number string) error {
	ctx, span := tracer.Start(ctx, "booking.cancel", trace.WithAttributes(attribute.String("reservation", number)))
	defer span.End()

	err := s.cancelReservation(ctx, number)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Service) cancelReservation(ctx context.Context, number string) error {
	res, err := s.ledger.FindByNumber(ctx, number)
	if err != nil {
		return notFound(err, "reservation %s", number)
	}

	unlock := s.locks.lock(res.Room.Number)
	defer unlock()

	// Перечитываем под блокировкой: статус мог измениться.
	res, err = s.ledger.FindByNumber(ctx, number)
	if err != nil {
		return notFound(err, "reservation %s", number)
	}
	if res.Status == model.StatusCancelled {
		return fmt.Errorf("reservation %s is already cancelled: %w", number, ErrConflict)
	}

	if err := s.ledger.UpdateStatus(ctx, number, model.StatusCancelled); err != nil {
		return fmt.Errorf("save cancelled reservation: %w", err)
	}

	if err := s.releaseRoom(ctx, res.Room.Number); err != nil {
		return err
	}

	s.logger.Info("reservation cancelled", zap.String("reservation", number))
	return nil
}

// releaseRoom отмечает номер свободным, если на него нет действующих бронирований.
// Вызывается под блокировкой номера.
func (s *Service) releaseRoom(ctx context.Context, roomNumber string) error {
	rs, err := s.ledger.FindByRoom(ctx, roomNumber)
	if err != nil {
		return fmt.Errorf("find room reservations: %w", err)
	}
	for _, r := range rs {
		if r.IsActive() {
			return nil
		}
	}

	room, err := s.rooms.FindByNumber(ctx, roomNumber)
	if errors.Is(err, repository.ErrNotFound) {
		// Номера больше нет в каталоге, освобождать нечего.
		return nil
	}
	if err != nil {
		return fmt.Errorf("find room: %w", err)
	}
	if room.Available {
		return nil
	}

	room.Available = true
	if err := s.rooms.Save(ctx, room); err != nil {
		return fmt.Errorf("release room: %w", err)
	}
	return nil
}
