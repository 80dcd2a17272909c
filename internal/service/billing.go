package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oceanview/resort/internal/model"
	"github.com/oceanview/resort/internal/validation"
)

const billRule = "========================================"

// CalculateBill пересчитывает стоимость бронирования по текущей политике,
// сохраняет новую сумму и возвращает текст счёта.
func (s *Service) CalculateBill(ctx context.Context, number string) (string, error) {
	ctx, span := tracer.Start(ctx, "booking.bill", trace.WithAttributes(attribute.String("reservation", number)))
	defer span.End()

	bill, err := s.calculateBill(ctx, number)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return bill, nil
}

func (s *Service) calculateBill(ctx context.Context, number string) (string, error) {
	res, err := s.ledger.FindByNumber(ctx, number)
	if err != nil {
		return "", notFound(err, "reservation %s", number)
	}

	unlock := s.locks.lock(res.Room.Number)
	defer unlock()

	res, err = s.ledger.FindByNumber(ctx, number)
	if err != nil {
		return "", notFound(err, "reservation %s", number)
	}

	res.TotalAmount = s.policy.Price(res)
	if err := s.ledger.UpdateAmount(ctx, number, res.TotalAmount); err != nil {
		return "", fmt.Errorf("save bill amount: %w", err)
	}

	return renderBill(res), nil
}

func renderBill(r model.Reservation) string {
	var b strings.Builder

	fmt.Fprintln(&b, billRule)
	fmt.Fprintln(&b, "     OCEAN VIEW RESORT - BILL")
	fmt.Fprintln(&b, billRule)
	fmt.Fprintf(&b, "Reservation: %s\n", r.Number)
	fmt.Fprintf(&b, "Guest: %s\n", r.Guest.Name)
	fmt.Fprintf(&b, "Room: %s\n", r.Room.Number)
	fmt.Fprintf(&b, "Check-in: %s\n", r.CheckIn.Format(validation.DateLayout))
	fmt.Fprintf(&b, "Check-out: %s\n", r.CheckOut.Format(validation.DateLayout))
	fmt.Fprintf(&b, "Nights: %d\n", r.Nights)
	fmt.Fprintf(&b, "Rate: Rs. %.2f/night\n", r.Room.Rate())
	fmt.Fprintf(&b, "TOTAL: Rs. %.2f\n", r.TotalAmount)
	fmt.Fprintln(&b, billRule)

	return b.String()
}
