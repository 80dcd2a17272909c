// Package pricing рассчитывает стоимость проживания.
package pricing

import "github.com/oceanview/resort/internal/model"

// Policy рассчитывает стоимость бронирования.
type Policy interface {
	Price(r model.Reservation) float64
}

// LongStayDiscount снижает стоимость на Percent процентов при проживании от Threshold ночей.
type LongStayDiscount struct {
	Threshold int
	Percent   float64
}

// Default возвращает политику по умолчанию: скидка 10% от семи ночей.
func Default() LongStayDiscount {
	return LongStayDiscount{Threshold: 7, Percent: 10}
}

// Price возвращает стоимость бронирования с учётом скидки за длительное проживание.
func (p LongStayDiscount) Price(r model.Reservation) float64 {
	base := baseAmount(r)
	if base == 0 {
		return 0
	}
	if p.Threshold > 0 && r.Nights >= p.Threshold {
		return base * (100 - p.Percent) / 100
	}
	return base
}

// Flat считает стоимость без скидок.
type Flat struct{}

// Price возвращает произведение тарифа на число ночей.
func (Flat) Price(r model.Reservation) float64 {
	return baseAmount(r)
}

func baseAmount(r model.Reservation) float64 {
	if r.Nights <= 0 {
		return 0
	}
	return r.Room.Rate() * float64(r.Nights)
}
