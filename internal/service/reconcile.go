package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/oceanview/resort/internal/model"
	"github.com/oceanview/resort/internal/repository"
)

// repairQueue хранит номера бронирований, для которых не удалась компенсация.
type repairQueue struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

func newRepairQueue() *repairQueue {
	return &repairQueue{pending: make(map[string]struct{})}
}

func (q *repairQueue) add(number string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending[number] = struct{}{}
}

func (q *repairQueue) remove(number string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.pending, number)
}

func (q *repairQueue) list() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	numbers := make([]string, 0, len(q.pending))
	for n := range q.pending {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	return numbers
}

// RepairReport описывает результат одного прохода восстановления.
type RepairReport struct {
	Replayed      int      `json:"replayed"`
	Cancelled     []string `json:"cancelled"`
	RolledForward []string `json:"rolledForward"`
	Failed        []string `json:"failed"`
}

// PendingRepairs возвращает бронирования, ожидающие восстановления.
func (s *Service) PendingRepairs() []string {
	return s.repairs.list()
}

// Reconcile устраняет расхождения после частично неудавшихся бронирований.
// Сначала записи, сделанные в файл во время недоступности базы, переносятся в базу.
// Затем отменяются бронирования из очереди восстановления, и для действующих
// бронирований с ещё не наступившим выездом номер отмечается занятым.
func (s *Service) Reconcile(ctx context.Context) (RepairReport, error) {
	ctx, span := tracer.Start(ctx, "booking.reconcile")
	defer span.End()

	var report RepairReport

	for _, store := range []any{s.rooms, s.ledger} {
		sy, ok := store.(syncer)
		if !ok {
			continue
		}
		n, err := sy.Sync(ctx)
		report.Replayed += n
		if err != nil {
			s.logger.Warn("replay into relational storage failed", zap.Error(err))
		}
	}

	for _, number := range s.repairs.list() {
		if err := s.cancelQueued(ctx, number); err != nil {
			s.logger.Warn("repair cancellation failed", zap.String("reservation", number), zap.Error(err))
			report.Failed = append(report.Failed, number)
			continue
		}
		s.repairs.remove(number)
		report.Cancelled = append(report.Cancelled, number)
	}

	all, err := s.ledger.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("find reservations: %w", err)
	}

	today := model.Date(s.now())
	for _, r := range all {
		if !r.IsActive() || !r.CheckOut.After(today) {
			continue
		}

		rolled, err := s.rollForward(ctx, r.Room.Number, today)
		if err != nil {
			s.logger.Warn("room roll forward failed", zap.String("reservation", r.Number), zap.Error(err))
			report.Failed = append(report.Failed, r.Number)
			continue
		}
		if rolled {
			report.RolledForward = append(report.RolledForward, r.Number)
		}
	}

	span.SetAttributes(
		attribute.Int("replayed", report.Replayed),
		attribute.Int("cancelled", len(report.Cancelled)),
		attribute.Int("rolled_forward", len(report.RolledForward)),
		attribute.Int("failed", len(report.Failed)),
	)
	if report.Replayed+len(report.Cancelled)+len(report.RolledForward)+len(report.Failed) > 0 {
		s.logger.Info("reconciliation finished",
			zap.Int("replayed", report.Replayed),
			zap.Strings("cancelled", report.Cancelled),
			zap.Strings("rolled_forward", report.RolledForward),
			zap.Strings("failed", report.Failed),
		)
	}

	return report, nil
}

// cancelQueued отменяет бронирование из очереди восстановления.
// Бронирование, которого нет в журнале, считается уже устранённым.
func (s *Service) cancelQueued(ctx context.Context, number string) error {
	res, err := s.ledger.FindByNumber(ctx, number)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	unlock := s.locks.lock(res.Room.Number)
	defer unlock()

	res, err = s.ledger.FindByNumber(ctx, number)
	if err != nil {
		return err
	}
	if res.Status == model.StatusCancelled {
		return nil
	}
	return s.ledger.UpdateStatus(ctx, number, model.StatusCancelled)
}

// rollForward отмечает номер занятым, если он всё ещё числится свободным,
// а действующее бронирование на него есть и после получения блокировки.
func (s *Service) rollForward(ctx context.Context, roomNumber string, today time.Time) (bool, error) {
	unlock := s.locks.lock(roomNumber)
	defer unlock()

	rs, err := s.ledger.FindByRoom(ctx, roomNumber)
	if err != nil {
		return false, err
	}
	held := false
	for _, r := range rs {
		if r.IsActive() && r.CheckOut.After(today) {
			held = true
			break
		}
	}
	if !held {
		return false, nil
	}

	room, err := s.rooms.FindByNumber(ctx, roomNumber)
	if err != nil {
		return false, err
	}
	if !room.Available {
		return false, nil
	}

	room.Available = false
	if err := s.rooms.Save(ctx, room); err != nil {
		return false, err
	}
	return true, nil
}

// StartReconciliation запускает периодическое восстановление согласованности.
func (s *Service) StartReconciliation(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Reconcile(ctx); err != nil {
					s.logger.Warn("reconciliation failed", zap.Error(err))
				}
			}
		}
	}()
}
