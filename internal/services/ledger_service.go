// Package services orchestrates ledger operations across validation,
// storage, the view cache and event publishing.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fincal/internal/amqp"
	"fincal/internal/cache"
	"fincal/internal/core"
	"fincal/internal/ledger"
	"fincal/internal/log"
	"fincal/internal/metrics"
)

// Repository persists ledger changes. Implemented by storage.SQLiteRepository.
type Repository interface {
	SaveBill(ctx context.Context, b core.Bill) error
	DeleteBill(ctx context.Context, id string) error
	SaveIncome(ctx context.Context, inc core.Income) error
	DeleteIncome(ctx context.Context, id string) error
}

// Publisher announces ledger changes. Implemented by amqp.Client.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Repository Repository
	Publisher  Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	// CacheManager, when set, sweeps the view caches periodically.
	CacheManager *cache.Manager

	Now       func() time.Time
	Location  *time.Location
	WeekStart time.Weekday
	CacheSize int
	CacheTTL  time.Duration
}

// LedgerService is the entry point used by the HTTP API and the CLI.
type LedgerService struct {
	ledger    *ledger.Ledger
	repo      Repository
	pub       Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	loc       *time.Location
	weekStart time.Weekday

	// mu serializes mutations so validate, apply and persist happen as one step.
	mu sync.Mutex

	calendars *cache.Memo[[]core.CalendarDay]
	monthly   *cache.Memo[core.MonthlyBills]
}

func NewLedgerService(l *ledger.Ledger, opts Options) *LedgerService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}

	calLRU := cache.NewLRUCache[[]core.CalendarDay](opts.CacheSize, opts.CacheTTL)
	monthLRU := cache.NewLRUCache[core.MonthlyBills](opts.CacheSize, opts.CacheTTL)
	if opts.CacheManager != nil {
		opts.CacheManager.Register(calLRU)
		opts.CacheManager.Register(monthLRU)
	}

	return &LedgerService{
		ledger:    l,
		repo:      opts.Repository,
		pub:       opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
		loc:       opts.Location,
		weekStart: opts.WeekStart,
		calendars: cache.NewMemo[[]core.CalendarDay](calLRU, cache.WithStats[[]core.CalendarDay](opts.Metrics.CacheHit, opts.Metrics.CacheMiss)),
		monthly:   cache.NewMemo[core.MonthlyBills](monthLRU, cache.WithStats[core.MonthlyBills](opts.Metrics.CacheHit, opts.Metrics.CacheMiss)),
	}
}

// Ledger exposes the underlying store.
func (s *LedgerService) Ledger() *ledger.Ledger {
	return s.ledger
}

// Today is the current calendar day in the configured location.
func (s *LedgerService) Today() core.Date {
	return core.DateOf(s.now().In(s.loc))
}

func (s *LedgerService) CurrentMonth() core.Month {
	return core.MonthOf(s.Today())
}

// Ping checks the repository when it supports it.
func (s *LedgerService) Ping(ctx context.Context) error {
	if p, ok := s.repo.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// AddBill validates and records a new unpaid bill.
func (s *LedgerService) AddBill(ctx context.Context, date core.Date, amount core.Money, description string) (core.Bill, error) {
	description = strings.TrimSpace(description)
	if err := core.ValidateEntry(date, amount, description); err != nil {
		return core.Bill{}, err
	}

	bill, rev, err := func() (core.Bill, uint64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		snap := s.ledger.Snapshot()
		id := s.ledger.AddBill(date, amount, description)
		bill, _ := s.ledger.Bill(id)
		if s.repo != nil {
			if err := s.repo.SaveBill(ctx, bill); err != nil {
				s.rollback(ctx, snap, err)
				return core.Bill{}, 0, fmt.Errorf("save bill: %w", err)
			}
		}
		return bill, s.ledger.Revision(), nil
	}()
	if err != nil {
		return core.Bill{}, err
	}

	s.logger.InfoContext(ctx, "Bill added",
		log.NewFields().WithEntry(string(ledger.EntityBill), bill.ID, bill.Date.String(), bill.Amount.Cents).ToSlice()...)
	s.publish(ctx, amqp.NewBillEvent(string(ledger.OpAdd), bill, rev))
	return bill, nil
}

// AddIncome validates and records a new income entry.
func (s *LedgerService) AddIncome(ctx context.Context, date core.Date, amount core.Money, description string) (core.Income, error) {
	description = strings.TrimSpace(description)
	if err := core.ValidateEntry(date, amount, description); err != nil {
		return core.Income{}, err
	}

	inc, rev, err := func() (core.Income, uint64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		snap := s.ledger.Snapshot()
		id := s.ledger.AddIncome(date, amount, description)
		inc, _ := s.ledger.Income(id)
		if s.repo != nil {
			if err := s.repo.SaveIncome(ctx, inc); err != nil {
				s.rollback(ctx, snap, err)
				return core.Income{}, 0, fmt.Errorf("save income: %w", err)
			}
		}
		return inc, s.ledger.Revision(), nil
	}()
	if err != nil {
		return core.Income{}, err
	}

	s.logger.InfoContext(ctx, "Income added",
		log.NewFields().WithEntry(string(ledger.EntityIncome), inc.ID, inc.Date.String(), inc.Amount.Cents).ToSlice()...)
	s.publish(ctx, amqp.NewIncomeEvent(string(ledger.OpAdd), inc, rev))
	return inc, nil
}

// UpdateBill merges the set fields of patch into the bill.
func (s *LedgerService) UpdateBill(ctx context.Context, id string, patch core.BillPatch) (core.Bill, error) {
	if patch.Description != nil {
		trimmed := strings.TrimSpace(*patch.Description)
		patch.Description = &trimmed
	}
	if err := patch.Validate(); err != nil {
		return core.Bill{}, err
	}
	if patch.IsEmpty() {
		return s.GetBill(ctx, id)
	}
	return s.mutateBill(ctx, ledger.OpUpdate, id, func() bool {
		return s.ledger.UpdateBill(id, patch)
	})
}

// ToggleBillPaid flips the paid flag of the bill.
func (s *LedgerService) ToggleBillPaid(ctx context.Context, id string) (core.Bill, error) {
	return s.mutateBill(ctx, ledger.OpToggle, id, func() bool {
		return s.ledger.ToggleBillPaid(id)
	})
}

func (s *LedgerService) mutateBill(ctx context.Context, op ledger.Op, id string, apply func() bool) (core.Bill, error) {
	bill, rev, err := func() (core.Bill, uint64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		snap := s.ledger.Snapshot()
		if !apply() {
			return core.Bill{}, 0, fmt.Errorf("bill %s: %w", id, core.ErrNotFound)
		}
		bill, _ := s.ledger.Bill(id)
		if s.repo != nil {
			if err := s.repo.SaveBill(ctx, bill); err != nil {
				s.rollback(ctx, snap, err)
				return core.Bill{}, 0, fmt.Errorf("save bill: %w", err)
			}
		}
		return bill, s.ledger.Revision(), nil
	}()
	if err != nil {
		return core.Bill{}, err
	}

	s.logger.InfoContext(ctx, "Bill changed", log.FieldOperation, op, log.FieldID, id, log.FieldPaid, bill.IsPaid, log.FieldAmountCents, bill.Amount.Cents)
	s.publish(ctx, amqp.NewBillEvent(string(op), bill, rev))
	return bill, nil
}

// UpdateIncome merges the set fields of patch into the income entry.
func (s *LedgerService) UpdateIncome(ctx context.Context, id string, patch core.IncomePatch) (core.Income, error) {
	if patch.Description != nil {
		trimmed := strings.TrimSpace(*patch.Description)
		patch.Description = &trimmed
	}
	if err := patch.Validate(); err != nil {
		return core.Income{}, err
	}
	if patch.IsEmpty() {
		return s.GetIncome(ctx, id)
	}

	inc, rev, err := func() (core.Income, uint64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		snap := s.ledger.Snapshot()
		if !s.ledger.UpdateIncome(id, patch) {
			return core.Income{}, 0, fmt.Errorf("income %s: %w", id, core.ErrNotFound)
		}
		inc, _ := s.ledger.Income(id)
		if s.repo != nil {
			if err := s.repo.SaveIncome(ctx, inc); err != nil {
				s.rollback(ctx, snap, err)
				return core.Income{}, 0, fmt.Errorf("save income: %w", err)
			}
		}
		return inc, s.ledger.Revision(), nil
	}()
	if err != nil {
		return core.Income{}, err
	}

	s.logger.InfoContext(ctx, "Income updated", log.FieldID, id, log.FieldAmountCents, inc.Amount.Cents)
	s.publish(ctx, amqp.NewIncomeEvent(string(ledger.OpUpdate), inc, rev))
	return inc, nil
}

func (s *LedgerService) DeleteBill(ctx context.Context, id string) error {
	prev, rev, err := func() (core.Bill, uint64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		snap := s.ledger.Snapshot()
		prev, ok := s.ledger.Bill(id)
		if !ok || !s.ledger.DeleteBill(id) {
			return core.Bill{}, 0, fmt.Errorf("bill %s: %w", id, core.ErrNotFound)
		}
		if s.repo != nil {
			if err := s.repo.DeleteBill(ctx, id); err != nil {
				s.rollback(ctx, snap, err)
				return core.Bill{}, 0, fmt.Errorf("delete bill: %w", err)
			}
		}
		return prev, s.ledger.Revision(), nil
	}()
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Bill deleted", log.FieldID, id)
	s.publish(ctx, amqp.NewBillEvent(string(ledger.OpDelete), prev, rev))
	return nil
}

func (s *LedgerService) DeleteIncome(ctx context.Context, id string) error {
	prev, rev, err := func() (core.Income, uint64, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		snap := s.ledger.Snapshot()
		prev, ok := s.ledger.Income(id)
		if !ok || !s.ledger.DeleteIncome(id) {
			return core.Income{}, 0, fmt.Errorf("income %s: %w", id, core.ErrNotFound)
		}
		if s.repo != nil {
			if err := s.repo.DeleteIncome(ctx, id); err != nil {
				s.rollback(ctx, snap, err)
				return core.Income{}, 0, fmt.Errorf("delete income: %w", err)
			}
		}
		return prev, s.ledger.Revision(), nil
	}()
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Income deleted", log.FieldID, id)
	s.publish(ctx, amqp.NewIncomeEvent(string(ledger.OpDelete), prev, rev))
	return nil
}

// rollback must be called with mu held.
func (s *LedgerService) rollback(ctx context.Context, snap ledger.Snapshot, cause error) {
	s.ledger.Restore(snap.Bills, snap.Income)
	s.logger.ErrorContext(ctx, "Persist failed, ledger rolled back", log.FieldError, cause, log.FieldRevision, snap.Revision)
}

// publish hands the event to the broker. Failures are logged only: the
// change is already applied.
func (s *LedgerService) publish(ctx context.Context, e *amqp.LedgerEvent) {
	if s.pub == nil {
		return
	}
	e.Epoch = s.ledger.Epoch()
	err := s.pub.PublishLedgerEvent(ctx, e)
	s.metrics.EventPublished(err)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, e.Op, log.FieldEntity, e.Entity, log.FieldID, e.ID, log.FieldError, err)
	}
}

func (s *LedgerService) GetBill(_ context.Context, id string) (core.Bill, error) {
	b, ok := s.ledger.Bill(id)
	if !ok {
		return core.Bill{}, fmt.Errorf("bill %s: %w", id, core.ErrNotFound)
	}
	return b, nil
}

func (s *LedgerService) GetIncome(_ context.Context, id string) (core.Income, error) {
	inc, ok := s.ledger.Income(id)
	if !ok {
		return core.Income{}, fmt.Errorf("income %s: %w", id, core.ErrNotFound)
	}
	return inc, nil
}

// ListBills returns all bills in insertion order.
func (s *LedgerService) ListBills(_ context.Context) []core.Bill {
	return s.ledger.Snapshot().Bills
}

// ListIncome returns all income entries in insertion order.
func (s *LedgerService) ListIncome(_ context.Context) []core.Income {
	return s.ledger.Snapshot().Income
}

func (s *LedgerService) Balance(_ context.Context) core.Money {
	return s.ledger.Balance()
}

func (s *LedgerService) Summary(_ context.Context) core.Summary {
	snap := s.ledger.Snapshot()
	return core.Summarize(snap.Bills, snap.Income)
}

// Calendar returns the month view. With grid set the days are padded to
// whole weeks. Results are memoized per ledger revision.
func (s *LedgerService) Calendar(ctx context.Context, m core.Month, grid bool) ([]core.CalendarDay, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	snap := s.ledger.Snapshot()
	today := s.Today()
	key := fmt.Sprintf("%d:%s:%t:%s", snap.Revision, m, grid, today)

	return s.calendars.Get(key, func() ([]core.CalendarDay, error) {
		s.logger.DebugContext(ctx, "Computing calendar view", log.FieldMonth, m.String(), "grid", grid, log.FieldRevision, snap.Revision)
		if grid {
			return core.PartitionGrid(m.First(), today, s.weekStart, snap.Bills, snap.Income), nil
		}
		return core.PartitionMonth(m.First(), today, snap.Bills, snap.Income), nil
	})
}

// MonthlyBills returns the sorted bill list of the month with its unpaid
// total.
func (s *LedgerService) MonthlyBills(ctx context.Context, m core.Month) (core.MonthlyBills, error) {
	if err := m.Validate(); err != nil {
		return core.MonthlyBills{}, err
	}
	snap := s.ledger.Snapshot()
	key := fmt.Sprintf("%d:%s", snap.Revision, m)

	return s.monthly.Get(key, func() (core.MonthlyBills, error) {
		s.logger.DebugContext(ctx, "Computing monthly bills", log.FieldMonth, m.String(), log.FieldRevision, snap.Revision)
		return core.BillsForMonth(m.First(), snap.Bills), nil
	})
}
