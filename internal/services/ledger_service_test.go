package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fincal/internal/amqp"
	"fincal/internal/core"
	"fincal/internal/ledger"
	"fincal/internal/log"
)

type fakeRepo struct {
	mu      sync.Mutex
	fail    error
	bills   map[string]core.Bill
	income  map[string]core.Income
	deleted []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bills: map[string]core.Bill{}, income: map[string]core.Income{}}
}

func (r *fakeRepo) SaveBill(_ context.Context, b core.Bill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.bills[b.ID] = b
	return nil
}

func (r *fakeRepo) DeleteBill(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	delete(r.bills, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeRepo) SaveIncome(_ context.Context, inc core.Income) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.income[inc.ID] = inc
	return nil
}

func (r *fakeRepo) DeleteIncome(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	delete(r.income, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type fakePublisher struct {
	events []*amqp.LedgerEvent
	fail   error
}

func (p *fakePublisher) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, e)
	return nil
}

var march5 = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

func newService(repo Repository, pub Publisher) *LedgerService {
	opts := Options{
		Logger:    log.Discard(),
		Now:       func() time.Time { return march5 },
		Location:  time.UTC,
		WeekStart: time.Sunday,
	}
	if repo != nil {
		opts.Repository = repo
	}
	if pub != nil {
		opts.Publisher = pub
	}
	return NewLedgerService(ledger.New(), opts)
}

func TestAddValidatesInput(t *testing.T) {
	svc := newService(nil, nil)
	ctx := context.Background()
	valid := core.NewDate(2024, 3, 1)

	tests := []struct {
		name   string
		date   core.Date
		amount core.Money
		desc   string
		want   error
	}{
		{"empty description", valid, core.Cents(100), "   ", core.ErrEmptyDescription},
		{"negative amount", valid, core.Cents(-1), "Rent", core.ErrInvalidAmount},
		{"missing date", core.Date{}, core.Cents(1), "Rent", core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AddBill(ctx, tt.date, tt.amount, tt.desc); !errors.Is(err, tt.want) {
				t.Fatalf("AddBill: expected %v, got %v", tt.want, err)
			}
			if _, err := svc.AddIncome(ctx, tt.date, tt.amount, tt.desc); !errors.Is(err, tt.want) {
				t.Fatalf("AddIncome: expected %v, got %v", tt.want, err)
			}
		})
	}
	if rev := svc.Ledger().Revision(); rev != 0 {
		t.Fatalf("rejected input must not touch the ledger, revision %d", rev)
	}

	inc, err := svc.AddIncome(ctx, valid, core.Cents(0), "  Gift ")
	if err != nil || inc.Description != "Gift" {
		t.Fatalf("zero amount should be accepted and description trimmed: %+v %v", inc, err)
	}
}

func TestBalanceScenario(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}
	svc := newService(repo, pub)
	ctx := context.Background()

	if _, err := svc.AddIncome(ctx, core.NewDate(2024, 3, 1), core.Cents(100000), "Salary"); err != nil {
		t.Fatal(err)
	}
	bill, err := svc.AddBill(ctx, core.NewDate(2024, 3, 5), core.Cents(20000), "Rent")
	if err != nil {
		t.Fatal(err)
	}
	if bill.IsPaid {
		t.Fatal("new bills are unpaid")
	}
	if got := svc.Balance(ctx); got != core.Cents(100000) {
		t.Fatalf("expected 1000.00, got %v", got)
	}

	amount := core.Cents(15000)
	if _, err := svc.UpdateBill(ctx, bill.ID, core.BillPatch{Amount: &amount}); err != nil {
		t.Fatal(err)
	}
	if got := svc.Balance(ctx); got != core.Cents(100000) {
		t.Fatalf("unpaid update must not change balance, got %v", got)
	}

	paid, err := svc.ToggleBillPaid(ctx, bill.ID)
	if err != nil || !paid.IsPaid {
		t.Fatalf("toggle: %+v %v", paid, err)
	}
	if got := svc.Balance(ctx); got != core.Cents(85000) {
		t.Fatalf("expected 850.00, got %v", got)
	}

	if !repo.bills[bill.ID].IsPaid || repo.bills[bill.ID].Amount != amount {
		t.Fatalf("repository not written through: %+v", repo.bills[bill.ID])
	}

	wantOps := []string{"add", "add", "update", "toggle"}
	if len(pub.events) != len(wantOps) {
		t.Fatalf("expected %d events, got %d", len(wantOps), len(pub.events))
	}
	for i, op := range wantOps {
		if pub.events[i].Op != op {
			t.Fatalf("event %d: expected %s, got %s", i, op, pub.events[i].Op)
		}
	}
	if last := pub.events[3]; last.Revision != svc.Ledger().Revision() || last.Record.Paid == nil || !*last.Record.Paid {
		t.Fatalf("unexpected toggle event %+v", last)
	}
	for i, e := range pub.events {
		if e.Epoch != svc.Ledger().Epoch() {
			t.Fatalf("event %d: epoch %q, want %q", i, e.Epoch, svc.Ledger().Epoch())
		}
	}
}

func TestMissingIDReturnsNotFound(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(nil, pub)
	ctx := context.Background()
	desc := "x"

	errs := []error{
		svc.DeleteBill(ctx, "nope"),
		svc.DeleteIncome(ctx, "nope"),
	}
	_, err := svc.ToggleBillPaid(ctx, "nope")
	errs = append(errs, err)
	_, err = svc.UpdateBill(ctx, "nope", core.BillPatch{Description: &desc})
	errs = append(errs, err)
	_, err = svc.UpdateIncome(ctx, "nope", core.IncomePatch{Description: &desc})
	errs = append(errs, err)
	_, err = svc.GetBill(ctx, "nope")
	errs = append(errs, err)
	_, err = svc.GetIncome(ctx, "nope")
	errs = append(errs, err)

	for i, err := range errs {
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
		}
	}
	if len(pub.events) != 0 || svc.Ledger().Revision() != 0 {
		t.Fatal("misses must not publish or mutate")
	}
}

func TestRepositoryFailureRollsBack(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, nil)
	ctx := context.Background()

	bill, err := svc.AddBill(ctx, core.NewDate(2024, 3, 5), core.Cents(100), "Phone")
	if err != nil {
		t.Fatal(err)
	}
	inc, err := svc.AddIncome(ctx, core.NewDate(2024, 3, 1), core.Cents(500), "Salary")
	if err != nil {
		t.Fatal(err)
	}

	repo.fail = errors.New("disk full")
	before := svc.Ledger().Snapshot()

	if _, err := svc.AddBill(ctx, core.NewDate(2024, 3, 6), core.Cents(1), "Water"); err == nil {
		t.Fatal("expected add to fail")
	}
	if _, err := svc.ToggleBillPaid(ctx, bill.ID); err == nil {
		t.Fatal("expected toggle to fail")
	}
	if err := svc.DeleteBill(ctx, bill.ID); err == nil {
		t.Fatal("expected delete to fail")
	}
	if err := svc.DeleteIncome(ctx, inc.ID); err == nil {
		t.Fatal("expected income delete to fail")
	}

	after := svc.Ledger().Snapshot()
	if len(after.Bills) != 1 || after.Bills[0] != before.Bills[0] {
		t.Fatalf("bills not rolled back: %+v", after.Bills)
	}
	if len(after.Income) != 1 || after.Income[0] != before.Income[0] {
		t.Fatalf("income not rolled back: %+v", after.Income)
	}
	if svc.Balance(ctx) != core.Cents(500) {
		t.Fatalf("balance changed after failed writes: %v", svc.Balance(ctx))
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	svc := newService(nil, &fakePublisher{fail: errors.New("broker down")})
	if _, err := svc.AddBill(context.Background(), core.NewDate(2024, 3, 5), core.Cents(1), "x"); err != nil {
		t.Fatalf("publish errors must not surface: %v", err)
	}
}

func TestDeletePublishesRemovedRecord(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(nil, pub)
	ctx := context.Background()
	inc, _ := svc.AddIncome(ctx, core.NewDate(2024, 3, 1), core.Cents(700), "Bonus")

	if err := svc.DeleteIncome(ctx, inc.ID); err != nil {
		t.Fatal(err)
	}
	last := pub.events[len(pub.events)-1]
	if last.Op != "delete" || last.Record.Amount != core.Cents(700) || last.Record.Description != "Bonus" {
		t.Fatalf("unexpected delete event %+v", last)
	}
}

func TestUpdateValidatesPatch(t *testing.T) {
	svc := newService(nil, nil)
	ctx := context.Background()
	bill, _ := svc.AddBill(ctx, core.NewDate(2024, 3, 5), core.Cents(100), "Phone")

	blank := "  "
	if _, err := svc.UpdateBill(ctx, bill.ID, core.BillPatch{Description: &blank}); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("expected ErrEmptyDescription, got %v", err)
	}
	neg := core.Cents(-5)
	if _, err := svc.UpdateIncome(ctx, "any", core.IncomePatch{Amount: &neg}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	rev := svc.Ledger().Revision()
	got, err := svc.UpdateBill(ctx, bill.ID, core.BillPatch{})
	if err != nil || got != bill || svc.Ledger().Revision() != rev {
		t.Fatalf("empty patch should be a read: %+v %v", got, err)
	}
}

func TestCalendarAndMonthlyViews(t *testing.T) {
	svc := newService(nil, nil)
	ctx := context.Background()
	svc.AddIncome(ctx, core.NewDate(2024, 3, 1), core.Cents(1000), "Salary")
	rent, _ := svc.AddBill(ctx, core.NewDate(2024, 3, 5), core.Cents(200), "Rent")
	svc.AddBill(ctx, core.NewDate(2024, 4, 2), core.Cents(50), "April")

	march := core.Month{Year: 2024, Month: time.March}
	days, err := svc.Calendar(ctx, march, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 31 || len(days[4].Bills) != 1 || !days[4].IsToday || len(days[0].Income) != 1 {
		t.Fatalf("unexpected calendar: %d days, 5th=%+v", len(days), days[4])
	}

	grid, err := svc.Calendar(ctx, march, true)
	if err != nil || len(grid)%7 != 0 || grid[0].Date.Weekday() != time.Sunday {
		t.Fatalf("grid should start on Sunday and cover whole weeks: %d %v", len(grid), err)
	}

	mb, err := svc.MonthlyBills(ctx, march)
	if err != nil || len(mb.Bills) != 1 || mb.TotalUnpaid != core.Cents(200) {
		t.Fatalf("unexpected monthly bills %+v %v", mb, err)
	}

	svc.ToggleBillPaid(ctx, rent.ID)
	mb, _ = svc.MonthlyBills(ctx, march)
	if mb.TotalUnpaid.Cents != 0 {
		t.Fatalf("cached view must be invalidated by the new revision, unpaid %v", mb.TotalUnpaid)
	}
	days, _ = svc.Calendar(ctx, march, false)
	if !days[4].Bills[0].IsPaid {
		t.Fatal("calendar view should reflect the toggle")
	}

	if _, err := svc.Calendar(ctx, core.Month{Year: 2024, Month: 13}, false); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}

	s := svc.Summary(ctx)
	if s.TotalIncome != core.Cents(1000) || s.TotalBills != core.Cents(250) || s.Balance != core.Cents(800) {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestTodayUsesConfiguredLocation(t *testing.T) {
	late := time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC)
	svc := NewLedgerService(ledger.New(), Options{
		Logger:   log.Discard(),
		Now:      func() time.Time { return late },
		Location: time.FixedZone("UTC+2", 2*3600),
	})
	if got := svc.Today(); got != core.NewDate(2024, 3, 6) {
		t.Fatalf("expected 2024-03-06 in UTC+2, got %v", got)
	}
	if svc.CurrentMonth().String() != "2024-03" {
		t.Fatalf("unexpected current month %s", svc.CurrentMonth())
	}
}
