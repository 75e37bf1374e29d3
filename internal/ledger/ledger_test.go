package ledger

import (
	"fmt"
	"sync"
	"testing"

	"fincal/internal/core"
)

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func TestUnpaidBillDoesNotAffectBalanceUntilToggled(t *testing.T) {
	l := New()
	l.AddIncome(core.NewDate(2024, 3, 1), core.Cents(100000), "Salary")
	bill := l.AddBill(core.NewDate(2024, 3, 5), core.Cents(20000), "Rent")

	if got := l.Balance(); got != core.Cents(100000) {
		t.Fatalf("expected 1000.00, got %v", got)
	}
	if !l.ToggleBillPaid(bill) {
		t.Fatalf("toggle should find the bill")
	}
	if got := l.Balance(); got != core.Cents(80000) {
		t.Fatalf("expected 800.00 after paying, got %v", got)
	}
	l.ToggleBillPaid(bill)
	if got := l.Balance(); got != core.Cents(100000) {
		t.Fatalf("toggling twice should restore balance, got %v", got)
	}
}

func TestNewBillsAreUnpaidWithUniqueIDs(t *testing.T) {
	l := New()
	ids := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := l.AddBill(core.NewDate(2024, 1, 1), core.Cents(1), "x")
		if id == "" || ids[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		ids[id] = true
		b, ok := l.Bill(id)
		if !ok || b.IsPaid {
			t.Fatalf("new bill must exist and be unpaid: %+v", b)
		}
	}
}

func TestMissingIDIsNoOp(t *testing.T) {
	l := New(sequentialIDs())
	l.AddBill(core.NewDate(2024, 3, 5), core.Cents(200), "Rent")
	l.AddIncome(core.NewDate(2024, 3, 1), core.Cents(1000), "Salary")
	before := l.Snapshot()

	amount := core.Cents(1)
	paid := true
	results := []bool{
		l.DeleteBill("missing"),
		l.DeleteIncome("missing"),
		l.UpdateBill("missing", core.BillPatch{Amount: &amount, IsPaid: &paid}),
		l.UpdateIncome("missing", core.IncomePatch{Amount: &amount}),
		l.ToggleBillPaid("missing"),
	}
	for i, found := range results {
		if found {
			t.Fatalf("operation %d reported found for missing id", i)
		}
	}

	after := l.Snapshot()
	if after.Revision != before.Revision {
		t.Fatalf("revision changed on no-op: %d -> %d", before.Revision, after.Revision)
	}
	if len(after.Bills) != 1 || len(after.Income) != 1 || after.Bills[0] != before.Bills[0] || after.Income[0] != before.Income[0] {
		t.Fatalf("state changed on no-op: %+v", after)
	}
}

func TestUpdateAmountThenToggle(t *testing.T) {
	l := New()
	l.AddIncome(core.NewDate(2024, 3, 1), core.Cents(100000), "Salary")
	id := l.AddBill(core.NewDate(2024, 3, 5), core.Cents(20000), "Rent")

	amount := core.Cents(15000)
	if !l.UpdateBill(id, core.BillPatch{Amount: &amount}) {
		t.Fatalf("update should find the bill")
	}
	if got := l.Balance(); got != core.Cents(100000) {
		t.Fatalf("unpaid bill update must not change balance, got %v", got)
	}
	b, _ := l.Bill(id)
	if b.Description != "Rent" || b.Date != core.NewDate(2024, 3, 5) || b.Amount != amount {
		t.Fatalf("unexpected merge result %+v", b)
	}

	l.ToggleBillPaid(id)
	if got := l.Balance(); got != core.Cents(85000) {
		t.Fatalf("expected 850.00, got %v", got)
	}
}

func TestUpdateBillCanSetPaidFlag(t *testing.T) {
	l := New()
	id := l.AddBill(core.NewDate(2024, 3, 5), core.Cents(100), "Phone")
	paid := true
	l.UpdateBill(id, core.BillPatch{IsPaid: &paid})
	if b, _ := l.Bill(id); !b.IsPaid {
		t.Fatalf("patch should set paid flag")
	}
}

func TestDeleteAndUpdateIncome(t *testing.T) {
	l := New(sequentialIDs())
	a := l.AddIncome(core.NewDate(2024, 3, 1), core.Cents(1000), "A")
	b := l.AddIncome(core.NewDate(2024, 3, 2), core.Cents(2000), "B")

	desc := "B2"
	if !l.UpdateIncome(b, core.IncomePatch{Description: &desc}) {
		t.Fatalf("update should find income")
	}
	if !l.DeleteIncome(a) {
		t.Fatalf("delete should find income")
	}
	s := l.Snapshot()
	if len(s.Income) != 1 || s.Income[0].ID != b || s.Income[0].Description != "B2" {
		t.Fatalf("unexpected income %+v", s.Income)
	}
	if _, ok := l.Income(a); ok {
		t.Fatalf("deleted income still visible")
	}
}

func TestSnapshotsAreNotMutatedByLaterWrites(t *testing.T) {
	l := New()
	id := l.AddBill(core.NewDate(2024, 3, 5), core.Cents(100), "Phone")
	snap := l.Snapshot()

	l.ToggleBillPaid(id)
	l.AddBill(core.NewDate(2024, 3, 6), core.Cents(100), "Water")
	l.DeleteBill(id)

	if len(snap.Bills) != 1 || snap.Bills[0].IsPaid {
		t.Fatalf("snapshot was modified: %+v", snap.Bills)
	}
	if l.Revision() != snap.Revision+3 {
		t.Fatalf("expected three revision bumps, got %d -> %d", snap.Revision, l.Revision())
	}
}

func TestRestore(t *testing.T) {
	l := New()
	l.AddBill(core.NewDate(2024, 3, 5), core.Cents(10), "x")

	l.Restore(nil, []core.Income{{ID: "i", Amount: core.Cents(5)}})
	s := l.Snapshot()
	if len(s.Bills) != 0 || len(s.Income) != 1 {
		t.Fatalf("restore should replace both collections: %+v", s)
	}
	if got := l.Balance(); got != core.Cents(5) {
		t.Fatalf("unexpected balance %v", got)
	}
}

func TestObserversSeeEffectiveChanges(t *testing.T) {
	l := New(sequentialIDs())
	var got []Change
	cancel := l.Subscribe(func(c Change) { got = append(got, c) })

	id := l.AddBill(core.NewDate(2024, 3, 5), core.Cents(100), "Phone")
	l.ToggleBillPaid(id)
	l.DeleteBill("missing")
	l.DeleteBill(id)
	cancel()
	l.AddIncome(core.NewDate(2024, 3, 1), core.Cents(1), "ignored")

	want := []Change{
		{Op: OpAdd, Entity: EntityBill, ID: "id-1", Revision: 1},
		{Op: OpToggle, Entity: EntityBill, ID: "id-1", Revision: 2},
		{Op: OpDelete, Entity: EntityBill, ID: "id-1", Revision: 3},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d changes, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("change %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestObserverMayReadLedger(t *testing.T) {
	l := New()
	var balance core.Money
	l.Subscribe(func(Change) { balance = l.Balance() })
	l.AddIncome(core.NewDate(2024, 3, 1), core.Cents(42), "x")
	if balance != core.Cents(42) {
		t.Fatalf("observer should run after unlock, got %v", balance)
	}
}

func TestConcurrentAdds(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.AddBill(core.NewDate(2024, 3, 1), core.Cents(1), "x")
			l.AddIncome(core.NewDate(2024, 3, 1), core.Cents(1), "x")
		}()
	}
	wg.Wait()
	s := l.Snapshot()
	if len(s.Bills) != 50 || len(s.Income) != 50 || s.Revision != 100 {
		t.Fatalf("unexpected state after concurrent adds: %d bills, %d income, rev %d", len(s.Bills), len(s.Income), s.Revision)
	}
}

func TestEpochIsPerInstance(t *testing.T) {
	a, b := New(), New()
	if a.Epoch() == "" || a.Epoch() == b.Epoch() {
		t.Fatalf("epochs should be set and distinct: %q %q", a.Epoch(), b.Epoch())
	}
	before := a.Epoch()
	a.Restore([]core.Bill{{ID: "x"}}, nil)
	if a.Epoch() != before {
		t.Fatal("restore must keep the epoch")
	}
}
