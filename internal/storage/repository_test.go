package storage

import (
	"context"
	"path/filepath"
	"testing"

	"fincal/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "fincal.db"), nil)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rent := core.Bill{ID: "b-rent", Date: core.NewDate(2024, 3, 5), Amount: core.Cents(20000), Description: "Rent"}
	phone := core.Bill{ID: "b-phone", Date: core.NewDate(2024, 3, 1), Amount: core.Cents(1999), Description: "Phone", IsPaid: true}
	salary := core.Income{ID: "i-salary", Date: core.NewDate(2024, 3, 1), Amount: core.Cents(100000), Description: "Salary"}

	for _, b := range []core.Bill{rent, phone} {
		if err := repo.SaveBill(ctx, b); err != nil {
			t.Fatalf("save bill: %v", err)
		}
	}
	if err := repo.SaveIncome(ctx, salary); err != nil {
		t.Fatalf("save income: %v", err)
	}

	rent.IsPaid = true
	rent.Amount = core.Cents(15000)
	if err := repo.SaveBill(ctx, rent); err != nil {
		t.Fatalf("update bill: %v", err)
	}

	bills, income, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bills) != 2 || bills[0] != rent || bills[1] != phone {
		t.Fatalf("unexpected bills %+v", bills)
	}
	if len(income) != 1 || income[0] != salary {
		t.Fatalf("unexpected income %+v", income)
	}
}

func TestSQLiteDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	inc := core.Income{ID: "i1", Date: core.NewDate(2024, 3, 1), Amount: core.Cents(1), Description: "x"}
	bill := core.Bill{ID: "b1", Date: core.NewDate(2024, 3, 1), Amount: core.Cents(1), Description: "x"}
	if err := repo.SaveIncome(ctx, inc); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveBill(ctx, bill); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteIncome(ctx, "i1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteBill(ctx, "b1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteBill(ctx, "missing"); err != nil {
		t.Fatalf("deleting a missing row should succeed: %v", err)
	}

	bills, income, err := repo.LoadAll(ctx)
	if err != nil || len(bills) != 0 || len(income) != 0 {
		t.Fatalf("expected empty store: %v %v %v", bills, income, err)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fincal.db")

	repo, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	bill := core.Bill{ID: "b1", Date: core.NewDate(2024, 2, 29), Amount: core.Cents(5), Description: "leap"}
	if err := repo.SaveBill(ctx, bill); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	bills, _, err := repo.LoadAll(ctx)
	if err != nil || len(bills) != 1 || bills[0] != bill {
		t.Fatalf("data lost across reopen: %+v %v", bills, err)
	}
}
