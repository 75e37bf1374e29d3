package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"fincal/internal/backend"
	"fincal/internal/core"
	"fincal/internal/ledger"
	"fincal/internal/log"
	"fincal/internal/services"
)

type harness struct {
	t      *testing.T
	open   Opener
	opened int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	n := 0
	l := ledger.New(ledger.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	svc := services.NewLedgerService(l, services.Options{
		Logger:   log.Discard(),
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	})
	h := &harness{t: t}
	h.open = func(ctx context.Context, debug bool) (*Session, error) {
		h.opened++
		return &Session{Service: svc, Backend: &backend.Result{Ledger: l}}, nil
	}
	return h
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), h.open, args, &out, &errOut)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestAddPayAndBalance(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("add", "income", "--date", "2024-03-01", "--amount", "1000", "--description", "Salary")
	if !strings.Contains(out, "Added income id-1") {
		t.Fatalf("unexpected output %q", out)
	}
	h.mustRun("add", "bill", "--date", "2024-03-05", "--amount", "200", "--description", "Rent")

	if out := h.mustRun("balance"); out != "Balance: 1000.00\n" {
		t.Fatalf("balance output %q", out)
	}

	if out := h.mustRun("pay", "id-2"); out != "Bill id-2 is now paid\n" {
		t.Fatalf("pay output %q", out)
	}
	if out := h.mustRun("balance"); out != "Balance: 800.00\n" {
		t.Fatalf("balance output %q", out)
	}

	out = h.mustRun("summary")
	for _, want := range []string{"Total income", "1000.00", "Paid", "200.00", "Balance", "800.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestAddDefaultsToToday(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("add", "bill", "--amount", "12,5", "--description", "Coffee")
	if !strings.Contains(out, "2024-03-15 12.50 Coffee") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestBillsAndCalendar(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "bill", "--date", "2024-03-20", "--amount", "50", "--description", "Phone")
	h.mustRun("add", "bill", "--date", "2024-03-05", "--amount", "200", "--description", "Rent")
	h.mustRun("add", "income", "--date", "2024-04-01", "--amount", "10", "--description", "Refund")

	out := h.mustRun("bills", "--month", "2024-03")
	if !strings.HasPrefix(out, "Bills for 2024-03\n") || !strings.Contains(out, "Total unpaid: 250.00") {
		t.Fatalf("unexpected bills output:\n%s", out)
	}
	if strings.Index(out, "Rent") > strings.Index(out, "Phone") {
		t.Fatalf("bills should be sorted by date:\n%s", out)
	}

	out = h.mustRun("calendar")
	if !strings.Contains(out, "* 2024-03-15 Fri") {
		t.Fatalf("today should be marked:\n%s", out)
	}
	if strings.Contains(out, "Refund") {
		t.Fatalf("April income should not appear without --grid:\n%s", out)
	}

	out = h.mustRun("calendar", "--grid")
	if !strings.Contains(out, "~ 2024-04-01 Mon") || !strings.Contains(out, "+10.00  Refund") {
		t.Fatalf("grid should include padding day entries:\n%s", out)
	}
}

func TestDeleteCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "bill", "--date", "2024-03-05", "--amount", "1", "--description", "x")
	h.mustRun("add", "income", "--date", "2024-03-05", "--amount", "1", "--description", "y")

	if out := h.mustRun("delete", "bill", "id-1"); out != "Deleted bill id-1\n" {
		t.Fatalf("unexpected output %q", out)
	}
	h.mustRun("delete", "income", "id-2")

	if _, err := h.run("delete", "bill", "id-1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCommandErrors(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"bad amount", []string{"add", "bill", "--amount", "abc", "--description", "x"}, core.ErrInvalidAmount},
		{"bad date", []string{"add", "income", "--date", "2024-02-30", "--amount", "1", "--description", "x"}, core.ErrInvalidDate},
		{"blank description", []string{"add", "bill", "--amount", "1", "--description", "  "}, core.ErrEmptyDescription},
		{"bad month", []string{"bills", "--month", "2024-13"}, core.ErrInvalidMonth},
		{"unknown bill", []string{"pay", "nope"}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.run(tt.args...); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := h.run("pay"); err == nil {
		t.Fatal("pay without id should fail")
	}
	if _, err := h.run("add", "bill", "--description", "x"); err == nil {
		t.Fatal("missing --amount should fail")
	}
}

func TestOpenerFailureIsReturned(t *testing.T) {
	boom := errors.New("boom")
	open := func(context.Context, bool) (*Session, error) { return nil, boom }
	var out bytes.Buffer
	if err := Execute(context.Background(), open, []string{"balance"}, &out, &out); !errors.Is(err, boom) {
		t.Fatalf("expected opener error, got %v", err)
	}
}
