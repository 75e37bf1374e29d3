package core

import (
	"errors"
	"testing"
	"time"
)

func TestMonthBounds(t *testing.T) {
	cases := []struct {
		ref   Date
		first Date
		last  Date
		count int
	}{
		{NewDate(2024, 2, 17), NewDate(2024, 2, 1), NewDate(2024, 2, 29), 29},
		{NewDate(2023, 2, 1), NewDate(2023, 2, 1), NewDate(2023, 2, 28), 28},
		{NewDate(2024, 12, 31), NewDate(2024, 12, 1), NewDate(2024, 12, 31), 31},
		{NewDate(2024, 4, 30), NewDate(2024, 4, 1), NewDate(2024, 4, 30), 30},
	}
	for _, tc := range cases {
		m := MonthOf(tc.ref)
		if m.First() != tc.first || m.Last() != tc.last {
			t.Fatalf("%s: bounds %v..%v", m, m.First(), m.Last())
		}
		days := m.Days()
		if len(days) != tc.count {
			t.Fatalf("%s: expected %d days, got %d", m, tc.count, len(days))
		}
		if days[0] != tc.first || days[len(days)-1] != tc.last {
			t.Fatalf("%s: days not inclusive", m)
		}
	}
}

func TestParseMonthBounds(t *testing.T) {
	m, err := ParseMonth("2024-12")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.First() != NewDate(2024, 12, 1) || m.Last() != NewDate(2024, 12, 31) {
		t.Fatalf("unexpected bounds for %s", m)
	}
	if _, err := ParseMonth("2024-13"); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestPartitionMonthExhaustiveAndDisjoint(t *testing.T) {
	ref := NewDate(2024, 3, 15)
	today := NewDate(2024, 3, 5)
	bills := []Bill{
		{ID: "b1", Date: NewDate(2024, 3, 5), Amount: Cents(200)},
		{ID: "b2", Date: NewDate(2024, 3, 31), Amount: Cents(10)},
		{ID: "b3", Date: NewDate(2024, 4, 1), Amount: Cents(10)},
		// same calendar day expressed at a late hour in another zone
		{ID: "b4", Date: DateOf(time.Date(2024, 3, 5, 23, 59, 0, 0, time.FixedZone("X", -5*3600)))},
	}
	income := []Income{
		{ID: "i1", Date: NewDate(2024, 3, 1), Amount: Cents(1000)},
		{ID: "i2", Date: NewDate(2024, 2, 29), Amount: Cents(5)},
	}

	days := PartitionMonth(ref, today, bills, income)
	if len(days) != 31 {
		t.Fatalf("expected 31 days, got %d", len(days))
	}

	seen := map[Date]bool{}
	billCount := map[string]int{}
	incomeCount := map[string]int{}
	for i, d := range days {
		if seen[d.Date] {
			t.Fatalf("day %v appears twice", d.Date)
		}
		seen[d.Date] = true
		if d.Date != NewDate(2024, 3, i+1) {
			t.Fatalf("day %d out of order: %v", i, d.Date)
		}
		if !d.InMonth {
			t.Fatalf("day %v should be in month", d.Date)
		}
		if d.IsToday != (d.Date == today) {
			t.Fatalf("today flag wrong on %v", d.Date)
		}
		for _, b := range d.Bills {
			if !b.Date.SameDay(d.Date) {
				t.Fatalf("bill %s in wrong bucket %v", b.ID, d.Date)
			}
			billCount[b.ID]++
		}
		for _, inc := range d.Income {
			if !inc.Date.SameDay(d.Date) {
				t.Fatalf("income %s in wrong bucket %v", inc.ID, d.Date)
			}
			incomeCount[inc.ID]++
		}
	}

	for _, id := range []string{"b1", "b2", "b4"} {
		if billCount[id] != 1 {
			t.Fatalf("bill %s expected once, got %d", id, billCount[id])
		}
	}
	if billCount["b3"] != 0 || incomeCount["i2"] != 0 {
		t.Fatalf("entries from other months leaked: %v %v", billCount, incomeCount)
	}
	if incomeCount["i1"] != 1 {
		t.Fatalf("income i1 expected once")
	}
	if len(days[4].Bills) != 2 {
		t.Fatalf("expected two bills on the 5th, got %d", len(days[4].Bills))
	}
}

func TestPartitionGridPadsToWholeWeeks(t *testing.T) {
	// March 2024 starts on a Friday and ends on a Sunday.
	ref := NewDate(2024, 3, 10)
	bills := []Bill{{ID: "feb", Date: NewDate(2024, 2, 26)}, {ID: "apr", Date: NewDate(2024, 4, 6)}}

	days := PartitionGrid(ref, NewDate(2000, 1, 1), time.Sunday, bills, nil)
	if len(days)%7 != 0 {
		t.Fatalf("grid not whole weeks: %d", len(days))
	}
	if days[0].Date != NewDate(2024, 2, 25) || days[0].Date.Weekday() != time.Sunday {
		t.Fatalf("unexpected first cell %v", days[0].Date)
	}
	if last := days[len(days)-1].Date; last != NewDate(2024, 4, 6) || last.Weekday() != time.Saturday {
		t.Fatalf("unexpected last cell %v", last)
	}
	if len(days) != 42 {
		t.Fatalf("expected 42 cells, got %d", len(days))
	}

	inMonth := 0
	for _, d := range days {
		if d.InMonth {
			inMonth++
		}
	}
	if inMonth != 31 {
		t.Fatalf("expected 31 in-month cells, got %d", inMonth)
	}
	if len(days[1].Bills) != 1 || days[1].InMonth {
		t.Fatalf("padding day should carry its own bucket: %+v", days[1])
	}
	if len(days[41].Bills) != 1 {
		t.Fatalf("trailing padding should carry april bill")
	}

	monday := PartitionGrid(ref, NewDate(2000, 1, 1), time.Monday, nil, nil)
	if monday[0].Date != NewDate(2024, 2, 26) || monday[len(monday)-1].Date != NewDate(2024, 3, 31) {
		t.Fatalf("monday grid bounds %v..%v", monday[0].Date, monday[len(monday)-1].Date)
	}
}

func TestPartitionGridNoPaddingNeeded(t *testing.T) {
	// February 2015 starts on Sunday and has 28 days.
	days := PartitionGrid(NewDate(2015, 2, 1), NewDate(2015, 2, 1), time.Sunday, nil, nil)
	if len(days) != 28 || !days[0].IsToday {
		t.Fatalf("expected exactly 28 cells with today first, got %d", len(days))
	}
}
