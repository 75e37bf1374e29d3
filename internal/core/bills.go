package core

import "sort"

// MonthlyBills is the month's bill list with its unpaid total.
type MonthlyBills struct {
	Month       Month
	Bills       []Bill
	TotalUnpaid Money
}

// BillsForMonth filters bills to ref's month and orders them by date, then
// unpaid before paid, then amount descending. The sort is stable so bills
// equal on all three keys keep their insertion order.
func BillsForMonth(ref Date, bills []Bill) MonthlyBills {
	m := MonthOf(ref)
	out := MonthlyBills{Month: m, Bills: make([]Bill, 0)}
	for _, b := range bills {
		if m.Contains(b.Date) {
			out.Bills = append(out.Bills, b)
		}
	}
	SortBills(out.Bills)
	out.TotalUnpaid = TotalUnpaid(out.Bills)
	return out
}

// SortBills sorts in place using the monthly list ordering.
func SortBills(bills []Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		return billLess(bills[i], bills[j])
	})
}

func billLess(a, b Bill) bool {
	if !a.Date.SameDay(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.IsPaid != b.IsPaid {
		return !a.IsPaid
	}
	return a.Amount.Cents > b.Amount.Cents
}
