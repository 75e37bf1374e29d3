package core

// Summary is the dashboard view of the whole ledger.
type Summary struct {
	TotalIncome Money
	TotalBills  Money
	TotalPaid   Money
	TotalUnpaid Money
	Balance     Money
}

// Balance returns total income minus the total of paid bills. Unpaid bills
// never reduce the balance.
func Balance(bills []Bill, income []Income) Money {
	return TotalIncome(income).Sub(TotalPaid(bills))
}

func TotalIncome(income []Income) Money {
	var total Money
	for _, inc := range income {
		total = total.Add(inc.Amount)
	}
	return total
}

func TotalPaid(bills []Bill) Money {
	var total Money
	for _, b := range bills {
		if b.IsPaid {
			total = total.Add(b.Amount)
		}
	}
	return total
}

func TotalUnpaid(bills []Bill) Money {
	var total Money
	for _, b := range bills {
		if !b.IsPaid {
			total = total.Add(b.Amount)
		}
	}
	return total
}

// Summarize computes all dashboard totals in one pass over each collection.
func Summarize(bills []Bill, income []Income) Summary {
	s := Summary{TotalIncome: TotalIncome(income)}
	for _, b := range bills {
		s.TotalBills = s.TotalBills.Add(b.Amount)
		if b.IsPaid {
			s.TotalPaid = s.TotalPaid.Add(b.Amount)
		} else {
			s.TotalUnpaid = s.TotalUnpaid.Add(b.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalPaid)
	return s
}
