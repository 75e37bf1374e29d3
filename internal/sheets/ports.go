// Package sheets defines the journal mirror the worker writes ledger
// changes to.
package sheets

import (
	"context"
	"strconv"
	"time"

	"fincal/internal/core"
)

// JournalHeader names the journal columns in order.
var JournalHeader = []any{"Timestamp", "Op", "Entity", "ID", "Date", "Description", "Amount", "Paid", "Revision"}

// JournalEntry is one row of the change journal.
type JournalEntry struct {
	Timestamp   time.Time
	Op          string
	Entity      string
	ID          string
	Date        core.Date
	Description string
	Amount      core.Money
	Paid        *bool
	Revision    uint64
}

// Row renders the entry in JournalHeader order. Amount and revision are
// numbers so the sheet can sum them; every other cell is text and is written
// without formula evaluation.
func (e JournalEntry) Row() []any {
	paid := ""
	if e.Paid != nil {
		paid = strconv.FormatBool(*e.Paid)
	}
	return []any{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Op,
		e.Entity,
		e.ID,
		e.Date.String(),
		e.Description,
		e.Amount.Decimal().InexactFloat64(),
		paid,
		e.Revision,
	}
}

// JournalWriter appends entries to an external journal.
type JournalWriter interface {
	AppendJournal(ctx context.Context, e JournalEntry) (rowRef string, err error)
}
