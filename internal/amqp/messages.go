package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fincal/internal/core"
)

// Entity names carried in LedgerEvent.Entity.
const (
	EntityBill   = "bill"
	EntityIncome = "income"
)

// Record is the state of the affected entry after the change. Paid is only
// set for bills.
type Record struct {
	Date        core.Date  `json:"date"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Paid        *bool      `json:"paid,omitempty"`
}

// LedgerEvent announces one change to the ledger. For deletes Record holds
// the removed entry.
type LedgerEvent struct {
	Op        string    `json:"op"`
	Entity    string    `json:"entity"`
	ID        string    `json:"id"`
	Epoch     string    `json:"epoch,omitempty"`
	Revision  uint64    `json:"revision"`
	Record    Record    `json:"record"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBillEvent(op string, b core.Bill, revision uint64) *LedgerEvent {
	paid := b.IsPaid
	return &LedgerEvent{
		Op:       op,
		Entity:   EntityBill,
		ID:       b.ID,
		Revision: revision,
		Record: Record{
			Date:        b.Date,
			Amount:      b.Amount,
			Description: b.Description,
			Paid:        &paid,
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewIncomeEvent(op string, inc core.Income, revision uint64) *LedgerEvent {
	return &LedgerEvent{
		Op:       op,
		Entity:   EntityIncome,
		ID:       inc.ID,
		Revision: revision,
		Record: Record{
			Date:        inc.Date,
			Amount:      inc.Amount,
			Description: inc.Description,
		},
		Timestamp: time.Now().UTC(),
	}
}

// Key identifies the change this event announces. Redeliveries of one
// message share a key; distinct changes never do.
func (e *LedgerEvent) Key() string {
	return fmt.Sprintf("%s:%s:%s:%d", e.Entity, e.ID, e.Epoch, e.Revision)
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and sanity-checks a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.ID == "" || e.Op == "" {
		return nil, fmt.Errorf("ledger event missing id or op")
	}
	if e.Entity != EntityBill && e.Entity != EntityIncome {
		return nil, fmt.Errorf("unknown entity %q", e.Entity)
	}
	return &e, nil
}
