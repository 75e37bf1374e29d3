// Package ledger is the in-memory transaction store for bills and income.
//
// The Ledger owns both collections. Mutators never modify a published slice:
// they build a new one and swap it in, bumping the revision, so snapshots
// handed to readers stay valid after later writes.
package ledger

import (
	"sync"

	"github.com/google/uuid"

	"fincal/internal/core"
)

type Op string

const (
	OpAdd     Op = "add"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpToggle  Op = "toggle"
	OpRestore Op = "restore"
)

type Entity string

const (
	EntityBill   Entity = "bill"
	EntityIncome Entity = "income"
	EntityAll    Entity = "all"
)

// Change describes one effective mutation.
type Change struct {
	Op       Op
	Entity   Entity
	ID       string
	Revision uint64
}

// Observer is called after every effective mutation, outside the ledger lock.
type Observer func(Change)

// Snapshot is a consistent view of the ledger. Callers must not modify the
// slices.
type Snapshot struct {
	Bills    []core.Bill
	Income   []core.Income
	Revision uint64
}

type Ledger struct {
	mu       sync.RWMutex
	bills    []core.Bill
	income   []core.Income
	revision uint64
	epoch    string
	newID    func() string

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

type Option func(*Ledger)

// WithIDGenerator replaces the UUID generator, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		bills:     []core.Bill{},
		income:    []core.Income{},
		epoch:     uuid.NewString(),
		newID:     uuid.NewString,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddBill appends an unpaid bill and returns its new id.
func (l *Ledger) AddBill(date core.Date, amount core.Money, description string) string {
	l.mu.Lock()
	id := l.newID()
	next := make([]core.Bill, len(l.bills), len(l.bills)+1)
	copy(next, l.bills)
	l.bills = append(next, core.Bill{ID: id, Date: date, Amount: amount, Description: description})
	ch := l.commit(OpAdd, EntityBill, id)
	l.mu.Unlock()

	l.notify(ch)
	return id
}

// AddIncome appends an income entry and returns its new id.
func (l *Ledger) AddIncome(date core.Date, amount core.Money, description string) string {
	l.mu.Lock()
	id := l.newID()
	next := make([]core.Income, len(l.income), len(l.income)+1)
	copy(next, l.income)
	l.income = append(next, core.Income{ID: id, Date: date, Amount: amount, Description: description})
	ch := l.commit(OpAdd, EntityIncome, id)
	l.mu.Unlock()

	l.notify(ch)
	return id
}

// UpdateBill merges the patch into the bill with the given id. A missing id
// leaves the ledger untouched and returns false.
func (l *Ledger) UpdateBill(id string, patch core.BillPatch) bool {
	return l.mutateBill(OpUpdate, id, patch.Apply)
}

// ToggleBillPaid flips the paid flag of the bill with the given id.
func (l *Ledger) ToggleBillPaid(id string) bool {
	return l.mutateBill(OpToggle, id, func(b core.Bill) core.Bill {
		b.IsPaid = !b.IsPaid
		return b
	})
}

func (l *Ledger) mutateBill(op Op, id string, fn func(core.Bill) core.Bill) bool {
	l.mu.Lock()
	i := indexBill(l.bills, id)
	if i < 0 {
		l.mu.Unlock()
		return false
	}
	next := make([]core.Bill, len(l.bills))
	copy(next, l.bills)
	next[i] = fn(next[i])
	next[i].ID = id
	l.bills = next
	ch := l.commit(op, EntityBill, id)
	l.mu.Unlock()

	l.notify(ch)
	return true
}

// UpdateIncome merges the patch into the income entry with the given id.
func (l *Ledger) UpdateIncome(id string, patch core.IncomePatch) bool {
	l.mu.Lock()
	i := indexIncome(l.income, id)
	if i < 0 {
		l.mu.Unlock()
		return false
	}
	next := make([]core.Income, len(l.income))
	copy(next, l.income)
	next[i] = patch.Apply(next[i])
	l.income = next
	ch := l.commit(OpUpdate, EntityIncome, id)
	l.mu.Unlock()

	l.notify(ch)
	return true
}

func (l *Ledger) DeleteBill(id string) bool {
	l.mu.Lock()
	i := indexBill(l.bills, id)
	if i < 0 {
		l.mu.Unlock()
		return false
	}
	next := make([]core.Bill, 0, len(l.bills)-1)
	next = append(next, l.bills[:i]...)
	l.bills = append(next, l.bills[i+1:]...)
	ch := l.commit(OpDelete, EntityBill, id)
	l.mu.Unlock()

	l.notify(ch)
	return true
}

func (l *Ledger) DeleteIncome(id string) bool {
	l.mu.Lock()
	i := indexIncome(l.income, id)
	if i < 0 {
		l.mu.Unlock()
		return false
	}
	next := make([]core.Income, 0, len(l.income)-1)
	next = append(next, l.income[:i]...)
	l.income = append(next, l.income[i+1:]...)
	ch := l.commit(OpDelete, EntityIncome, id)
	l.mu.Unlock()

	l.notify(ch)
	return true
}

// Restore replaces both collections, e.g. with rows loaded from storage.
func (l *Ledger) Restore(bills []core.Bill, income []core.Income) {
	l.mu.Lock()
	l.bills = append(make([]core.Bill, 0, len(bills)), bills...)
	l.income = append(make([]core.Income, 0, len(income)), income...)
	ch := l.commit(OpRestore, EntityAll, "")
	l.mu.Unlock()

	l.notify(ch)
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{Bills: l.bills, Income: l.income, Revision: l.revision}
}

// Epoch identifies this ledger instance. Revisions restart when a ledger is
// rebuilt, so a revision is only unique together with its epoch.
func (l *Ledger) Epoch() string {
	return l.epoch
}

func (l *Ledger) Revision() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.revision
}

func (l *Ledger) Bill(id string) (core.Bill, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := indexBill(l.bills, id); i >= 0 {
		return l.bills[i], true
	}
	return core.Bill{}, false
}

func (l *Ledger) Income(id string) (core.Income, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := indexIncome(l.income, id); i >= 0 {
		return l.income[i], true
	}
	return core.Income{}, false
}

// Balance is total income minus paid bills.
func (l *Ledger) Balance() core.Money {
	s := l.Snapshot()
	return core.Balance(s.Bills, s.Income)
}

// Subscribe registers an observer and returns a function that removes it.
func (l *Ledger) Subscribe(o Observer) (cancel func()) {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()
	key := l.nextObs
	l.nextObs++
	l.observers[key] = o
	return func() {
		l.obsMu.Lock()
		delete(l.observers, key)
		l.obsMu.Unlock()
	}
}

// commit must be called with mu held.
func (l *Ledger) commit(op Op, entity Entity, id string) Change {
	l.revision++
	return Change{Op: op, Entity: entity, ID: id, Revision: l.revision}
}

func (l *Ledger) notify(ch Change) {
	l.obsMu.Lock()
	obs := make([]Observer, 0, len(l.observers))
	for _, o := range l.observers {
		obs = append(obs, o)
	}
	l.obsMu.Unlock()

	for _, o := range obs {
		o(ch)
	}
}

func indexBill(bills []core.Bill, id string) int {
	for i := range bills {
		if bills[i].ID == id {
			return i
		}
	}
	return -1
}

func indexIncome(income []core.Income, id string) int {
	for i := range income {
		if income[i].ID == id {
			return i
		}
	}
	return -1
}
