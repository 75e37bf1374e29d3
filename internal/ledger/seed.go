package ledger

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"fincal/internal/core"
)

// Seed is the YAML document accepted by LoadSeed.
type Seed struct {
	Income []SeedEntry `yaml:"income"`
	Bills  []SeedEntry `yaml:"bills"`
}

// SeedEntry keeps every value as text so dates and amounts go through the
// same parsers as API input.
type SeedEntry struct {
	ID          string `yaml:"id"`
	Date        string `yaml:"date"`
	Amount      string `yaml:"amount"`
	Description string `yaml:"description"`
	Paid        bool   `yaml:"paid"`
}

// LoadSeedFile reads a seed file into l. A missing file is not an error and
// leaves the ledger empty.
func LoadSeedFile(l *Ledger, path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return LoadSeed(l, f)
}

// LoadSeed decodes a seed document and restores it into l. It returns the
// number of records loaded. Entries without an id get a fresh one; an id
// used twice across bills and income is rejected.
func LoadSeed(l *Ledger, r io.Reader) (int, error) {
	var doc Seed
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("decode seed: %w", err)
	}

	// ids maps every id to the entry that first used it.
	ids := make(map[string]string, len(doc.Bills)+len(doc.Income))
	claim := func(id, where string) error {
		if prev, ok := ids[id]; ok {
			return fmt.Errorf("%s: duplicate id %q (first used by %s)", where, id, prev)
		}
		ids[id] = where
		return nil
	}

	bills := make([]core.Bill, 0, len(doc.Bills))
	for i, e := range doc.Bills {
		date, amount, err := e.parse()
		if err != nil {
			return 0, fmt.Errorf("bills[%d]: %w", i, err)
		}
		b := core.Bill{ID: e.ID, Date: date, Amount: amount, Description: e.Description, IsPaid: e.Paid}
		if err := b.Validate(); err != nil {
			return 0, fmt.Errorf("bills[%d]: %w", i, err)
		}
		if b.ID == "" {
			b.ID = l.newID()
		}
		if err := claim(b.ID, fmt.Sprintf("bills[%d]", i)); err != nil {
			return 0, err
		}
		bills = append(bills, b)
	}

	income := make([]core.Income, 0, len(doc.Income))
	for i, e := range doc.Income {
		date, amount, err := e.parse()
		if err != nil {
			return 0, fmt.Errorf("income[%d]: %w", i, err)
		}
		inc := core.Income{ID: e.ID, Date: date, Amount: amount, Description: e.Description}
		if err := inc.Validate(); err != nil {
			return 0, fmt.Errorf("income[%d]: %w", i, err)
		}
		if inc.ID == "" {
			inc.ID = l.newID()
		}
		if err := claim(inc.ID, fmt.Sprintf("income[%d]", i)); err != nil {
			return 0, err
		}
		income = append(income, inc)
	}

	l.Restore(bills, income)
	return len(bills) + len(income), nil
}

func (e SeedEntry) parse() (core.Date, core.Money, error) {
	date, err := core.ParseDate(e.Date)
	if err != nil {
		return core.Date{}, core.Money{}, err
	}
	amount, err := core.ParseAmount(e.Amount)
	if err != nil {
		return core.Date{}, core.Money{}, fmt.Errorf("amount %q: %w", e.Amount, err)
	}
	return date, amount, nil
}
