// Package memory is an in-process journal used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fincal/internal/log"
	"fincal/internal/sheets"
)

// Journal keeps the most recent entries and logs each append.
type Journal struct {
	mu      sync.Mutex
	limit   int
	total   int
	entries []sheets.JournalEntry
	logger  *slog.Logger
}

var _ sheets.JournalWriter = (*Journal)(nil)

// New returns a journal that retains at most limit entries (0 keeps all).
func New(limit int, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{limit: limit, logger: logger}
}

func (j *Journal) AppendJournal(ctx context.Context, e sheets.JournalEntry) (string, error) {
	j.mu.Lock()
	j.total++
	j.entries = append(j.entries, e)
	if j.limit > 0 && len(j.entries) > j.limit {
		j.entries = append([]sheets.JournalEntry(nil), j.entries[len(j.entries)-j.limit:]...)
	}
	ref := fmt.Sprintf("mem:%d", j.total)
	j.mu.Unlock()

	j.logger.InfoContext(ctx, "Journal entry recorded",
		"ref", ref, log.FieldOperation, e.Op, log.FieldEntity, e.Entity, log.FieldID, e.ID, log.FieldRevision, e.Revision)
	return ref, nil
}

// Entries returns a copy of the retained entries, oldest first.
func (j *Journal) Entries() []sheets.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]sheets.JournalEntry(nil), j.entries...)
}
