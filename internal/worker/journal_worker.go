// Package worker turns ledger change events into journal rows.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fincal/internal/amqp"
	"fincal/internal/cache"
	"fincal/internal/log"
	"fincal/internal/sheets"
)

// JournalWorker mirrors every ledger event to a JournalWriter. Keys of
// recently written events are remembered so redelivered messages are written
// once.
type JournalWorker struct {
	journal sheets.JournalWriter
	logger  *slog.Logger
	seen    *cache.LRUCache[struct{}]
}

const (
	seenSize = 10000
	seenTTL  = 24 * time.Hour
)

func NewJournalWorker(journal sheets.JournalWriter, logger *slog.Logger) *JournalWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &JournalWorker{journal: journal, logger: logger, seen: cache.NewLRUCache[struct{}](seenSize, seenTTL)}
}

// HandleLedgerEvent is an amqp.Handler. A returned error makes the consumer
// requeue the message.
func (w *JournalWorker) HandleLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	key := e.Key()
	if _, ok := w.seen.Get(key); ok {
		w.logger.DebugContext(ctx, "Skipping already journaled event",
			log.FieldID, e.ID, log.FieldRevision, e.Revision, "epoch", e.Epoch)
		return nil
	}

	ref, err := w.journal.AppendJournal(ctx, EntryFromEvent(e))
	if err != nil {
		return fmt.Errorf("append journal %s %s: %w", e.Entity, e.ID, err)
	}
	w.seen.Set(key, struct{}{})

	w.logger.InfoContext(ctx, "Ledger event journaled",
		log.FieldOperation, e.Op, log.FieldEntity, e.Entity, log.FieldID, e.ID,
		log.FieldRevision, e.Revision, "ref", ref)
	return nil
}

// EntryFromEvent maps a message to a journal row.
func EntryFromEvent(e *amqp.LedgerEvent) sheets.JournalEntry {
	return sheets.JournalEntry{
		Timestamp:   e.Timestamp,
		Op:          e.Op,
		Entity:      e.Entity,
		ID:          e.ID,
		Date:        e.Record.Date,
		Description: e.Record.Description,
		Amount:      e.Record.Amount,
		Paid:        e.Record.Paid,
		Revision:    e.Revision,
	}
}
