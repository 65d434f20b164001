package store

import (
	"log/slog"

	"vawter.tech/stopper"

	"github.com/panelkit/devpanel/internal/models"
)

const (
	// writerBuffer bounds how many entries may sit unwritten before
	// new entries are dropped. Dropping beats blocking the tailer.
	writerBuffer = 1024
	// maxBatch caps entries per insert transaction.
	maxBatch = 100
)

// Writer decouples log producers from SQLite write latency. Entries are
// queued on a bounded channel and flushed in batches by one goroutine.
type Writer struct {
	store *Store
	log   *slog.Logger
	ch    chan models.LogEntry
}

// NewWriter creates a Writer. Start must be called before Enqueue
// delivers anything.
func NewWriter(store *Store, log *slog.Logger) *Writer {
	return &Writer{
		store: store,
		log:   log,
		ch:    make(chan models.LogEntry, writerBuffer),
	}
}

// Start launches the flush goroutine under the given lifecycle context.
// Entries still queued when the context stops are flushed before exit.
func (w *Writer) Start(ctx *stopper.Context) {
	ctx.Go(func(ctx *stopper.Context) error {
		for {
			select {
			case <-ctx.Stopping():
				for {
					batch := w.drain(nil)
					if len(batch) == 0 {
						return nil
					}
					w.flush(batch)
				}
			case entry := <-w.ch:
				w.flush(w.drain([]models.LogEntry{entry}))
			}
		}
	})
}

// Enqueue queues an entry for persistence. If the buffer is full the
// entry is dropped and counted, never blocking the caller.
func (w *Writer) Enqueue(entry models.LogEntry) {
	select {
	case w.ch <- entry:
	default:
		w.log.Debug("log write buffer full, dropping entry", "service", entry.ServiceID)
	}
}

// drain collects queued entries without blocking, up to maxBatch total.
func (w *Writer) drain(batch []models.LogEntry) []models.LogEntry {
	for len(batch) < maxBatch {
		select {
		case entry := <-w.ch:
			batch = append(batch, entry)
		default:
			return batch
		}
	}
	return batch
}

func (w *Writer) flush(batch []models.LogEntry) {
	if len(batch) == 0 {
		return
	}
	if err := w.store.InsertBatch(batch); err != nil {
		w.log.Warn("failed to persist log batch", "count", len(batch), "error", err)
	}
}
