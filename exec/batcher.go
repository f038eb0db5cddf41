package exec

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chaingraph-labs/engine/store"
)

// persistBatcher amortises event-append round-trips per spec §6.5: groups
// appends up to PersistBatchSize or every PersistFlushInterval, whichever
// comes first. On crash, every record not yet flushed is lost: the current
// batch plus whatever is still queued on the input channel (up to 1024);
// the live subscription stream remains authoritative while connected.
type persistBatcher struct {
	executionID string
	store       store.Store
	logger      interface {
		Error(format string, v ...any)
	}
	batchSize     int
	flushInterval time.Duration

	in   chan store.EventRecord
	stop chan struct{}
	done chan struct{}
}

func newPersistBatcher(executionID string, st store.Store, logger interface {
	Error(format string, v ...any)
}, batchSize int, flushInterval time.Duration) *persistBatcher {
	if batchSize <= 0 {
		batchSize = DefaultPersistBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultPersistFlushInterval
	}
	b := &persistBatcher{
		executionID:   executionID,
		store:         st,
		logger:        logger,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		in:            make(chan store.EventRecord, 1024),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *persistBatcher) enqueue(rec store.EventRecord) {
	select {
	case b.in <- rec:
	default:
		// batcher is backed up; drop rather than block the dispatcher
		// (persistence failures don't abort execution, spec §7).
		if b.logger != nil {
			b.logger.Error("persist batcher for execution %s is saturated, dropping event %d", b.executionID, rec.Index)
		}
	}
}

func (b *persistBatcher) run() {
	defer close(b.done)
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	buf := make([]store.EventRecord, 0, b.batchSize)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := b.store.AppendEvents(ctx, buf); err != nil && b.logger != nil {
			b.logger.Error("persist batch for execution %s failed: %v", b.executionID, err)
		}
		cancel()
		buf = buf[:0]
	}

	for {
		select {
		case rec := <-b.in:
			buf = append(buf, rec)
			if len(buf) >= b.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-b.stop:
			// drain whatever is already queued before flushing for the
			// last time.
			for {
				select {
				case rec := <-b.in:
					buf = append(buf, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}

// close flushes any buffered events and waits for the batcher goroutine to
// exit.
func (b *persistBatcher) close() {
	close(b.stop)
	<-b.done
}

func eventDataJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
