package auditlog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	batchWriteTimeout = 30 * time.Second
	finalFlushTimeout = 10 * time.Second
)

// Logger queues entries on a bounded channel and a single goroutine writes
// them to the store in batches of up to BatchFlushThreshold, or whatever has
// accumulated when FlushInterval elapses.
type Logger struct {
	store  LogStore
	config Config

	queue   chan *LogEntry
	stop    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once

	dropped atomic.Int64
}

// NewLogger starts the batching goroutine for store.
func NewLogger(store LogStore, cfg Config) *Logger {
	defaults := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaults.FlushInterval
	}

	l := &Logger{
		store:  store,
		config: cfg,
		queue:  make(chan *LogEntry, cfg.BufferSize),
		stop:   make(chan struct{}),
	}
	l.stopped.Add(1)
	go l.run()
	return l
}

// Write never blocks the request path: when the queue is full the entry is
// dropped and counted.
func (l *Logger) Write(entry *LogEntry) {
	if entry == nil {
		return
	}
	select {
	case l.queue <- entry:
	default:
		total := l.dropped.Add(1)
		slog.Warn("audit log buffer full, dropping entry",
			"request_id", entry.RequestID,
			"operation", entry.Operation,
			"dropped_total", total,
		)
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Config returns the logger configuration
func (l *Logger) Config() Config {
	return l.config
}

// Close writes everything still queued, then closes the store.
// Write must not be called after Close.
func (l *Logger) Close() error {
	var err error
	l.once.Do(func() {
		close(l.stop)
		l.stopped.Wait()
		if n := l.Dropped(); n > 0 {
			slog.Warn("audit log entries were dropped", "count", n)
		}
		err = l.store.Close()
	})
	return err
}

func (l *Logger) run() {
	defer l.stopped.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	pending := make([]*LogEntry, 0, BatchFlushThreshold)
	for {
		select {
		case entry := <-l.queue:
			pending = append(pending, entry)
			if len(pending) >= BatchFlushThreshold {
				pending = l.write(pending)
			}
		case <-ticker.C:
			pending = l.write(pending)
		case <-l.stop:
			l.write(append(pending, l.drain()...))
			ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
			if err := l.store.Flush(ctx); err != nil {
				slog.Error("failed to flush audit log store", "error", err)
			}
			cancel()
			return
		}
	}
}

// drain empties the queue without closing it, so a late Write cannot panic.
func (l *Logger) drain() []*LogEntry {
	var rest []*LogEntry
	for {
		select {
		case entry := <-l.queue:
			rest = append(rest, entry)
		default:
			return rest
		}
	}
}

// write stores batch and returns an empty slice to reuse.
func (l *Logger) write(batch []*LogEntry) []*LogEntry {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(context.Background(), batchWriteTimeout)
	defer cancel()

	if err := l.store.WriteBatch(ctx, batch); err != nil {
		slog.Error("failed to write audit log batch", "error", err, "count", len(batch))
	}
	return make([]*LogEntry, 0, BatchFlushThreshold)
}

// NoopLogger discards entries; it is used when audit logging is disabled.
type NoopLogger struct{}

func (l *NoopLogger) Write(_ *LogEntry) {}

func (l *NoopLogger) Config() Config {
	return Config{Enabled: false}
}

func (l *NoopLogger) Close() error {
	return nil
}

// LoggerInterface is satisfied by Logger and NoopLogger.
type LoggerInterface interface {
	Write(entry *LogEntry)
	Config() Config
	Close() error
}
