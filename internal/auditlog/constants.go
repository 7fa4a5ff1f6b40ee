package auditlog

// BatchFlushThreshold is the number of entries that triggers an immediate flush.
// When the batch reaches this size, it's written to storage without waiting for the timer.
const BatchFlushThreshold = 100

// PathPrefix selects the routes that are audited.
const PathPrefix = "/ai/"

// Context keys for storing audit log data in request context.
type contextKey string

// LogEntryKey is the echo context key holding the in-flight *LogEntry.
const LogEntryKey contextKey = "auditlog_entry"
