package auditlog

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Middleware creates an Echo middleware for audit logging.
// It records request metadata before the handler runs, the outcome after it,
// and hands the entry to the logger. Only paths under PathPrefix are audited.
func Middleware(logger LoggerInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if logger == nil || !logger.Config().Enabled {
				return next(c)
			}

			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, PathPrefix) {
				return next(c)
			}

			start := time.Now()
			entry := &LogEntry{
				ID:        uuid.NewString(),
				Timestamp: start,
				RequestID: requestID(c),
				ClientIP:  c.RealIP(),
				UserAgent: req.UserAgent(),
				Method:    req.Method,
				Path:      req.URL.Path,
			}
			c.Set(string(LogEntryKey), entry)

			err := next(c)

			entry.DurationNs = time.Since(start).Nanoseconds()
			entry.StatusCode = c.Response().Status
			if err != nil && !c.Response().Committed {
				// Echo has not written the error yet.
				var he *echo.HTTPError
				if errors.As(err, &he) {
					entry.StatusCode = he.Code
				} else {
					entry.StatusCode = http.StatusInternalServerError
				}
				if entry.ErrorMessage == "" {
					entry.ErrorMessage = err.Error()
				}
			}

			logger.Write(entry)
			return err
		}
	}
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

func entryFrom(c echo.Context) *LogEntry {
	entry, _ := c.Get(string(LogEntryKey)).(*LogEntry)
	return entry
}

// EnrichEntry records which operation, provider and model served the request.
func EnrichEntry(c echo.Context, operation, provider, model string) {
	if entry := entryFrom(c); entry != nil {
		entry.Operation = operation
		entry.Provider = provider
		entry.Model = model
	}
}

// EnrichEntryWithError adds error information to the log entry.
func EnrichEntryWithError(c echo.Context, errorType, errorMessage string) {
	if entry := entryFrom(c); entry != nil {
		entry.ErrorType = errorType
		entry.ErrorMessage = errorMessage
	}
}
