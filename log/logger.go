package log

import (
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

var loggerCache *cache.Cache
var defaultLoggerCacheExpiry = 6 * time.Hour

// logDestination is swapped out by tests to capture output
var logDestination io.Writer = os.Stderr

func init() {
	loggerCache = cache.New(defaultLoggerCacheExpiry, 10*time.Minute)
}

// AddContext permanently adds context to the logger of a job. Any future logging for this
// Job ID will include this context.
func AddContext(jobID string, keyvals ...interface{}) {
	loggerCache.Set(jobID, kitlog.With(getLogger(jobID), redactKeyvals(keyvals...)...), defaultLoggerCacheExpiry)
}

// RemoveContext drops the cached logger of a finished job.
func RemoveContext(jobID string) {
	loggerCache.Delete(jobID)
}

func Log(jobID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(jobID), "msg", message).Log(redactKeyvals(keyvals...)...)
}

// LogNoRequestID logs in situations where we don't have access to a Job ID.
// Should be used sparingly and with as much context inserted into the message as possible
func LogNoRequestID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(redactKeyvals(keyvals...)...)
}

func LogError(jobID string, message string, err error, keyvals ...interface{}) {
	msgLogger := kitlog.With(getLogger(jobID), "msg", message)
	errLogger := kitlog.With(msgLogger, "err", err.Error())
	_ = errLogger.Log(redactKeyvals(keyvals...)...)
}

func getLogger(jobID string) kitlog.Logger {
	logger, found := loggerCache.Get(jobID)
	if found {
		return logger.(kitlog.Logger)
	}

	newLogger := kitlog.With(newLogger(), "request_id", jobID)
	err := loggerCache.Add(jobID, newLogger, defaultLoggerCacheExpiry)
	if err != nil {
		_ = newLogger.Log("msg", "error adding logger to cache", "request_id", jobID)
	}
	return newLogger
}

func newLogger() kitlog.Logger {
	newLogger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(logDestination))
	return kitlog.With(newLogger, "ts", kitlog.DefaultTimestampUTC)
}

func redactKeyvals(keyvals ...interface{}) []interface{} {
	var res []interface{}
	for i := range keyvals {
		res = append(res, keyvals[i])
		if i%2 == 1 {
			if s, ok := keyvals[i].(string); ok {
				res[i] = RedactURL(s)
			}
		}
	}
	return res
}

// RedactURL hides the password part of any URL carrying credentials, such as a
// callback endpoint configured with basic auth.
func RedactURL(str string) string {
	u, err := url.Parse(str)
	if err != nil {
		if strings.Contains(str, "@") {
			return "REDACTED"
		}
		return str
	}
	if u.User == nil {
		return str
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return str
	}
	return u.Redacted()
}
