package log

import (
	"github.com/golang/glog"
	"github.com/hashicorp/go-retryablehttp"
)

var _ retryablehttp.LeveledLogger = retryableHTTPLogger{}

// retryableHTTPLogger routes retryablehttp's internal logging into logfmt,
// gated by glog verbosity so that retries stay quiet by default.
type retryableHTTPLogger struct {
	component string
}

func NewRetryableHTTPLogger(component string) retryablehttp.LeveledLogger {
	return retryableHTTPLogger{component: component}
}

func (r retryableHTTPLogger) log(level string, msg string, keysAndValues ...interface{}) {
	LogNoRequestID(msg, append([]interface{}{"component", r.component, "level", level}, keysAndValues...)...)
}

func (r retryableHTTPLogger) Error(msg string, keysAndValues ...interface{}) {
	r.log("error", msg, keysAndValues...)
}

func (r retryableHTTPLogger) Warn(msg string, keysAndValues ...interface{}) {
	if glog.V(3) {
		r.log("warn", msg, keysAndValues...)
	}
}

func (r retryableHTTPLogger) Info(msg string, keysAndValues ...interface{}) {
	if glog.V(5) {
		r.log("info", msg, keysAndValues...)
	}
}

func (r retryableHTTPLogger) Debug(msg string, keysAndValues ...interface{}) {
	if glog.V(6) {
		r.log("debug", msg, keysAndValues...)
	}
}
