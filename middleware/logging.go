package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/errors"
	"github.com/Legionxoxo/ffmpeg-video/requests"
	"github.com/go-kit/log"
	"github.com/julienschmidt/httprouter"
)

// responseWriter records what a handler sent so the access log can report it
type responseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int
	wroteHeader  bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// LogRequest writes one access log line per request and turns handler panics into a 500
func LogRequest(logger log.Logger) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			start := time.Now()
			requestID := requests.GetRequestId(r)
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			requestLogger := log.With(logger, "request_id", requestID)

			defer func() {
				if rec := recover(); rec != nil {
					errors.WriteHTTPInternalServerError(rw, "Internal Server Error", nil)
					_ = requestLogger.Log("msg", "handler panicked", "err", rec, "trace", string(debug.Stack()))
				}
			}()

			next(rw, r, ps)
			_ = requestLogger.Log(
				"remote", r.RemoteAddr,
				"method", r.Method,
				"uri", r.URL.RequestURI(),
				"duration", time.Since(start),
				"status", rw.status,
				"bytes", rw.bytesWritten,
			)
		}
	}
}
