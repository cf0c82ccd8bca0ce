package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/xeipuuv/gojsonschema"
)

// Kind classifies a conversion failure by the stage that produced it.
type Kind string

const (
	KindProbe      Kind = "probe"
	KindValidation Kind = "validation"
	KindEncode     Kind = "encode"
	KindFilesystem Kind = "filesystem"
	KindCancelled  Kind = "cancelled"
)

// ConversionError is returned by every stage of a conversion job. Rendition is
// only set for encode failures.
type ConversionError struct {
	Kind      Kind
	JobID     string
	Rendition string
	Err       error
}

func (e *ConversionError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	sb.WriteString(" failure")
	if e.Rendition != "" {
		sb.WriteString(" for rendition ")
		sb.WriteString(e.Rendition)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func NewProbeError(err error) error {
	return &ConversionError{Kind: KindProbe, Err: err}
}

func NewValidationError(format string, args ...any) error {
	return &ConversionError{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

func NewEncodeError(rendition string, err error) error {
	return &ConversionError{Kind: KindEncode, Rendition: rendition, Err: err}
}

func NewFilesystemError(err error) error {
	return &ConversionError{Kind: KindFilesystem, Err: err}
}

func NewCancelledError(err error) error {
	return &ConversionError{Kind: KindCancelled, Err: err}
}

// IsKind reports whether any ConversionError in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first ConversionError in err's chain, or ""
func KindOf(err error) Kind {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// WithJobID stamps the job id onto a ConversionError, wrapping plain errors as
// the given fallback kind.
func WithJobID(err error, jobID string, fallback Kind) error {
	if err == nil {
		return nil
	}
	var ce *ConversionError
	if errors.As(err, &ce) {
		copied := *ce
		copied.JobID = jobID
		return &copied
	}
	return &ConversionError{Kind: fallback, JobID: jobID, Err: err}
}

type unretriableError struct{ error }

func (e unretriableError) Unwrap() error {
	return e.error
}

// Unretriable marks an error so that backoff.Retry gives up immediately.
func Unretriable(err error) error {
	return backoff.Permanent(unretriableError{err})
}

func IsUnretriable(err error) bool {
	return errors.As(err, &unretriableError{})
}

type apiError struct {
	Msg    string `json:"message"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

func writeHttpError(w http.ResponseWriter, msg string, status int, err error) apiError {
	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg, "error_detail": errorDetail}); err != nil {
		log.LogNoRequestID("error writing HTTP error", "http_error_msg", msg, "error", err)
	}

	return apiError{msg, status, err}
}

// HTTP Errors
func WriteHTTPUnauthorized(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnauthorized, err)
}

func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusBadRequest, err)
}

func WriteHTTPUnsupportedMediaType(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusUnsupportedMediaType, err)
}

func WriteHTTPTooManyRequests(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusTooManyRequests, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) apiError {
	return writeHttpError(w, msg, http.StatusInternalServerError, err)
}

func WriteHTTPBadBodySchema(where string, w http.ResponseWriter, errors []gojsonschema.ResultError) apiError {
	sb := strings.Builder{}
	sb.WriteString("Body validation error in ")
	sb.WriteString(where)
	sb.WriteString(" ")
	for i := 0; i < len(errors); i++ {
		sb.WriteString(errors[i].String())
		sb.WriteString(" ")
	}
	return writeHttpError(w, sb.String(), http.StatusBadRequest, nil)
}
