package errors

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func TestUnretriable(t *testing.T) {
	err := Unretriable(fmt.Errorf("bar"))
	require.True(t, IsUnretriable(err))
	var permErr *backoff.PermanentError
	require.True(t, errors.As(err, &permErr))
	require.False(t, IsUnretriable(fmt.Errorf("bar")))
}

func TestConversionErrorKinds(t *testing.T) {
	err := NewEncodeError("480p", fmt.Errorf("exit status 1"))
	require.True(t, IsKind(err, KindEncode))
	require.False(t, IsKind(err, KindProbe))
	require.Equal(t, "encode failure for rendition 480p: exit status 1", err.Error())

	wrapped := fmt.Errorf("job failed: %w", err)
	require.True(t, IsKind(wrapped, KindEncode))
	require.Equal(t, KindEncode, KindOf(wrapped))
	require.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))

	require.Equal(t, "validation failure: width must be positive, got 0", NewValidationError("width must be positive, got %d", 0).Error())
}

func TestWithJobID(t *testing.T) {
	require.NoError(t, WithJobID(nil, "job", KindFilesystem))

	original := NewProbeError(fmt.Errorf("no such file"))
	stamped := WithJobID(original, "job-1", KindFilesystem)
	var ce *ConversionError
	require.True(t, errors.As(stamped, &ce))
	require.Equal(t, "job-1", ce.JobID)
	require.Equal(t, KindProbe, ce.Kind)

	// the original value must not be mutated
	require.True(t, errors.As(original, &ce))
	require.Equal(t, "", ce.JobID)

	plain := WithJobID(fmt.Errorf("disk full"), "job-2", KindFilesystem)
	require.True(t, IsKind(plain, KindFilesystem))
	require.ErrorContains(t, plain, "disk full")
}

func TestWriteHTTPError(t *testing.T) {
	w := httptest.NewRecorder()
	apiErr := WriteHTTPTooManyRequests(w, "Too many conversions in flight", nil)
	require.Equal(t, 429, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.JSONEq(t, `{"error":"Too many conversions in flight","error_detail":""}`, w.Body.String())
	require.Equal(t, 429, apiErr.Status)

	w = httptest.NewRecorder()
	WriteHTTPBadRequest(w, "Invalid request payload", fmt.Errorf("unexpected EOF"))
	require.Equal(t, 400, w.Code)
	require.JSONEq(t, `{"error":"Invalid request payload","error_detail":"unexpected EOF"}`, w.Body.String())
}
