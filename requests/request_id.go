package requests

import (
	"net/http"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// GetRequestId returns the caller-supplied request id, generating and recording one when
// the header is absent so that later middleware sees the same value.
func GetRequestId(req *http.Request) string {
	requestID := req.Header.Get(RequestIDHeader)
	if requestID != "" {
		return requestID
	}
	requestID = uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	return requestID
}
