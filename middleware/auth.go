package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Legionxoxo/ffmpeg-video/errors"
	"github.com/julienschmidt/httprouter"
)

// IsAuthorized requires a bearer token matching apiToken. An empty apiToken disables the check.
func IsAuthorized(apiToken string, next httprouter.Handle) httprouter.Handle {
	if apiToken == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		authHeader := r.Header.Get("Authorization")

		if authHeader == "" {
			errors.WriteHTTPUnauthorized(w, "No authorization header", nil)
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(apiToken)) != 1 {
			errors.WriteHTTPUnauthorized(w, "Invalid Token", nil)
			return
		}

		next(w, r, ps)
	}
}
