package handlers

import (
	"mime"
	"net/http"
	"strings"

	"github.com/Legionxoxo/ffmpeg-video/pipeline"
)

type HLSHandlersCollection struct {
	Coordinator *pipeline.Coordinator
	// Sources named in requests must live directly under UploadDir
	UploadDir string
	// Each job writes to OutputRoot/<job id>
	OutputRoot string
}

func HasContentType(r *http.Request, mimetype string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return mimetype == "application/octet-stream"
	}

	for _, v := range strings.Split(contentType, ",") {
		t, _, err := mime.ParseMediaType(v)
		if err != nil {
			break
		}
		if t == mimetype {
			return true
		}
	}
	return false
}

// statusRecorder remembers the status code written so it can be reported as a metric label
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
