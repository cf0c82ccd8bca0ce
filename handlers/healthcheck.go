package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/julienschmidt/httprouter"
)

type HealthcheckResponse struct {
	Status       string `json:"status"`
	JobsInFlight int    `json:"jobs_in_flight"`
}

// Returns an HTTP 200 while the service can accept conversions. The body also reports how many
// jobs are running so that an operator can see why requests are being turned away.
func (d *HLSHandlersCollection) Healthcheck() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		responseObject := HealthcheckResponse{
			Status: "healthy",
		}
		if d.Coordinator != nil {
			responseObject.JobsInFlight = d.Coordinator.Jobs.Len()
		}

		b, err := json.Marshal(responseObject)
		if err != nil {
			log.LogNoRequestID("Failed to marshal healthcheck status: " + err.Error())
			b = []byte(`{"status": "marshalling status failed"}`)
		}

		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(b); err != nil {
			log.LogNoRequestID("Failed to write HTTP response for " + req.URL.RawPath)
		}
	}
}
