package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/Legionxoxo/ffmpeg-video/errors"
	"github.com/Legionxoxo/ffmpeg-video/metrics"
	"github.com/Legionxoxo/ffmpeg-video/pipeline"
	"github.com/julienschmidt/httprouter"
)

type CapacityMiddleware struct {
	requestsInFlight atomic.Int64
}

// HasCapacity turns conversion requests away with a 429 once the coordinator is running as many
// jobs as it admits, rather than letting them queue for a slot.
func (c *CapacityMiddleware) HasCapacity(coordinator *pipeline.Coordinator, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Keep a gauge of HTTP requests in flight
		metrics.Metrics.HTTPRequestsInFlight.Add(1)
		defer metrics.Metrics.HTTPRequestsInFlight.Add(-1)

		// A request holds its slot for the whole conversion, so in-flight requests and running
		// jobs are the same population once the job is registered
		inFlight := c.requestsInFlight.Add(1)
		defer c.requestsInFlight.Add(-1)

		if inFlight > coordinator.MaxInflightJobs() || !coordinator.HasCapacity() {
			errors.WriteHTTPTooManyRequests(w, "Too many conversions in progress", nil)
			return
		}

		next(w, r, ps)
	}
}
