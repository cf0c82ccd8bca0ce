package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"github.com/Legionxoxo/ffmpeg-video/errors"
	"github.com/Legionxoxo/ffmpeg-video/pipeline"
	"github.com/julienschmidt/httprouter"
)

// ListenAndServeInternal serves operator endpoints that must not be exposed publicly
func ListenAndServeInternal(ctx context.Context, addr string, coordinator *pipeline.Coordinator) error {
	return serve(ctx, addr, NewHLSAPIRouterInternal(coordinator), "Starting internal HLS API!")
}

type jobStatus struct {
	JobID  string `json:"job_id"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Stage  string `json:"stage"`
}

func NewHLSAPIRouterInternal(coordinator *pipeline.Coordinator) *httprouter.Router {
	router := httprouter.New()

	router.GET("/ok", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		_, _ = w.Write([]byte("OK"))
	})

	// Jobs currently admitted, sorted by job id
	router.GET("/api/jobs", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		jobs := []jobStatus{}
		for _, id := range coordinator.Jobs.GetKeys() {
			job, ok := coordinator.Jobs.Lookup(id)
			if !ok {
				continue
			}
			jobs = append(jobs, jobStatus{
				JobID:  id,
				Input:  job.InputPath,
				Output: job.OutputDir,
				Stage:  string(job.Stage()),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jobs); err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot encode jobs", err)
		}
	})

	// httprouter can't mix static and wildcard segments, so one catch-all dispatches
	router.GET("/debug/pprof/*item", func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		switch ps.ByName("item") {
		case "/cmdline":
			pprof.Cmdline(w, r)
		case "/profile":
			pprof.Profile(w, r)
		case "/symbol":
			pprof.Symbol(w, r)
		case "/trace":
			pprof.Trace(w, r)
		default:
			pprof.Index(w, r)
		}
	})

	return router
}
