package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/errors"
	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/Legionxoxo/ffmpeg-video/metrics"
	"github.com/Legionxoxo/ffmpeg-video/pipeline"
	"github.com/Legionxoxo/ffmpeg-video/requests"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/xeipuuv/gojsonschema"
)

type ConvertRequest struct {
	// File name of an upload inside the upload directory
	Source string `json:"source"`
	JobID  string `json:"job_id,omitempty"`
}

// Convert runs a conversion for an already uploaded file and answers with the job summary once
// the HLS package is written. The request context is the job's context, so a client that hangs
// up cancels its encode.
func (d *HLSHandlersCollection) Convert() httprouter.Handle {
	schema := inputSchemasCompiled["Convert"]

	return func(rw http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		var convertRequest ConvertRequest

		start := time.Now()
		w := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}
		metrics.Metrics.ConvertRequestCount.Inc()
		defer func() {
			metrics.Metrics.ConvertRequestDurationSec.
				WithLabelValues(strconv.FormatBool(w.status < 400), strconv.Itoa(w.status)).
				Observe(time.Since(start).Seconds())
		}()

		if !HasContentType(req, "application/json") {
			errors.WriteHTTPUnsupportedMediaType(w, "Requires application/json content type", nil)
			return
		} else if payload, err := io.ReadAll(req.Body); err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot read payload", err)
			return
		} else if result, err := schema.Validate(gojsonschema.NewBytesLoader(payload)); err != nil {
			errors.WriteHTTPBadRequest(w, "Cannot validate payload", err)
			return
		} else if !result.Valid() {
			errors.WriteHTTPBadBodySchema("Convert", w, result.Errors())
			return
		} else if err := json.Unmarshal(payload, &convertRequest); err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
			return
		}

		inputPath, err := d.resolveSource(convertRequest.Source)
		if err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid source", err)
			return
		}

		jobID := convertRequest.JobID
		if jobID == "" {
			jobID = requests.GetRequestId(req)
			// the header is caller controlled and becomes a directory name
			if !validJobID.MatchString(jobID) {
				generated := uuid.NewString()
				log.LogNoRequestID("request id is not usable as a job id, generated one", "request_id", jobID, "job_id", generated)
				jobID = generated
			}
		}

		summary, err := d.Coordinator.Convert(req.Context(), pipeline.ConvertRequest{
			InputPath: inputPath,
			OutputDir: filepath.Join(d.OutputRoot, jobID),
			JobID:     jobID,
		})
		if err != nil {
			// the cause stays in the logs, callers only learn that the job failed
			log.LogError(jobID, "conversion request failed", err, "source", convertRequest.Source)
			if errors.IsKind(err, errors.KindValidation) {
				errors.WriteHTTPBadRequest(w, "Conversion failed", nil)
				return
			}
			errors.WriteHTTPInternalServerError(w, "Conversion failed", nil)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			log.LogError(jobID, "failed to write conversion summary", err)
		}
	}
}

// resolveSource maps a request's source name onto the upload directory. Only bare file names
// are accepted so that a request can never reach outside it.
func (d *HLSHandlersCollection) resolveSource(source string) (string, error) {
	if source == "" || source != filepath.Base(source) || source == "." || source == ".." {
		return "", fmt.Errorf("source must be a file name inside the upload directory")
	}
	inputPath := filepath.Join(d.UploadDir, source)
	info, err := os.Stat(inputPath)
	if err != nil {
		return "", fmt.Errorf("source %q not found", source)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("source %q is not a regular file", source)
	}
	return inputPath, nil
}
