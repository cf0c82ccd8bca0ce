package clients

import (
	"encoding/json"
	"fmt"

	"github.com/Legionxoxo/ffmpeg-video/events"
	"github.com/Legionxoxo/ffmpeg-video/transcode"
)

// An enum of potential statuses a conversion job can report

type ConversionStatus int

const (
	ConversionStatusPreparing ConversionStatus = iota
	ConversionStatusTranscoding
	ConversionStatusFinalizing
	ConversionStatusCompleted
	ConversionStatusError
)

var statusNames = map[ConversionStatus]string{
	ConversionStatusPreparing:   "preparing",
	ConversionStatusTranscoding: "transcoding",
	ConversionStatusFinalizing:  "finalizing",
	ConversionStatusCompleted:   "success",
	ConversionStatusError:       "error",
}

func (cs ConversionStatus) String() string {
	if name, ok := statusNames[cs]; ok {
		return name
	}
	return "unknown"
}

func (cs ConversionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(cs.String())
}

func (cs *ConversionStatus) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for status, name := range statusNames {
		if name == s {
			*cs = status
			return nil
		}
	}
	return fmt.Errorf("unknown conversion status %q", s)
}

// StatusForStage maps a pipeline stage onto the coarser status reported to callbacks
func StatusForStage(stage events.Stage) ConversionStatus {
	switch stage {
	case events.StageEncoding:
		return ConversionStatusTranscoding
	case events.StageManifestWritten, events.StageCleanup:
		return ConversionStatusFinalizing
	case events.StageDone:
		return ConversionStatusCompleted
	case events.StageFailed:
		return ConversionStatusError
	default:
		return ConversionStatusPreparing
	}
}

// OverallCompletionRatio converts progress within a status into progress of the whole job.
// Preparing covers 0 to 0.1 and transcoding 0.1 to 0.9.
func OverallCompletionRatio(status ConversionStatus, stageRatio float64) float64 {
	switch status {
	case ConversionStatusPreparing:
		return scaleRatio(stageRatio, 0, 0.1)
	case ConversionStatusTranscoding:
		return scaleRatio(stageRatio, 0.1, 0.9)
	case ConversionStatusFinalizing:
		return 0.95
	case ConversionStatusCompleted:
		return 1
	}
	return 0
}

func scaleRatio(ratio, start, end float64) float64 {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return start + ratio*(end-start)
}

type StatusMessage struct {
	JobID           string           `json:"job_id"`
	Status          ConversionStatus `json:"status"`
	Stage           events.Stage     `json:"stage"`
	CompletionRatio float64          `json:"completion_ratio"` // No omitempty or we lose this for 0% completion case
	Error           string           `json:"error,omitempty"`
	ErrorKind       string           `json:"error_kind,omitempty"`
	Timestamp       int64            `json:"timestamp"`

	Rendition string                     `json:"rendition,omitempty"`
	Result    *transcode.RenditionResult `json:"result,omitempty"`
}

// NewStatusMessage builds the callback body for a job event
func NewStatusMessage(e events.Event) StatusMessage {
	status := StatusForStage(e.Stage)
	return StatusMessage{
		JobID:           e.JobID,
		Status:          status,
		Stage:           e.Stage,
		CompletionRatio: OverallCompletionRatio(status, e.Progress),
		Error:           e.Error,
		ErrorKind:       e.ErrorKind,
		Timestamp:       e.Timestamp,
		Rendition:       e.Rendition,
		Result:          e.Result,
	}
}
