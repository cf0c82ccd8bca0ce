package events

import (
	"sync"

	"github.com/Legionxoxo/ffmpeg-video/config"
	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/Legionxoxo/ffmpeg-video/transcode"
)

// Stage is a step of a conversion job. Jobs move through them in declaration order and may
// drop to StageFailed from any non-terminal stage.
type Stage string

const (
	StageCreated         Stage = "created"
	StageProbing         Stage = "probing"
	StageLadderSelected  Stage = "ladder_selected"
	StageEncoding        Stage = "encoding"
	StageManifestWritten Stage = "manifest_written"
	StageCleanup         Stage = "cleanup"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

type Type string

const (
	TypeStageEntered       Type = "stage_entered"
	TypeStageCompleted     Type = "stage_completed"
	TypeStageFailed        Type = "stage_failed"
	TypeRenditionStarted   Type = "rendition_started"
	TypeRenditionCompleted Type = "rendition_completed"
)

type Event struct {
	JobID     string `json:"job_id"`
	Type      Type   `json:"type"`
	Stage     Stage  `json:"stage"`
	Timestamp int64  `json:"timestamp"`

	// Seconds spent in the stage, set on completion and failure
	Duration float64 `json:"duration,omitempty"`
	// Set on failure only
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	// Fraction of the stage finished so far, between 0 and 1
	Progress float64 `json:"progress,omitempty"`

	Rendition string                     `json:"rendition,omitempty"`
	Result    *transcode.RenditionResult `json:"result,omitempty"`
	// Free-form stage figures, e.g. the number of renditions selected
	Metrics map[string]any `json:"metrics,omitempty"`
}

func New(jobID string, eventType Type, stage Stage) Event {
	return Event{
		JobID:     jobID,
		Type:      eventType,
		Stage:     stage,
		Timestamp: config.Clock.GetTimestampUTC(),
	}
}

// Observer receives every event of every job. Implementations must be safe for
// concurrent use and must not block for long.
type Observer interface {
	Notify(e Event)
}

type ObserverFunc func(e Event)

func (f ObserverFunc) Notify(e Event) {
	f(e)
}

// Multi fans an event out to each observer in turn
type Multi []Observer

func (m Multi) Notify(e Event) {
	for _, o := range m {
		if o != nil {
			o.Notify(e)
		}
	}
}

// LogObserver writes each event to the job's log
type LogObserver struct{}

func (LogObserver) Notify(e Event) {
	keyvals := []interface{}{"event", e.Type, "stage", e.Stage}
	if e.Rendition != "" {
		keyvals = append(keyvals, "rendition", e.Rendition)
	}
	if e.Duration > 0 {
		keyvals = append(keyvals, "duration", e.Duration)
	}
	for k, v := range e.Metrics {
		keyvals = append(keyvals, k, v)
	}
	if e.Error != "" {
		keyvals = append(keyvals, "error_kind", e.ErrorKind, "err", e.Error)
	}
	log.Log(e.JobID, "job event", keyvals...)
}

// Recorder keeps every event it sees, used to inspect a job's history
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event{}, r.events...)
}

// Stages returns the stages entered, in order
func (r *Recorder) Stages() []Stage {
	var stages []Stage
	for _, e := range r.Events() {
		if e.Type == TypeStageEntered {
			stages = append(stages, e.Stage)
		}
	}
	return stages
}
