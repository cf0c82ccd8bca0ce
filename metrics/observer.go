package metrics

import (
	"github.com/Legionxoxo/ffmpeg-video/events"
	"github.com/Legionxoxo/ffmpeg-video/video"
)

const singleRenditionLabel = "single"

// Observer turns job events into Prometheus series
type Observer struct {
	m *HLSMetrics
}

func NewObserver(m *HLSMetrics) Observer {
	return Observer{m: m}
}

func (o Observer) Notify(e events.Event) {
	switch e.Type {
	case events.TypeStageEntered:
		switch e.Stage {
		case events.StageCreated:
			o.m.JobsInFlight.Inc()
		case events.StageDone:
			o.m.JobsInFlight.Dec()
			o.m.JobCount.WithLabelValues("success", "").Inc()
			o.m.JobDurationSec.WithLabelValues("success").Observe(e.Duration)
		case events.StageFailed:
			o.m.JobsInFlight.Dec()
			o.m.JobCount.WithLabelValues("failure", e.ErrorKind).Inc()
			o.m.JobDurationSec.WithLabelValues("failure").Observe(e.Duration)
		}
	case events.TypeStageCompleted:
		o.m.StageDurationSec.WithLabelValues(string(e.Stage)).Observe(e.Duration)
	case events.TypeRenditionCompleted:
		if e.Result == nil {
			return
		}
		label := renditionLabel(e.Rendition)
		o.m.RenditionDurationSec.WithLabelValues(label).Observe(e.Result.EncodeDuration)
		o.m.RenditionOutputBytes.WithLabelValues(label).Add(float64(e.Result.OutputSize))
		o.m.RenditionCount.WithLabelValues(label).Inc()
	}
}

// The single strategy names its output after the source height, which would give every
// distinct source its own series
func renditionLabel(name string) string {
	if video.IsLadderRendition(name) {
		return name
	}
	return singleRenditionLabel
}
