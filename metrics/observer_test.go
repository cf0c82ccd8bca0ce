package metrics

import (
	"testing"

	"github.com/Legionxoxo/ffmpeg-video/events"
	"github.com/Legionxoxo/ffmpeg-video/transcode"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserverTracksJobLifecycle(t *testing.T) {
	o := NewObserver(Metrics)
	inFlight := testutil.ToFloat64(Metrics.JobsInFlight)
	successes := testutil.ToFloat64(Metrics.JobCount.WithLabelValues("success", ""))
	failures := testutil.ToFloat64(Metrics.JobCount.WithLabelValues("failure", "encode"))

	o.Notify(events.New("a", events.TypeStageEntered, events.StageCreated))
	o.Notify(events.New("b", events.TypeStageEntered, events.StageCreated))
	require.Equal(t, inFlight+2, testutil.ToFloat64(Metrics.JobsInFlight))

	done := events.New("a", events.TypeStageEntered, events.StageDone)
	done.Duration = 12
	o.Notify(done)

	failed := events.New("b", events.TypeStageEntered, events.StageFailed)
	failed.ErrorKind = "encode"
	o.Notify(failed)

	require.Equal(t, inFlight, testutil.ToFloat64(Metrics.JobsInFlight))
	require.Equal(t, successes+1, testutil.ToFloat64(Metrics.JobCount.WithLabelValues("success", "")))
	require.Equal(t, failures+1, testutil.ToFloat64(Metrics.JobCount.WithLabelValues("failure", "encode")))
}

func TestObserverRecordsRenditions(t *testing.T) {
	o := NewObserver(Metrics)
	before := testutil.ToFloat64(Metrics.RenditionOutputBytes.WithLabelValues("720p"))
	count := testutil.ToFloat64(Metrics.RenditionCount.WithLabelValues("720p"))

	e := events.New("a", events.TypeRenditionCompleted, events.StageEncoding)
	e.Rendition = "720p"
	e.Result = &transcode.RenditionResult{Name: "720p", OutputSize: 2048, EncodeDuration: 3}
	o.Notify(e)

	// events without a result are ignored
	bare := events.New("a", events.TypeRenditionCompleted, events.StageEncoding)
	bare.Rendition = "720p"
	o.Notify(bare)

	require.Equal(t, before+2048, testutil.ToFloat64(Metrics.RenditionOutputBytes.WithLabelValues("720p")))
	require.Equal(t, count+1, testutil.ToFloat64(Metrics.RenditionCount.WithLabelValues("720p")))
}

func TestObserverFoldsSingleRenditionNames(t *testing.T) {
	o := NewObserver(Metrics)
	single := testutil.ToFloat64(Metrics.RenditionCount.WithLabelValues("single"))

	for _, name := range []string{"1036p", "368p", "2000p"} {
		e := events.New("a", events.TypeRenditionCompleted, events.StageEncoding)
		e.Rendition = name
		e.Result = &transcode.RenditionResult{Name: name, OutputSize: 10}
		o.Notify(e)
	}

	require.Equal(t, single+3, testutil.ToFloat64(Metrics.RenditionCount.WithLabelValues("single")))
	for _, name := range []string{"1036p", "368p", "2000p"} {
		require.Equal(t, 0.0, testutil.ToFloat64(Metrics.RenditionCount.WithLabelValues(name)))
	}
}

func TestRenditionLabel(t *testing.T) {
	require.Equal(t, "1080p", renditionLabel("1080p"))
	require.Equal(t, "240p", renditionLabel("240p"))
	require.Equal(t, "single", renditionLabel("360p"))
	require.Equal(t, "single", renditionLabel(""))
}
