package pipeline

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/cache"
	"github.com/Legionxoxo/ffmpeg-video/config"
	"github.com/Legionxoxo/ffmpeg-video/errors"
	"github.com/Legionxoxo/ffmpeg-video/events"
	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/Legionxoxo/ffmpeg-video/transcode"
	"github.com/Legionxoxo/ffmpeg-video/video"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Strategy indicates how the rendition ladder of a job is chosen.
type Strategy string

const (
	// Encode the ladder derived from the source height.
	StrategyLadder Strategy = "ladder"
	// Encode a single rendition at the source height and a fixed bitrate.
	StrategySingle Strategy = "single"
)

func (s Strategy) IsValid() bool {
	switch s {
	case StrategyLadder, StrategySingle:
		return true
	default:
		return false
	}
}

// ConvertRequest is the required payload to start a conversion job.
type ConvertRequest struct {
	InputPath string
	OutputDir string
	// Generated when empty
	JobID string
}

// Summary is the object returned by a finished conversion job.
type Summary struct {
	Success           bool                        `json:"success"`
	JobID             string                      `json:"job_id"`
	MasterManifestURL string                      `json:"master_manifest_url,omitempty"`
	Renditions        []transcode.RenditionResult `json:"renditions"`
	TotalDuration     float64                     `json:"total_duration"`
	NoRenditions      bool                        `json:"no_renditions,omitempty"`
	Source            video.SourceMetadata        `json:"source"`
}

// ConversionJob represents the state of a single conversion job. It lives in the
// coordinator's registry from acceptance until it reaches a terminal stage.
type ConversionJob struct {
	mu sync.Mutex
	ConvertRequest

	Source             video.SourceMetadata
	Ladder             []video.RenditionSpec
	Results            []transcode.RenditionResult
	MasterManifestPath string
	Err                error

	stage        events.Stage
	startedAt    time.Time
	stageStarted time.Time
}

func (j *ConversionJob) Stage() events.Stage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stage
}

type Options struct {
	Strategy           Strategy
	ParallelRenditions int
	MaxInflightJobs    int64
	DeleteSource       bool
	CleanupOnFailure   bool
	PublicURLPrefix    *url.URL
	// Bitrate of the single strategy's rendition, bits/sec
	SingleBitrate int64
}

func DefaultOptions() Options {
	prefix, _ := url.Parse(config.DefaultPublicURLPrefix)
	return Options{
		Strategy:           StrategyLadder,
		ParallelRenditions: config.DefaultParallelRenditions,
		MaxInflightJobs:    config.DefaultMaxInflightJobs,
		DeleteSource:       true,
		PublicURLPrefix:    prefix,
		SingleBitrate:      config.SingleRenditionBitrate,
	}
}

// Coordinator provides the main interface to run conversion jobs. Convert blocks until
// the job is terminal; admission is bounded so that only MaxInflightJobs encode at once.
type Coordinator struct {
	prober   video.Prober
	encoder  transcode.RenditionEncoder
	observer events.Observer
	opts     Options
	clock    clock.Clock
	slots    *semaphore.Weighted

	Jobs *cache.Cache[*ConversionJob]
}

func NewCoordinator(prober video.Prober, encoder transcode.RenditionEncoder, observer events.Observer, opts Options) (*Coordinator, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyLadder
	}
	if !opts.Strategy.IsValid() {
		return nil, fmt.Errorf("invalid strategy: %s", opts.Strategy)
	}
	if opts.ParallelRenditions < 1 {
		opts.ParallelRenditions = 1
	}
	if opts.MaxInflightJobs < 1 {
		opts.MaxInflightJobs = 1
	}
	if opts.SingleBitrate <= 0 {
		opts.SingleBitrate = config.SingleRenditionBitrate
	}
	if opts.PublicURLPrefix == nil {
		opts.PublicURLPrefix = DefaultOptions().PublicURLPrefix
	}
	if observer == nil {
		observer = events.Multi{}
	}
	return &Coordinator{
		prober:   prober,
		encoder:  encoder,
		observer: observer,
		opts:     opts,
		clock:    clock.New(),
		slots:    semaphore.NewWeighted(opts.MaxInflightJobs),
		Jobs:     cache.New[*ConversionJob](),
	}, nil
}

// HasCapacity reports whether a new job would start without queueing
func (c *Coordinator) HasCapacity() bool {
	return int64(c.Jobs.Len()) < c.opts.MaxInflightJobs
}

func (c *Coordinator) MaxInflightJobs() int64 {
	return c.opts.MaxInflightJobs
}

func (c *Coordinator) MasterManifestURL(jobID string) string {
	return c.opts.PublicURLPrefix.JoinPath(jobID, config.MasterManifestName).String()
}

// Convert runs a conversion job to completion: probe the source, pick the ladder, encode
// every rendition, write the master manifest and finally remove the source. Any failure
// aborts the job and is returned as an *errors.ConversionError. Cancelling ctx kills the
// running encoders.
func (c *Coordinator) Convert(ctx context.Context, req ConvertRequest) (*Summary, error) {
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	if req.InputPath == "" || req.OutputDir == "" {
		return nil, errors.WithJobID(errors.NewValidationError("input path and output directory are required"), req.JobID, errors.KindValidation)
	}
	// callers build OutputDir from the job id
	if strings.ContainsAny(req.JobID, `/\`) || req.JobID == "." || req.JobID == ".." {
		return nil, errors.WithJobID(errors.NewValidationError("job id %q is not a single path element", req.JobID), req.JobID, errors.KindValidation)
	}

	job := &ConversionJob{
		ConvertRequest: req,
		startedAt:      c.clock.Now(),
	}
	if !c.Jobs.StoreIfAbsent(req.JobID, job) {
		return nil, errors.WithJobID(errors.NewValidationError("job %s is already in flight", req.JobID), req.JobID, errors.KindValidation)
	}
	defer func() {
		// Automatically delete jobs after an error or result
		c.Jobs.Remove(req.JobID)
		log.Log(req.JobID, "Finished job and deleted from job cache", "stage", job.Stage())
		log.RemoveContext(req.JobID)
	}()

	ctx = log.WithLogValues(ctx, "request_id", req.JobID)
	log.AddContext(req.JobID, "input", req.InputPath, "output_dir", req.OutputDir)
	c.enter(job, events.StageCreated)

	if err := c.slots.Acquire(ctx, 1); err != nil {
		return nil, c.fail(ctx, job, err)
	}
	defer c.slots.Release(1)

	summary, err := recovered(func() (*Summary, error) {
		return c.run(ctx, job)
	})
	if err != nil {
		return nil, c.fail(ctx, job, err)
	}
	return summary, nil
}

func (c *Coordinator) run(ctx context.Context, job *ConversionJob) (*Summary, error) {
	c.enter(job, events.StageProbing)
	meta, err := c.prober.Probe(ctx, job.InputPath)
	if err != nil {
		return nil, err
	}
	job.mu.Lock()
	job.Source = meta
	job.mu.Unlock()
	c.complete(job, map[string]any{"resolution": meta.Resolution(), "duration": meta.Duration})

	c.enter(job, events.StageLadderSelected)
	ladder := c.selectLadder(meta)
	job.mu.Lock()
	job.Ladder = ladder
	job.mu.Unlock()
	c.complete(job, map[string]any{"renditions": len(ladder)})

	if len(ladder) == 0 {
		log.LogCtx(ctx, "source is below the smallest rendition, nothing to encode", "height", meta.Height)
		c.enter(job, events.StageCleanup)
		c.deleteSource(ctx, job)
		c.complete(job, nil)
		return c.done(job, &Summary{
			Success:      true,
			JobID:        job.JobID,
			Renditions:   []transcode.RenditionResult{},
			NoRenditions: true,
			Source:       meta,
		}), nil
	}

	c.enter(job, events.StageEncoding)
	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return nil, errors.NewFilesystemError(fmt.Errorf("error creating output directory: %w", err))
	}
	results, err := c.encodeLadder(ctx, job, ladder, meta)
	if err != nil {
		return nil, err
	}
	job.mu.Lock()
	job.Results = results
	job.mu.Unlock()
	c.complete(job, map[string]any{"renditions": len(results)})

	c.enter(job, events.StageManifestWritten)
	manifestPath, err := transcode.WriteManifest(job.OutputDir, config.MasterManifestName, transcode.BuildMasterManifest(ladder, meta))
	if err != nil {
		return nil, errors.NewFilesystemError(err)
	}
	job.mu.Lock()
	job.MasterManifestPath = manifestPath
	job.mu.Unlock()
	c.complete(job, nil)

	// the source is only removed once the package is complete on disk
	c.enter(job, events.StageCleanup)
	c.deleteSource(ctx, job)
	c.complete(job, nil)

	return c.done(job, &Summary{
		Success:           true,
		JobID:             job.JobID,
		MasterManifestURL: c.MasterManifestURL(job.JobID),
		Renditions:        results,
		Source:            meta,
	}), nil
}

func (c *Coordinator) selectLadder(meta video.SourceMetadata) []video.RenditionSpec {
	if c.opts.Strategy == StrategySingle {
		return video.SingleRendition(meta, c.opts.SingleBitrate)
	}
	return video.SelectLadder(meta.Height)
}

func (c *Coordinator) encodeLadder(ctx context.Context, job *ConversionJob, ladder []video.RenditionSpec, meta video.SourceMetadata) ([]transcode.RenditionResult, error) {
	jobs := transcode.NewParallelEncoding(c.encoder, c.opts.ParallelRenditions)
	jobs.OnStart = func(index int, spec video.RenditionSpec) {
		e := events.New(job.JobID, events.TypeRenditionStarted, events.StageEncoding)
		e.Rendition = spec.Name
		e.Progress = float64(jobs.GetCompletedCount()) / float64(len(ladder))
		c.observer.Notify(e)
	}
	jobs.OnComplete = func(index int, result transcode.RenditionResult) {
		e := events.New(job.JobID, events.TypeRenditionCompleted, events.StageEncoding)
		e.Rendition = result.Name
		e.Result = &result
		e.Duration = result.EncodeDuration
		e.Progress = float64(jobs.GetCompletedCount()) / float64(len(ladder))
		c.observer.Notify(e)
	}
	return jobs.Run(ctx, transcode.EncodeJob{
		InputPath: job.InputPath,
		OutputDir: job.OutputDir,
		Ladder:    ladder,
		Meta:      meta,
	})
}

func (c *Coordinator) enter(job *ConversionJob, stage events.Stage) {
	job.mu.Lock()
	job.stage = stage
	job.stageStarted = c.clock.Now()
	job.mu.Unlock()
	c.observer.Notify(events.New(job.JobID, events.TypeStageEntered, stage))
}

func (c *Coordinator) complete(job *ConversionJob, stageMetrics map[string]any) {
	job.mu.Lock()
	stage, started := job.stage, job.stageStarted
	job.mu.Unlock()
	e := events.New(job.JobID, events.TypeStageCompleted, stage)
	e.Duration = seconds(c.clock.Since(started))
	e.Progress = 1
	e.Metrics = stageMetrics
	c.observer.Notify(e)
}

func (c *Coordinator) done(job *ConversionJob, summary *Summary) *Summary {
	summary.TotalDuration = seconds(c.clock.Since(job.startedAt))
	job.mu.Lock()
	job.stage = events.StageDone
	job.mu.Unlock()

	e := events.New(job.JobID, events.TypeStageEntered, events.StageDone)
	e.Duration = summary.TotalDuration
	c.observer.Notify(e)
	return summary
}

// fail moves job to the failed stage, applying the failure cleanup policy, and returns
// the cause as a ConversionError stamped with the job id.
func (c *Coordinator) fail(ctx context.Context, job *ConversionJob, cause error) error {
	job.mu.Lock()
	failedStage, stageStarted := job.stage, job.stageStarted
	ladder := job.Ladder
	job.mu.Unlock()

	err := errors.WithJobID(cause, job.JobID, fallbackKind(failedStage))
	if ctx.Err() != nil && !errors.IsKind(err, errors.KindCancelled) {
		err = errors.WithJobID(errors.NewCancelledError(fmt.Errorf("%v: %w", cause, ctx.Err())), job.JobID, errors.KindCancelled)
	}
	kind := string(errors.KindOf(err))

	log.LogCtx(ctx, "conversion failed", "stage", failedStage, "error_kind", kind, "err", err)
	failedEvent := events.New(job.JobID, events.TypeStageFailed, failedStage)
	failedEvent.Duration = seconds(c.clock.Since(stageStarted))
	failedEvent.Error = err.Error()
	failedEvent.ErrorKind = kind
	c.observer.Notify(failedEvent)

	if failedStage == events.StageEncoding || failedStage == events.StageManifestWritten {
		c.cleanupFailedOutput(ctx, job, ladder)
	}

	job.mu.Lock()
	job.stage = events.StageFailed
	job.Err = err
	job.mu.Unlock()

	terminal := events.New(job.JobID, events.TypeStageEntered, events.StageFailed)
	terminal.Duration = seconds(c.clock.Since(job.startedAt))
	terminal.Error = failedEvent.Error
	terminal.ErrorKind = kind
	c.observer.Notify(terminal)
	return err
}

func fallbackKind(stage events.Stage) errors.Kind {
	switch stage {
	case events.StageProbing:
		return errors.KindProbe
	case events.StageEncoding:
		return errors.KindEncode
	case events.StageManifestWritten, events.StageCleanup:
		return errors.KindFilesystem
	default:
		return errors.KindValidation
	}
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

func recovered[T any](f func() (T, error)) (t T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoRequestID("panic in conversion job, recovering", "err", rec)
			err = fmt.Errorf("panic in conversion job: %v", rec)
		}
	}()
	return f()
}
