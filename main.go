package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/api"
	"github.com/Legionxoxo/ffmpeg-video/clients"
	"github.com/Legionxoxo/ffmpeg-video/config"
	"github.com/Legionxoxo/ffmpeg-video/events"
	"github.com/Legionxoxo/ffmpeg-video/metrics"
	"github.com/Legionxoxo/ffmpeg-video/pipeline"
	"github.com/Legionxoxo/ffmpeg-video/transcode"
	"github.com/Legionxoxo/ffmpeg-video/video"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"
)

// Temporary manifests older than this were abandoned by a previous process
const staleManifestAge = time.Hour

func main() {
	err := flag.Set("logtostderr", "true")
	if err != nil {
		glog.Fatal(err)
	}
	vFlag := flag.Lookup("v")
	fs := flag.NewFlagSet("hls-api", flag.ExitOnError)
	cli := config.Cli{}

	version := fs.Bool("version", false, "print application version")

	// listen addresses
	config.AddrFlag(fs, &cli.HTTPAddress, "http-addr", "0.0.0.0:8989", "Address to bind for external-facing HTTP handling")
	fs.StringVar(&cli.InternalAddress, "http-internal-addr", "127.0.0.1:7979", "Address to bind for internal privileged HTTP endpoints. Empty to disable")
	fs.IntVar(&cli.PromPort, "prom-port", 2112, "Prometheus metrics port")

	// API parameters
	fs.StringVar(&cli.APIToken, "api-token", "", "Bearer token required by the conversion API. Empty disables auth")
	fs.StringVar(&cli.UploadDir, "upload-dir", "upload/incoming", "Directory the upload layer writes source files to")
	fs.StringVar(&cli.OutputRoot, "output-root", "upload/videos", "Directory under which each job's HLS package is written")
	config.URLVarFlag(fs, &cli.PublicURLPrefix, "public-url-prefix", config.DefaultPublicURLPrefix, "URL prefix the output root is served under, used to build master manifest URLs")
	config.URLVarFlag(fs, &cli.CallbackURL, "callback-url", "", "URL to POST job status events to")

	// encoder parameters
	fs.StringVar(&cli.FFprobePath, "ffprobe-path", "ffprobe", "Path to the ffprobe binary")
	fs.StringVar(&cli.FFmpegPath, "ffmpeg-path", "ffmpeg", "Path to the ffmpeg binary")
	fs.StringVar(&cli.VideoCodec, "video-codec", config.DefaultVideoCodec, "ffmpeg video encoder")
	fs.StringVar(&cli.AudioCodec, "audio-codec", config.DefaultAudioCodec, "ffmpeg audio encoder")
	fs.IntVar(&cli.HLSTime, "hls-time", config.DefaultHLSTime, "Target segment duration in seconds")
	fs.DurationVar(&cli.ProbeTimeout, "probe-timeout", config.DefaultProbeTimeout, "Time limit for each ffprobe invocation")
	fs.DurationVar(&cli.EncodeTimeout, "encode-timeout", 0, "Time limit for each rendition's ffmpeg invocation. Zero for no limit")

	// pipeline parameters
	fs.StringVar(&cli.Strategy, "strategy", string(pipeline.StrategyLadder), "Rendition strategy, one of: ladder, single")
	fs.IntVar(&cli.ParallelRenditions, "parallel-renditions", config.DefaultParallelRenditions, "Number of renditions of a job to encode at once")
	fs.Int64Var(&cli.MaxInflightJobs, "max-inflight-jobs", config.DefaultMaxInflightJobs, "Maximum number of concurrent conversion jobs")
	config.InvertedBoolFlag(fs, &cli.DeleteSource, "delete-source", true, "Keep the uploaded source file after a successful conversion")
	fs.BoolVar(&cli.CleanupOnFailure, "cleanup-on-failure", false, "Remove partially written renditions when a job fails")

	// one-shot mode
	fs.StringVar(&cli.Input, "input", "", "Convert this file, print the summary as JSON and exit instead of serving HTTP")
	fs.StringVar(&cli.JobID, "job-id", "", "Job ID for -input mode. Generated when empty")

	// special parameters
	verbosity := fs.String("v", "", "Log verbosity.  {4|5|6}")
	_ = fs.String("config", "", "config file (optional)")

	err = ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("HLS"),
	)
	if err != nil {
		glog.Fatalf("error parsing cli: %s", err)
	}
	if len(fs.Args()) > 0 {
		glog.Fatalf("unexpected extra arguments on command line: %v", fs.Args())
	}
	err = flag.CommandLine.Parse(nil)
	if err != nil {
		glog.Fatal(err)
	}

	if *version {
		fmt.Printf("hls-api version: %s", config.Version)
		return
	}

	if *verbosity != "" {
		err = vFlag.Value.Set(*verbosity)
		if err != nil {
			glog.Fatal(err)
		}
	}

	if err := cli.Validate(); err != nil {
		glog.Fatalf("invalid configuration: %s", err)
	}

	prober := video.NewFFprobe(cli.FFprobePath, cli.ProbeTimeout)
	encoder := transcode.NewEncoder(cli.FFmpegPath, cli.EncodeTimeout)
	encoder.VideoCodec = cli.VideoCodec
	encoder.AudioCodec = cli.AudioCodec
	encoder.HLSTime = cli.HLSTime

	observers := events.Multi{events.LogObserver{}, metrics.NewObserver(metrics.Metrics)}
	var statusClient *clients.CallbackClient
	if cli.CallbackURL != nil && cli.CallbackURL.String() != "" {
		statusClient = clients.NewCallbackClient(cli.CallbackURL.String())
		observers = append(observers, statusClient)
	} else {
		glog.Info("Callback URL was not set, status callbacks are disabled.")
	}

	coordinator, err := pipeline.NewCoordinator(prober, encoder, observers, pipeline.Options{
		Strategy:           pipeline.Strategy(cli.Strategy),
		ParallelRenditions: cli.ParallelRenditions,
		MaxInflightJobs:    cli.MaxInflightJobs,
		DeleteSource:       cli.DeleteSource,
		CleanupOnFailure:   cli.CleanupOnFailure,
		PublicURLPrefix:    cli.PublicURLPrefix,
		SingleBitrate:      config.SingleRenditionBitrate,
	})
	if err != nil {
		glog.Fatalf("Error creating conversion coordinator: %v", err)
	}

	if removed, err := pipeline.CleanStaleManifests(cli.OutputRoot, staleManifestAge); err != nil {
		glog.Warningf("Error cleaning stale manifests under %s: %v", cli.OutputRoot, err)
	} else if removed > 0 {
		glog.Infof("Removed %d stale temporary manifests under %s", removed, cli.OutputRoot)
	}

	// Initialize root context; cancelling this prompts all components to shut down cleanly
	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		return handleSignals(ctx)
	})

	if statusClient != nil {
		group.Go(func() error {
			return statusClient.Run(ctx)
		})
	}

	if cli.OneShot() {
		group.Go(func() error {
			return convertOnce(ctx, cli, coordinator)
		})
		if err := group.Wait(); err != nil && err != errOneShotDone {
			glog.Errorf("Conversion failed: %s", err)
			glog.Flush()
			os.Exit(1)
		}
		return
	}

	if err := os.MkdirAll(cli.UploadDir, 0755); err != nil {
		glog.Fatalf("Error creating upload directory: %v", err)
	}

	group.Go(func() error {
		return api.ListenAndServe(ctx, cli, coordinator)
	})

	if cli.InternalAddress != "" {
		group.Go(func() error {
			return api.ListenAndServeInternal(ctx, cli.InternalAddress, coordinator)
		})
	}

	group.Go(func() error {
		return metrics.ListenAndServe(ctx, cli.PromPort)
	})

	err = group.Wait()
	glog.Infof("Shutdown complete. Reason for shutdown: %s", err)
}

// errOneShotDone stops the run group once a one-shot conversion succeeds
var errOneShotDone = fmt.Errorf("one-shot conversion finished")

func convertOnce(ctx context.Context, cli config.Cli, coordinator *pipeline.Coordinator) error {
	jobID := cli.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	summary, err := coordinator.Convert(ctx, pipeline.ConvertRequest{
		InputPath: cli.Input,
		OutputDir: filepath.Join(cli.OutputRoot, jobID),
		JobID:     jobID,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("error writing summary: %w", err)
	}
	return errOneShotDone
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		select {
		case s := <-c:
			glog.Errorf("caught signal=%v, attempting clean shutdown", s)
			return fmt.Errorf("caught signal=%v", s)
		case <-ctx.Done():
			return nil
		}
	}
}
