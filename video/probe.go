package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	xerrors "github.com/Legionxoxo/ffmpeg-video/errors"
	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"gopkg.in/vansante/go-ffprobe.v2"
)

type Prober interface {
	Probe(ctx context.Context, inputPath string) (SourceMetadata, error)
}

type probeFunc func(ctx context.Context, fileURL string, extraFFProbeOptions ...string) (*ffprobe.ProbeData, error)

type FFprobe struct {
	// Per-invocation timeout, each retry gets a fresh one
	Timeout time.Duration
	Retries uint64
	Clock   clock.Clock

	probe   probeFunc
	backOff func() backoff.BackOff
}

func NewFFprobe(binPath string, timeout time.Duration) FFprobe {
	if binPath != "" {
		ffprobe.SetFFProbeBinPath(binPath)
	}
	return FFprobe{
		Timeout: timeout,
		Retries: 3,
		Clock:   clock.New(),
		probe:   ffprobe.ProbeURL,
		backOff: probeBackOff,
	}
}

func probeBackOff() backoff.BackOff {
	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 500 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = 0 // don't impose a timeout as part of the retries
	return backOff
}

// Probe inspects inputPath with ffprobe and returns its metadata. Failures to run ffprobe are
// retried, failures to make sense of its output are not.
func (p FFprobe) Probe(ctx context.Context, inputPath string) (SourceMetadata, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return SourceMetadata{}, xerrors.NewProbeError(fmt.Errorf("input not readable: %w", err))
	}

	start := p.Clock.Now()
	data, err := p.runProbe(ctx, inputPath)
	if err != nil {
		if ctx.Err() != nil {
			return SourceMetadata{}, xerrors.NewCancelledError(ctx.Err())
		}
		return SourceMetadata{}, xerrors.NewProbeError(err)
	}

	meta, err := parseProbeOutput(data)
	if err != nil {
		return SourceMetadata{}, err
	}

	log.LogCtx(ctx, "probed source",
		"resolution", meta.Resolution(),
		"codec", meta.Codec,
		"fps", meta.FPS,
		"audio_codec", meta.AudioCodec,
		"size", humanize.Bytes(uint64(meta.SizeBytes)),
		"bitrate", humanize.SI(float64(meta.Bitrate), "bps"),
		"duration", meta.DurationTime().Round(time.Millisecond).String(),
		"probe_time", p.Clock.Since(start).Round(time.Millisecond).String(),
	)
	return meta, nil
}

func (p FFprobe) runProbe(ctx context.Context, inputPath string) (*ffprobe.ProbeData, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	var data *ffprobe.ProbeData
	operation := func() error {
		probeCtx, probeCancel := context.WithTimeout(ctx, timeout)
		defer probeCancel()
		var err error
		data, err = p.probe(probeCtx, inputPath, "-loglevel", "error")
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if err == nil && data == nil {
			return xerrors.Unretriable(fmt.Errorf("ffprobe returned no data"))
		}
		if err != nil && malformedOutput(err) {
			return xerrors.Unretriable(err)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(p.backOff(), p.Retries), ctx))
	if err != nil {
		return nil, fmt.Errorf("error probing: %w", err)
	}
	return data, nil
}

// ffprobe ran but printed something that isn't usable metadata, running it again won't change that
func malformedOutput(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || strings.Contains(err.Error(), "no format data found")
}

func parseProbeOutput(probeData *ffprobe.ProbeData) (SourceMetadata, error) {
	videoStream := probeData.FirstVideoStream()
	if videoStream == nil {
		return SourceMetadata{}, xerrors.NewProbeError(fmt.Errorf("error checking for video: no video stream found"))
	}
	// We rely on this being present to get required information about the input video, so error out if it isn't
	if probeData.Format == nil {
		return SourceMetadata{}, xerrors.NewProbeError(fmt.Errorf("error parsing input video: format information missing"))
	}

	if videoStream.Width <= 0 || videoStream.Height <= 0 {
		return SourceMetadata{}, xerrors.NewValidationError("invalid resolution %dx%d", videoStream.Width, videoStream.Height)
	}

	bitrate, err := parseBitrate(probeData.Format.BitRate, videoStream.BitRate)
	if err != nil {
		return SourceMetadata{}, err
	}

	size, err := strconv.ParseInt(probeData.Format.Size, 10, 64)
	if err != nil {
		return SourceMetadata{}, xerrors.NewValidationError("error parsing filesize from probed data: %w", err)
	}
	if size <= 0 {
		return SourceMetadata{}, xerrors.NewValidationError("invalid filesize %d", size)
	}

	fps, err := ParseFrameRate(videoStream.RFrameRate)
	if err != nil {
		return SourceMetadata{}, xerrors.NewValidationError("error parsing frame rate %q: %w", videoStream.RFrameRate, err)
	}

	duration := probeData.Format.DurationSeconds
	if duration <= 0 {
		if d, err := strconv.ParseFloat(videoStream.Duration, 64); err == nil {
			duration = d
		}
	}
	if duration <= 0 {
		return SourceMetadata{}, xerrors.NewValidationError("invalid duration %v", duration)
	}

	audioCodec := AudioCodecNone
	if audioStream := probeData.FirstAudioStream(); audioStream != nil && audioStream.CodecName != "" {
		audioCodec = audioStream.CodecName
	}

	return SourceMetadata{
		Width:      int64(videoStream.Width),
		Height:     int64(videoStream.Height),
		Bitrate:    bitrate,
		Duration:   duration,
		SizeBytes:  size,
		Codec:      videoStream.CodecName,
		FPS:        fps,
		AudioCodec: audioCodec,
		Format:     probeData.Format.FormatName,
	}, nil
}

// Prefers the container bitrate and falls back to the video stream's. Missing everywhere is 0.
func parseBitrate(values ...string) (int64, error) {
	for _, v := range values {
		if v == "" || v == "N/A" {
			continue
		}
		bitrate, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, xerrors.NewValidationError("error parsing bitrate from probed data: %w", err)
		}
		return bitrate, nil
	}
	return 0, nil
}

// ParseFrameRate turns ffprobe's r_frame_rate ("30000/1001", "25/1" or a bare decimal) into
// frames per second rounded to two decimals.
func ParseFrameRate(framerate string) (float64, error) {
	if framerate == "" {
		return 0, fmt.Errorf("empty frame rate")
	}
	parts := strings.SplitN(framerate, "/", 2)
	if len(parts) < 2 {
		fps, err := strconv.ParseFloat(framerate, 64)
		if err != nil {
			return 0, fmt.Errorf("error parsing framerate: %w", err)
		}
		return roundTo2(fps), nil
	}
	num, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing framerate numerator: %w", err)
	}
	den, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing framerate denominator: %w", err)
	}
	if den == 0 {
		return 0, fmt.Errorf("invalid framerate denominator 0")
	}
	return roundTo2(float64(num) / float64(den)), nil
}

func roundTo2(f float64) float64 {
	return math.Round(f*100) / 100
}
