package transcode

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/config"
	"github.com/Legionxoxo/ffmpeg-video/errors"
	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/Legionxoxo/ffmpeg-video/subprocess"
	"github.com/Legionxoxo/ffmpeg-video/video"
	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/grafov/m3u8"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const SEGMENT_FILENAME_PATTERN = "segment%03d.ts"

// RenditionResult holds the statistics of one finished rendition
type RenditionResult struct {
	Name             string  `json:"name"`
	EncodeDuration   float64 `json:"encode_duration"`
	OutputSize       int64   `json:"output_size"`
	CompressionRatio float64 `json:"compression_ratio"`
	TargetBitrate    int64   `json:"target_bitrate"`
	SegmentCount     int     `json:"segment_count"`
	RealtimeFactor   float64 `json:"realtime_factor"`
}

type RenditionEncoder interface {
	Encode(ctx context.Context, inputPath, outputDir string, spec video.RenditionSpec, meta video.SourceMetadata) (RenditionResult, error)
}

type Encoder struct {
	FFmpegPath string
	VideoCodec string
	AudioCodec string
	HLSTime    int
	// Per-rendition limit, zero means no limit beyond the caller's context
	Timeout time.Duration

	Clock  clock.Clock
	Runner subprocess.Runner
}

func NewEncoder(ffmpegPath string, timeout time.Duration) *Encoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Encoder{
		FFmpegPath: ffmpegPath,
		VideoCodec: config.DefaultVideoCodec,
		AudioCodec: config.DefaultAudioCodec,
		HLSTime:    config.DefaultHLSTime,
		Timeout:    timeout,
		Clock:      clock.New(),
		Runner:     subprocess.Run,
	}
}

// Args returns the ffmpeg arguments that produce spec's HLS output in renditionDir
func (e *Encoder) Args(inputPath, renditionDir string, spec video.RenditionSpec) []string {
	rate := spec.BitrateKbps()
	return ffmpeg.Input(inputPath).
		Output(filepath.Join(renditionDir, RENDITION_MANIFEST_FILENAME), ffmpeg.KwArgs{
			"c:v":                  e.VideoCodec,
			"c:a":                  e.AudioCodec,
			"b:v":                  rate,
			"maxrate":              rate,
			"bufsize":              rate,
			"f":                    "hls",
			"hls_time":             e.HLSTime,
			"hls_playlist_type":    "vod",
			"hls_segment_filename": filepath.Join(renditionDir, SEGMENT_FILENAME_PATTERN),
		}).
		GlobalArgs("-hide_banner", "-loglevel", "error").
		OverWriteOutput().
		GetArgs()
}

// Encode produces outputDir/<spec.Name>/index.m3u8 and its segments, then measures them
func (e *Encoder) Encode(ctx context.Context, inputPath, outputDir string, spec video.RenditionSpec, meta video.SourceMetadata) (RenditionResult, error) {
	renditionDir := filepath.Join(outputDir, spec.Name)
	if err := os.MkdirAll(renditionDir, 0755); err != nil {
		return RenditionResult{}, errors.NewFilesystemError(fmt.Errorf("error creating rendition directory %s: %w", renditionDir, err))
	}

	encodeCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		encodeCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := e.Args(inputPath, renditionDir, spec)
	log.LogCtx(ctx, "encoding rendition", "rendition", spec.Name, "bitrate", spec.BitrateKbps(), "args", strings.Join(args, " "))

	start := e.Clock.Now()
	err := e.Runner(encodeCtx, exec.Command(e.FFmpegPath, args...))
	elapsed := e.Clock.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return RenditionResult{}, errors.NewCancelledError(fmt.Errorf("rendition %s: %w", spec.Name, ctx.Err()))
		}
		if encodeCtx.Err() != nil {
			return RenditionResult{}, errors.NewEncodeError(spec.Name, fmt.Errorf("timed out after %s: %w", e.Timeout, err))
		}
		return RenditionResult{}, errors.NewEncodeError(spec.Name, err)
	}

	playlist, err := ReadRenditionManifest(filepath.Join(renditionDir, RENDITION_MANIFEST_FILENAME))
	if err != nil {
		return RenditionResult{}, errors.NewEncodeError(spec.Name, err)
	}
	if ManifestSegmentCount(playlist) == 0 {
		return RenditionResult{}, errors.NewEncodeError(spec.Name, fmt.Errorf("rendition manifest lists no segments"))
	}

	outputSize, segmentCount, err := segmentStats(renditionDir, playlist)
	if err != nil {
		return RenditionResult{}, errors.NewEncodeError(spec.Name, err)
	}

	result := RenditionResult{
		Name:             spec.Name,
		EncodeDuration:   round2(elapsed.Seconds()),
		OutputSize:       outputSize,
		CompressionRatio: CompressionRatio(outputSize, meta.SizeBytes),
		TargetBitrate:    spec.Bitrate,
		SegmentCount:     segmentCount,
		RealtimeFactor:   realtimeFactor(meta.Duration, elapsed),
	}
	log.LogCtx(ctx, "rendition encoded",
		"rendition", result.Name,
		"encode_time", elapsed.Round(time.Millisecond).String(),
		"output_size", humanize.Bytes(uint64(result.OutputSize)),
		"compression_ratio", fmt.Sprintf("%.2f%%", result.CompressionRatio),
		"segments", result.SegmentCount,
		"realtime_factor", fmt.Sprintf("%.2fx", result.RealtimeFactor),
	)
	return result, nil
}

// Only segments the playlist lists are measured, leftovers from an earlier run in the
// same directory are not part of this rendition
func segmentStats(renditionDir string, playlist m3u8.MediaPlaylist) (int64, int, error) {
	var total int64
	count := 0
	for _, segment := range playlist.Segments {
		if segment == nil {
			break
		}
		segmentPath := filepath.FromSlash(segment.URI)
		if !filepath.IsAbs(segmentPath) {
			segmentPath = filepath.Join(renditionDir, segmentPath)
		}
		info, err := os.Stat(segmentPath)
		if err != nil {
			return 0, 0, fmt.Errorf("error reading segment %s: %w", segment.URI, err)
		}
		total += info.Size()
		count++
	}
	return total, count, nil
}

// CompressionRatio is the output size as a percentage of the input size, to 2 decimals
func CompressionRatio(outputSize, inputSize int64) float64 {
	if inputSize <= 0 {
		return 0
	}
	return round2(float64(outputSize) / float64(inputSize) * 100)
}

func realtimeFactor(sourceSeconds float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return round2(sourceSeconds / elapsed.Seconds())
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
