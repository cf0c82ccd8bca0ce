package config

import "time"

var Version string

// Clock stamps events with wall-clock milliseconds. Tests swap in a FixedTimestampGenerator.
var Clock TimestampGenerator = RealTimestampGenerator{}

type TimestampGenerator interface {
	GetTimestampUTC() int64
}

type RealTimestampGenerator struct{}

func (RealTimestampGenerator) GetTimestampUTC() int64 {
	return time.Now().UnixMilli()
}

type FixedTimestampGenerator struct {
	Timestamp int64
}

func (t FixedTimestampGenerator) GetTimestampUTC() int64 {
	return t.Timestamp
}

const (
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	// Segment duration handed to ffmpeg's -hls_time
	DefaultHLSTime = 10
	// Bitrate used by the single-rendition strategy, in bits/sec
	SingleRenditionBitrate = 2_000_000
)

const (
	DefaultProbeTimeout       = 60 * time.Second
	DefaultParallelRenditions = 1
	DefaultMaxInflightJobs    = 2
)

// Public path the master manifest URL is built from, matching where the upload layer serves outputs
const DefaultPublicURLPrefix = "/upload/videos"

const MasterManifestName = "master.m3u8"
