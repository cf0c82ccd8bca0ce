package video

import (
	"fmt"
	"time"
)

const (
	TrackTypeVideo = "video"
	TrackTypeAudio = "audio"
	// AudioCodecNone marks a source without an audio stream
	AudioCodecNone = "none"
)

// SourceMetadata describes the uploaded file. It is produced once per job and never mutated.
type SourceMetadata struct {
	Width      int64   `json:"width"`
	Height     int64   `json:"height"`
	Bitrate    int64   `json:"bitrate"`
	Duration   float64 `json:"duration"`
	SizeBytes  int64   `json:"size"`
	Codec      string  `json:"codec"`
	FPS        float64 `json:"fps"`
	AudioCodec string  `json:"audio_codec"`
	Format     string  `json:"format,omitempty"`
}

// Resolution is the WIDTHxHEIGHT form used by HLS RESOLUTION attributes
func (m SourceMetadata) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

func (m SourceMetadata) HasAudio() bool {
	return m.AudioCodec != "" && m.AudioCodec != AudioCodecNone
}

func (m SourceMetadata) DurationTime() time.Duration {
	return time.Duration(m.Duration * float64(time.Second))
}

// RenditionSpec is a single rung of the output ladder. Bitrate is in bits/sec.
type RenditionSpec struct {
	Name    string `json:"name"`
	Bitrate int64  `json:"bitrate"`
}

// BitrateKbps renders the bitrate the way ffmpeg's -b:v expects it
func (r RenditionSpec) BitrateKbps() string {
	return fmt.Sprintf("%dk", r.Bitrate/1000)
}
