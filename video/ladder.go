package video

import "fmt"

type ladderRung struct {
	minHeight int64
	ladder    []RenditionSpec
}

// Checked top down, first match wins. Heights are inclusive lower bounds.
var ladderRungs = []ladderRung{
	{
		minHeight: 2160,
		ladder: []RenditionSpec{
			{Name: "1080p", Bitrate: 4_000_000},
			{Name: "480p", Bitrate: 1_500_000},
			{Name: "240p", Bitrate: 400_000},
		},
	},
	{
		minHeight: 1080,
		ladder: []RenditionSpec{
			{Name: "720p", Bitrate: 2_500_000},
			{Name: "480p", Bitrate: 1_500_000},
			{Name: "240p", Bitrate: 400_000},
		},
	},
	{
		minHeight: 720,
		ladder: []RenditionSpec{
			{Name: "480p", Bitrate: 1_500_000},
			{Name: "240p", Bitrate: 400_000},
		},
	},
	{
		minHeight: 480,
		ladder: []RenditionSpec{
			{Name: "240p", Bitrate: 400_000},
		},
	},
}

// SelectLadder returns the renditions to encode for a source of the given height, highest
// bitrate first. Sources below 480 lines get an empty ladder. The returned slice is
// owned by the caller.
func SelectLadder(height int64) []RenditionSpec {
	for _, rung := range ladderRungs {
		if height >= rung.minHeight {
			out := make([]RenditionSpec, len(rung.ladder))
			copy(out, rung.ladder)
			return out
		}
	}
	return []RenditionSpec{}
}

// SingleRendition is the one-output ladder used by the single strategy: the source
// height at a fixed bitrate, regardless of how small the source is.
func SingleRendition(meta SourceMetadata, bitrate int64) []RenditionSpec {
	return []RenditionSpec{
		{Name: fmt.Sprintf("%dp", meta.Height), Bitrate: bitrate},
	}
}

// IsLadderRendition reports whether name is one of the fixed ladder outputs
func IsLadderRendition(name string) bool {
	for _, rung := range ladderRungs {
		for _, spec := range rung.ladder {
			if spec.Name == name {
				return true
			}
		}
	}
	return false
}
