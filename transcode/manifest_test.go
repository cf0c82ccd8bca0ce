package transcode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Legionxoxo/ffmpeg-video/video"
	"github.com/grafov/m3u8"
	"github.com/stretchr/testify/require"
)

const validMasterManifest = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1920x1080
720p/index.m3u8
`

const validMediaManifest = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD
#EXTINF:10.000000,
segment000.ts
#EXTINF:4.200000,
segment001.ts
#EXT-X-ENDLIST
`

const liveMediaManifest = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:10.000000,
segment000.ts
`

var source1080p = video.SourceMetadata{
	Width:     1920,
	Height:    1080,
	Duration:  60,
	SizeBytes: 50_000_000,
	FPS:       29.97,
}

func decodeMaster(t *testing.T, text string) *m3u8.MasterPlaylist {
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(text), true)
	require.NoError(t, err)
	require.Equal(t, m3u8.MASTER, listType)
	master, ok := playlist.(*m3u8.MasterPlaylist)
	require.True(t, ok)
	return master
}

func TestBuildMasterManifestFollowsLadder(t *testing.T) {
	ladder := video.SelectLadder(source1080p.Height)
	manifest := BuildMasterManifest(ladder, source1080p)

	require.True(t, strings.HasPrefix(manifest, "#EXTM3U\n#EXT-X-VERSION:3\n"), manifest)
	require.Equal(t, len(ladder), strings.Count(manifest, "#EXT-X-STREAM-INF"))
	require.Equal(t, len(ladder), strings.Count(manifest, "PROGRAM-ID=0,"))

	master := decodeMaster(t, manifest)
	require.Len(t, master.Variants, 3)
	for i, variant := range master.Variants {
		require.Equal(t, ladder[i].Name+"/index.m3u8", variant.URI)
		require.Equal(t, uint32(ladder[i].Bitrate), variant.Bandwidth)
		require.Equal(t, "1920x1080", variant.Resolution)
	}
	require.Contains(t, manifest, "BANDWIDTH=2500000")
	require.Contains(t, manifest, "BANDWIDTH=1500000")
	require.Contains(t, manifest, "BANDWIDTH=400000")
}

func TestBuildMasterManifestIsDeterministic(t *testing.T) {
	ladder := video.SelectLadder(2160)
	meta := video.SourceMetadata{Width: 3840, Height: 2160}
	require.Equal(t, BuildMasterManifest(ladder, meta), BuildMasterManifest(ladder, meta))
	require.Equal(t, BuildMasterManifest(ladder, meta), BuildMasterManifest(video.SelectLadder(2160), meta))
}

func TestBuildMasterManifestEmptyLadder(t *testing.T) {
	manifest := BuildMasterManifest(nil, source1080p)
	require.NotContains(t, manifest, "#EXT-X-STREAM-INF")
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	target, err := WriteManifest(dir, "master.m3u8", validMasterManifest)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "master.m3u8"), target)

	contents, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, validMasterManifest, string(contents))

	info, err := os.Stat(target)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0644), info.Mode().Perm())

	// overwriting leaves no temporary files behind
	_, err = WriteManifest(dir, "master.m3u8", "#EXTM3U\n")
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteManifestMissingDir(t *testing.T) {
	_, err := WriteManifest(filepath.Join(t.TempDir(), "nope"), "master.m3u8", validMasterManifest)
	require.ErrorContains(t, err, "error creating temporary manifest")
}

func writeFile(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "index.m3u8")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestReadRenditionManifest(t *testing.T) {
	playlist, err := ReadRenditionManifest(writeFile(t, validMediaManifest))
	require.NoError(t, err)
	require.Equal(t, 2, ManifestSegmentCount(playlist))
	require.Equal(t, "segment000.ts", playlist.Segments[0].URI)
}

func TestReadRenditionManifestFailures(t *testing.T) {
	_, err := ReadRenditionManifest(filepath.Join(t.TempDir(), "index.m3u8"))
	require.ErrorContains(t, err, "error opening manifest")

	_, err = ReadRenditionManifest(writeFile(t, "This isn't a manifest!"))
	require.ErrorContains(t, err, "error decoding manifest")

	_, err = ReadRenditionManifest(writeFile(t, validMasterManifest))
	require.ErrorContains(t, err, "must be Media playlists")

	_, err = ReadRenditionManifest(writeFile(t, liveMediaManifest))
	require.ErrorContains(t, err, "not a VOD playlist")
}
