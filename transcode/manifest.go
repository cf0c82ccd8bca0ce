package transcode

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/Legionxoxo/ffmpeg-video/video"
	"github.com/grafov/m3u8"
)

const RENDITION_MANIFEST_FILENAME = "index.m3u8"

// BuildMasterManifest renders the master playlist for ladder. Variants follow ladder order, each
// pointing at <name>/index.m3u8 and advertising the source resolution with the rendition's target
// bitrate as BANDWIDTH. The output is a pure function of its inputs.
//
// The m3u8 library writes PROGRAM-ID=0 on every EXT-X-STREAM-INF line. The attribute was removed
// from HLS in protocol version 6 and players ignore it, so it is left in.
func BuildMasterManifest(ladder []video.RenditionSpec, meta video.SourceMetadata) string {
	masterPlaylist := m3u8.NewMasterPlaylist()
	for _, rendition := range ladder {
		masterPlaylist.Append(
			path.Join(rendition.Name, RENDITION_MANIFEST_FILENAME),
			&m3u8.MediaPlaylist{},
			m3u8.VariantParams{
				Bandwidth:  uint32(rendition.Bitrate),
				Resolution: meta.Resolution(),
			},
		)
	}
	return masterPlaylist.String()
}

// WriteManifest writes text to dir/name so that readers never observe a partial file
func WriteManifest(dir, name, text string) (string, error) {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("error creating temporary manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return "", fmt.Errorf("error writing manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("error syncing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("error closing manifest: %w", err)
	}
	// CreateTemp uses 0600, manifests are served to players
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("error setting manifest permissions: %w", err)
	}

	target := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("error moving manifest into place: %w", err)
	}
	return target, nil
}

// ReadRenditionManifest parses the media playlist ffmpeg wrote for a rendition and checks that
// it is a finished VOD playlist.
func ReadRenditionManifest(manifestPath string) (m3u8.MediaPlaylist, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return m3u8.MediaPlaylist{}, fmt.Errorf("error opening manifest: %w", err)
	}
	defer f.Close()

	playlist, playlistType, err := m3u8.DecodeFrom(f, true)
	if err != nil {
		return m3u8.MediaPlaylist{}, fmt.Errorf("error decoding manifest: %w", err)
	}

	if playlistType != m3u8.MEDIA {
		return m3u8.MediaPlaylist{}, fmt.Errorf("received non-Media manifest, but rendition manifests must be Media playlists")
	}

	// The check above means we should be able to cast to the correct type
	mediaPlaylist, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok || mediaPlaylist == nil {
		return m3u8.MediaPlaylist{}, fmt.Errorf("failed to parse playlist as MediaPlaylist")
	}

	if mediaPlaylist.MediaType != m3u8.VOD {
		return m3u8.MediaPlaylist{}, fmt.Errorf("rendition manifest is not a VOD playlist")
	}

	return *mediaPlaylist, nil
}

// ManifestSegmentCount counts the segments of a decoded playlist
func ManifestSegmentCount(playlist m3u8.MediaPlaylist) int {
	count := 0
	for _, segment := range playlist.Segments {
		// The segments list is a ring buffer - see https://github.com/grafov/m3u8/issues/140
		// and so we only know we've hit the end of the list when we find a nil element
		if segment == nil {
			break
		}
		count++
	}
	return count
}
