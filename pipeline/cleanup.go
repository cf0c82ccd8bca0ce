package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Legionxoxo/ffmpeg-video/log"
	"github.com/Legionxoxo/ffmpeg-video/video"
)

// deleteSource removes the uploaded input once the job no longer needs it. A failed delete
// leaves a stray upload behind but the HLS package is complete, so the job still succeeds.
func (c *Coordinator) deleteSource(ctx context.Context, job *ConversionJob) {
	if !c.opts.DeleteSource {
		log.LogCtx(ctx, "keeping source file", "input", job.InputPath)
		return
	}
	if err := os.Remove(job.InputPath); err != nil && !os.IsNotExist(err) {
		log.LogError(job.JobID, "failed to delete source file", err, "input", job.InputPath)
		return
	}
	log.LogCtx(ctx, "deleted source file", "input", job.InputPath)
}

func (c *Coordinator) cleanupFailedOutput(ctx context.Context, job *ConversionJob, ladder []video.RenditionSpec) {
	if !c.opts.CleanupOnFailure {
		log.LogCtx(ctx, "WARNING: leaving partial renditions on disk after failure", "output_dir", job.OutputDir)
		return
	}
	for _, spec := range ladder {
		dir := filepath.Join(job.OutputDir, spec.Name)
		if err := os.RemoveAll(dir); err != nil {
			log.LogError(job.JobID, "failed to remove rendition directory", err, "dir", dir)
		}
	}
	log.LogCtx(ctx, "removed partial renditions", "output_dir", job.OutputDir, "renditions", len(ladder))
}

// CleanStaleManifests walks outputRoot and removes temporary manifest files older than maxAge.
// They are only left behind when the process died between writing a manifest and renaming it.
func CleanStaleManifests(outputRoot string, maxAge time.Duration) (int, error) {
	removed := 0
	cutoff := time.Now().Add(-maxAge)
	err := filepath.Walk(outputRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == outputRoot {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() || !strings.Contains(info.Name(), ".m3u8.tmp-") {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.LogNoRequestID("failed to remove stale manifest", "path", path, "err", err)
			return nil
		}
		removed++
		return nil
	})
	return removed, err
}
