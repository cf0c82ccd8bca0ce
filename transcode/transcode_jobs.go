package transcode

import (
	"context"
	"sync"

	"github.com/Legionxoxo/ffmpeg-video/video"
	"golang.org/x/sync/errgroup"
)

// EncodeJob is everything needed to encode a whole ladder from one source
type EncodeJob struct {
	InputPath string
	OutputDir string
	Ladder    []video.RenditionSpec
	Meta      video.SourceMetadata
}

// ParallelEncoding encodes the renditions of a ladder with a bounded number of encoder
// processes in flight. With a limit of 1 renditions are encoded strictly in ladder order.
type ParallelEncoding struct {
	encoder  RenditionEncoder
	parallel int

	// Called as each rendition starts and finishes, possibly from several goroutines
	OnStart    func(index int, spec video.RenditionSpec)
	OnComplete func(index int, result RenditionResult)

	m                   sync.Mutex
	totalRenditions     int
	completedRenditions int
}

func NewParallelEncoding(encoder RenditionEncoder, parallel int) *ParallelEncoding {
	if parallel < 1 {
		parallel = 1
	}
	return &ParallelEncoding{
		encoder:  encoder,
		parallel: parallel,
	}
}

// Run blocks until every rendition is encoded or the first one fails. On failure the remaining
// renditions are cancelled and the first error is returned. Results are indexed like job.Ladder,
// whatever order the encodes finish in.
func (p *ParallelEncoding) Run(ctx context.Context, job EncodeJob) ([]RenditionResult, error) {
	p.m.Lock()
	p.totalRenditions = len(job.Ladder)
	p.completedRenditions = 0
	p.m.Unlock()

	results := make([]RenditionResult, len(job.Ladder))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(p.parallel)

	for i, spec := range job.Ladder {
		i, spec := i, spec
		group.Go(func() error {
			// a sibling already failed, or the job was cancelled while we were queued
			if err := gctx.Err(); err != nil {
				return err
			}
			if p.OnStart != nil {
				p.OnStart(i, spec)
			}
			result, err := p.encoder.Encode(gctx, job.InputPath, job.OutputDir, spec, job.Meta)
			if err != nil {
				return err
			}
			results[i] = result
			p.renditionCompleted()
			if p.OnComplete != nil {
				p.OnComplete(i, result)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *ParallelEncoding) renditionCompleted() {
	p.m.Lock()
	defer p.m.Unlock()
	p.completedRenditions++
}

func (p *ParallelEncoding) GetTotalCount() int {
	p.m.Lock()
	defer p.m.Unlock()
	return p.totalRenditions
}

func (p *ParallelEncoding) GetCompletedCount() int {
	p.m.Lock()
	defer p.m.Unlock()
	return p.completedRenditions
}
