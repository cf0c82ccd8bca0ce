package subprocess

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/Legionxoxo/ffmpeg-video/log"
)

// Number of stderr lines kept for error reporting
const tailLines = 20

type tail struct {
	mu    sync.Mutex
	lines []string
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > tailLines {
		t.lines = t.lines[len(t.lines)-tailLines:]
	}
}

func (t *tail) get() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.lines...)
}

func streamOutput(ctx context.Context, src io.Reader, name, stream string, keep *tail) {
	s := bufio.NewScanner(src)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		line := s.Text()
		if line == "" {
			continue
		}
		if keep != nil {
			keep.add(line)
		}
		log.LogCtx(ctx, "subprocess output", "cmd", name, "stream", stream, "line", line)
	}
	if err := s.Err(); err != nil {
		log.LogCtx(ctx, "streamOutput scan error", "cmd", name, "stream", stream, "err", err)
	}
}

// LogOutputs starts goroutines that copy cmd's stdout & stderr into the job log, keeping
// the last stderr lines in keep. The returned func blocks until both streams are drained
// and must be called before cmd.Wait.
func LogOutputs(ctx context.Context, cmd *exec.Cmd, keep *tail) (func(), error) {
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %s", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %s", err)
	}
	name := filepath.Base(cmd.Path)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamOutput(ctx, stderrPipe, name, "stderr", keep)
	}()
	go func() {
		defer wg.Done()
		streamOutput(ctx, stdoutPipe, name, "stdout", nil)
	}()
	return wg.Wait, nil
}
