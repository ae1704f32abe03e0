package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
)

// FFprobe implements Prober using the ffprobe CLI.
type FFprobe struct {
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFprobe creates a new FFprobe.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
func NewFFprobe(ffprobePath string) *FFprobe {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobe{ffprobePath: ffprobePath}
}

// Probe runs ffprobe against path and decodes its JSON report.
func (p *FFprobe) Probe(ctx context.Context, path string) (Info, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Info{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Info{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var info Info
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return info, nil
}

// CachedProber probes each path at most once. Failures are cached too.
type CachedProber struct {
	next Prober

	mu      sync.Mutex
	entries map[string]probeResult
}

type probeResult struct {
	info Info
	err  error
}

// NewCachedProber wraps next with a per-path cache.
func NewCachedProber(next Prober) *CachedProber {
	return &CachedProber{next: next, entries: make(map[string]probeResult)}
}

// Probe implements Prober.
func (c *CachedProber) Probe(ctx context.Context, path string) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.entries[path]; ok {
		return r.info, r.err
	}
	info, err := c.next.Probe(ctx, path)
	if ctx.Err() == nil {
		c.entries[path] = probeResult{info: info, err: err}
	}
	return info, err
}

var (
	_ Prober = (*FFprobe)(nil)
	_ Prober = (*CachedProber)(nil)
)
