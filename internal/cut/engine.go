package cut

import (
	"context"
	"log/slog"
	"time"

	"github.com/maauso/firstcut/internal/audio"
	"github.com/maauso/firstcut/internal/timeline"
)

// Stage names a step of a run, reported to progress callbacks.
type Stage string

const (
	StageSampling  Stage = "sampling"
	StageDetecting Stage = "detecting"
	StagePlanning  Stage = "planning"
	StageRewriting Stage = "rewriting"
)

// ProgressFunc is called when a run enters a stage.
type ProgressFunc func(Stage)

// Analysis is what detection found on the primary audio track.
type Analysis struct {
	// Silences are the detected pauses in ticks.
	Silences []timeline.Interval
	// Plan is the cut plan derived from them.
	Plan timeline.CutPlan
}

// Result is a completed run.
type Result struct {
	Analysis
	// Sequence is the rewritten timeline.
	Sequence *timeline.Sequence
	// Removed is the number of ticks cut from the input.
	Removed int64
}

// Engine runs sampler, analyzer, detector, planner and rewriter in order.
type Engine struct {
	decoder audio.Decoder
	logger  *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine decoding media through decoder.
func NewEngine(decoder audio.Decoder, opts ...EngineOption) *Engine {
	e := &Engine{decoder: decoder, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze detects silences on seq's primary audio track and plans the cut
// without touching the timeline.
func (e *Engine) Analyze(ctx context.Context, seq *timeline.Sequence, settings Settings, progress ProgressFunc) (Analysis, error) {
	planner, err := NewPlanner(settings)
	if err != nil {
		return Analysis{}, err
	}
	report := func(s Stage) {
		e.logger.Debug("stage", slog.String("stage", string(s)), slog.String("sequence", seq.Name))
		if progress != nil {
			progress(s)
		}
	}

	report(StageSampling)
	started := time.Now()
	sig, err := audio.NewSampler(e.decoder, settings.SampleRate, e.logger).Sample(ctx, seq)
	if err != nil {
		return Analysis{}, err
	}
	e.logger.Info("primary audio decoded",
		slog.Int64("samples", sig.Len()),
		slog.Duration("elapsed", time.Since(started)),
	)

	report(StageDetecting)
	windows := audio.NewAnalyzer(settings.FrameWindow, settings.SampleRate).Windows(sig)
	silences := audio.Detect(windows, settings.SilenceThreshold, settings.samples(settings.MinSilence))
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}

	report(StagePlanning)
	plan, err := planner.Plan(silences, seq)
	if err != nil {
		return Analysis{}, err
	}

	a := Analysis{Plan: plan, Silences: make([]timeline.Interval, 0, len(silences))}
	for _, s := range silences {
		a.Silences = append(a.Silences, timeline.Interval{
			Start: seq.Timebase.SamplesToTicks(s.Start, settings.SampleRate),
			End:   min(seq.Timebase.SamplesToTicks(s.End, settings.SampleRate), seq.Duration),
		})
	}
	e.logger.Info("cut planned",
		slog.Int("silences", len(silences)),
		slog.Int("keep_intervals", len(plan.Intervals)),
		slog.Int64("removed_ticks", plan.Removed(seq.Duration)),
	)
	return a, nil
}

// Run analyzes seq and applies the resulting plan to every track.
func (e *Engine) Run(ctx context.Context, seq *timeline.Sequence, settings Settings, progress ProgressFunc) (*Result, error) {
	a, err := e.Analyze(ctx, seq, settings, progress)
	if err != nil {
		return nil, err
	}

	if progress != nil {
		progress(StageRewriting)
	}
	out, err := timeline.Rewrite(seq, a.Plan)
	if err != nil {
		return nil, err
	}
	return &Result{Analysis: a, Sequence: out, Removed: a.Plan.Removed(seq.Duration)}, nil
}
