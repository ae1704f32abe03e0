package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/maauso/firstcut/internal/config"
	"github.com/maauso/firstcut/internal/cut"
)

// settingsFlags are the engine settings a command accepts. Only flags given
// on the command line override the configuration.
type settingsFlags struct {
	threshold   float64
	thresholdDB float64
	minSilence  float64
	minClip     float64
	padding     float64
	frameWindow float64
	sampleRate  int
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Float64Var(&f.threshold, "silence-threshold", cut.DefaultSilenceThreshold, "Linear RMS level below which audio counts as silence")
	flags.Float64Var(&f.thresholdDB, "silence-threshold-db", 0, "Silence threshold in dBFS, overrides --silence-threshold")
	flags.Float64Var(&f.minSilence, "min-silence", cut.DefaultMinSilence, "Shortest pause to remove, in seconds")
	flags.Float64Var(&f.minClip, "min-clip", cut.DefaultMinClip, "Shortest stretch of speech to keep, in seconds")
	flags.Float64Var(&f.padding, "padding", cut.DefaultPadding, "Speech kept on each side of a cut, in seconds")
	flags.Float64Var(&f.frameWindow, "frame-window", cut.DefaultFrameWindow, "RMS analysis window, in seconds")
	flags.IntVar(&f.sampleRate, "sample-rate", cut.DefaultSampleRate, "Analysis sample rate in Hz")
	cmd.MarkFlagsMutuallyExclusive("silence-threshold", "silence-threshold-db")
}

func (f *settingsFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("silence-threshold") {
		cfg.SilenceThreshold = f.threshold
		cfg.SilenceThresholdDB = ""
	}
	if flags.Changed("silence-threshold-db") {
		cfg.SilenceThresholdDB = strconv.FormatFloat(f.thresholdDB, 'g', -1, 64)
	}
	if flags.Changed("min-silence") {
		cfg.MinSilence = f.minSilence
	}
	if flags.Changed("min-clip") {
		cfg.MinClip = f.minClip
	}
	if flags.Changed("padding") {
		cfg.Padding = f.padding
	}
	if flags.Changed("frame-window") {
		cfg.FrameWindow = f.frameWindow
	}
	if flags.Changed("sample-rate") {
		cfg.SampleRate = f.sampleRate
	}
}
