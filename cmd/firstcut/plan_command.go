package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/firstcut/internal/cut"
	"github.com/maauso/firstcut/internal/timeline"
	"github.com/maauso/firstcut/internal/xmeml"
)

type intervalView struct {
	Start        int64   `json:"start"`
	End          int64   `json:"end"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// planReport is the machine-readable result of the plan command.
type planReport struct {
	Sequence string         `json:"sequence"`
	Timebase string         `json:"timebase"`
	Duration int64          `json:"duration"`
	Silences []intervalView `json:"silences"`
	Keep     []intervalView `json:"keep"`
	Removed  int64          `json:"removed"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var settings settingsFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan <input.xml>",
		Short: "Show the cut plan for a timeline without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, _, err := ctx.dependencies(cmd, &settings)
			if err != nil {
				return err
			}

			doc, err := xmeml.ReadFile(args[0])
			if err != nil {
				return err
			}
			seq := doc.Sequence()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			analysis, err := deps.Engine.Analyze(runCtx, seq, deps.Settings, nil)
			if err != nil {
				return err
			}

			report := newPlanReport(seq, analysis)
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPlan(report, seq.Timebase, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}

	settings.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the plan as JSON")

	return cmd
}

func newPlanReport(seq *timeline.Sequence, a cut.Analysis) planReport {
	view := func(ivs []timeline.Interval) []intervalView {
		out := make([]intervalView, 0, len(ivs))
		for _, iv := range ivs {
			out = append(out, intervalView{
				Start:        iv.Start,
				End:          iv.End,
				StartSeconds: seq.Timebase.Seconds(iv.Start),
				EndSeconds:   seq.Timebase.Seconds(iv.End),
			})
		}
		return out
	}
	return planReport{
		Sequence: seq.Name,
		Timebase: seq.Timebase.String(),
		Duration: seq.Duration,
		Silences: view(a.Silences),
		Keep:     view(a.Plan.Intervals),
		Removed:  a.Plan.Removed(seq.Duration),
	}
}

func renderPlan(r planReport, tb timeline.Timebase, colorize bool) string {
	rows := make([][]string, 0, len(r.Keep))
	var kept int64
	for i, iv := range r.Keep {
		kept += iv.End - iv.Start
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			formatSeconds(iv.StartSeconds),
			formatSeconds(iv.EndSeconds),
			fmt.Sprintf("%d", iv.End-iv.Start),
			formatSeconds(tb.Seconds(iv.End - iv.Start)),
		})
	}

	title := fmt.Sprintf("%s, %s, %d silences", r.Sequence, r.Timebase, len(r.Silences))
	if r.Sequence == "" {
		title = fmt.Sprintf("%s, %d silences", r.Timebase, len(r.Silences))
	}
	return renderTable(tableSpec{
		title:   title,
		headers: []string{"#", "Start", "End", "Ticks", "Length"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
		footer: []string{
			"", "", "kept",
			fmt.Sprintf("%d", kept),
			fmt.Sprintf("-%s", formatSeconds(tb.Seconds(r.Removed))),
		},
		colorize: colorize,
	})
}
