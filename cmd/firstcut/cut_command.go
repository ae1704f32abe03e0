package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/firstcut/internal/job"
	"github.com/maauso/firstcut/internal/storage"
)

// cutReport is the machine-readable result of the cut command.
type cutReport struct {
	JobID            string  `json:"job_id"`
	Input            string  `json:"input"`
	Output           string  `json:"output"`
	OutputURL        string  `json:"output_url,omitempty"`
	Timebase         string  `json:"timebase"`
	Silences         int     `json:"silences"`
	KeptIntervals    int     `json:"kept_intervals"`
	OriginalDuration int64   `json:"original_duration"`
	CutDuration      int64   `json:"cut_duration"`
	Removed          int64   `json:"removed"`
	RemovedSeconds   float64 `json:"removed_seconds"`
}

type errorReport struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

func newCutCommand(ctx *commandContext) *cobra.Command {
	var settings settingsFlags
	var outputFlag string
	var upload bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "cut <input.xml> [output.xml]",
		Short: "Remove silences from a timeline and write the edited copy",
		Long: "Remove silences from a timeline and write the edited copy.\n\n" +
			"The output defaults to <input>_cut.xml next to the input file.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			output, err := resolveOutput(input, args, outputFlag)
			if err != nil {
				return err
			}

			deps, _, err := ctx.dependencies(cmd, &settings)
			if err != nil {
				return err
			}
			if upload && !deps.S3Enabled {
				return fmt.Errorf("%w: set S3_BUCKET and S3_REGION to use --upload", storage.ErrS3NotConfigured)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out, err := deps.CutService.Process(runCtx, job.CutInput{
				TimelinePath: input,
				OutputPath:   output,
				Settings:     deps.Settings,
				PushToS3:     upload,
			})
			if err != nil {
				if jsonOutput {
					if werr := writeJSON(cmd, errorReport{Error: err.Error(), ErrorCode: job.ErrorCode(err)}); werr != nil {
						return errors.Join(err, werr)
					}
				}
				return err
			}

			report := cutReport{
				JobID:     out.JobID,
				Input:     input,
				Output:    out.OutputPath,
				OutputURL: out.OutputURL,
			}
			if s := out.Summary; s != nil {
				report.Timebase = s.Timebase
				report.Silences = s.Silences
				report.KeptIntervals = s.KeptIntervals
				report.OriginalDuration = s.OriginalDuration
				report.CutDuration = s.CutDuration
				report.Removed = s.Removed
				report.RemovedSeconds = s.RemovedSeconds
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderCutReport(report, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}

	settings.register(cmd)
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output timeline path")
	cmd.Flags().BoolVar(&upload, "upload", false, "Also upload the output timeline to S3")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the summary as JSON")

	return cmd
}

// resolveOutput picks the output path from the positional argument, the
// --output flag or the input name, in that order.
func resolveOutput(input string, args []string, outputFlag string) (string, error) {
	switch {
	case len(args) > 1 && outputFlag != "":
		return "", errors.New("output given both as argument and --output")
	case len(args) > 1:
		return args[1], nil
	case outputFlag != "":
		return outputFlag, nil
	default:
		return job.DefaultOutputPath(input), nil
	}
}

func renderCutReport(r cutReport, colorize bool) string {
	rows := [][]string{
		{"Input", r.Input},
		{"Output", r.Output},
	}
	if r.OutputURL != "" {
		rows = append(rows, []string{"Uploaded", r.OutputURL})
	}
	rows = append(rows,
		[]string{"Timebase", r.Timebase},
		[]string{"Silences removed", fmt.Sprintf("%d", r.Silences)},
		[]string{"Kept intervals", fmt.Sprintf("%d", r.KeptIntervals)},
		[]string{"Duration", fmt.Sprintf("%d -> %d ticks", r.OriginalDuration, r.CutDuration)},
		[]string{"Removed", fmt.Sprintf("%d ticks (%s)", r.Removed, formatSeconds(r.RemovedSeconds))},
	)
	return renderTable(tableSpec{
		title:    "Cut " + r.JobID,
		headers:  []string{"Field", "Value"},
		rows:     rows,
		colorize: colorize,
	})
}
