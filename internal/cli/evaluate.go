package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smukkama/gridguard/internal/detector"
	"github.com/smukkama/gridguard/internal/model"
	"github.com/smukkama/gridguard/internal/telemetry"
	"github.com/smukkama/gridguard/pkg/config"
)

func newEvaluateCmd(cfg *config.Config) *cobra.Command {
	var csvPath, modelPath string
	var window int

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score labelled telemetry and report detection quality",
		Long: `Scores every full window of a labelled telemetry CSV, places the
threshold at mean + 3 standard deviations of those scores, and prints a
classification report against the labels.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			csvPath = stringOr(csvPath, cfg.Telemetry.CSVPath)
			modelPath = stringOr(modelPath, cfg.Model.Path)

			samples, rejected, err := telemetry.LoadSamples(csvPath)
			if err != nil {
				return err
			}
			scorer, err := model.Load(modelPath)
			if err != nil {
				return err
			}

			ev, err := detector.Evaluate(samples, scorer, window)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Model:     %s\n", scorer.Name())
			fmt.Fprintf(out, "Samples:   %d (%d rejected rows)\n", len(samples), rejected)
			fmt.Fprintf(out, "Windows:   %d of %d samples\n", len(ev.Scores), window)
			fmt.Fprintf(out, "Mean:      %.6f\n", ev.Mean)
			fmt.Fprintf(out, "StdDev:    %.6f\n", ev.StdDev)
			fmt.Fprintf(out, "Threshold: %.6f\n\n", ev.Threshold)
			return printReport(cmd, ev.Report)
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "labelled telemetry CSV (default $TELEMETRY_CSV)")
	cmd.Flags().StringVar(&modelPath, "model", "", "model weights file (default $MODEL_PATH)")
	cmd.Flags().IntVar(&window, "window", detector.EvaluationWindow, "samples per scored window")
	return cmd
}

func printReport(cmd *cobra.Command, r detector.Report) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "CLASS\tPRECISION\tRECALL\tF1\tSUPPORT\t")
	for _, row := range []struct {
		name string
		m    detector.ClassMetrics
	}{
		{"normal", r.Normal},
		{"anomaly", r.Anomaly},
	} {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%d\t\n", row.name, row.m.Precision, row.m.Recall, row.m.F1, row.m.Support)
	}
	fmt.Fprintf(w, "accuracy\t\t\t%.4f\t%d\t\n", r.Accuracy, r.Total)
	return w.Flush()
}
