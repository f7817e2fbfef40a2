package cli

import (
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smukkama/gridguard/internal/database"
	"github.com/smukkama/gridguard/pkg/config"
)

func newAlertsCmd(cfg *config.Config) *cobra.Command {
	var limit int
	var stats bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show archived decrypted alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Database.Driver == "" {
				return fmt.Errorf("no alert archive configured, set DB_DRIVER")
			}
			db, err := database.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN())
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if stats {
				s, err := db.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Total alerts: %d\n", s.Total)
				if s.MaxScore != nil {
					fmt.Fprintf(out, "Max score:    %g\n", *s.MaxScore)
				}
				keys := make([]string, 0, len(s.ByKey))
				for k := range s.ByKey {
					keys = append(keys, k)
				}
				slices.Sort(keys)

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tALERTS")
				for _, k := range keys {
					fmt.Fprintf(w, "%s\t%d\n", k, s.ByKey[k])
				}
				return w.Flush()
			}

			records, err := db.RecentAlerts(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No alerts archived.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RECEIVED\tTIMESTAMP\tERROR\tKEY\tTRIALS")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%g\t%s\t%d\n",
					r.ReceivedAt.Format(time.RFC3339), r.SourceTimestamp, r.Score, r.OpenedWith, r.Trials)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of alerts to show")
	cmd.Flags().BoolVar(&stats, "stats", false, "show archive totals instead of alerts")
	return cmd
}
