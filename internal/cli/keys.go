package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smukkama/gridguard/internal/keystore"
	"github.com/smukkama/gridguard/pkg/config"
)

func newKeysCmd(cfg *config.Config) *cobra.Command {
	var keysDir, suffix string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and extend the key pool",
	}
	cmd.PersistentFlags().StringVar(&keysDir, "keys", "", "key directory (default $KEYS_DIR)")
	cmd.PersistentFlags().StringVar(&suffix, "suffix", "", "key file suffix (default $KEYS_SUFFIX)")

	store := func() *keystore.Store {
		return keystore.NewStore(stringOr(keysDir, cfg.Keys.Dir), stringOr(suffix, cfg.Keys.Suffix))
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List keys newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := store()
			ids, err := s.IDs()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No keys in %s. Run 'gridctl keys generate' to create one.\n", s.Dir())
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCREATED")
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t%s\n", s.KeyName(id), time.Unix(id, 0).UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Write a new random key named after the current time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keystore.NewProducer(store()).Produce(time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated key %s\n", key.Name())
			return nil
		},
	})

	return cmd
}
