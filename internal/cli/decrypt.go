package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smukkama/gridguard/internal/alert"
	"github.com/smukkama/gridguard/internal/keystore"
	"github.com/smukkama/gridguard/internal/protocol"
	"github.com/smukkama/gridguard/pkg/config"
)

// decryptSummary counts what happened to each line of a capture
type decryptSummary struct {
	Lines     int
	Ignored   int
	Decrypted int
	Malformed int
	Failed    int
	Corrupt   int
}

func newDecryptCmd(cfg *config.Config) *cobra.Command {
	var keysDir, suffix, suite string

	cmd := &cobra.Command{
		Use:   "decrypt [file|-]",
		Short: "Decrypt a captured alert stream",
		Long: `Reads enc_alert lines from a file (or stdin when the argument is "-"
or omitted) and opens each one against the current key directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open capture: %w", err)
				}
				defer f.Close()
				in = f
			}

			store := keystore.NewStore(stringOr(keysDir, cfg.Keys.Dir), stringOr(suffix, cfg.Keys.Suffix))
			decoder := alert.NewDecoder(store, stringOr(suite, cfg.Cipher.Suite))

			summary, err := decryptStream(cmd.OutOrStdout(), in, decoder)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d lines: %d decrypted, %d failed, %d corrupt, %d malformed, %d ignored\n",
				summary.Lines, summary.Decrypted, summary.Failed, summary.Corrupt, summary.Malformed, summary.Ignored)
			return nil
		},
	}

	cmd.Flags().StringVar(&keysDir, "keys", "", "key directory (default $KEYS_DIR)")
	cmd.Flags().StringVar(&suffix, "suffix", "", "key file suffix (default $KEYS_SUFFIX)")
	cmd.Flags().StringVar(&suite, "suite", "", "AEAD suite (default $CIPHER_SUITE)")
	return cmd
}

func decryptStream(out io.Writer, in io.Reader, decoder *alert.Decoder) (*decryptSummary, error) {
	summary := &decryptSummary{}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LINE\tTIMESTAMP\tERROR\tKEY\tTRIALS\tSTATUS")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		summary.Lines++
		packet, ok, err := protocol.ParseLine(scanner.Text())
		if !ok {
			summary.Ignored++
			continue
		}
		if err != nil {
			summary.Malformed++
			fmt.Fprintf(w, "%d\t-\t-\t-\t-\tmalformed\n", summary.Lines)
			continue
		}

		res, err := decoder.Decode(packet)
		switch {
		case err == nil:
			summary.Decrypted++
			fmt.Fprintf(w, "%d\t%s\t%g\t%s\t%d\tok\n",
				summary.Lines, res.Payload.Timestamp, res.Payload.Error, res.OpenedWith, res.Trials)
		case errors.Is(err, alert.ErrPayloadCorrupt):
			summary.Corrupt++
			fmt.Fprintf(w, "%d\t-\t-\t-\t-\tcorrupt\n", summary.Lines)
		case errors.Is(err, protocol.ErrMalformedPacket):
			summary.Malformed++
			fmt.Fprintf(w, "%d\t-\t-\t-\t-\tmalformed\n", summary.Lines)
		default:
			summary.Failed++
			fmt.Fprintf(w, "%d\t-\t-\t-\t-\tno key\n", summary.Lines)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return summary, w.Flush()
}
