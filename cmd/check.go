package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newCheckCmd creates the 'check' subcommand: one complete crawl, diff,
// score, and store cycle for a single URL, printed as JSON.
func newCheckCmd() *cobra.Command {
	var crawlAll bool

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Runs one monitoring check against a URL",
		Long: `Crawls the given site, compares the result with the stored baseline,
scores any detected changes, persists them, and prints the check result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			result, err := a.Monitor.Check(cmd.Context(), args[0], crawlAll)
			if err != nil {
				return fmt.Errorf("check %s: %w", args[0], err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&crawlAll, "all-pages", false, "crawl linked same-domain pages, not just the root")
	return cmd
}
