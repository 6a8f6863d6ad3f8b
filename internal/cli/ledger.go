package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"feedsky/internal/config"
	"feedsky/internal/database"

	"github.com/spf13/cobra"
)

const defaultLedgerLimit = 20

var ledgerLimit int

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show the most recently recorded entries",
	RunE:  ledgerAction,
}

func init() {
	ledgerCmd.Flags().IntVar(&ledgerLimit, "limit", defaultLedgerLimit, "number of rows to show")
	rootCmd.AddCommand(ledgerCmd)
}

func ledgerAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	storage, err := config.LoadStorage()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logs go to stderr so they never mix into the table on stdout.
	log := newLogger(cmd.ErrOrStderr(), storage.SlogLevel())

	db, err := database.New(ctx, storage.DBPath, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	records, err := db.RecentRecords(ctx, ledgerLimit)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PUBLISHED\tFINGERPRINT\tTITLE\tLINK")

	for _, r := range records {
		published := "-"
		if r.PublishedAt != nil {
			published = r.PublishedAt.UTC().Format(time.RFC3339)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", published, r.Fingerprint, r.Title, r.Link)
	}

	return w.Flush()
}
