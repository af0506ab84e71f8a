package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/maya-1807/finance-manager/internal/control"
	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/infra/storage"
)

var latestCmd = &cobra.Command{
	Use:   "latest <source>",
	Short: "Show the newest saved snapshot of a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runLatest,
}

func init() {
	rootCmd.AddCommand(latestCmd)
}

func runLatest(cmd *cobra.Command, args []string) error {
	app, err := control.NewApp(control.Config{App: appCfg})
	if err != nil {
		slog.Error("Failed to initialize fetcher", "error", err)
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	snap, err := app.LatestSnapshot(cmd.Context(), domain.SourceID(args[0]))
	if err != nil {
		return err
	}
	return writeSnapshot(cmd.OutOrStdout(), snap)
}

func writeSnapshot(out io.Writer, snap *storage.Snapshot) error {
	txns := 0
	for _, acc := range snap.Accounts {
		txns += len(acc.Txns)
	}
	_, err := fmt.Fprintf(out, "%s: scraped %s, %d accounts, %d transactions\n",
		snap.Bank, snap.ScrapedAt.Format(time.RFC3339), len(snap.Accounts), txns)
	if err != nil {
		return err
	}
	for _, acc := range snap.Accounts {
		if _, err := fmt.Fprintf(out, "  %s\t%d txns\n", acc.AccountNumber, len(acc.Txns)); err != nil {
			return err
		}
	}
	return nil
}
