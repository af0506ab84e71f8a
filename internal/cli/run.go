package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maya-1807/finance-manager/internal/control"
	"github.com/maya-1807/finance-manager/internal/core/domain"
)

// ErrRunFailed is returned when at least one source ended in the failed state.
var ErrRunFailed = errors.New("one or more sources failed")

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run <source|all>",
	Short: "Fetch transactions for one source or all of them",
	Long: `Fetch transactions for the named source, or for every configured source
when the selector is "all". Sources run one at a time. The exit status is
non-zero if the selector is unknown or any source fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep snapshots in memory instead of writing files")
	rootCmd.AddCommand(runCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	app, err := control.NewApp(control.Config{App: appCfg, DryRun: dryRun})
	if err != nil {
		slog.Error("Failed to initialize fetcher", "error", err)
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return execute(ctx, cmd.OutOrStdout(), app, args[0])
}

func execute(ctx context.Context, out io.Writer, app *control.App, selector string) error {
	if selector == domain.SelectorAll {
		slog.Info("Running all sources")
	}

	summary, err := app.Run(ctx, selector)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out)
	if err := summary.WriteTable(out); err != nil {
		return err
	}

	if summary.Failed() {
		return fmt.Errorf("%w: %v", ErrRunFailed, summary.FailedSources())
	}
	_, _ = fmt.Fprintln(out, "\nDone.")
	return nil
}
