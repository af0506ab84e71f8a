package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maya-1807/finance-manager/internal/control"
	"github.com/maya-1807/finance-manager/internal/core/classify"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources and whether their credentials are set",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	app, err := control.NewApp(control.Config{App: appCfg, DryRun: true})
	if err != nil {
		slog.Error("Failed to initialize fetcher", "error", err)
		return err
	}
	defer func() {
		_ = app.Close()
	}()

	return writeSources(cmd.OutOrStdout(), app.Sources())
}

func writeSources(out io.Writer, statuses []control.SourceStatus) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tCOMPANY\tBROWSER\tREADY\tENV")
	for _, s := range statuses {
		vars := make([]string, 0, len(s.EnvVars))
		for _, v := range s.EnvVars {
			mark := "set"
			if !v.Set {
				mark = "missing"
			}
			vars = append(vars, fmt.Sprintf("%s=%s", v.Name, mark))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Company, yesNo(s.ShowBrowser), yesNo(s.Ready()), strings.Join(vars, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	kinds := classify.NonRetryableKinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	_, err := fmt.Fprintf(out, "\nNot retried: %s\n", strings.Join(names, ", "))
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
