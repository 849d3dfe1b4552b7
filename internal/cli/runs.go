package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/orchestrator"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs",
		Long: `List every run in the configured store, oldest first.

Example:
  linkctl runs --db ./linkctl.db
  linkctl runs --store redis --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(rootOpts, cmd)
		},
	}
	return cmd
}

func runRuns(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	e, err := setup(cmd.Context(), opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer e.Close()

	ctrl := orchestrator.New(nil, e.store, orchestrator.WithLogger(e.logger))
	runs, err := ctrl.List(cmd.Context())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
	}
	if runs == nil {
		runs = []ir.RunSummary{}
	}

	if formatter.JSON() {
		return formatter.Success(runs)
	}
	renderRuns(formatter.Writer, runs)
	return nil
}
