package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/orchestrator"
)

// ResumeOptions holds flags for the resume command.
type ResumeOptions struct {
	*RootOptions
	RetryFailed bool
	Simulate    bool
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Continue an interrupted or partially failed run",
		Long: `Continue a persisted run.

Confirmed links are skipped. Links that were submitted but never
confirmed are re-checked on chain and never submitted twice. Pending
links run in dependency order. Failed links stay failed unless
--retry-failed is given; verification failures are never retried
automatically.

--simulate only resumes runs with nothing awaiting confirmation: the
in-memory chain has no record of transactions sent to a real node.

Exit codes are the same as for run.

Example:
  linkctl resume 0192f8c4-7d7a-7c3e-9b51-3f0e2a1b4c5d
  linkctl resume --retry-failed 0192f8c4-7d7a-7c3e-9b51-3f0e2a1b4c5d`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.RetryFailed, "retry-failed", false, "reset rejected, reverted, dropped and exhausted links to pending")
	cmd.Flags().BoolVar(&opts.Simulate, "simulate", false, "run against an in-memory chain instead of the gateway")

	return cmd
}

func runResume(opts *ResumeOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	e, err := setup(cmd.Context(), opts.RootOptions, cmd, formatter)
	if err != nil {
		return err
	}
	defer e.Close()

	client, err := e.newClient(opts.Simulate)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeChain, "failed to create chain client", err)
	}

	ctx, stop := signalContext(cmd, e.logger)
	defer stop()

	ctrl, err := e.newController(ctx, client)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to configure run", err)
	}

	if opts.Simulate {
		if ids := awaitingConfirmation(ctx, ctrl, runID); len(ids) > 0 {
			return formatter.Fail(ExitCommandError, ErrCodeChain,
				"--simulate cannot re-check transactions sent to another chain",
				fmt.Errorf("awaiting confirmation: %s", strings.Join(ids, ", ")))
		}
	}

	report, err := ctrl.ResumeRun(ctx, runID, orchestrator.ResumeOptions{RetryFailed: opts.RetryFailed})
	return finishRun(formatter, report, err)
}

// awaitingConfirmation lists links of the stored run that carry a
// transaction still to be confirmed. Load errors are left to ResumeRun.
func awaitingConfirmation(ctx context.Context, ctrl *orchestrator.Controller, runID string) []string {
	state, err := ctrl.Status(ctx, runID)
	if err != nil {
		return nil
	}
	var ids []string
	for _, e := range state.Entries {
		switch e.Status.Kind {
		case ir.StatusSubmitted, ir.StatusIndeterminate:
			if e.Status.TxID != "" {
				ids = append(ids, e.Descriptor.ID)
			}
		}
	}
	return ids
}
