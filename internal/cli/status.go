package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/orchestrator"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	History bool
	Link    string
}

// historyReader is implemented by stores that index transitions.
type historyReader interface {
	History(ctx context.Context, runID, linkID string) ([]ir.Transition, error)
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the persisted state of a run",
		Long: `Show the status of every link in a run.

With --history the recorded status transitions are listed as well,
optionally restricted to one link with --link.

Example:
  linkctl status 0192f8c4-7d7a-7c3e-9b51-3f0e2a1b4c5d
  linkctl status --history --link staking.set-nft-contract 0192f8c4-7d7a-7c3e-9b51-3f0e2a1b4c5d`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.History, "history", false, "include the status transition history")
	cmd.Flags().StringVar(&opts.Link, "link", "", "restrict the history to one link id")

	return cmd
}

func runStatus(opts *StatusOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	e, err := setup(cmd.Context(), opts.RootOptions, cmd, formatter)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Status never touches the chain; the controller only reads the store.
	ctrl := orchestrator.New(nil, e.store, orchestrator.WithLogger(e.logger))
	state, err := ctrl.Status(ctx, runID)
	if err != nil {
		if errors.Is(err, ir.ErrRunNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "unknown run", err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
	}

	var history []ir.Transition
	if opts.History {
		history, err = historyOf(ctx, e.store, state, opts.Link)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read history", err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(newStatusResult(state, history))
	}
	renderState(formatter.Writer, state, history)
	return nil
}

// historyOf reads transitions from the store's index when it keeps one,
// and from the snapshot otherwise. The result is non-nil.
func historyOf(ctx context.Context, st orchestrator.RunStore, state *ir.RunState, linkID string) ([]ir.Transition, error) {
	out := []ir.Transition{}
	if hr, ok := st.(historyReader); ok {
		rows, err := hr.History(ctx, state.RunID, linkID)
		if err != nil {
			return nil, err
		}
		return append(out, rows...), nil
	}
	for _, tr := range state.History {
		if linkID == "" || tr.LinkID == linkID {
			out = append(out, tr)
		}
	}
	return out, nil
}
