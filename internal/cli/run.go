package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/linkctl/internal/compiler"
	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/orchestrator"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Addresses string
	Simulate  bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <descriptor-file>",
		Short: "Link contracts described by a descriptor file",
		Long: `Start a new linking run.

The descriptor file (YAML, JSON, CUE or HCL) lists the admin calls that
connect freshly deployed contracts. Every contract name is resolved to a
principal and the calls are ordered so that a contract is configured only
after the contracts it points to. Nothing is submitted when a name is
unresolved or the dependencies form a cycle.

Exit codes:
  0  every link confirmed
  1  at least one link failed, is blocked or was interrupted
  2  the run could not start or its state could not be saved

Example:
  linkctl run --db ./linkctl.db --node http://localhost:3999 links.yaml
  linkctl run --simulate --addresses deployed.yaml links.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addresses, "addresses", "", "address book file merged over the descriptor file's addresses")
	cmd.Flags().BoolVar(&opts.Simulate, "simulate", false, "run against an in-memory chain instead of the gateway")

	return cmd
}

func runLink(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	e, err := setup(cmd.Context(), opts.RootOptions, cmd, formatter)
	if err != nil {
		return err
	}
	defer e.Close()

	file, err := compiler.LoadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load descriptors", err)
	}
	formatter.VerboseLog("Loaded %d link(s) from %s", len(file.Links), path)

	book, err := e.loadBook(file.Book(), opts.Addresses)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load address book", err)
	}

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

	report, err := ctrl.StartRun(ctx, file.Descriptors(), book)
	return finishRun(formatter, report, err)
}

// finishRun prints the report and maps it to an exit code. err is a
// pre-flight or persistence failure; per-link failures live in report.
func finishRun(formatter *OutputFormatter, report *orchestrator.Report, err error) error {
	if err != nil {
		if report != nil && !formatter.JSON() {
			renderReport(formatter.Writer, report)
			fmt.Fprintln(formatter.Writer)
		}
		if ir.IsPreflight(err) {
			return formatter.Fail(ExitCommandError, "", "pre-flight check failed", err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeStore, "run aborted", err)
	}

	if formatter.JSON() {
		message := fmt.Sprintf("%d link(s) not confirmed", len(report.Unconfirmed))
		if encErr := formatter.Result(report.Success, newRunResult(report), ErrCodeIncomplete, message); encErr != nil {
			return encErr
		}
	} else {
		renderReport(formatter.Writer, report)
	}

	if !report.Success {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s: %d link(s) not confirmed", report.RunID, len(report.Unconfirmed)))
	}
	return nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
