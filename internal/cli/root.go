// Package cli implements the linkctl command line: run, resume, status,
// validate and runs.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/linkctl/internal/chain"
	"github.com/roach88/linkctl/internal/config"
	"github.com/roach88/linkctl/internal/orchestrator"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	Store       string // overrides store.backend
	Database    string // overrides store.path (sqlite) or store.dir (file)
	Node        string // overrides gateway.url
	MaxInFlight int

	// NewClient overrides chain client construction (for testing).
	// If nil, the gateway client is used, or memchain with --simulate.
	NewClient func(cfg *config.Config) (chain.Client, error)

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs orchestrator.RunIDGenerator

	// Clock overrides the wall clock used for run timestamps (for testing).
	Clock func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the linkctl CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkctl",
		Short: "linkctl - contract linking orchestrator",
		Long: `Wire freshly deployed contracts together.

linkctl reads a set of link descriptors (one admin call each), resolves
contract names to deployed principals, orders the calls so every
dependency is configured first, submits them with bounded retries and
verifies each one by reading the configured value back. Progress is
persisted so an interrupted run can be resumed without repeating
confirmed work.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var msg string
			switch {
			case !isValidFormat(opts.Format):
				msg = fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			case cmd.Flags().Changed("max-in-flight") && opts.MaxInFlight < 1:
				msg = "--max-in-flight must be at least 1"
			default:
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", msg)
			return NewExitError(ExitCommandError, msg)
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigPath, "config", "", "path to linkctl.yaml (default $"+config.EnvConfigPath+")")
	pf.StringVar(&opts.Store, "store", "", "run store backend (sqlite|file|redis)")
	pf.StringVar(&opts.Database, "db", "", "sqlite database path, or run directory for the file store")
	pf.StringVar(&opts.Node, "node", "", "signing gateway URL")
	pf.IntVar(&opts.MaxInFlight, "max-in-flight", 0, "maximum links submitted or confirming at once")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewResumeCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
