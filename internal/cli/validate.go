package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/linkctl/internal/compiler"
	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/resolver"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid          bool              `json:"valid"`
	DescriptorHash string            `json:"descriptor_hash,omitempty"`
	Links          int               `json:"links,omitempty"`
	Layers         [][]string        `json:"layers,omitempty"`
	Addresses      map[string]string `json:"addresses,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Addresses string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <descriptor-file>",
		Short: "Check descriptors, addresses and call order without submitting",
		Long: `Validate a descriptor file without touching the chain or the run store.

Performs schema and semantic checks, resolves every contract name
against the address book and computes the call order. The layers
printed are groups of links with no ordering constraint between them.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addresses, "addresses", "", "address book file merged over the descriptor file's addresses")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load configuration", err)
	}
	e := &env{opts: opts.RootOptions, cfg: cfg, logger: logger}

	file, err := compiler.LoadFile(path)
	if err != nil {
		if ir.IsPreflight(err) || isCompileError(err) {
			return outputValidationFailure(formatter, err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load descriptors", err)
	}
	formatter.VerboseLog("Loaded %d link(s) from %s", len(file.Links), path)

	book, err := e.loadBook(file.Book(), opts.Addresses)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load address book", err)
	}

	descriptors := file.Descriptors()
	addresses, err := book.ResolveAll(descriptors)
	if err != nil {
		return outputValidationFailure(formatter, err)
	}
	plan, err := resolver.Resolve(descriptors)
	if err != nil {
		return outputValidationFailure(formatter, err)
	}
	hash, err := ir.DescriptorSetHash(descriptors)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to hash descriptors", err)
	}

	result := ValidationResult{
		Valid:          true,
		DescriptorHash: hash,
		Links:          len(descriptors),
		Layers:         plan.LayerIDs(),
		Addresses:      addresses,
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputValidateSuccess(formatter, path, result)
	return nil
}

func isCompileError(err error) bool {
	var ce *compiler.CompileError
	return errors.As(err, &ce)
}

// outputValidateSuccess prints the call order.
func outputValidateSuccess(formatter *OutputFormatter, path string, result ValidationResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s is valid\n", path)
	fmt.Fprintf(w, "  %s in %s\n", plural(result.Links, "link"), plural(len(result.Layers), "layer"))
	fmt.Fprintln(w)
	for i, layer := range result.Layers {
		fmt.Fprintf(w, "Layer %d:\n", i+1)
		for _, id := range layer {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
}

// outputValidationFailure reports every problem carried by err.
// Validation failures are setup errors (exit code 2).
func outputValidationFailure(formatter *OutputFormatter, err error) error {
	code := codeFor(err)
	if code == "" {
		code = ErrCodeLoadFailed
	}

	if formatter.JSON() {
		if encErr := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false},
			Error: &CLIError{
				Code:    code,
				Message: firstLine(err.Error()),
				Details: errorDetails(err),
			},
		}); encErr != nil {
			return encErr
		}
		return WrapExitError(ExitCommandError, "validation failed", err)
	}

	// Text format
	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)

	var (
		cycle  *ir.CycleError
		config *ir.ConfigurationError
	)
	switch {
	case errors.As(err, &cycle):
		fmt.Fprintf(w, "  %s: dependency cycle between %s\n", code, strings.Join(cycle.Contracts, ", "))
		fmt.Fprintf(w, "    %s\n", strings.Join(cycle.Links, " → "))
	case errors.As(err, &config):
		fmt.Fprintf(w, "  %s: %s\n", code, config.Message)
		if len(config.Unresolved) > 0 {
			fmt.Fprintf(w, "    unresolved: %s\n", strings.Join(config.Unresolved, ", "))
		}
		for _, p := range config.Problems {
			fmt.Fprintf(w, "    - %s\n", p)
		}
	default:
		fmt.Fprintf(w, "  %s: %v\n", code, err)
	}

	return WrapExitError(ExitCommandError, "validation failed", err)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
