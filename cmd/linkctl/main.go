// Command linkctl wires freshly deployed contracts together.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/linkctl/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Flag and argument errors come straight from cobra; commands report
	// everything else on stdout themselves.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
