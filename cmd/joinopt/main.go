// Command joinopt optimizes join orders of triple-pattern queries.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/joinopt/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// Commands report their own failures; anything else (flag
		// parsing, unknown commands) still needs printing.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
