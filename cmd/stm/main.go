// Command stm runs concurrent transaction scenarios against the STM engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/stm/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
