// Command enginectl drives the runtime's Engine, fiber scheduler, and
// event bus: serve boots the HTTP admin surface, top renders a live
// terminal dashboard against it, version prints the build version.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arturoeanton/go-git-analyzer-ollama/cmd/enginectl/cli"
)

func main() {
	root := &cobra.Command{
		Use:   "enginectl",
		Short: "Operate the engine runtime: serve its admin surface or watch it live",
	}

	root.AddCommand(cli.NewServeCmd())
	root.AddCommand(cli.NewTopCmd())
	root.AddCommand(cli.NewVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
