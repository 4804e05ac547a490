package main

import (
	"os"

	bmctlcmd "github.com/telekom/bulkmail/pkg/bmctl/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := bmctlcmd.NewRootCommand(bmctlcmd.DefaultConfig())
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
