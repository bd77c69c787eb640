// Command collabctl is a small maintainer tool for poking at a collab
// save file: printing its tree structure, and replaying trailing
// transactions recorded after it was taken.
//
// Usage:
//
//	collabctl inspect state.save
//	collabctl replay state.save trailing.msgs
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "collabctl",
		Short: "Inspect and replay collab-tree save files",
	}

	root.AddCommand(inspectCmd(), replayCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
