package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/latticekit/collab/wire"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <save-file>",
		Short: "Print a save file's tree structure and byte sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			save, err := wire.UnmarshalSave(data)
			if err != nil {
				return fmt.Errorf("decode save: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "root  %d bytes total, %d top-level collabs\n", len(data), len(save.Children))
			printSaveTree(out, "  ", save)
			return nil
		},
	}
}

func printSaveTree(w io.Writer, prefix string, s wire.Save) {
	for _, c := range s.Children {
		fmt.Fprintf(w, "%s%s  self=%dB  children=%d\n", prefix, c.Name, len(c.Save.Self), len(c.Save.Children))
		printSaveTree(w, prefix+"  ", c.Save)
	}
}
