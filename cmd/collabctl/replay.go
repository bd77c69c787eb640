package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/latticekit/collab"
	"github.com/latticekit/collab/causal"
	"github.com/latticekit/collab/wire"
)

// rawCollab is a schema-agnostic top-level collab: it does not know what
// CRDT type owns a name, so it just keeps the most recent bytes delivered
// to it. That's enough to show a save file's post-replay shape without
// collabctl needing to link against every concrete primitive type.
type rawCollab struct {
	name string
	self []byte
}

func newRawCollab(ic *collab.InitContext) collab.Collab {
	return &rawCollab{name: ic.PathString()}
}

func (c *rawCollab) Name() string { return c.name }

func (c *rawCollab) Deliver(path wire.NamePath, payload []byte, meta causal.Metadata) error {
	if len(path) != 0 {
		return fmt.Errorf("collabctl: %s got a nested path %v it cannot route", c.name, path)
	}
	c.self = payload
	return nil
}

func (c *rawCollab) Save() wire.Save { return wire.Save{Self: c.self} }

func (c *rawCollab) Load(s wire.Save) error {
	c.self = s.Self
	return nil
}

func (c *rawCollab) CanGC() bool { return len(c.self) == 0 }

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <save-file> <messages-file>",
		Short: "Load a save, replay trailing transactions, print the result",
		Long: `replay loads a save file, then replays a messages file against it.

The messages file is a sequence of frames, each a varint length prefix
followed by one github.com/latticekit/collab/wire.Transaction.Encode
blob, as wire.Writer.PutBytes writes it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			saveData, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			msgsData, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			save, err := wire.UnmarshalSave(saveData)
			if err != nil {
				return fmt.Errorf("decode save: %w", err)
			}

			rt, err := collab.NewRuntime()
			if err != nil {
				return err
			}
			for _, c := range save.Children {
				name := c.Name
				if _, err := rt.RegisterCollab(name, newRawCollab); err != nil {
					return fmt.Errorf("register %s: %w", name, err)
				}
			}
			if err := rt.Load(saveData); err != nil {
				return fmt.Errorf("load save: %w", err)
			}

			frames, err := splitFrames(msgsData)
			if err != nil {
				return fmt.Errorf("decode messages file: %w", err)
			}
			for i, frame := range frames {
				if err := rt.Receive(frame); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "transaction %d discarded: %v\n", i, err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "replayed %d transaction(s)\n", len(frames))
			for _, c := range save.Children {
				child, _ := rt.Child(c.Name)
				raw := child.Save().Self
				fmt.Fprintf(out, "%s  %d bytes  %s\n", c.Name, len(raw), hex.EncodeToString(raw))
			}
			return nil
		},
	}
}

// splitFrames decodes a messages file into its individual transaction
// blobs. Each frame is wire's own varint-length-prefixed byte encoding
// (wire.Writer.PutBytes / wire.Reader.Bytes), so a tool that produces a
// messages file for replay needs only accumulate PutBytes(txn) calls into
// one wire.Writer.
func splitFrames(data []byte) ([][]byte, error) {
	r := wire.NewReader(data)
	var frames [][]byte
	for r.Len() > 0 {
		b, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		frames = append(frames, b)
	}
	return frames, nil
}
