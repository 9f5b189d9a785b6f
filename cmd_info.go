package main

import (
	"fmt"

	"github.com/skx/amidoor/hunk"
	"github.com/skx/amidoor/memory"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [flags] door.exe",
	Short: "describe the hunks of an executable, and where they load.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readDoor(args[0])
		if err != nil {
			return err
		}

		f, err := hunk.Parse(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
		if err := f.Dump(cmd.OutOrStdout()); err != nil {
			return err
		}

		mem := memory.New(GetInt(cmd, "memory"))
		img, err := hunk.Load(mem, f, uint32(GetUint(cmd, "base")))
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", args[0], err)
		}
		return img.Dump(cmd.OutOrStdout())
	},
}

func init() {
	infoCmd.Flags().Int("memory", memory.DefaultSize, "size of the emulated memory, in bytes")
	infoCmd.Flags().Uint("base", hunk.DefaultBase, "address the first hunk is loaded at")
	rootCmd.AddCommand(infoCmd)
}
