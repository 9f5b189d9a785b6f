package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/skx/amidoor/consolein"
	"github.com/skx/amidoor/consoleout"
	"github.com/skx/amidoor/static"
	"github.com/skx/amidoor/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "show our version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), version.GetVersionBanner())
	},
}

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "list the available console drivers, and builtin doors.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := consolein.New("file")
		if err != nil {
			return err
		}
		out, err := consoleout.New("null")
		if err != nil {
			return err
		}

		inputs := in.GetDrivers()
		outputs := out.GetDrivers()
		sort.Strings(inputs)
		sort.Strings(outputs)

		fmt.Fprintf(cmd.OutOrStdout(), "input:  %s\n", strings.Join(inputs, ", "))
		fmt.Fprintf(cmd.OutOrStdout(), "output: %s\n", strings.Join(outputs, ", "))
		fmt.Fprintf(cmd.OutOrStdout(), "doors:  %s\n", strings.Join(static.Doors(), ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(driversCmd)
}
