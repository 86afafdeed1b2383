package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vidshrink/config"
)

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the x264 presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), presetsTable())
			return nil
		},
	}
}

func presetsTable() string {
	presets := config.AvailablePresets()
	rows := make([][]string, 0, len(presets))
	for i, p := range presets {
		rows = append(rows, []string{strconv.Itoa(i + 1), string(p), config.PresetDescription(p)})
	}
	return renderTable(
		[]string{"#", "Preset", "Description"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft},
	)
}
