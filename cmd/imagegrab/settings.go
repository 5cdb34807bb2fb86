package main

import (
	"github.com/spf13/cobra"

	"github.com/user/imagegrab-service/internal/settings"
)

func getCmdSettings(gs *globalState) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored grab settings",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings and the thresholds they resolve to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settings.Load(gs.fs, gs.settingsPath)
			if err != nil {
				return err
			}
			th, details := settings.Parse(store)
			return yamlPrint(gs.stdOut, map[string]any{
				"settings": store,
				"resolved": map[string]any{
					"min_size_kb":     th.MinSizeKB,
					"min_width":       th.MinWidth,
					"min_height":      th.MinHeight,
					"details_enabled": details,
				},
			})
		},
	}

	setCmd := &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Store one setting",
		Args:      cobra.ExactArgs(2),
		ValidArgs: settings.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := settings.Load(gs.fs, gs.settingsPath)
			if err != nil {
				return err
			}
			if err := store.Set(args[0], args[1]); err != nil {
				return err
			}
			return settings.Save(gs.fs, gs.settingsPath, store)
		},
	}

	settingsCmd.AddCommand(showCmd, setCmd)
	return settingsCmd
}
