package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/user/imagegrab-service/internal/settings"
)

// globalState carries what every subcommand needs from the process.
type globalState struct {
	ctx          context.Context
	fs           afero.Fs
	stdOut       io.Writer
	settingsPath string
}

func newGlobalState(ctx context.Context) *globalState {
	return &globalState{
		ctx:          ctx,
		fs:           afero.NewOsFs(),
		stdOut:       os.Stdout,
		settingsPath: settings.DefaultFile,
	}
}

func newRootCmd(gs *globalState) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "imagegrab",
		Short:        "Collect, rank and download the images of a web page",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&gs.settingsPath, "settings", gs.settingsPath, "settings file")

	rootCmd.AddCommand(
		getCmdServe(gs),
		getCmdGrab(gs),
		getCmdSettings(gs),
	)
	return rootCmd
}
