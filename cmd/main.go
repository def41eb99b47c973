// Package main is the command line entry point for the gotune-queue tools.
//
// The commands inspect and maintain the persisted playback queue, fill the
// track catalog from music folders and probe the memory pressure monitor
// outside the player.
//
// Build:
//
//	go build -o build/gotune-queue ./cmd
//
// Run:
//
//	./build/gotune-queue show --profile 1
package main

import (
	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/gotune-queue/internal/app"
)

func main() {
	boa.CmdT[boa.NoParams]{
		Use:     "gotune-queue",
		Short:   "Inspect and maintain the GoTune playback queue",
		Version: app.GetVersionInfo().Version,
		SubCmds: []*cobra.Command{
			ShowCmd(),
			ClearCmd(),
			ScanCmd(),
			WatchCmd(),
			MemWatchCmd(),
			VersionCmd(),
		},
	}.Run()
}
