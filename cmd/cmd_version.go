package main

import (
	"fmt"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/gotune-queue/internal/app"
)

func VersionCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:   "version",
		Short: "Print build information",
		RunFunc: func(_ *boa.NoParams, cmd *cobra.Command, args []string) {
			fmt.Println(app.GetVersionInfo().FullString())
		},
	}.ToCobra()
}
