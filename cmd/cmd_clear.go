package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/gotune-queue/internal/app"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

type ClearParams struct {
	DataDir string `short:"d" optional:"true" help:"Directory holding the queue store. Defaults to GOTUNE_DATA_DIR or the user config directory."`
	Storage string `short:"s" optional:"true" help:"Storage backend (file, prefs)."`
	Profile int64  `short:"p" optional:"true" help:"Profile whose queue is deleted." default:"0"`
}

func ClearCmd() *cobra.Command {
	return boa.CmdT[ClearParams]{
		Use:         "clear",
		Short:       "Delete the saved queue of a profile",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *ClearParams, cmd *cobra.Command, args []string) {
			if err := runClear(cmd.Context(), params, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "clear: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func runClear(ctx context.Context, params *ClearParams, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.NewApplication(storeConfig(params.DataDir, params.Storage, params.Profile, io.Discard))
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	id, err := clearQueue(ctx, a.QueueRepository(), a.Config().ProfileID)
	if err != nil {
		return err
	}
	if id == 0 {
		fmt.Fprintf(out, "Profile %d has no saved queue\n", a.Config().ProfileID)
		return nil
	}
	fmt.Fprintf(out, "Deleted queue %d of profile %d\n", id, a.Config().ProfileID)
	return nil
}

// clearQueue deletes the current queue of profile and returns its id, or 0 if there was none.
func clearQueue(ctx context.Context, repo ports.QueueRepository, profile domain.ProfileID) (domain.QueueID, error) {
	rec, err := repo.GetCurrentQueue(ctx, profile)
	if err != nil {
		return 0, fmt.Errorf("reading queue: %w", err)
	}
	if rec == nil {
		return 0, nil
	}
	if err := repo.DeleteQueue(ctx, rec.ID); err != nil {
		return 0, fmt.Errorf("deleting queue %d: %w", rec.ID, err)
	}
	return rec.ID, nil
}
