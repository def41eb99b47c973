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
)

type ScanParams struct {
	Paths   []string `pos:"true" help:"Folders to scan for audio files."`
	DataDir string   `short:"d" optional:"true" help:"Directory holding the queue store. Defaults to GOTUNE_DATA_DIR or the user config directory."`
	Storage string   `short:"s" optional:"true" help:"Storage backend (file, prefs)."`
	Profile int64    `short:"p" optional:"true" help:"Profile whose queue receives the tracks." default:"0"`
	Enqueue bool     `short:"e" optional:"true" help:"Append the scanned tracks to the end of the queue."`
}

func ScanCmd() *cobra.Command {
	return boa.CmdT[ScanParams]{
		Use:         "scan",
		Short:       "Add the audio files of a folder to the track catalog",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *ScanParams, cmd *cobra.Command, args []string) {
			if len(params.Paths) < 1 {
				_ = cmd.Usage()
				os.Exit(1)
			}
			if err := runScan(cmd.Context(), params, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "scan: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func runScan(ctx context.Context, params *ScanParams, out io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.NewApplication(storeConfig(params.DataDir, params.Storage, params.Profile, io.Discard))
	if err != nil {
		return err
	}
	defer func() {
		// Shutdown flushes the enqueued tracks; a failed flush fails the command.
		if shutdownErr := a.Shutdown(ctx); err == nil {
			err = shutdownErr
		}
	}()

	if params.Enqueue {
		if err := a.Start(ctx); err != nil {
			return err
		}
	}

	a.EventBus().Subscribe(domain.EventLibraryScanned, func(e domain.Event) {
		ev := e.(domain.LibraryScannedEvent)
		fmt.Fprintf(out, "%s: %d tracks, %d skipped\n", ev.Root, len(ev.Tracks), ev.Skipped)
	})

	total := 0
	for _, root := range params.Paths {
		tracks, err := a.LibraryService().ScanFolder(ctx, root)
		if err != nil {
			return err
		}
		total += len(tracks)

		if params.Enqueue && len(tracks) > 0 {
			if err := a.QueueService().AddToEnd(tracks); err != nil {
				return fmt.Errorf("enqueueing tracks of %s: %w", root, err)
			}
		}
	}

	if params.Enqueue {
		fmt.Fprintf(out, "Queued %d tracks, queue length %d\n", total, a.QueueService().Len())
	}
	return nil
}
