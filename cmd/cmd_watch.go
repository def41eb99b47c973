package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/repository/file"
	"github.com/tejashwikalptaru/gotune-queue/internal/app"
	"github.com/tejashwikalptaru/gotune-queue/internal/logger"
)

type WatchParams struct {
	DataDir  string `short:"d" optional:"true" help:"Directory holding the queue store. Defaults to GOTUNE_DATA_DIR or the user config directory."`
	Profile  int64  `short:"p" optional:"true" help:"Profile whose queue is shown." default:"0"`
	Debounce int    `short:"b" optional:"true" help:"Quiet period in milliseconds before re-printing after a change." default:"200"`
}

func WatchCmd() *cobra.Command {
	return boa.CmdT[WatchParams]{
		Use:         "watch",
		Short:       "Re-print the queue whenever the file store changes",
		Long:        "Watch the file store and print the queue of a profile each time the player saves it. Only the file storage backend can be watched.",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *WatchParams, cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := runWatch(ctx, params, os.Stdout, nil); err != nil {
				fmt.Fprintf(os.Stderr, "watch: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

// runWatch prints the queue once, then again after every change to the store
// file. ready, if not nil, is closed once the watcher is installed.
func runWatch(ctx context.Context, params *WatchParams, out io.Writer, ready chan<- struct{}) error {
	cfg := storeConfig(params.DataDir, app.StorageFile, params.Profile, io.Discard)
	path := cfg.StorePath()

	store, err := file.Open(path, logger.NewLogger(logger.Config{Output: io.Discard}))
	if err != nil {
		return err
	}
	printQueue := func() {
		view, err := loadQueueView(ctx, store, store, cfg.ProfileID)
		if err != nil {
			fmt.Fprintf(out, "watch: %v\n", err)
			return
		}
		fmt.Fprintf(out, "\n%s\n", time.Now().Format(time.TimeOnly))
		renderQueue(out, view)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}
	defer watcher.Close()

	// The store is replaced by rename, so the directory is watched instead of the file.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	if ready != nil {
		close(ready)
	}
	printQueue()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				pending = time.After(time.Duration(params.Debounce) * time.Millisecond)
			}
		case <-pending:
			pending = nil
			if err := store.Reload(); err != nil {
				fmt.Fprintf(out, "watch: %v\n", err)
				continue
			}
			printQueue()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "watch: watcher error: %v\n", err)
		}
	}
}
