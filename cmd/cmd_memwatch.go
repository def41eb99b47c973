package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/gotune-queue/internal/adapter/system"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/logger"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
	"github.com/tejashwikalptaru/gotune-queue/internal/service"
)

type MemWatchParams struct {
	Interval  int     `short:"i" optional:"true" help:"Sampling interval in milliseconds." default:"1000"`
	Threshold float64 `short:"t" optional:"true" help:"Memory load percentage treated as high pressure." default:"80"`
	Verbose   bool    `short:"v" optional:"true" help:"Print every sample, not only transitions."`
}

func MemWatchCmd() *cobra.Command {
	return boa.CmdT[MemWatchParams]{
		Use:         "memwatch",
		Short:       "Run the memory pressure monitor and print state changes",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *MemWatchParams, cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := runMemWatch(ctx, params, system.NewMemorySampler(), os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "memwatch: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func runMemWatch(ctx context.Context, params *MemWatchParams, sampler ports.MemorySampler, out io.Writer) error {
	if params.Interval <= 0 {
		return domain.NewValidationError("interval", params.Interval, "must be positive")
	}
	if params.Threshold <= 0 || params.Threshold > 100 {
		return domain.NewValidationError("threshold", params.Threshold, "must be within (0, 100]")
	}

	log := logger.NewLogger(logger.DefaultConfig())
	bus := eventbus.NewSyncEventBus(log.With(slog.String("component", "eventbus")))
	defer bus.Close()

	bus.Subscribe(domain.EventMemoryPressureChanged, func(e domain.Event) {
		changed := e.(domain.MemoryPressureChangedEvent)
		fmt.Fprintf(out, "%s pressure %s (%.1f%% used)\n",
			changed.Timestamp().Format(time.TimeOnly), changed.State, changed.LoadPercent)
	})

	interval := time.Duration(params.Interval) * time.Millisecond
	monitor := service.NewMemoryMonitor(log.With(slog.String("service", "memory_monitor")), service.MemoryMonitorConfig{
		Interval:      interval,
		HighThreshold: params.Threshold,
	}, sampler, bus)

	state, err := monitor.Sample(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "memory %.1f%% used, pressure %s, threshold %.0f%%\n", monitor.LastLoad(), state, params.Threshold)

	if !params.Verbose {
		monitor.Start()
		<-ctx.Done()
		monitor.Stop()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			state, err := monitor.Sample(ctx)
			if err != nil {
				fmt.Fprintf(out, "sample failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "%s %.1f%% %s\n", time.Now().Format(time.TimeOnly), monitor.LastLoad(), state)
		}
	}
}
