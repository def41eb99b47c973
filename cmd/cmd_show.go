package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/gotune-queue/internal/app"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

type ShowParams struct {
	DataDir string `short:"d" optional:"true" help:"Directory holding the queue store. Defaults to GOTUNE_DATA_DIR or the user config directory."`
	Storage string `short:"s" optional:"true" help:"Storage backend (file, prefs)."`
	Profile int64  `short:"p" optional:"true" help:"Profile whose queue is shown." default:"0"`
	JSON    bool   `short:"j" optional:"true" help:"Print the queue as JSON."`
}

func ShowCmd() *cobra.Command {
	return boa.CmdT[ShowParams]{
		Use:         "show",
		Short:       "Print the persisted queue of a profile",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *ShowParams, cmd *cobra.Command, args []string) {
			if err := runShow(cmd.Context(), params, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "show: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func runShow(ctx context.Context, params *ShowParams, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.NewApplication(storeConfig(params.DataDir, params.Storage, params.Profile, io.Discard))
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	view, err := loadQueueView(ctx, a.QueueRepository(), a.Catalog(), a.Config().ProfileID)
	if err != nil {
		return err
	}
	if params.JSON {
		return writeQueueJSON(out, view)
	}
	renderQueue(out, view)
	return nil
}

// queueView is a persisted queue joined with its catalog tracks.
type queueView struct {
	Profile domain.ProfileID             `json:"profile_id"`
	Record  *domain.PersistedQueueRecord `json:"record"`
	Rows    []domain.ResolvedRow         `json:"rows"`
	Missing int                          `json:"missing_tracks"`
}

func loadQueueView(ctx context.Context, repo ports.QueueRepository, resolver ports.TrackResolver, profile domain.ProfileID) (queueView, error) {
	view := queueView{Profile: profile}

	rec, err := repo.GetCurrentQueue(ctx, profile)
	if err != nil {
		return view, fmt.Errorf("reading queue: %w", err)
	}
	if rec == nil {
		return view, nil
	}
	view.Record = rec

	rows, err := resolver.ResolveTracks(ctx, rec.Tracks)
	if err != nil {
		return view, fmt.Errorf("resolving tracks: %w", err)
	}
	view.Rows = rows
	view.Missing = len(rec.Tracks) - len(rows)
	return view, nil
}

func writeQueueJSON(out io.Writer, view queueView) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func renderQueue(out io.Writer, view queueView) {
	if view.Record == nil {
		fmt.Fprintf(out, "Profile %d has no saved queue\n", view.Profile)
		return
	}

	rec := view.Record
	fmt.Fprintf(out, "Queue %d (profile %d), %d tracks, shuffle %s, repeat %s, updated %s\n",
		rec.ID, rec.ProfileID, len(rec.Tracks),
		onOff(rec.Metadata.Shuffled), displayRepeat(rec.Metadata.RepeatMode),
		rec.LastModified.Local().Format(time.DateTime))

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "#", "Orig", "Title", "Artist", "Album", "Length", "Plays"})

	for _, r := range view.Rows {
		marker := ""
		if r.Row.Position == rec.Metadata.CurrentPosition {
			marker = "▶"
		}
		orig := "-"
		if r.Row.OriginalPosition != domain.NoIndex {
			orig = fmt.Sprint(r.Row.OriginalPosition + 1)
		}
		t.AppendRow(table.Row{
			marker,
			r.Row.Position + 1,
			orig,
			r.Track.Title,
			r.Track.Artist,
			r.Track.Album,
			formatDuration(r.Track.Duration),
			r.Track.PlayCount,
		})
	}
	t.Render()

	if view.Missing > 0 {
		fmt.Fprintf(out, "%d queued tracks are no longer in the catalog\n", view.Missing)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func displayRepeat(stored string) string {
	mode, err := domain.ParseRepeatMode(stored)
	if err != nil {
		return stored + "?"
	}
	return mode.String()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
