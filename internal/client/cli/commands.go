package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/assetsync/internal/client/models"
	"github.com/dmitrijs2005/assetsync/internal/client/repositories/uploads"
	"github.com/dmitrijs2005/assetsync/internal/client/upload"
	"github.com/dmitrijs2005/assetsync/internal/client/watch"
	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
)

var errNoFiles = errors.New("no files given")

const maxColWidth = 48

// newWatcher is a test seam for watch.New.
var newWatcher = func(dir string, a *App) (runner, error) {
	return watch.New(dir, a.config.WatchSettle, a.queueSettled, a.logger)
}

type runner interface {
	Run(ctx context.Context) error
}

// parseUploadArgs reads the options shared by add and queue and returns one
// NewUpload per path.
func (a *App) parseUploadArgs(name string, args []string) ([]upload.NewUpload, error) {
	var tmpl upload.NewUpload

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&tmpl.Caption, "caption", "", "caption stored with the asset")
	fs.StringVar(&tmpl.TransactionID, "tx", "", "transaction id grouping the uploads")
	fs.BoolVar(&tmpl.NoCuts, "nocuts", false, "upload the original only")
	fs.IntVar(&tmpl.OriginalSize, "size", 0, "long edge of the original with -nocuts")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if fs.NArg() == 0 {
		return nil, errNoFiles
	}

	return a.newUploads(fs.Args(), tmpl), nil
}

func (a *App) newUploads(paths []string, tmpl upload.NewUpload) []upload.NewUpload {
	items := make([]upload.NewUpload, 0, len(paths))
	for _, p := range paths {
		n := tmpl
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		n.Source = p
		n.Dir = path.Join(a.config.UserID, a.config.SessionID)
		n.ExpirationHours = a.config.ExpirationHours
		n.SmallCutSize = a.config.SmallCutSize
		n.MediumCutSize = a.config.MediumCutSize
		n.LargeCutSize = a.config.LargeCutSize
		items = append(items, n)
	}
	return items
}

// Add stores every file as its own request. Requests with destinations start
// uploading right away and run in parallel.
func (a *App) Add(ctx context.Context, args []string) error {
	items, err := a.parseUploadArgs("add", args)
	if err != nil {
		return err
	}
	reqs, err := a.service.CreateUploads(ctx, items)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		line := fmt.Sprintf("created %s %s (%s)", r.ID, r.FileName(), r.Status)
		if r.Status == models.StatusPending {
			line += ", waiting for destinations"
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

// Queue releases the files one at a time, each after the previous one is
// uploaded.
func (a *App) Queue(ctx context.Context, args []string) error {
	items, err := a.parseUploadArgs("queue", args)
	if err != nil {
		return err
	}
	reqs, err := a.service.QueueUploads(ctx, items)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "queued %d file(s), %d waiting\n", len(reqs), a.service.QueuePending())
	if stalled := a.service.QueueStalled(); stalled != nil {
		fmt.Fprintf(a.out, "queue is stalled on failed %s (%s), run reset to clear it\n", stalled.FileName(), stalled.ID)
	}
	return nil
}

func (a *App) List(ctx context.Context) error {
	reqs, err := a.store.QueryUploads(ctx, uploads.Filter{OwnerID: a.config.UserID, SessionID: a.config.SessionID})
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		fmt.Fprintln(a.out, "No uploads")
		return nil
	}

	table := newTable()
	table.AddRow("ID", "STATUS", "KIND", "SIZE", "UPDATED", "FILE", "NOTE")
	for _, r := range reqs {
		table.AddRow(r.ID, r.Status, r.Kind(), humanize.Bytes(uint64(max(r.Size, 0))),
			humanize.Time(r.UpdatedAt), r.FilePath, r.Note)
	}
	_, err = fmt.Fprintln(a.out, table)
	return err
}

func (a *App) Assets(ctx context.Context) error {
	assets := a.service.Assets()
	if len(assets) == 0 {
		fmt.Fprintln(a.out, "No assets")
		return nil
	}

	table := newTable()
	table.AddRow("ID", "PATH", "SIZE", "COLOR", "EXPIRES", "VARIANTS")
	for _, as := range assets {
		table.AddRow(as.ID, as.Path, humanize.Bytes(uint64(max(as.Size, 0))), as.Color,
			humanize.Time(as.Expiration), variantList(as.URLs))
	}
	_, err := fmt.Fprintln(a.out, table)
	return err
}

// newTable returns a listing table; long notes and paths wrap inside their
// column.
func newTable() *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = maxColWidth
	table.Wrap = true
	return table
}

func variantList(urls map[models.Variant]string) string {
	names := make([]string, 0, len(urls))
	for _, v := range []models.Variant{
		models.VariantOriginal, models.VariantVideoPreview,
		models.VariantSmall, models.VariantMedium, models.VariantLarge,
	} {
		if _, ok := urls[v]; ok {
			names = append(names, string(v))
		}
	}
	return strings.Join(names, ",")
}

// Progress prints the last known position of every request this session
// tracked, plus queue and completion counters.
func (a *App) Progress(ctx context.Context) error {
	reqs, err := a.store.QueryUploads(ctx, uploads.Filter{OwnerID: a.config.UserID, SessionID: a.config.SessionID})
	if err != nil {
		return err
	}

	shown := 0
	for _, r := range reqs {
		p, ok := a.service.ProgressOf(r.ID)
		if !ok {
			continue
		}
		shown++
		fmt.Fprintf(a.out, "%s %-12s %5.1f%% %s\n", r.ID, p.State, p.Percent, p.Task)
	}
	if shown == 0 {
		fmt.Fprintln(a.out, "Nothing in progress")
	}

	fmt.Fprintf(a.out, "active: %t, queued: %d, finished: %d\n",
		a.service.Active(), a.service.QueuePending(), len(a.service.Finished()))
	return nil
}

func (a *App) Refresh(ctx context.Context, args []string) error {
	asset, err := a.service.RefreshAsset(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "refreshed %s %s, expires %s\n", asset.ID, asset.Path, humanize.Time(asset.Expiration))
	return nil
}

// Watch queues every file that settles in the directory until the app exits.
func (a *App) Watch(ctx context.Context, args []string) error {
	dir := args[0]
	w, err := newWatcher(dir, a)
	if err != nil {
		return err
	}

	run := func() error {
		if err := w.Run(ctx); err != nil {
			a.logger.Error(ctx, "watcher stopped", "dir", dir, "err", err)
		}
		return nil
	}
	if a.group != nil {
		a.group.Go(run)
	} else {
		go run()
	}

	fmt.Fprintf(a.out, "watching %s\n", dir)
	return nil
}

func (a *App) queueSettled(ctx context.Context, p string) {
	if _, err := a.service.QueueUploads(ctx, a.newUploads([]string{p}, upload.NewUpload{})); err != nil {
		a.logger.Error(ctx, "error queueing watched file", "path", p, "err", err)
		return
	}
	a.logger.Info(ctx, "queued watched file", "path", p)
}

func (a *App) Reset(ctx context.Context) error {
	answer, err := GetSimpleText(a.reader, "Clear finished uploads, progress and the queue? [y/N]", a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
		fmt.Fprintln(a.out, "cancelled")
		return nil
	}
	a.service.Reset()
	fmt.Fprintln(a.out, "state cleared")
	return nil
}
