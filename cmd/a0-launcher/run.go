package main

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/agent0ai/a0-launcher/internal/host"
	"github.com/agent0ai/a0-launcher/internal/logging"
	"github.com/agent0ai/a0-launcher/internal/syncer"
)

const (
	// settleDelay keeps the final status on the startup screen briefly.
	settleDelay     = 800 * time.Millisecond
	spinnerDelay    = 150 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

type runOptions struct {
	copyURL bool
	noServe bool
}

func newRunCommand(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync content, then serve it locally (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLauncher(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.copyURL, "copy-url", false, "Copy the local content URL to the clipboard")
	cmd.Flags().BoolVar(&opts.noServe, "no-serve", false, "Exit after the sync cycle instead of serving content")
	return cmd
}

func newSyncCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newComponents(cmd.Context(), a.settings)
			defer c.Close()
			_, err := a.syncOnce(cmd.Context(), c, nil)
			return err
		},
	}
}

func (a *app) runLauncher(ctx context.Context, opts runOptions) error {
	c := newComponents(ctx, a.settings)
	defer c.Close()

	feed := host.NewFeed()
	if _, err := a.syncOnce(ctx, c, feed); err != nil {
		return err
	}
	// A cycle can end up to date while the content directory is gone.
	if !c.installer.HasValidContent() {
		logging.L().Errorw("no servable content", "dir", a.settings.ContentDir())
		feed.Error(syncer.MsgContentMissing)
		_, _ = fmt.Fprintf(a.errOut, "Error: %s\n", syncer.MsgContentMissing)
		return errReported
	}
	if opts.noServe {
		return nil
	}

	server := host.NewServer(a.settings.ContentDir(), host.NewBridge(Version, c.store), feed,
		host.WithMetricsHandler(c.metrics.Handler()))
	url, err := server.Start(a.settings.ServerAddr)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Serving content at %s\n", url)
	if opts.copyURL {
		if err := clipboard.WriteAll(url); err != nil {
			logging.L().Warnw("copy url to clipboard", "error", err)
			_, _ = fmt.Fprintf(a.errOut, "Could not copy URL: %v\n", err)
		} else {
			_, _ = fmt.Fprintln(a.out, "URL copied to clipboard.")
		}
	}
	_, _ = fmt.Fprintln(a.out, "Press Ctrl+C to stop.")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// syncOnce runs a cycle behind the startup display and prints the outcome.
// extra, when non-nil, also receives every notification.
func (a *app) syncOnce(ctx context.Context, c *components, extra syncer.Notifier) (syncer.Result, error) {
	display, settle := a.newDisplay()
	orch := c.orchestrator(syncer.Notifiers(display, extra))

	res := runCycle(ctx, orch, display, settle)
	if !res.CanLoad() {
		_, _ = fmt.Fprintf(a.errOut, "Error: %v\n", res.Err)
		return res, errReported
	}
	_, _ = fmt.Fprintln(a.out, describeResult(res))
	return res, nil
}

func (a *app) newDisplay() (startupAnimator, time.Duration) {
	if a.interactive() {
		return NewStartupDisplay(a.errOut), settleDelay
	}
	return newStartupSpinner(a.errOut, spinnerDelay), 0
}

type startupAnimator interface {
	syncer.Notifier
	syncer.ProgressNotifier
	Stop()
}

// runCycle runs the cycle off the calling goroutine so the display keeps
// animating, then stops the display.
func runCycle(ctx context.Context, orch *syncer.Orchestrator, display startupAnimator, settle time.Duration) syncer.Result {
	done := make(chan syncer.Result, 1)
	go func() {
		res, err := orch.Run(ctx)
		if err != nil && res.Session == nil {
			res = syncer.Result{State: syncer.StateFailed, Err: err}
		}
		done <- res
	}()
	res := <-done
	if res.State == syncer.StateDone && settle > 0 {
		time.Sleep(settle)
	}
	display.Stop()
	return res
}

func describeResult(res syncer.Result) string {
	switch {
	case res.State == syncer.StateDone && passedThrough(res, syncer.StateUpToDate):
		return fmt.Sprintf("Content %s is up to date.", res.Version)
	case res.State == syncer.StateDone:
		return fmt.Sprintf("Installed content %s.", res.Version)
	default:
		return fmt.Sprintf("Using cached content %s (%v).", res.Version, res.Err)
	}
}

func passedThrough(res syncer.Result, state syncer.State) bool {
	if res.Session == nil {
		return false
	}
	for _, s := range res.Session.Trail() {
		if s == state {
			return true
		}
	}
	return false
}
