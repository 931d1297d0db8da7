package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/agent0ai/a0-launcher/internal/host"
	"github.com/agent0ai/a0-launcher/internal/meta"
	"github.com/agent0ai/a0-launcher/internal/release"
)

const notesWidth = 80

func newStatusCommand(a *app) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show installed content and, with --check, the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.status(cmd.Context(), check)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Query the release feed and show the latest release notes")
	return cmd
}

func (a *app) status(ctx context.Context, check bool) error {
	c := newComponents(ctx, a.settings)
	defer c.Close()

	bridge := host.NewBridge(Version, c.store)
	local, hasLocal := c.store.Read()

	w := a.out
	_, _ = fmt.Fprintf(w, "Launcher version: %s\n", bridge.AppVersion())
	_, _ = fmt.Fprintf(w, "Content version:  %s\n", bridge.ContentVersion())
	if hasLocal {
		_, _ = fmt.Fprintf(w, "Published:        %s\n", local.PublishedAt.Local().Format("2006-01-02 15:04"))
		_, _ = fmt.Fprintf(w, "Downloaded:       %s\n", humanize.Time(local.DownloadedAt))
	}
	state := "missing"
	if c.installer.HasValidContent() {
		state = "ready"
	}
	_, _ = fmt.Fprintf(w, "Content dir:      %s (%s)\n", c.installer.Dir(), state)

	if !check {
		return nil
	}

	latest, err := c.client.Latest(ctx)
	if err != nil {
		return fmt.Errorf("check %s: %w", c.client.Repository(), err)
	}
	printLatest(w, *latest, local, hasLocal, a.settings.AssetName, markdownRenderer(a.interactive(), notesWidth))
	return nil
}

func printLatest(w io.Writer, latest release.Descriptor, local meta.LocalMeta, hasLocal bool, asset string, render func(string) string) {
	_, _ = fmt.Fprintf(w, "\nLatest release:   %s (published %s)\n", latest.Tag, latest.PublishedAt.Local().Format("2006-01-02 15:04"))
	if latest.HTMLURL != "" {
		_, _ = fmt.Fprintf(w, "Release page:     %s\n", latest.HTMLURL)
	}
	switch {
	case !hasLocal || latest.NewerThan(local.PublishedAt):
		if _, ok := latest.FindAsset(asset); ok {
			_, _ = fmt.Fprintln(w, "Update available. Run `a0-launcher sync` to install it.")
		} else {
			_, _ = fmt.Fprintf(w, "Newer release has no %s asset.\n", asset)
		}
	default:
		_, _ = fmt.Fprintln(w, "Content is up to date.")
	}

	if notes := strings.TrimSpace(latest.Body); notes != "" {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, render(notes))
	}
}

// markdownRenderer renders release notes with glamour on terminals and
// falls back to plain word wrapping elsewhere.
func markdownRenderer(rich bool, width int) func(string) string {
	fallback := func(input string) string {
		return wordwrap.String(input, width)
	}
	if !rich {
		return fallback
	}

	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fallback
	}
	return func(input string) string {
		out, err := renderer.Render(input)
		if err != nil {
			return fallback(input)
		}
		return strings.TrimSpace(out)
	}
}
