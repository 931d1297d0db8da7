package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/agent0ai/a0-launcher/internal/history"
	"github.com/agent0ai/a0-launcher/internal/syncer"
)

func newHistoryCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sync cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.showHistory(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "Number of cycles to show")
	return cmd
}

func (a *app) showHistory(ctx context.Context, limit int) error {
	if !a.settings.HistoryEnabled {
		_, _ = fmt.Fprintln(a.out, "Sync history is disabled (history.enabled=false).")
		return nil
	}
	store, err := history.Open(ctx, a.settings.HistoryPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	printHistory(a.out, records)
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	stateStyles = map[string]lipgloss.Style{
		syncer.StateDone.String():     lipgloss.NewStyle().Foreground(successColor),
		syncer.StateDegraded.String(): lipgloss.NewStyle().Foreground(lipgloss.Color("#F1FA8C")),
		syncer.StateFailed.String():   lipgloss.NewStyle().Foreground(errorColor),
	}
)

const (
	colStarted  = 19
	colState    = 10
	colRelease  = 16
	colDuration = 8
)

func printHistory(w io.Writer, records []history.Record) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "No sync cycles recorded yet.")
		return
	}
	cell := func(text string, width int) string {
		return lipgloss.NewStyle().Width(width).MaxWidth(width).Render(text)
	}
	header := strings.Join([]string{
		cell("STARTED", colStarted),
		cell("STATE", colState),
		cell("RELEASE", colRelease),
		cell("TOOK", colDuration),
		"ERROR",
	}, "  ")
	_, _ = fmt.Fprintln(w, headerStyle.Render(header))

	for _, r := range records {
		state := cell(r.State, colState)
		if style, ok := stateStyles[r.State]; ok {
			state = style.Render(state)
		}
		tag := r.ReleaseTag
		if tag == "" {
			tag = "-"
		}
		row := strings.Join([]string{
			cell(r.StartedAt.Local().Format("2006-01-02 15:04:05"), colStarted),
			state,
			cell(tag, colRelease),
			cell(r.Duration().Round(time.Millisecond).String(), colDuration),
			r.Error,
		}, "  ")
		_, _ = fmt.Fprintln(w, strings.TrimRight(row, " "))
	}
}
