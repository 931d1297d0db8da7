package main

import (
	"context"

	"github.com/agent0ai/a0-launcher/internal/config"
	"github.com/agent0ai/a0-launcher/internal/content"
	"github.com/agent0ai/a0-launcher/internal/history"
	"github.com/agent0ai/a0-launcher/internal/logging"
	"github.com/agent0ai/a0-launcher/internal/meta"
	"github.com/agent0ai/a0-launcher/internal/metrics"
	"github.com/agent0ai/a0-launcher/internal/release"
	"github.com/agent0ai/a0-launcher/internal/syncer"
)

// components wires the sync engine from settings.
type components struct {
	settings  config.Settings
	client    *release.Client
	fetcher   *content.Fetcher
	installer *content.Installer
	store     *meta.Store
	history   *history.Store
	metrics   *metrics.Metrics
}

func newComponents(ctx context.Context, s config.Settings) *components {
	c := &components{
		settings: s,
		client: release.NewClient(s.Owner, s.Repo,
			release.WithBaseURL(s.FeedBaseURL),
			release.WithUserAgent(s.UserAgent),
			release.WithTimeout(s.FeedTimeout),
		),
		fetcher: content.NewFetcher(
			content.WithUserAgent(s.UserAgent),
			content.WithTimeout(s.DownloadTimeout),
			content.WithMaxBytes(s.DownloadMaxBytes),
		),
		installer: content.NewInstaller(s.ContentDir()),
		store:     meta.NewStore(s.MetaPath()),
		metrics:   metrics.New(nil),
	}
	c.metrics.SetContentVersion(c.store.Version())

	if s.HistoryEnabled {
		h, err := history.Open(ctx, s.HistoryPath())
		if err != nil {
			logging.L().Warnw("sync history unavailable", "path", s.HistoryPath(), "error", err)
		} else {
			c.history = h
		}
	}
	return c
}

func (c *components) orchestrator(n syncer.Notifier) *syncer.Orchestrator {
	opts := []syncer.Option{
		syncer.WithNotifier(n),
		syncer.WithObserver(c.metrics),
		syncer.WithAssetName(c.settings.AssetName),
	}
	if c.history != nil {
		opts = append(opts, syncer.WithRecorder(c.history))
	}
	return syncer.New(c.client, c.fetcher, c.installer, c.store, opts...)
}

func (c *components) Close() {
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			logging.L().Warnw("close sync history", "error", err)
		}
	}
}
