// Package syncer runs the content sync cycle: it asks the release feed for
// the latest release, decides whether installed content is stale, and drives
// download and install, falling back to whatever is already on disk when a
// step fails.
package syncer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/agent0ai/a0-launcher/internal/content"
	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
	"github.com/agent0ai/a0-launcher/internal/history"
	"github.com/agent0ai/a0-launcher/internal/logging"
	"github.com/agent0ai/a0-launcher/internal/meta"
	"github.com/agent0ai/a0-launcher/internal/release"
)

// DefaultAssetName is the release asset holding the content bundle.
const DefaultAssetName = "content.json"

// ErrCycleInProgress is returned when Run is called while a cycle is running.
var ErrCycleInProgress = apperrors.New(apperrors.CodeCycleInProgress, "sync cycle already in progress", nil)

// ReleaseSource returns the latest release, or false when it is unavailable.
type ReleaseSource interface {
	FetchLatest(ctx context.Context) (release.Descriptor, bool)
}

// BundleFetcher downloads and decodes a content bundle.
type BundleFetcher interface {
	Download(ctx context.Context, url string, progress content.ProgressFunc) (content.Bundle, error)
}

// Installer replaces the live content directory.
type Installer interface {
	Install(b content.Bundle) error
	HasValidContent() bool
	Recover() error
}

// MetaStore persists the installed content record.
type MetaStore interface {
	Read() (meta.LocalMeta, bool)
	Write(m meta.LocalMeta) error
}

// Recorder stores finished cycles.
type Recorder interface {
	Record(ctx context.Context, r history.Record) error
}

// Observer receives cycle measurements.
type Observer interface {
	ObserveCycle(state string, d time.Duration)
	AddDownloaded(n int64)
	MarkSuccess(at time.Time)
	SetContentVersion(version string)
}

// Orchestrator runs sync cycles. Only one cycle runs at a time.
type Orchestrator struct {
	releases  ReleaseSource
	fetcher   BundleFetcher
	installer Installer
	meta      MetaStore

	notifier  Notifier
	recorder  Recorder
	observer  Observer
	assetName string
	now       func() time.Time
	logger    *zap.SugaredLogger

	running atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sets where status and error messages go.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithRecorder stores every finished cycle.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithObserver reports cycle measurements.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithAssetName changes the asset looked up in each release.
func WithAssetName(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.assetName = name
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an Orchestrator.
func New(releases ReleaseSource, fetcher BundleFetcher, installer Installer, store MetaStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		releases:  releases,
		fetcher:   fetcher,
		installer: installer,
		meta:      store,
		notifier:  NopNotifier{},
		assetName: DefaultAssetName,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Named("syncer")
	}
	o.notifier = guardedNotifier{next: o.notifier, logger: o.logger}
	return o
}

// Running reports whether a cycle is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run executes one sync cycle. Every cycle ends in DONE, DEGRADED or FAILED.
// The returned error is non-nil only for FAILED cycles (CodeFatal wrapping the
// classified cause) and for overlapping calls (ErrCycleInProgress).
func (o *Orchestrator) Run(ctx context.Context) (res Result, err error) {
	if !o.running.CompareAndSwap(false, true) {
		return Result{}, ErrCycleInProgress
	}
	defer o.running.Store(false)

	s := newSession(o.now())
	defer func() {
		if r := recover(); r != nil {
			o.logger.Errorw("sync cycle panicked", "session", s.ID, "state", s.State(), "panic", r)
			cause := apperrors.New(apperrors.CodeUnknown, fmt.Sprintf("panic: %v", r), nil)
			res = o.failAfterPanic(ctx, s, cause)
			err = res.Err
		}
	}()

	o.logger.Infow("sync cycle started", "session", s.ID)
	res = o.cycle(ctx, s)
	if res.State == StateFailed {
		return res, res.Err
	}
	return res, nil
}

func (o *Orchestrator) cycle(ctx context.Context, s *Session) Result {
	s.enter(StateChecking)
	o.notifier.Status(MsgChecking)

	if err := o.installer.Recover(); err != nil {
		o.logger.Warnw("content directory repair failed", "session", s.ID, "error", err)
	}

	s.Local, s.HasLocal = o.meta.Read()

	rel, ok := o.releases.FetchLatest(ctx)
	if !ok {
		cause := apperrors.New(apperrors.CodeConnectivity, "release feed unavailable", nil)
		return o.fallback(ctx, s, MsgCachedOffline, MsgNoContent, cause)
	}
	s.Release = &rel

	// A missing record leaves Local zero, so any published release is newer.
	if !rel.NewerThan(s.Local.PublishedAt) {
		s.enter(StateUpToDate)
		o.notifier.Status(MsgUpToDate)
		o.logger.Infow("content is current", "session", s.ID, "version", s.Local.Version, "remote", rel.Tag)
		return o.finish(ctx, s, StateDone, o.localVersion(s), nil)
	}

	asset, ok := rel.FindAsset(o.assetName)
	if !ok {
		cause := apperrors.New(apperrors.CodeAssetMissing,
			fmt.Sprintf("release %s has no asset %q", rel.Tag, o.assetName), nil)
		return o.fallback(ctx, s, MsgCachedNoBundle, MsgBundleMissing, cause)
	}

	s.enter(StateDownloading)
	o.notifier.Status(MsgDownloading)
	bundle, err := o.fetcher.Download(ctx, asset.DownloadURL, o.progress())
	if err != nil {
		return o.fallback(ctx, s, MsgCachedDownload, fmt.Sprintf(msgDownloadFailedF, err), err)
	}

	s.enter(StateInstalling)
	o.notifier.Status(MsgInstalling)
	if err := o.installer.Install(bundle); err != nil {
		return o.fallback(ctx, s, MsgCachedInstall, fmt.Sprintf(msgInstallFailedF, err), err)
	}

	record := meta.LocalMeta{
		Version:      rel.Tag,
		PublishedAt:  rel.PublishedAt,
		DownloadedAt: o.now().UTC(),
	}
	if err := o.meta.Write(record); err != nil {
		// The new content is live; only the record is stale, so the next
		// cycle downloads again.
		o.logger.Errorw("content installed but record not saved", "session", s.ID, "error", err)
		o.notifier.Status(MsgUpdateComplete)
		return o.finish(ctx, s, StateDegraded, rel.Tag, err)
	}

	o.notifier.Status(MsgUpdateComplete)
	return o.finish(ctx, s, StateDone, rel.Tag, nil)
}

// fallback resolves a failed step against what is installed.
func (o *Orchestrator) fallback(ctx context.Context, s *Session, cachedMsg, deadEndMsg string, cause error) Result {
	o.logger.Warnw("sync step failed", "session", s.ID, "state", s.State(), "error", cause)
	if o.installer.HasValidContent() {
		o.notifier.Status(cachedMsg)
		return o.finish(ctx, s, StateDegraded, o.localVersion(s), cause)
	}
	return o.fail(ctx, s, deadEndMsg, cause)
}

func (o *Orchestrator) fail(ctx context.Context, s *Session, message string, cause error) Result {
	o.notifier.Error(message)
	return o.finish(ctx, s, StateFailed, "", apperrors.New(apperrors.CodeFatal, message, cause))
}

// failAfterPanic ends a cycle that panicked. A second panic from the observer
// or recorder still yields a FAILED result.
func (o *Orchestrator) failAfterPanic(ctx context.Context, s *Session, cause error) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Errorw("sync cycle cleanup panicked", "session", s.ID, "panic", r)
			s.enter(StateFailed)
			s.FinishedAt = o.now()
			res = Result{State: StateFailed, Err: apperrors.New(apperrors.CodeFatal, MsgNoContent, cause), Session: s}
		}
	}()
	return o.fail(ctx, s, MsgNoContent, cause)
}

func (o *Orchestrator) finish(ctx context.Context, s *Session, state State, version string, cause error) Result {
	s.enter(state)
	s.FinishedAt = o.now()

	res := Result{State: state, Err: cause, Version: version, Session: s}

	fields := []any{"session", s.ID, "state", state, "trail", s.Trail(), "duration", s.Duration()}
	if version != "" {
		fields = append(fields, "version", version)
	}
	if cause != nil {
		fields = append(fields, "error", cause)
	}
	switch state {
	case StateFailed:
		o.logger.Errorw("sync cycle failed", fields...)
	case StateDegraded:
		o.logger.Warnw("sync cycle degraded", fields...)
	default:
		o.logger.Infow("sync cycle finished", fields...)
	}

	if o.observer != nil {
		o.observer.ObserveCycle(state.String(), s.Duration())
		if state == StateDone {
			o.observer.MarkSuccess(s.FinishedAt)
		}
		if version != "" {
			o.observer.SetContentVersion(version)
		}
	}
	if o.recorder != nil {
		o.record(ctx, s, res)
	}
	return res
}

func (o *Orchestrator) record(ctx context.Context, s *Session, res Result) {
	r := history.Record{
		ID:         s.ID.String(),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		State:      res.State.String(),
	}
	if s.Release != nil {
		r.ReleaseTag = s.Release.Tag
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
		if apperrors.IsCode(res.Err, apperrors.CodeFatal) {
			if inner := unwrapCause(res.Err); inner != nil {
				r.Error = fmt.Sprintf("%s: %v", r.Error, inner)
			}
		}
	}
	if err := o.recorder.Record(context.WithoutCancel(ctx), r); err != nil {
		o.logger.Warnw("failed to record sync cycle", "session", s.ID, "error", err)
	}
}

func unwrapCause(err error) error {
	if structured, ok := err.(apperrors.Error); ok {
		return structured.Err
	}
	return nil
}

func (o *Orchestrator) localVersion(s *Session) string {
	if s.HasLocal && s.Local.Version != "" {
		return s.Local.Version
	}
	return meta.UnknownVersion
}

func (o *Orchestrator) progress() content.ProgressFunc {
	pn, _ := o.notifier.(ProgressNotifier)
	var last int64
	return func(read, total int64) {
		if o.observer != nil {
			o.observer.AddDownloaded(read - last)
		}
		last = read
		if pn != nil {
			pn.Progress(read, total)
		}
	}
}
