package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent0ai/a0-launcher/internal/content"
	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
	"github.com/agent0ai/a0-launcher/internal/meta"
	"github.com/agent0ai/a0-launcher/internal/release"
)

type harness struct {
	source    *fakeSource
	fetcher   *fakeFetcher
	installer *fakeInstaller
	meta      *fakeMeta
	notes     *RecordingNotifier
	recorder  *fakeRecorder
	observer  *fakeObserver
	now       time.Time
}

func newHarness() *harness {
	return &harness{
		source:    &fakeSource{},
		fetcher:   &fakeFetcher{bundle: mustBundle(map[string]string{"index.html": "<html></html>"})},
		installer: &fakeInstaller{},
		meta:      &fakeMeta{},
		notes:     &RecordingNotifier{},
		recorder:  &fakeRecorder{},
		observer:  &fakeObserver{},
		now:       date(2024, 3, 1),
	}
}

func (h *harness) orchestrator(opts ...Option) *Orchestrator {
	base := []Option{
		WithNotifier(h.notes),
		WithRecorder(h.recorder),
		WithObserver(h.observer),
		WithClock(func() time.Time { return h.now }),
	}
	return New(h.source, h.fetcher, h.installer, h.meta, append(base, opts...)...)
}

func (h *harness) run(t *testing.T) (Result, error) {
	t.Helper()
	return h.orchestrator().Run(context.Background())
}

func TestRemoteNotNewerIsUpToDate(t *testing.T) {
	local := date(2024, 2, 1)
	cases := []struct {
		name   string
		remote time.Time
	}{
		{"equal", local},
		{"one second older", local.Add(-time.Second)},
		{"a year older", local.AddDate(-1, 0, 0)},
		{"same instant in another zone", local.In(time.FixedZone("UTC+5", 5*3600))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.installer.valid = true
			h.meta.m, h.meta.ok = meta.LocalMeta{Version: "v1", PublishedAt: local}, true
			h.source.desc, h.source.ok = releaseAt("v0", tc.remote, contentAsset()), true

			res, err := h.run(t)
			require.NoError(t, err)
			assert.Equal(t, StateDone, res.State)
			assert.Equal(t, []State{StateChecking, StateUpToDate, StateDone}, res.Session.Trail())
			assert.Equal(t, "v1", res.Version)
			assert.Zero(t, h.fetcher.calls)
			assert.Zero(t, h.installer.installs)
			assert.Zero(t, h.meta.writes)
			assert.Equal(t, []string{MsgChecking, MsgUpToDate}, h.notes.Messages(EventStatus))
		})
	}
}

func TestMissingLocalMetaForcesDownload(t *testing.T) {
	for _, published := range []time.Time{date(1971, 1, 1), date(2024, 2, 1), date(2099, 12, 31)} {
		t.Run(published.Format("2006"), func(t *testing.T) {
			h := newHarness()
			h.source.desc, h.source.ok = releaseAt("v2", published, contentAsset()), true

			res, err := h.run(t)
			require.NoError(t, err)
			assert.Equal(t, StateDone, res.State)
			assert.Equal(t, 1, h.fetcher.calls)
			assert.Equal(t, 1, h.installer.installs)
		})
	}
}

func TestSuccessfulUpdateWritesMeta(t *testing.T) {
	h := newHarness()
	h.meta.m, h.meta.ok = meta.LocalMeta{Version: "v1", PublishedAt: date(2024, 1, 1)}, true
	h.installer.valid = true
	h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true

	res, err := h.run(t)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.True(t, res.CanLoad())
	assert.Equal(t, "v2", res.Version)
	assert.Equal(t, []State{StateChecking, StateDownloading, StateInstalling, StateDone}, res.Session.Trail())
	assert.Equal(t, []string{"https://example.test/content.json"}, h.fetcher.urls)

	assert.Equal(t, "v2", h.meta.m.Version)
	assert.True(t, h.meta.m.PublishedAt.Equal(date(2024, 2, 1)))
	assert.True(t, h.meta.m.DownloadedAt.Equal(h.now))
	assert.True(t, h.installer.HasValidContent())

	assert.Equal(t,
		[]string{MsgChecking, MsgDownloading, MsgInstalling, MsgUpdateComplete},
		h.notes.Messages(EventStatus))
	assert.Empty(t, h.notes.Messages(EventError))
}

func TestOfflineFallback(t *testing.T) {
	t.Run("cached content degrades", func(t *testing.T) {
		h := newHarness()
		h.installer.valid = true
		h.meta.m, h.meta.ok = meta.LocalMeta{Version: "v1"}, true

		res, err := h.run(t)
		require.NoError(t, err)
		assert.Equal(t, StateDegraded, res.State)
		assert.True(t, res.CanLoad())
		assert.Equal(t, "v1", res.Version)
		assert.True(t, apperrors.HasCode(res.Err, apperrors.CodeConnectivity))
		assert.Contains(t, h.notes.Messages(EventStatus), MsgCachedOffline)
		assert.Empty(t, h.notes.Messages(EventError))
		assert.Nil(t, res.Session.Release)
	})

	t.Run("no content fails with connectivity cause", func(t *testing.T) {
		h := newHarness()

		res, err := h.run(t)
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
		assert.False(t, res.CanLoad())
		assert.True(t, apperrors.IsCode(err, apperrors.CodeFatal))
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConnectivity))
		assert.Equal(t, []string{MsgNoContent}, h.notes.Messages(EventError))
	})
}

func TestMissingAssetFallback(t *testing.T) {
	t.Run("cached content degrades", func(t *testing.T) {
		h := newHarness()
		h.installer.valid = true
		h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1)), true

		res, err := h.run(t)
		require.NoError(t, err)
		assert.Equal(t, StateDegraded, res.State)
		assert.Equal(t, meta.UnknownVersion, res.Version)
		assert.True(t, apperrors.HasCode(res.Err, apperrors.CodeAssetMissing))
		assert.Contains(t, h.notes.Messages(EventStatus), MsgCachedNoBundle)
		assert.Zero(t, h.fetcher.calls)
	})

	t.Run("asset name must match exactly", func(t *testing.T) {
		h := newHarness()
		h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1),
			release.Asset{Name: "Content.json", DownloadURL: "https://example.test/x"}), true

		res, err := h.run(t)
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeAssetMissing))
		assert.Equal(t, []string{MsgBundleMissing}, h.notes.Messages(EventError))
		assert.Zero(t, h.fetcher.calls)
	})
}

func TestDownloadFailureFallback(t *testing.T) {
	t.Run("cached content degrades", func(t *testing.T) {
		h := newHarness()
		h.installer.valid = true
		h.fetcher.err = errDownload
		h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true

		res, err := h.run(t)
		require.NoError(t, err)
		assert.Equal(t, StateDegraded, res.State)
		assert.True(t, apperrors.HasCode(res.Err, apperrors.CodeDownload))
		assert.Contains(t, h.notes.Messages(EventStatus), MsgCachedDownload)
		assert.Zero(t, h.installer.installs)
		assert.Zero(t, h.meta.writes)
	})

	t.Run("no content surfaces the download error", func(t *testing.T) {
		h := newHarness()
		h.fetcher.err = errDownload
		h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true

		res, err := h.run(t)
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeDownload))
		assert.Equal(t, []string{fmt.Sprintf("Download failed: %v", errDownload)}, h.notes.Messages(EventError))
	})
}

func TestInstallFailureFallback(t *testing.T) {
	installErr := apperrors.New(apperrors.CodeIO, "swap in new content", errors.New("permission denied"))

	t.Run("previous content survives", func(t *testing.T) {
		h := newHarness()
		h.installer.valid = true
		h.installer.installErr = installErr
		h.meta.m, h.meta.ok = meta.LocalMeta{Version: "v1", PublishedAt: date(2024, 1, 1)}, true
		h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true

		res, err := h.run(t)
		require.NoError(t, err)
		assert.Equal(t, StateDegraded, res.State)
		assert.Equal(t, "v1", res.Version)
		assert.True(t, apperrors.HasCode(res.Err, apperrors.CodeIO))
		assert.Contains(t, h.notes.Messages(EventStatus), MsgCachedInstall)
		assert.Zero(t, h.meta.writes)
		assert.Equal(t, "v1", h.meta.m.Version)
	})

	t.Run("nothing on disk fails", func(t *testing.T) {
		h := newHarness()
		h.installer.installErr = installErr
		h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true

		res, err := h.run(t)
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
		assert.Equal(t, []State{StateChecking, StateDownloading, StateInstalling, StateFailed}, res.Session.Trail())
		assert.Equal(t, []string{"Install failed: swap in new content"}, h.notes.Messages(EventError))
	})
}

func TestMetaWriteFailureDegrades(t *testing.T) {
	h := newHarness()
	h.meta.writeErr = apperrors.New(apperrors.CodeIO, "write content record", errors.New("disk full"))
	h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true

	res, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, StateDegraded, res.State)
	assert.Equal(t, "v2", res.Version)
	assert.True(t, res.CanLoad())
	assert.True(t, apperrors.HasCode(res.Err, apperrors.CodeIO))
	assert.Equal(t, 1, h.installer.installs)
}

func TestIdempotentSecondRun(t *testing.T) {
	h := newHarness()
	h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true
	o := h.orchestrator()

	first, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateDone, first.State)
	require.Equal(t, 1, h.source.calls)
	require.Equal(t, 1, h.installer.installs)

	second, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, second.State)
	assert.Equal(t, []State{StateChecking, StateUpToDate, StateDone}, second.Session.Trail())
	assert.Equal(t, 2, h.source.calls)
	assert.Equal(t, 1, h.installer.installs)
	assert.Equal(t, 1, h.fetcher.calls)
	assert.NotEqual(t, first.Session.ID, second.Session.ID)
}

func TestOverlappingRunIsRejected(t *testing.T) {
	h := newHarness()
	h.installer.valid = true
	h.source.block = make(chan struct{})
	o := h.orchestrator()

	done := make(chan Result)
	go func() {
		res, _ := o.Run(context.Background())
		done <- res
	}()
	require.Eventually(t, o.Running, time.Second, time.Millisecond)

	res, err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeCycleInProgress))
	assert.Nil(t, res.Session)

	close(h.source.block)
	first := <-done
	assert.Equal(t, StateDegraded, first.State)
	assert.False(t, o.Running())
	assert.Len(t, h.recorder.records, 1)
}

func TestRunRecoversInterruptedInstallFirst(t *testing.T) {
	h := newHarness()
	_, _ = h.run(t)
	assert.Equal(t, 1, h.installer.recovers)
}

func TestCycleIsRecordedAndObserved(t *testing.T) {
	h := newHarness()
	h.fetcher.chunks = []int64{100, 250, 400}
	h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true

	res, err := h.run(t)
	require.NoError(t, err)

	require.Len(t, h.recorder.records, 1)
	rec := h.recorder.records[0]
	assert.Equal(t, res.Session.ID.String(), rec.ID)
	assert.Equal(t, "DONE", rec.State)
	assert.Equal(t, "v2", rec.ReleaseTag)
	assert.Empty(t, rec.Error)

	assert.Equal(t, 1, h.observer.cycles["DONE"])
	assert.Equal(t, int64(400), h.observer.downloaded)
	assert.Equal(t, "v2", h.observer.version)
	assert.True(t, h.observer.success.Equal(h.now))
	assert.Equal(t, int64(400), h.notes.LastProgress())
}

func TestFailedCycleRecordsCause(t *testing.T) {
	h := newHarness()
	_, err := h.run(t)
	require.Error(t, err)

	require.Len(t, h.recorder.records, 1)
	assert.Equal(t, "FAILED", h.recorder.records[0].State)
	assert.Contains(t, h.recorder.records[0].Error, "release feed unavailable")
	assert.Equal(t, 1, h.observer.cycles["FAILED"])
	assert.True(t, h.observer.success.IsZero())
}

func TestRecorderFailureDoesNotAffectCycle(t *testing.T) {
	h := newHarness()
	h.recorder.err = errors.New("database is locked")
	h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true

	res, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
}

type panicInstaller struct{ fakeInstaller }

func (p *panicInstaller) Install(content.Bundle) error { panic("boom") }

func TestPanicEndsInFailed(t *testing.T) {
	h := newHarness()
	h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true
	o := New(h.source, h.fetcher, &panicInstaller{}, h.meta, WithNotifier(h.notes))

	var (
		res Result
		err error
	)
	require.NotPanics(t, func() {
		res, err = o.Run(context.Background())
	})
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.False(t, o.Running())
}

type panicNotifier struct{}

func (panicNotifier) Status(string)         { panic("status display crashed") }
func (panicNotifier) Error(string)          { panic("error display crashed") }
func (panicNotifier) Progress(int64, int64) { panic("progress display crashed") }

func TestPanickingNotifierDoesNotEscapeRun(t *testing.T) {
	t.Run("installer panics too", func(t *testing.T) {
		h := newHarness()
		h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true
		o := New(h.source, h.fetcher, &panicInstaller{}, h.meta, WithNotifier(panicNotifier{}), WithRecorder(h.recorder))

		var (
			res Result
			err error
		)
		require.NotPanics(t, func() {
			res, err = o.Run(context.Background())
		})
		require.Error(t, err)
		assert.Equal(t, StateFailed, res.State)
		assert.False(t, o.Running())
		require.Len(t, h.recorder.records, 1)
		assert.Equal(t, "FAILED", h.recorder.records[0].State)
	})

	t.Run("cycle still completes", func(t *testing.T) {
		h := newHarness()
		h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1), contentAsset()), true

		var (
			res Result
			err error
		)
		require.NotPanics(t, func() {
			res, err = h.orchestrator(WithNotifier(panicNotifier{})).Run(context.Background())
		})
		require.NoError(t, err)
		assert.Equal(t, StateDone, res.State)
		assert.Equal(t, "v2", res.Version)
	})
}

func TestWithAssetName(t *testing.T) {
	h := newHarness()
	h.source.desc, h.source.ok = releaseAt("v2", date(2024, 2, 1),
		release.Asset{Name: "bundle.json", DownloadURL: "https://example.test/bundle.json"}), true

	res, err := h.orchestrator(WithAssetName("bundle.json")).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{"https://example.test/bundle.json"}, h.fetcher.urls)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "CHECKING", StateChecking.String())
	assert.Equal(t, "UP_TO_DATE", StateUpToDate.String())
	assert.Equal(t, "DEGRADED", StateDegraded.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateInstalling.Terminal())
	assert.False(t, StateFailed.CanLoad())
}
