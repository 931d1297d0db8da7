package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agent0ai/a0-launcher/internal/content"
	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
	"github.com/agent0ai/a0-launcher/internal/history"
	"github.com/agent0ai/a0-launcher/internal/meta"
	"github.com/agent0ai/a0-launcher/internal/release"
)

type fakeSource struct {
	desc  release.Descriptor
	ok    bool
	calls int
	// block, when set, is waited on before answering.
	block chan struct{}
}

func (f *fakeSource) FetchLatest(ctx context.Context) (release.Descriptor, bool) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	return f.desc, f.ok
}

type fakeFetcher struct {
	bundle content.Bundle
	err    error
	chunks []int64
	calls  int
	urls   []string
}

func (f *fakeFetcher) Download(ctx context.Context, url string, progress content.ProgressFunc) (content.Bundle, error) {
	f.calls++
	f.urls = append(f.urls, url)
	if progress != nil {
		for _, read := range f.chunks {
			progress(read, f.chunks[len(f.chunks)-1])
		}
	}
	return f.bundle, f.err
}

type fakeInstaller struct {
	valid      bool
	installErr error
	installs   int
	recovers   int
	installed  content.Bundle
}

func (f *fakeInstaller) Install(b content.Bundle) error {
	f.installs++
	if f.installErr != nil {
		return f.installErr
	}
	f.installed = b
	f.valid = true
	return nil
}

func (f *fakeInstaller) HasValidContent() bool { return f.valid }

func (f *fakeInstaller) Recover() error {
	f.recovers++
	return nil
}

type fakeMeta struct {
	m        meta.LocalMeta
	ok       bool
	writeErr error
	writes   int
	reads    int
}

func (f *fakeMeta) Read() (meta.LocalMeta, bool) {
	f.reads++
	return f.m, f.ok
}

func (f *fakeMeta) Write(m meta.LocalMeta) error {
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.m = m
	f.ok = true
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []history.Record
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, r history.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return f.err
}

type fakeObserver struct {
	cycles     map[string]int
	downloaded int64
	success    time.Time
	version    string
}

func (f *fakeObserver) ObserveCycle(state string, _ time.Duration) {
	if f.cycles == nil {
		f.cycles = map[string]int{}
	}
	f.cycles[state]++
}
func (f *fakeObserver) AddDownloaded(n int64)      { f.downloaded += n }
func (f *fakeObserver) MarkSuccess(at time.Time)   { f.success = at }
func (f *fakeObserver) SetContentVersion(v string) { f.version = v }

var errDownload = apperrors.New(apperrors.CodeDownload, "download failed", errors.New("status 500"))

func mustBundle(files map[string]string) content.Bundle {
	b, err := content.NewBundle(files)
	if err != nil {
		panic(err)
	}
	return b
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func releaseAt(tag string, published time.Time, assets ...release.Asset) release.Descriptor {
	return release.Descriptor{Tag: tag, PublishedAt: published, Assets: assets}
}

func contentAsset() release.Asset {
	return release.Asset{Name: DefaultAssetName, DownloadURL: "https://example.test/content.json"}
}
