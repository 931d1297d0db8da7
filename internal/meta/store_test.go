package meta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
)

func TestReadAbsentOnFirstRun(t *testing.T) {
	s := NewStore("/data/content_meta.json", WithFs(afero.NewMemMapFs()))

	_, ok := s.Read()
	assert.False(t, ok)
	assert.Equal(t, UnknownVersion, s.Version())
}

func TestWriteThenRead(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore("/data/content_meta.json", WithFs(fsys))

	published := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	downloaded := time.Date(2024, 2, 2, 10, 30, 0, 0, time.UTC)
	require.NoError(t, s.Write(LocalMeta{Version: "v1.2.0", PublishedAt: published, DownloadedAt: downloaded}))

	got, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, "v1.2.0", got.Version)
	assert.True(t, got.PublishedAt.Equal(published))
	assert.True(t, got.DownloadedAt.Equal(downloaded))
	assert.Equal(t, "v1.2.0", s.Version())
}

func TestWriteUsesDocumentedFieldNames(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore("/data/content_meta.json", WithFs(fsys))

	require.NoError(t, s.Write(LocalMeta{
		Version:      "v1.0.0",
		PublishedAt:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		DownloadedAt: time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC),
	}))

	data, err := afero.ReadFile(fsys, "/data/content_meta.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "v1.0.0"`)
	assert.Contains(t, string(data), `"published_at": "2024-02-01T00:00:00Z"`)
	assert.Contains(t, string(data), `"downloaded_at": "2024-02-01T01:00:00Z"`)
}

func TestWriteReplacesPriorRecordWithoutLeftovers(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewStore("/data/content_meta.json", WithFs(fsys))

	require.NoError(t, s.Write(LocalMeta{Version: "v1"}))
	require.NoError(t, s.Write(LocalMeta{Version: "v2"}))

	assert.Equal(t, "v2", s.Version())

	entries, err := afero.ReadDir(fsys, "/data")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "content_meta.json", entries[0].Name())
}

func TestReadCorruptRecordIsAbsent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/content_meta.json", []byte("{not json"), 0o644))
	s := NewStore("/data/content_meta.json", WithFs(fsys))

	_, ok := s.Read()
	assert.False(t, ok)
	assert.Equal(t, UnknownVersion, s.Version())
}

func TestReadBadTimestampIsAbsent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	body := `{"version":"v1","published_at":"yesterday","downloaded_at":"2024-01-01T00:00:00Z"}`
	require.NoError(t, afero.WriteFile(fsys, "/data/content_meta.json", []byte(body), 0o644))
	s := NewStore("/data/content_meta.json", WithFs(fsys))

	_, ok := s.Read()
	assert.False(t, ok)
}

func TestWriteFailureIsIOError(t *testing.T) {
	s := NewStore("/data/content_meta.json", WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())))

	err := s.Write(LocalMeta{Version: "v1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeIO))
}

func TestWriteOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "content_meta.json")
	s := NewStore(path)

	require.NoError(t, s.Write(LocalMeta{Version: "v3"}))
	_, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, "v3", s.Version())
	assert.Equal(t, path, s.Path())
}
