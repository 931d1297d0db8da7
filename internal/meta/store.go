// Package meta persists the record describing the installed content.
package meta

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
	"github.com/agent0ai/a0-launcher/internal/logging"
)

// UnknownVersion is reported when no readable record exists.
const UnknownVersion = "unknown"

// LocalMeta is the durable record of what is currently installed.
type LocalMeta struct {
	Version      string    `json:"version"`
	PublishedAt  time.Time `json:"published_at"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Store reads and writes LocalMeta at a fixed path.
type Store struct {
	fs     afero.Fs
	path   string
	logger *zap.SugaredLogger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) StoreOption {
	return func(s *Store) {
		s.fs = fsys
	}
}

// WithLogger sets the logger used to report unreadable records.
func WithLogger(l *zap.SugaredLogger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a Store for the record at path.
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		fs:   afero.NewOsFs(),
		path: path,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Named("meta")
	}
	return s
}

// Path returns the record location.
func (s *Store) Path() string {
	return s.path
}

// Read loads the record. A missing or corrupt record is reported as absent;
// the reason is logged rather than returned.
func (s *Store) Read() (LocalMeta, bool) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Infow("no local content metadata, content will be downloaded", "path", s.path)
		} else {
			s.logger.Errorw("read content metadata", "path", s.path, "error", err)
		}
		return LocalMeta{}, false
	}
	var m LocalMeta
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Errorw("content metadata is corrupt", "path", s.path, "error", err)
		return LocalMeta{}, false
	}
	return m, true
}

// Version returns the installed content version, or UnknownVersion.
func (s *Store) Version() string {
	m, ok := s.Read()
	if !ok || m.Version == "" {
		return UnknownVersion
	}
	return m.Version
}

// Write persists m, fully replacing any prior record. The data is written to
// a temporary file in the same directory and renamed into place so readers
// never observe a partial record.
func (s *Store) Write(m LocalMeta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.CodeIO, "encode content metadata", err)
	}
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return apperrors.New(apperrors.CodeIO, fmt.Sprintf("create %s", dir), err)
	}
	tmp, err := afero.TempFile(s.fs, dir, ".content_meta-*.tmp")
	if err != nil {
		return apperrors.New(apperrors.CodeIO, "create temporary metadata file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return apperrors.New(apperrors.CodeIO, "write temporary metadata file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return apperrors.New(apperrors.CodeIO, "close temporary metadata file", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return apperrors.New(apperrors.CodeIO, "replace content metadata", err)
	}
	return nil
}
