package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
	"github.com/agent0ai/a0-launcher/internal/logging"
)

// DefaultEntryFile is the marker used to decide whether content is present.
const DefaultEntryFile = "index.html"

// ErrIncompleteBundle is returned when a bundle lacks the entry file.
var ErrIncompleteBundle = apperrors.New(apperrors.CodeParse, "bundle is missing its entry file", nil)

// Installer owns the live content directory.
type Installer struct {
	fs     afero.Fs
	dir    string
	entry  string
	logger *zap.SugaredLogger
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) InstallerOption {
	return func(i *Installer) {
		i.fs = fsys
	}
}

// WithEntryFile changes the marker entry file.
func WithEntryFile(name string) InstallerOption {
	return func(i *Installer) {
		i.entry = name
	}
}

// WithInstallerLogger sets the logger.
func WithInstallerLogger(l *zap.SugaredLogger) InstallerOption {
	return func(i *Installer) {
		i.logger = l
	}
}

// NewInstaller creates an Installer for the live directory dir.
func NewInstaller(dir string, opts ...InstallerOption) *Installer {
	i := &Installer{
		fs:    afero.NewOsFs(),
		dir:   filepath.Clean(dir),
		entry: DefaultEntryFile,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = logging.Named("installer")
	}
	return i
}

// Dir returns the live content directory.
func (i *Installer) Dir() string {
	return i.dir
}

// EntryPath returns the absolute path of the entry file.
func (i *Installer) EntryPath() string {
	return filepath.Join(i.dir, filepath.FromSlash(i.entry))
}

// HasValidContent reports whether the entry file exists as a regular file.
// It does not verify the rest of the bundle.
func (i *Installer) HasValidContent() bool {
	info, err := i.fs.Stat(i.EntryPath())
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Install replaces the live directory with b. Files are written to a
// staging directory beside the live one, then the directories are swapped
// by rename. A failure before the swap leaves the live directory untouched.
func (i *Installer) Install(b Bundle) error {
	if !b.Has(i.entry) {
		return fmt.Errorf("%w: %s", ErrIncompleteBundle, i.entry)
	}

	parent := filepath.Dir(i.dir)
	if err := i.fs.MkdirAll(parent, 0o755); err != nil {
		return ioError("create "+parent, err)
	}

	id := uuid.NewString()
	staging := i.siblingPath("staging", id)
	backup := i.siblingPath("backup", id)

	if err := i.writeTree(staging, b); err != nil {
		_ = i.fs.RemoveAll(staging)
		return err
	}

	hadLive, err := afero.Exists(i.fs, i.dir)
	if err != nil {
		_ = i.fs.RemoveAll(staging)
		return ioError("stat "+i.dir, err)
	}
	if hadLive {
		if err := i.fs.Rename(i.dir, backup); err != nil {
			_ = i.fs.RemoveAll(staging)
			return ioError("move current content aside", err)
		}
	}
	if err := i.fs.Rename(staging, i.dir); err != nil {
		if hadLive {
			if rerr := i.fs.Rename(backup, i.dir); rerr != nil {
				i.logger.Errorw("restore previous content", "backup", backup, "error", rerr)
			}
		}
		_ = i.fs.RemoveAll(staging)
		return ioError("swap in new content", err)
	}
	if hadLive {
		if err := i.fs.RemoveAll(backup); err != nil {
			i.logger.Warnw("remove previous content", "path", backup, "error", err)
		}
	}

	i.logger.Infow("installed content", "dir", i.dir, "files", b.Len())
	return nil
}

func (i *Installer) writeTree(root string, b Bundle) error {
	if err := i.fs.MkdirAll(root, 0o755); err != nil {
		return ioError("create staging directory", err)
	}
	for _, p := range b.Paths() {
		body, _ := b.File(p)
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := i.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return ioError("create directory for "+p, err)
		}
		if err := afero.WriteFile(i.fs, full, []byte(body), 0o644); err != nil {
			return ioError("write "+p, err)
		}
	}
	return nil
}

// Recover repairs state left by an interrupted install: stale staging
// directories are removed and, if the live directory is missing, the most
// recent backup is moved back into place.
func (i *Installer) Recover() error {
	parent := filepath.Dir(i.dir)
	entries, err := afero.ReadDir(i.fs, parent)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return ioError("list "+parent, err)
	}

	var backups []os.FileInfo
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e.Name(), i.siblingPrefix("staging")):
			p := filepath.Join(parent, e.Name())
			i.logger.Infow("removing stale staging directory", "path", p)
			if err := i.fs.RemoveAll(p); err != nil {
				return ioError("remove "+p, err)
			}
		case strings.HasPrefix(e.Name(), i.siblingPrefix("backup")):
			backups = append(backups, e)
		}
	}
	if len(backups) == 0 {
		return nil
	}
	sort.Slice(backups, func(a, b int) bool {
		return backups[a].ModTime().After(backups[b].ModTime())
	})

	hasLive, err := afero.Exists(i.fs, i.dir)
	if err != nil {
		return ioError("stat "+i.dir, err)
	}
	if !hasLive {
		newest := filepath.Join(parent, backups[0].Name())
		i.logger.Warnw("restoring content from interrupted install", "backup", newest)
		if err := i.fs.Rename(newest, i.dir); err != nil {
			return ioError("restore "+newest, err)
		}
		backups = backups[1:]
	}
	for _, b := range backups {
		p := filepath.Join(parent, b.Name())
		if err := i.fs.RemoveAll(p); err != nil {
			return ioError("remove "+p, err)
		}
	}
	return nil
}

func (i *Installer) siblingPrefix(kind string) string {
	return "." + filepath.Base(i.dir) + "." + kind + "-"
}

func (i *Installer) siblingPath(kind, id string) string {
	return filepath.Join(filepath.Dir(i.dir), i.siblingPrefix(kind)+id)
}

func ioError(msg string, err error) error {
	return apperrors.New(apperrors.CodeIO, fmt.Sprintf("%s: %v", msg, err), err)
}
