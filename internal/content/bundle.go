// Package content downloads release bundles and materializes them on disk.
//
// A bundle is a single JSON document mapping relative file paths to text:
//
//	{"files": {"index.html": "<!doctype html>...", "js/app.js": "..."}}
//
// The Installer never writes into the live directory directly; it stages the
// full bundle next to it and swaps directories once every file is written.
package content

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/agent0ai/a0-launcher/internal/errors"
)

// ErrInvalidBundle is returned when a bundle document cannot be decoded.
var ErrInvalidBundle = apperrors.New(apperrors.CodeParse, "invalid content bundle", nil)

// Bundle is an immutable mapping of normalized slash-separated relative
// paths to file contents.
type Bundle struct {
	files map[string]string
}

type bundleDocument struct {
	Files map[string]string `json:"files"`
}

// NewBundle normalizes and validates files into a Bundle.
func NewBundle(files map[string]string) (Bundle, error) {
	normalized := make(map[string]string, len(files))
	for raw, body := range files {
		p, err := normalizePath(raw)
		if err != nil {
			return Bundle{}, err
		}
		if _, dup := normalized[p]; dup {
			return Bundle{}, fmt.Errorf("%w: duplicate path %q", ErrInvalidBundle, p)
		}
		normalized[p] = body
	}
	return Bundle{files: normalized}, nil
}

// Decode parses a bundle document.
func Decode(data []byte) (Bundle, error) {
	var doc bundleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Bundle{}, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if doc.Files == nil {
		return Bundle{}, fmt.Errorf("%w: missing files object", ErrInvalidBundle)
	}
	return NewBundle(doc.Files)
}

// Len returns the number of files.
func (b Bundle) Len() int {
	return len(b.files)
}

// Has reports whether the bundle contains p (after normalization).
func (b Bundle) Has(p string) bool {
	n, err := normalizePath(p)
	if err != nil {
		return false
	}
	_, ok := b.files[n]
	return ok
}

// File returns the contents stored at p.
func (b Bundle) File(p string) (string, bool) {
	n, err := normalizePath(p)
	if err != nil {
		return "", false
	}
	body, ok := b.files[n]
	return body, ok
}

// Paths returns every path in sorted order.
func (b Bundle) Paths() []string {
	paths := make([]string, 0, len(b.files))
	for p := range b.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// normalizePath converts backslashes, cleans the path and rejects anything
// that would escape the content directory.
func normalizePath(raw string) (string, error) {
	p := strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidBundle)
	}
	if strings.HasPrefix(p, "/") || filepath.VolumeName(filepath.FromSlash(p)) != "" {
		return "", fmt.Errorf("%w: absolute path %q", ErrInvalidBundle, raw)
	}
	p = path.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") || !filepath.IsLocal(filepath.FromSlash(p)) {
		return "", fmt.Errorf("%w: path %q escapes the content directory", ErrInvalidBundle, raw)
	}
	return p, nil
}
