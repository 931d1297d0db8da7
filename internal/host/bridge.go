// Package host serves installed content to the local browser and exposes
// the read-only queries and status messages the content can poll.
package host

import "github.com/agent0ai/a0-launcher/internal/meta"

// VersionReader reports the installed content version.
type VersionReader interface {
	Version() string
}

// Bridge answers the two queries available to rendered content.
type Bridge struct {
	appVersion string
	content    VersionReader
}

// NewBridge creates a Bridge. content may be nil.
func NewBridge(appVersion string, content VersionReader) *Bridge {
	return &Bridge{appVersion: appVersion, content: content}
}

// AppVersion returns the launcher version.
func (b *Bridge) AppVersion() string {
	if b.appVersion == "" {
		return meta.UnknownVersion
	}
	return b.appVersion
}

// ContentVersion returns the installed content version, or "unknown".
func (b *Bridge) ContentVersion() string {
	if b.content == nil {
		return meta.UnknownVersion
	}
	if v := b.content.Version(); v != "" {
		return v
	}
	return meta.UnknownVersion
}
