// Package release queries the remote release feed for the latest published
// release of the content repository.
//
// The feed speaks the GitHub releases API:
//
//	GET <base>/repos/{owner}/{repo}/releases/latest
//
// Network unavailability is an expected condition for the launcher, so
// FetchLatest reports it as absence rather than an error. Latest returns the
// classified error for callers that want to show it.
//
// Example usage:
//
//	client := release.NewClient("agent0ai", "a0-launcher")
//	desc, ok := client.FetchLatest(ctx)
//	if !ok {
//	    // offline: fall back to installed content
//	}
//	asset, found := desc.FindAsset("content.json")
package release
