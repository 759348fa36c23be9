// Package manifest turns raw playback manifests into ordered segment lists.
// Two families exist: a variant-playlist format for video and a
// segment-template format for audio. Both guarantee that the returned
// ordinal order is the byte-concatenation order for reassembly.
package manifest

import "tidarr/internal/net"

// Resolver derives segment lists from manifest payloads. Pure parsing aside
// from fetching playlists referenced by video manifests.
type Resolver struct {
	client *net.Client
}

// NewResolver returns a Resolver using the given transport.
func NewResolver(client *net.Client) *Resolver {
	return &Resolver{client: client}
}
