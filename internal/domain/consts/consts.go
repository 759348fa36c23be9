// Package consts holds various global, unchanging values.
package consts

import "time"

// Service endpoints
const (
	AuthBaseURL    = "https://auth.tidal.com/v1/oauth2"
	DeviceAuthURL  = AuthBaseURL + "/device_authorization"
	TokenURL       = AuthBaseURL + "/token"
	APIBaseURL     = "https://api.tidal.com/v1"
	OAuthScope     = "r_usr w_usr w_sub"
	DeviceGrant    = "urn:ietf:params:oauth:grant-type:device_code"
	RefreshGrant   = "refresh_token"
)

// Default OAuth client credentials (the service's public TV client pair,
// overridable via flags/env).
const (
	DefaultClientID     = "zU4XHVVkc2tDPo4t"
	DefaultClientSecret = "VJKhDFqJPqvsPVNBV6ukXTJmwlvbttP7wlMlrc72se4="
)

// Default qualities per media kind.
const (
	DefaultTrackQuality = "LOSSLESS"
	DefaultVideoQuality = "best"
)

// Provider error codes. Status 400 with sub-status 1002 means the user has
// not yet approved the device code, every other pair is terminal.
const (
	PendingStatus    = 400
	PendingSubStatus = 1002
)

// TokenExpirySkew is subtracted from the stored expiry when judging token
// validity. Kept at zero to match the upstream contract.
const TokenExpirySkew = 0 * time.Second

// SegmentUserAgent is required by the video segment hosts.
const SegmentUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36"

// UnknownAttr marks a playlist attribute the master manifest did not carry.
const UnknownAttr = "unknown"

// Aria2c invocation values.
const (
	AriaBinary    = "aria2c"
	AriaInputFile = "aria2_input.txt"
)

// Media kinds as stored in the downloads ledger.
const (
	KindTrack = "track"
	KindVideo = "video"
)

// Database
const (
	DBDownloads = "downloads"

	QDLItemID   = "item_id"
	QDLKind     = "kind"
	QDLQuality  = "quality"
	QDLPath     = "output_path"
	QDLExpected = "segments_expected"
	QDLWritten  = "segments_written"
	QDLReleased = "released_at"
	QDLCreated  = "created_at"
)
