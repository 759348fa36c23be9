// Package models holds shared Tidarr data structures.
package models

import "tidarr/internal/domain/consts"

// MediaKind selects which manifest family an item resolves through.
type MediaKind int

const (
	KindTrack MediaKind = iota
	KindVideo
)

// String returns the ledger spelling of the kind.
func (k MediaKind) String() string {
	if k == KindVideo {
		return consts.KindVideo
	}
	return consts.KindTrack
}

// StreamVariant is one selectable quality option from a video master playlist.
type StreamVariant struct {
	Resolution string
	Bandwidth  int64
	Codecs     string
	URL        string
}

// SegmentDescriptor is one retrievable chunk. Ordinal order is the exact
// byte-concatenation order of the final artifact.
type SegmentDescriptor struct {
	URL      string
	Filename string
	Ordinal  int
}

// DownloadJob is the ephemeral state for one pipeline invocation. The temp
// directory is exclusively owned by the job and removed at job end.
type DownloadJob struct {
	ItemID     string
	Kind       MediaKind
	Quality    string
	OutputPath string
	TempDir    string
	Segments   []SegmentDescriptor
}

// JobResult reports what the reassembler produced. Callers wanting strict
// completeness compare SegmentsWritten against SegmentsExpected.
type JobResult struct {
	OutputPath       string
	SegmentsExpected int
	SegmentsWritten  int
	SegmentsSkipped  int
	BytesWritten     int64
}

// MediaMeta is the subset of item metadata used for output naming and the
// downloads ledger.
type MediaMeta struct {
	ItemID     string
	Title      string
	Artist     string
	ReleasedAt string
}
