// Package app wires the subsystems into the per-item download pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tidarr/internal/api"
	"tidarr/internal/auth"
	"tidarr/internal/downloads"
	"tidarr/internal/manifest"
	"tidarr/internal/models"
	"tidarr/internal/repo"
	"tidarr/internal/utils/logging"
)

// ErrAlreadyDownloaded is returned when the ledger already holds the item
// at the requested quality and --force was not given.
var ErrAlreadyDownloaded = errors.New("item already downloaded")

// Pipeline runs one item through resolve → fetch → reassemble → record.
type Pipeline struct {
	Auth     *auth.SessionManager
	API      *api.Client
	Resolver *manifest.Resolver
	Fetcher  downloads.SegmentFetcher
	Store    *repo.DownloadStore

	DownloadDir string
	Force       bool

	// OnDeviceCode shows the verification link when a device flow starts.
	OnDeviceCode func(userCode, verificationURL string)
}

// ProcessItem downloads one track or video end to end.
func (p *Pipeline) ProcessItem(ctx context.Context, itemID string, kind models.MediaKind, quality string) (*models.JobResult, error) {
	session, err := p.Auth.Authenticate(ctx, p.OnDeviceCode)
	if err != nil {
		return nil, err
	}

	if !p.Force && p.Store != nil {
		exists, err := p.Store.Exists(itemID, kind.String(), quality)
		if err != nil {
			logging.W("Ledger check failed, downloading anyway: %v", err)
		} else if exists {
			return nil, fmt.Errorf("%w: %s %s at quality %s (use --force to redo)", ErrAlreadyDownloaded, kind, itemID, quality)
		}
	}

	meta, err := p.API.GetMeta(ctx, session, itemID, kind)
	if err != nil {
		logging.W("Metadata fetch failed for %s, using item id for naming: %v", itemID, err)
		meta = &models.MediaMeta{ItemID: itemID}
	}

	info, err := p.API.GetPlaybackInfo(ctx, session, itemID, kind, quality)
	if err != nil {
		return nil, err
	}

	segments, err := p.resolveSegments(ctx, info.Manifest, kind, quality)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory %s: %w", p.DownloadDir, err)
	}

	job := &models.DownloadJob{
		ItemID:     itemID,
		Kind:       kind,
		Quality:    quality,
		OutputPath: filepath.Join(p.DownloadDir, outputName(meta, kind)),
		Segments:   segments,
	}

	logging.I("Starting %s download for %q (%d segments)", kind, displayTitle(meta), len(segments))
	res, err := downloads.RunJob(ctx, job, p.Fetcher)
	if err != nil {
		return nil, err
	}

	if p.Store != nil {
		rec := &repo.DownloadRecord{
			ItemID:           itemID,
			Kind:             kind.String(),
			Quality:          quality,
			OutputPath:       res.OutputPath,
			SegmentsExpected: res.SegmentsExpected,
			SegmentsWritten:  res.SegmentsWritten,
			ReleasedAt:       meta.ReleasedAt,
		}
		if err := p.Store.RecordCompleted(rec); err != nil {
			logging.W("Failed to record download in ledger: %v", err)
		}
	}
	return res, nil
}

// resolveSegments runs the manifest family for the item's kind.
func (p *Pipeline) resolveSegments(ctx context.Context, payload string, kind models.MediaKind, quality string) ([]models.SegmentDescriptor, error) {
	if kind != models.KindVideo {
		return p.Resolver.TrackSegments(payload)
	}

	variants, err := p.Resolver.VideoVariants(ctx, payload)
	if err != nil {
		return nil, err
	}
	variant := selectVariant(variants, quality)
	logging.I("Selected variant %s @ %d bps (%s)", variant.Resolution, variant.Bandwidth, variant.Codecs)
	return p.Resolver.VariantSegments(ctx, variant)
}

// selectVariant picks the highest-bandwidth variant, or the first variant
// matching the requested height when quality looks like one (e.g. "720").
func selectVariant(variants []models.StreamVariant, quality string) models.StreamVariant {
	if quality != "" && quality != "best" {
		for _, v := range variants {
			if strings.HasSuffix(v.Resolution, "x"+quality) {
				return v
			}
		}
		logging.W("No variant with height %s, falling back to best", quality)
	}
	return variants[0]
}

// outputName builds "Artist - Title (Year).<ext>", falling back to the item
// id when metadata is absent.
func outputName(meta *models.MediaMeta, kind models.MediaKind) string {
	ext := ".m4a"
	if kind == models.KindVideo {
		ext = ".ts"
	}

	name := displayTitle(meta)
	if year := api.ReleaseYear(meta); year > 0 {
		name = fmt.Sprintf("%s (%d)", name, year)
	}
	return cleanName(name) + ext
}

func displayTitle(meta *models.MediaMeta) string {
	if meta.Title == "" {
		return meta.ItemID
	}
	if meta.Artist == "" {
		return meta.Title
	}
	return meta.Artist + " - " + meta.Title
}

// cleanName strips characters that are path separators or reserved on the
// usual filesystems.
func cleanName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
