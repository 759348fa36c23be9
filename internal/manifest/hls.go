package manifest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"

	"github.com/grafov/m3u8"

	"tidarr/internal/domain/consts"
	"tidarr/internal/models"
	"tidarr/internal/utils/logging"
)

// videoManifest is the decoded video manifest payload: a list of playlist
// URLs of which the first is the master playlist.
type videoManifest struct {
	URLs []string `json:"urls"`
}

// VideoVariants decodes the base64 video manifest, fetches its master
// playlist and returns the stream variants sorted by descending bandwidth
// (stable, so input order breaks ties). Zero variants is an error.
func (r *Resolver) VideoVariants(ctx context.Context, payload string) ([]models.StreamVariant, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &ManifestError{Detail: "video manifest is not valid base64", Err: err}
	}

	var vm videoManifest
	if err := json.Unmarshal(raw, &vm); err != nil {
		return nil, &ManifestError{Detail: "video manifest is not valid JSON", Err: err}
	}
	if len(vm.URLs) == 0 {
		return nil, &ManifestError{Detail: "video manifest contains no playlist URLs"}
	}

	masterURL := vm.URLs[0]
	resp, err := r.client.Get(ctx, masterURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ManifestError{Detail: fmt.Sprintf("master playlist fetch returned HTTP %d", resp.StatusCode)}
	}

	pl, listType, err := m3u8.DecodeFrom(resp.Body, false)
	if err != nil {
		return nil, &ManifestError{Detail: "master playlist is not parseable", Err: err}
	}
	master, ok := pl.(*m3u8.MasterPlaylist)
	if !ok || listType != m3u8.MASTER {
		return nil, &ManifestError{Detail: "expected a master playlist, got a media playlist"}
	}

	base, err := url.Parse(masterURL)
	if err != nil {
		return nil, &ManifestError{Detail: "master playlist URL is unparseable", Err: err}
	}

	variants := make([]models.StreamVariant, 0, len(master.Variants))
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		sv := models.StreamVariant{
			Resolution: v.Resolution,
			Bandwidth:  int64(v.Bandwidth),
			Codecs:     v.Codecs,
			URL:        resolveURL(base, v.URI),
		}
		if sv.Resolution == "" {
			sv.Resolution = consts.UnknownAttr
		}
		if sv.Codecs == "" {
			sv.Codecs = consts.UnknownAttr
		}
		variants = append(variants, sv)
	}
	if len(variants) == 0 {
		return nil, &ManifestError{Detail: "master playlist yielded zero variants"}
	}

	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Bandwidth > variants[j].Bandwidth
	})

	logging.D(1, "Master playlist yielded %d variant(s), best %d bps", len(variants), variants[0].Bandwidth)
	return variants, nil
}

// VariantSegments fetches the chosen variant's media playlist and returns
// its segments in file order.
func (r *Resolver) VariantSegments(ctx context.Context, variant models.StreamVariant) ([]models.SegmentDescriptor, error) {
	resp, err := r.client.Get(ctx, variant.URL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ManifestError{Detail: fmt.Sprintf("media playlist fetch returned HTTP %d", resp.StatusCode)}
	}

	pl, listType, err := m3u8.DecodeFrom(resp.Body, false)
	if err != nil {
		return nil, &ManifestError{Detail: "media playlist is not parseable", Err: err}
	}
	media, ok := pl.(*m3u8.MediaPlaylist)
	if !ok || listType != m3u8.MEDIA {
		return nil, &ManifestError{Detail: "expected a media playlist, got a master playlist"}
	}

	base, err := url.Parse(variant.URL)
	if err != nil {
		return nil, &ManifestError{Detail: "media playlist URL is unparseable", Err: err}
	}

	var segs []models.SegmentDescriptor
	for _, s := range media.Segments {
		if s == nil || s.URI == "" {
			continue
		}
		ordinal := len(segs)
		segURL := resolveURL(base, s.URI)
		segs = append(segs, models.SegmentDescriptor{
			URL:      segURL,
			Filename: segmentFilename(segURL, ordinal, ".ts"),
			Ordinal:  ordinal,
		})
	}
	if len(segs) == 0 {
		return nil, &ManifestError{Detail: "media playlist yielded zero segments"}
	}
	return segs, nil
}

// resolveURL resolves a possibly-relative playlist entry against its base.
func resolveURL(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// segmentFilename derives the local filename from the URL path's base name,
// synthesizing segment_<n> with the given extension when the base name has
// no extension or the URL fails to parse.
func segmentFilename(rawURL string, ordinal int, ext string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Sprintf("segment_%d%s", ordinal, ext)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || path.Ext(name) == "" {
		return fmt.Sprintf("segment_%d%s", ordinal, ext)
	}
	return name
}
