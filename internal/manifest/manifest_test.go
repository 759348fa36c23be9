package manifest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tidarr/internal/models"
	"tidarr/internal/net"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func variantFor(url string) models.StreamVariant {
	return models.StreamVariant{Resolution: "1920x1080", Bandwidth: 1500000, Codecs: "avc1", URL: url}
}

func newTestResolver() *Resolver {
	return NewResolver(net.New(5*time.Second, 2, 10*time.Millisecond, time.Second))
}

// TestVideoVariantOrdering checks variants come back sorted by descending
// bandwidth regardless of playlist order.
func TestVideoVariantOrdering(t *testing.T) {
	master := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-STREAM-INF:BANDWIDTH=500000,RESOLUTION=640x360,CODECS=\"avc1.64001f,mp4a.40.2\"",
		"low/playlist.m3u8",
		"#EXT-X-STREAM-INF:BANDWIDTH=1500000,RESOLUTION=1920x1080,CODECS=\"avc1.640028,mp4a.40.2\"",
		"high/playlist.m3u8",
		"#EXT-X-STREAM-INF:BANDWIDTH=900000,RESOLUTION=1280x720,CODECS=\"avc1.640020,mp4a.40.2\"",
		"mid/playlist.m3u8",
		"",
	}, "\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, master)
	}))
	defer srv.Close()

	payload := b64(fmt.Sprintf(`{"urls":[%q]}`, srv.URL+"/master.m3u8"))

	variants, err := newTestResolver().VideoVariants(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int64{1500000, 900000, 500000}
	if len(variants) != len(want) {
		t.Fatalf("expected %d variants, got %d", len(want), len(variants))
	}
	for i, bw := range want {
		if variants[i].Bandwidth != bw {
			t.Fatalf("variant %d: expected bandwidth %d, got %d", i, bw, variants[i].Bandwidth)
		}
	}
	if variants[0].Resolution != "1920x1080" {
		t.Fatalf("expected resolution on best variant, got %q", variants[0].Resolution)
	}
	if !strings.HasPrefix(variants[0].URL, srv.URL) {
		t.Fatalf("expected variant URL resolved against master, got %q", variants[0].URL)
	}
}

// TestVideoVariantsEmpty checks a variant-free master playlist is an error.
func TestVideoVariantsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n")
	}))
	defer srv.Close()

	payload := b64(fmt.Sprintf(`{"urls":[%q]}`, srv.URL))
	_, err := newTestResolver().VideoVariants(context.Background(), payload)

	var mErr *ManifestError
	if !errors.As(err, &mErr) {
		t.Fatalf("expected *ManifestError for zero variants, got %v", err)
	}
}

// TestVideoVariantsBadPayload covers the decode failure paths.
func TestVideoVariantsBadPayload(t *testing.T) {
	r := newTestResolver()

	for name, payload := range map[string]string{
		"not base64": "!!!not-base64!!!",
		"not json":   b64("{broken"),
		"no urls":    b64(`{"urls":[]}`),
	} {
		if _, err := r.VideoVariants(context.Background(), payload); err == nil {
			t.Fatalf("%s: expected error, got nil", name)
		}
	}
}

// TestVariantSegments checks file order, ordinals and filename derivation.
func TestVariantSegments(t *testing.T) {
	media := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-TARGETDURATION:6",
		"#EXTINF:6.0,",
		"seg_000.ts",
		"#EXTINF:6.0,",
		"seg_001.ts",
		"#EXTINF:4.2,",
		"seg_002.ts",
		"#EXT-X-ENDLIST",
		"",
	}, "\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, media)
	}))
	defer srv.Close()

	segs, err := newTestResolver().VariantSegments(context.Background(), variantFor(srv.URL+"/media/playlist.m3u8"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	for i, seg := range segs {
		if seg.Ordinal != i {
			t.Fatalf("segment %d has ordinal %d", i, seg.Ordinal)
		}
		wantName := fmt.Sprintf("seg_%03d.ts", i)
		if seg.Filename != wantName {
			t.Fatalf("segment %d: expected filename %s, got %s", i, wantName, seg.Filename)
		}
		if !strings.HasPrefix(seg.URL, srv.URL+"/media/") {
			t.Fatalf("segment %d URL not resolved: %s", i, seg.URL)
		}
	}
}

// TestDashTemplateExpansion matches the documented example: startNumber=1,
// one timeline entry with r=2 yields the init URL plus seg_1..seg_3.
func TestDashTemplateExpansion(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011">
  <Period>
    <AdaptationSet>
      <Representation>
        <SegmentTemplate initialization="https://cdn.example.com/a/init.mp4" media="https://cdn.example.com/a/seg_$Number$.m4s" startNumber="1">
          <SegmentTimeline>
            <S d="1920" r="2"/>
          </SegmentTimeline>
        </SegmentTemplate>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

	segs, err := newTestResolver().TrackSegments(b64(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(segs) != 4 {
		t.Fatalf("expected 4 descriptors, got %d", len(segs))
	}
	if segs[0].URL != "https://cdn.example.com/a/init.mp4" || segs[0].Ordinal != 0 {
		t.Fatalf("bad init descriptor: %+v", segs[0])
	}
	for i := 1; i <= 3; i++ {
		wantURL := fmt.Sprintf("https://cdn.example.com/a/seg_%d.m4s", i)
		if segs[i].URL != wantURL {
			t.Fatalf("descriptor %d: expected %s, got %s", i, wantURL, segs[i].URL)
		}
		if segs[i].Ordinal != i {
			t.Fatalf("descriptor %d has ordinal %d", i, segs[i].Ordinal)
		}
		if segs[i].Filename != fmt.Sprintf("seg_%d.m4s", i) {
			t.Fatalf("descriptor %d has filename %s", i, segs[i].Filename)
		}
	}
}

// TestDashMultipleTimelineEntries checks numbering continues across entries.
func TestDashMultipleTimelineEntries(t *testing.T) {
	doc := `<MPD><Period><AdaptationSet><Representation>
<SegmentTemplate initialization="https://c/init.mp4" media="https://c/s$Number$.m4s" startNumber="5">
<SegmentTimeline><S d="100" r="1"/><S d="80"/></SegmentTimeline>
</SegmentTemplate>
</Representation></AdaptationSet></Period></MPD>`

	segs, err := newTestResolver().TrackSegments(b64(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// init + (1+1) + (1+0)
	if len(segs) != 4 {
		t.Fatalf("expected 4 descriptors, got %d", len(segs))
	}
	wantURLs := []string{"https://c/init.mp4", "https://c/s5.m4s", "https://c/s6.m4s", "https://c/s7.m4s"}
	for i, want := range wantURLs {
		if segs[i].URL != want {
			t.Fatalf("descriptor %d: expected %s, got %s", i, want, segs[i].URL)
		}
	}
}

// TestDashMissingAttributes checks each required attribute is fatal.
func TestDashMissingAttributes(t *testing.T) {
	cases := map[string]string{
		"no initialization": `<MPD><Period><AdaptationSet><Representation>
<SegmentTemplate media="https://c/s$Number$.m4s" startNumber="1">
<SegmentTimeline><S d="1"/></SegmentTimeline></SegmentTemplate>
</Representation></AdaptationSet></Period></MPD>`,
		"no media": `<MPD><Period><AdaptationSet><Representation>
<SegmentTemplate initialization="https://c/init.mp4" startNumber="1">
<SegmentTimeline><S d="1"/></SegmentTimeline></SegmentTemplate>
</Representation></AdaptationSet></Period></MPD>`,
		"no placeholder": `<MPD><Period><AdaptationSet><Representation>
<SegmentTemplate initialization="https://c/init.mp4" media="https://c/seg.m4s" startNumber="1">
<SegmentTimeline><S d="1"/></SegmentTimeline></SegmentTemplate>
</Representation></AdaptationSet></Period></MPD>`,
		"no startNumber": `<MPD><Period><AdaptationSet><Representation>
<SegmentTemplate initialization="https://c/init.mp4" media="https://c/s$Number$.m4s">
<SegmentTimeline><S d="1"/></SegmentTimeline></SegmentTemplate>
</Representation></AdaptationSet></Period></MPD>`,
		"empty timeline": `<MPD><Period><AdaptationSet><Representation>
<SegmentTemplate initialization="https://c/init.mp4" media="https://c/s$Number$.m4s" startNumber="1">
<SegmentTimeline></SegmentTimeline></SegmentTemplate>
</Representation></AdaptationSet></Period></MPD>`,
		"no template": `<MPD><Period><AdaptationSet><Representation>
</Representation></AdaptationSet></Period></MPD>`,
	}

	r := newTestResolver()
	for name, doc := range cases {
		_, err := r.TrackSegments(b64(doc))
		var mErr *ManifestError
		if !errors.As(err, &mErr) {
			t.Fatalf("%s: expected *ManifestError, got %v", name, err)
		}
	}
}

// TestSegmentFilenameFallback checks the synthesized name for extensionless
// or unparseable URLs.
func TestSegmentFilenameFallback(t *testing.T) {
	if got := segmentFilename("https://cdn/path/chunk", 7, ".ts"); got != "segment_7.ts" {
		t.Fatalf("expected synthesized name, got %q", got)
	}
	if got := segmentFilename("://bad url", 3, ".ts"); got != "segment_3.ts" {
		t.Fatalf("expected synthesized name for bad URL, got %q", got)
	}
	if got := segmentFilename("https://cdn/path/chunk_9.m4s?token=x", 9, ".m4s"); got != "chunk_9.m4s" {
		t.Fatalf("expected basename without query, got %q", got)
	}
}
