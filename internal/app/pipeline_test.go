package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tidarr/internal/api"
	"tidarr/internal/auth"
	"tidarr/internal/database"
	"tidarr/internal/manifest"
	"tidarr/internal/models"
	"tidarr/internal/net"
	"tidarr/internal/repo"
)

const trackManifestXML = `<MPD><Period><AdaptationSet><Representation>` +
	`<SegmentTemplate initialization="https://cdn.example.com/init.mp4"` +
	` media="https://cdn.example.com/seg_$Number$.m4s" startNumber="1">` +
	`<SegmentTimeline><S d="1920" r="1"/></SegmentTimeline>` +
	`</SegmentTemplate></Representation></AdaptationSet></Period></MPD>`

// fakeFetcher stands in for aria2c: it drops each segment file into the
// job's temp dir with its filename as content.
type fakeFetcher struct {
	jobs []*models.DownloadJob
}

func (f *fakeFetcher) Fetch(_ context.Context, job *models.DownloadJob) error {
	f.jobs = append(f.jobs, job)
	for _, seg := range job.Segments {
		path := filepath.Join(job.TempDir, seg.Filename)
		if err := os.WriteFile(path, []byte(seg.Filename+"|"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func newTestAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/tracks/42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"title":  "Moonlight",
			"artist": map[string]string{"name": "The Lunar Band"},
			"album":  map[string]string{"releaseDate": "2021-05-01"},
		})
	})
	mux.HandleFunc("/tracks/42/playbackinfopostpaywall", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("audioquality"); got != "LOSSLESS" {
			t.Errorf("audioquality = %q, want LOSSLESS", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"trackId":          42,
			"manifest":         base64.StdEncoding.EncodeToString([]byte(trackManifestXML)),
			"manifestMimeType": "application/dash+xml",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(t *testing.T, srv *httptest.Server) (*Pipeline, *fakeFetcher) {
	t.Helper()

	dir := t.TempDir()
	client := net.New(5*time.Second, 2, time.Millisecond, time.Millisecond)

	sessionPath := filepath.Join(dir, "session.json")
	sessionJSON := fmt.Sprintf(
		`{"user_id":"7","country_code":"US","access_token":"tok","refresh_token":"ref","expires_at":%q}`,
		time.Now().Add(time.Hour).Format(time.RFC3339))
	if err := os.WriteFile(sessionPath, []byte(sessionJSON), 0o600); err != nil {
		t.Fatalf("failed to write session file: %v", err)
	}

	m := auth.NewSessionManager(client, auth.NewSessionStore(sessionPath), "cid", "secret")
	m.LoadOrCreate()

	db, err := database.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	apiClient := api.NewClient(client)
	apiClient.BaseURL = srv.URL

	fetcher := &fakeFetcher{}
	p := &Pipeline{
		Auth:        m,
		API:         apiClient,
		Resolver:    manifest.NewResolver(client),
		Fetcher:     fetcher,
		Store:       repo.GetDownloadStore(db.DB),
		DownloadDir: filepath.Join(dir, "downloads"),
	}
	if err := os.MkdirAll(p.DownloadDir, 0o755); err != nil {
		t.Fatalf("failed to create download dir: %v", err)
	}
	return p, fetcher
}

func TestProcessTrackEndToEnd(t *testing.T) {
	srv := newTestAPIServer(t)
	p, fetcher := newTestPipeline(t, srv)

	res, err := p.ProcessItem(context.Background(), "42", models.KindTrack, "LOSSLESS")
	if err != nil {
		t.Fatalf("ProcessItem failed: %v", err)
	}

	wantPath := filepath.Join(p.DownloadDir, "The Lunar Band - Moonlight (2021).m4a")
	if res.OutputPath != wantPath {
		t.Errorf("output path = %q, want %q", res.OutputPath, wantPath)
	}
	if res.SegmentsExpected != 3 || res.SegmentsWritten != 3 || res.SegmentsSkipped != 0 {
		t.Errorf("segment counts = %d/%d/%d, want 3/3/0",
			res.SegmentsExpected, res.SegmentsWritten, res.SegmentsSkipped)
	}

	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if got, want := string(data), "init.mp4|seg_1.m4s|seg_2.m4s|"; got != want {
		t.Errorf("reassembled output = %q, want %q", got, want)
	}

	if len(fetcher.jobs) != 1 {
		t.Fatalf("fetcher ran %d times, want 1", len(fetcher.jobs))
	}
	if _, err := os.Stat(fetcher.jobs[0].TempDir); !os.IsNotExist(err) {
		t.Errorf("temp dir %s not cleaned up", fetcher.jobs[0].TempDir)
	}

	exists, err := p.Store.Exists("42", "track", "LOSSLESS")
	if err != nil {
		t.Fatalf("ledger check failed: %v", err)
	}
	if !exists {
		t.Error("download was not recorded in the ledger")
	}
}

func TestProcessItemAlreadyDownloaded(t *testing.T) {
	srv := newTestAPIServer(t)
	p, fetcher := newTestPipeline(t, srv)

	if _, err := p.ProcessItem(context.Background(), "42", models.KindTrack, "LOSSLESS"); err != nil {
		t.Fatalf("first ProcessItem failed: %v", err)
	}

	_, err := p.ProcessItem(context.Background(), "42", models.KindTrack, "LOSSLESS")
	if !errors.Is(err, ErrAlreadyDownloaded) {
		t.Fatalf("second ProcessItem error = %v, want ErrAlreadyDownloaded", err)
	}
	if len(fetcher.jobs) != 1 {
		t.Errorf("fetcher ran %d times, want 1", len(fetcher.jobs))
	}

	p.Force = true
	if _, err := p.ProcessItem(context.Background(), "42", models.KindTrack, "LOSSLESS"); err != nil {
		t.Fatalf("forced ProcessItem failed: %v", err)
	}
	if len(fetcher.jobs) != 2 {
		t.Errorf("fetcher ran %d times after force, want 2", len(fetcher.jobs))
	}
}

func TestSelectVariant(t *testing.T) {
	variants := []models.StreamVariant{
		{Resolution: "1920x1080", Bandwidth: 5_000_000},
		{Resolution: "1280x720", Bandwidth: 2_500_000},
		{Resolution: "640x360", Bandwidth: 800_000},
	}

	if got := selectVariant(variants, "best"); got.Resolution != "1920x1080" {
		t.Errorf("best picked %s, want 1920x1080", got.Resolution)
	}
	if got := selectVariant(variants, "720"); got.Resolution != "1280x720" {
		t.Errorf("720 picked %s, want 1280x720", got.Resolution)
	}
	if got := selectVariant(variants, "480"); got.Resolution != "1920x1080" {
		t.Errorf("unmatched height picked %s, want fallback 1920x1080", got.Resolution)
	}
}

func TestOutputNameSanitization(t *testing.T) {
	meta := &models.MediaMeta{
		ItemID:     "9",
		Title:      "What / Why?",
		Artist:     "A:B",
		ReleasedAt: "2019-01-02",
	}
	if got, want := outputName(meta, models.KindTrack), "A_B - What _ Why_ (2019).m4a"; got != want {
		t.Errorf("outputName = %q, want %q", got, want)
	}
	if got, want := outputName(&models.MediaMeta{ItemID: "9"}, models.KindVideo), "9.ts"; got != want {
		t.Errorf("bare meta outputName = %q, want %q", got, want)
	}
}
