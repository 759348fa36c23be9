// Package downloads stages segment lists for the external accelerator,
// awaits it, and reassembles the results into the final artifact.
package downloads

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"tidarr/internal/domain/consts"
	"tidarr/internal/models"
	"tidarr/internal/utils/logging"
)

// DownloadError is a nonzero accelerator exit. Output holds the captured
// combined stdout/stderr for diagnostics. It does not guarantee that no
// segments were retrieved.
type DownloadError struct {
	ExitErr error
	Output  string
}

func (e *DownloadError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > 512 {
		out = out[len(out)-512:]
	}
	return fmt.Sprintf("accelerator failed: %v\n%s", e.ExitErr, out)
}

func (e *DownloadError) Unwrap() error { return e.ExitErr }

// SegmentFetcher is the capability the orchestrator delegates bulk segment
// retrieval to.
type SegmentFetcher interface {
	Fetch(ctx context.Context, job *models.DownloadJob) error
}

// Aria2Fetcher drives aria2c over a staged input file.
type Aria2Fetcher struct {
	BinPath  string
	Parallel int
	SplitPer int
}

// NewAria2Fetcher returns a fetcher for the given binary path and limits.
func NewAria2Fetcher(binPath string, parallel, splitPer int) *Aria2Fetcher {
	if binPath == "" {
		binPath = consts.AriaBinary
	}
	if parallel <= 0 {
		parallel = 8
	}
	if splitPer <= 0 {
		splitPer = 4
	}
	return &Aria2Fetcher{BinPath: binPath, Parallel: parallel, SplitPer: splitPer}
}

// Fetch writes the aria2c input manifest into the job's temp directory and
// runs the accelerator once, blocking until it exits.
func (f *Aria2Fetcher) Fetch(ctx context.Context, job *models.DownloadJob) error {
	inputPath := filepath.Join(job.TempDir, consts.AriaInputFile)
	if err := os.WriteFile(inputPath, f.inputFile(job), 0o644); err != nil {
		return fmt.Errorf("failed staging accelerator input file: %w", err)
	}

	args := []string{
		"-i", inputPath,
		"-d", job.TempDir,
		"-j", strconv.Itoa(f.Parallel),
		"-x", "16",
		"-s", strconv.Itoa(f.SplitPer),
		"--allow-overwrite=true",
		"--auto-file-renaming=false",
		"--console-log-level=warn",
		"--summary-interval=0",
	}

	logging.I("Fetching %d segment(s) via %s (parallelism %d)", len(job.Segments), f.BinPath, f.Parallel)
	logging.D(2, "Accelerator args: %v", args)

	cmd := exec.CommandContext(ctx, f.BinPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return &DownloadError{ExitErr: err, Output: out.String()}
	}
	return nil
}

// inputFile renders the URL list, one per line, each pinned to the
// resolver's predicted filename. Video segment hosts require a browser
// user agent, sent as a per-URL header directive.
func (f *Aria2Fetcher) inputFile(job *models.DownloadJob) []byte {
	var b strings.Builder
	for _, seg := range job.Segments {
		b.WriteString(seg.URL)
		b.WriteByte('\n')
		b.WriteString("  out=")
		b.WriteString(seg.Filename)
		b.WriteByte('\n')
		if job.Kind == models.KindVideo {
			b.WriteString("  header=User-Agent: ")
			b.WriteString(consts.SegmentUserAgent)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}
