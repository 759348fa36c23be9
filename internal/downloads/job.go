package downloads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"tidarr/internal/models"
	"tidarr/internal/utils/logging"
)

// RunJob executes one download pipeline invocation: create the job's temp
// directory, run the accelerator, reassemble. The temp directory is removed
// on every exit path; removal failure is logged, never escalated.
func RunJob(ctx context.Context, job *models.DownloadJob, fetcher SegmentFetcher) (*models.JobResult, error) {
	if len(job.Segments) == 0 {
		return nil, fmt.Errorf("job for %s has no segments", job.ItemID)
	}

	tempDir := filepath.Join(os.TempDir(), "tidarr-"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory %s: %w", tempDir, err)
	}
	job.TempDir = tempDir

	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logging.W("Failed to remove temp directory %s: %v", tempDir, err)
		}
	}()

	if err := fetcher.Fetch(ctx, job); err != nil {
		return nil, err
	}

	return Reassemble(job)
}
