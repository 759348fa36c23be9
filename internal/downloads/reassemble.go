package downloads

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"tidarr/internal/models"
	"tidarr/internal/utils/logging"
)

// ReassemblyError is a fatal failure to open or write the output file.
type ReassemblyError struct {
	Path string
	Err  error
}

func (e *ReassemblyError) Error() string {
	return fmt.Sprintf("reassembly of %s failed: %v", e.Path, e.Err)
}

func (e *ReassemblyError) Unwrap() error { return e.Err }

// Reassemble concatenates the retrieved segment files into the output file
// in ordinal order. A missing or unreadable segment is logged and skipped;
// failing to write the output itself is fatal.
func Reassemble(job *models.DownloadJob) (*models.JobResult, error) {
	out, err := os.Create(job.OutputPath)
	if err != nil {
		return nil, &ReassemblyError{Path: job.OutputPath, Err: err}
	}
	defer out.Close()

	bar := progressbar.NewOptions(len(job.Segments),
		progressbar.OptionSetDescription("reassembling"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	res := &models.JobResult{
		OutputPath:       job.OutputPath,
		SegmentsExpected: len(job.Segments),
	}

	w := bufio.NewWriter(out)
	for _, seg := range job.Segments {
		bar.Add(1)

		segPath := filepath.Join(job.TempDir, seg.Filename)
		f, err := os.Open(segPath)
		if err != nil {
			logging.W("Segment %d (%s) missing or unreadable, skipping: %v", seg.Ordinal, seg.Filename, err)
			res.SegmentsSkipped++
			continue
		}

		n, err := io.Copy(w, f)
		f.Close()
		if err != nil {
			return nil, &ReassemblyError{Path: job.OutputPath, Err: err}
		}

		res.SegmentsWritten++
		res.BytesWritten += n
	}

	if err := w.Flush(); err != nil {
		return nil, &ReassemblyError{Path: job.OutputPath, Err: err}
	}
	if err := out.Close(); err != nil {
		return nil, &ReassemblyError{Path: job.OutputPath, Err: err}
	}

	if res.SegmentsSkipped > 0 {
		logging.W("Output written with %d of %d segments missing", res.SegmentsSkipped, res.SegmentsExpected)
	}
	logging.S("Reassembled %d/%d segment(s), %s → %s",
		res.SegmentsWritten, res.SegmentsExpected, humanize.Bytes(uint64(res.BytesWritten)), job.OutputPath)
	return res, nil
}
