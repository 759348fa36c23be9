// Package repo holds database store operations.
package repo

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"tidarr/internal/domain/consts"
	"tidarr/internal/utils/logging"
)

// DownloadRecord is one completed download in the ledger.
type DownloadRecord struct {
	ID               int64
	ItemID           string
	Kind             string
	Quality          string
	OutputPath       string
	SegmentsExpected int
	SegmentsWritten  int
	ReleasedAt       string
	CreatedAt        time.Time
}

// DownloadStore records and queries completed downloads.
type DownloadStore struct {
	DB *sql.DB
}

// GetDownloadStore returns a store over the given database.
func GetDownloadStore(db *sql.DB) *DownloadStore {
	return &DownloadStore{DB: db}
}

// RecordCompleted upserts a finished download keyed by item/kind/quality.
func (ds *DownloadStore) RecordCompleted(rec *DownloadRecord) error {
	if rec.ItemID == "" {
		return fmt.Errorf("must enter an item id for the download record")
	}

	query := squirrel.
		Insert(consts.DBDownloads).
		Options("OR REPLACE").
		Columns(
			consts.QDLItemID,
			consts.QDLKind,
			consts.QDLQuality,
			consts.QDLPath,
			consts.QDLExpected,
			consts.QDLWritten,
			consts.QDLReleased,
			consts.QDLCreated,
		).
		Values(
			rec.ItemID,
			rec.Kind,
			rec.Quality,
			rec.OutputPath,
			rec.SegmentsExpected,
			rec.SegmentsWritten,
			rec.ReleasedAt,
			time.Now(),
		).
		RunWith(ds.DB)

	if _, err := query.Exec(); err != nil {
		return fmt.Errorf("failed to record download for item %s: %w", rec.ItemID, err)
	}

	logging.D(1, "Recorded completed download for item %s (%s/%s)", rec.ItemID, rec.Kind, rec.Quality)
	return nil
}

// Exists reports whether the item was already downloaded at this quality.
func (ds *DownloadStore) Exists(itemID, kind, quality string) (bool, error) {
	var count int
	err := squirrel.
		Select("COUNT(1)").
		From(consts.DBDownloads).
		Where(squirrel.Eq{
			consts.QDLItemID:  itemID,
			consts.QDLKind:    kind,
			consts.QDLQuality: quality,
		}).
		RunWith(ds.DB).
		QueryRow().
		Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed checking ledger for item %s: %w", itemID, err)
	}
	return count > 0, nil
}

// Recent returns the newest ledger rows, most recent first.
func (ds *DownloadStore) Recent(limit int) ([]DownloadRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := squirrel.
		Select(
			"id",
			consts.QDLItemID,
			consts.QDLKind,
			consts.QDLQuality,
			consts.QDLPath,
			consts.QDLExpected,
			consts.QDLWritten,
			consts.QDLReleased,
			consts.QDLCreated,
		).
		From(consts.DBDownloads).
		OrderBy(consts.QDLCreated + " DESC").
		Limit(uint64(limit)).
		RunWith(ds.DB).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed listing recent downloads: %w", err)
	}
	defer rows.Close()

	var recs []DownloadRecord
	for rows.Next() {
		var (
			rec      DownloadRecord
			released sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.ItemID,
			&rec.Kind,
			&rec.Quality,
			&rec.OutputPath,
			&rec.SegmentsExpected,
			&rec.SegmentsWritten,
			&released,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed scanning download row: %w", err)
		}
		rec.ReleasedAt = released.String
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
