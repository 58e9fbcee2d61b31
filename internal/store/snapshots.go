package store

import "time"

// Snapshot job statuses.
const (
	SnapshotStatusRunning = "running"
	SnapshotStatusDone    = "done"
	SnapshotStatusFailed  = "failed"
)

// SnapshotJob tracks progress of scanning a newly added or reactivated root,
// grounded on main.py's snapshot progress bookkeeping
// (_check_snapshot_file/_scan_snapshot_targets).
type SnapshotJob struct {
	ID             int64
	WatchedPathID  int64
	StorageSubdir  string
	Status         string
	TotalFiles     int
	ProcessedFiles int
	SkippedFiles   int
	ErrorCount     int
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateSnapshotJob starts tracking a new scan. storageSubdir is persisted
// alongside the job per §4.8/§6's documented SnapshotJob shape, even though
// it is cheaply recomputable from the watched path via
// snapshot.StorageSubdir — storing it avoids a caller needing the scanner
// package just to describe an already-recorded job.
func (s *Store) CreateSnapshotJob(watchedPathID int64, storageSubdir string) (*SnapshotJob, error) {
	res, err := s.DB.Exec(
		`INSERT INTO snapshot_jobs (watched_path_id, storage_subdir, status) VALUES (?, ?, ?)`,
		watchedPathID, storageSubdir, SnapshotStatusRunning,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetSnapshotJob(id)
}

// GetSnapshotJob fetches a job by ID.
func (s *Store) GetSnapshotJob(id int64) (*SnapshotJob, error) {
	row := s.DB.QueryRow(
		`SELECT id, watched_path_id, storage_subdir, status, total_files, processed_files, skipped_files, error_count, last_error, created_at, updated_at
		 FROM snapshot_jobs WHERE id = ?`,
		id,
	)
	return scanSnapshotJob(row)
}

// AdvanceSnapshotJob batches a progress update, matching the scanner's
// batched-persistence behaviour (it reports every N files rather than per
// file, to keep the DB off the hot path of the walk).
func (s *Store) AdvanceSnapshotJob(id int64, totalDelta, processedDelta, skippedDelta, errorDelta int) error {
	_, err := s.DB.Exec(
		`UPDATE snapshot_jobs
		 SET total_files = total_files + ?, processed_files = processed_files + ?,
		     skipped_files = skipped_files + ?, error_count = error_count + ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		totalDelta, processedDelta, skippedDelta, errorDelta, id,
	)
	return err
}

// FinishSnapshotJob marks a job done or failed.
func (s *Store) FinishSnapshotJob(id int64, status, lastError string) error {
	_, err := s.DB.Exec(
		`UPDATE snapshot_jobs SET status = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, nullIfEmpty(lastError), id,
	)
	return err
}

func scanSnapshotJob(row rowScanner) (*SnapshotJob, error) {
	var j SnapshotJob
	var lastError *string
	if err := row.Scan(&j.ID, &j.WatchedPathID, &j.StorageSubdir, &j.Status, &j.TotalFiles, &j.ProcessedFiles, &j.SkippedFiles, &j.ErrorCount, &lastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if lastError != nil {
		j.LastError = *lastError
	}
	return &j, nil
}
