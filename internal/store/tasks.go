package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"locusd/internal/locuserr"
)

// Backup task statuses.
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusDone       = "done"
	TaskStatusFailed     = "failed"
)

// BackupTask is one queued unit of work for the backup worker, grounded on
// crud.py's BackupTask model.
type BackupTask struct {
	ID        int64
	SrcPath   string
	Status    string
	Attempts  int
	LastError sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPendingBackupTask reports whether a task for this path is already
// queued or in flight, mirroring crud.py's has_pending_backup_task. The
// queue uses this for its at-most-one-in-flight admission check.
func (s *Store) HasPendingBackupTask(path string) (bool, error) {
	var n int
	err := s.DB.QueryRow(
		`SELECT COUNT(1) FROM backup_tasks WHERE src_path = ? AND status IN (?, ?)`,
		path, TaskStatusPending, TaskStatusProcessing,
	).Scan(&n)
	return n > 0, err
}

// CountPendingBackupTasks reports how many tasks are currently queued or
// in flight, used for tray/status display of backlog depth.
func (s *Store) CountPendingBackupTasks() (int, error) {
	var n int
	err := s.DB.QueryRow(
		`SELECT COUNT(1) FROM backup_tasks WHERE status IN (?, ?)`,
		TaskStatusPending, TaskStatusProcessing,
	).Scan(&n)
	return n, err
}

// EnqueueBackupTask inserts a new pending task, mirroring crud.py's
// enqueue_backup_task. Callers must have already checked
// HasPendingBackupTask; this package does not enforce uniqueness itself so
// that the caller's admission filter (debounce, exclusions, restore
// suppression) stays the single source of truth for what gets queued.
func (s *Store) EnqueueBackupTask(path string) (*BackupTask, error) {
	res, err := s.DB.Exec(
		`INSERT INTO backup_tasks (src_path, status) VALUES (?, ?)`,
		path, TaskStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("store: enqueue backup task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetBackupTaskByID(id)
}

// GetBackupTaskByID fetches a single task.
func (s *Store) GetBackupTaskByID(id int64) (*BackupTask, error) {
	row := s.DB.QueryRow(
		`SELECT id, src_path, status, attempts, last_error, created_at, updated_at FROM backup_tasks WHERE id = ?`,
		id,
	)
	return scanBackupTask(row)
}

// ClaimNextBackupTask atomically claims the oldest pending task, marking it
// processing, mirroring crud.py's get_next_backup_task combined with
// mark_backup_task_processing. Returns locuserr.ErrNotFound when the queue
// is empty.
func (s *Store) ClaimNextBackupTask() (*BackupTask, error) {
	tx, err := s.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(
		`SELECT id FROM backup_tasks WHERE status = ? ORDER BY created_at LIMIT 1`,
		TaskStatusPending,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("backup queue: %w", locuserr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(
		`UPDATE backup_tasks SET status = ?, attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		TaskStatusProcessing, id,
	); err != nil {
		return nil, err
	}

	row := tx.QueryRow(
		`SELECT id, src_path, status, attempts, last_error, created_at, updated_at FROM backup_tasks WHERE id = ?`,
		id,
	)
	task, err := scanBackupTask(row)
	if err != nil {
		return nil, err
	}
	return task, tx.Commit()
}

// MarkBackupTaskDone mirrors crud.py's mark_backup_task_done.
func (s *Store) MarkBackupTaskDone(id int64) error {
	_, err := s.DB.Exec(
		`UPDATE backup_tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		TaskStatusDone, id,
	)
	return err
}

// MarkBackupTaskFailed mirrors crud.py's mark_backup_task_failed.
func (s *Store) MarkBackupTaskFailed(id int64, cause string) error {
	_, err := s.DB.Exec(
		`UPDATE backup_tasks SET status = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		TaskStatusFailed, cause, id,
	)
	return err
}

func scanBackupTask(row rowScanner) (*BackupTask, error) {
	var t BackupTask
	if err := row.Scan(&t.ID, &t.SrcPath, &t.Status, &t.Attempts, &t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
