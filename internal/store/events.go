package store

import (
	"database/sql"
	"time"
)

// FileEvent is a single filesystem observation (created/modified/deleted/
// moved), grounded on crud.py's FileEvent model.
type FileEvent struct {
	ID          int64
	EventType   string
	SrcPath     string
	DestPath    sql.NullString
	IsProcessed bool
	CreatedAt   time.Time
}

// CreateFileEvent inserts a raw event row, mirroring crud.py's
// create_file_event.
func (s *Store) CreateFileEvent(eventType, srcPath, destPath string) (*FileEvent, error) {
	res, err := s.DB.Exec(
		`INSERT INTO file_events (event_type, src_path, dest_path) VALUES (?, ?, ?)`,
		eventType, srcPath, nullIfEmpty(destPath),
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	row := s.DB.QueryRow(
		`SELECT id, event_type, src_path, dest_path, is_processed, created_at FROM file_events WHERE id = ?`,
		id,
	)
	return scanFileEvent(row)
}

// GetRecentFileEvents returns the most recent events, newest first,
// mirroring crud.py's get_recent_file_events.
func (s *Store) GetRecentFileEvents(limit int) ([]*FileEvent, error) {
	rows, err := s.DB.Query(
		`SELECT id, event_type, src_path, dest_path, is_processed, created_at
		 FROM file_events ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FileEvent
	for rows.Next() {
		ev, err := scanFileEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// UpdateDirectoryEvents rewrites src_path/dest_path for historical events
// under oldPrefix, mirroring crud.py's update_directory_events: history
// keeps referring to the same files even after their directory is renamed.
func (s *Store) UpdateDirectoryEvents(swap func(current string) (string, bool)) (int, error) {
	rows, err := s.DB.Query(`SELECT id, src_path, dest_path FROM file_events`)
	if err != nil {
		return 0, err
	}
	type rewrite struct {
		id       int64
		src      string
		dest     sql.NullString
		changed  bool
	}
	var todo []rewrite
	for rows.Next() {
		var r rewrite
		if err := rows.Scan(&r.id, &r.src, &r.dest); err != nil {
			rows.Close()
			return 0, err
		}
		if newSrc, ok := swap(r.src); ok {
			r.src = newSrc
			r.changed = true
		}
		if r.dest.Valid {
			if newDest, ok := swap(r.dest.String); ok {
				r.dest = sql.NullString{String: newDest, Valid: true}
				r.changed = true
			}
		}
		if r.changed {
			todo = append(todo, r)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(todo) == 0 {
		return 0, nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(`UPDATE file_events SET src_path = ?, dest_path = ? WHERE id = ?`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	for _, r := range todo {
		if _, err := stmt.Exec(r.src, r.dest, r.id); err != nil {
			tx.Rollback()
			return 0, err
		}
	}
	return len(todo), tx.Commit()
}

func scanFileEvent(row rowScanner) (*FileEvent, error) {
	var ev FileEvent
	var isProcessed int
	if err := row.Scan(&ev.ID, &ev.EventType, &ev.SrcPath, &ev.DestPath, &isProcessed, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.IsProcessed = isProcessed != 0
	return &ev, nil
}
