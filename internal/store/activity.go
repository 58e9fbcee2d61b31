package store

import "time"

// ActivityLog is a human-readable timeline entry, grounded on crud.py's
// log_activity/get_activity_timeline.
type ActivityLog struct {
	ID           int64
	ActivityType string
	Path         string
	Details      string
	CreatedAt    time.Time
}

// LogActivity appends one timeline entry.
func (s *Store) LogActivity(activityType, path, details string) error {
	_, err := s.DB.Exec(
		`INSERT INTO activity_logs (activity_type, path, details) VALUES (?, ?, ?)`,
		activityType, nullIfEmpty(path), nullIfEmpty(details),
	)
	return err
}

// GetActivityTimeline returns the most recent entries, newest first.
func (s *Store) GetActivityTimeline(limit int) ([]*ActivityLog, error) {
	rows, err := s.DB.Query(
		`SELECT id, activity_type, COALESCE(path, ''), COALESCE(details, ''), created_at
		 FROM activity_logs ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ActivityLog
	for rows.Next() {
		var a ActivityLog
		if err := rows.Scan(&a.ID, &a.ActivityType, &a.Path, &a.Details, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
