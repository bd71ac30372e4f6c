package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/younsl/autopaused/internal/models"
)

// Record appends a pause or resume event. An empty ID is assigned a UUID.
func (s *Store) Record(ctx context.Context, ev models.PauseEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pause_events (id, kind, instance_id, owner_id, reason, at, hourly_rate, paused_seconds, savings)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.InstanceID, ev.OwnerID, ev.Reason,
		toMillis(ev.At), ev.HourlyRate, ev.PausedSeconds, ev.Savings,
	)
	return err
}

// Events returns journal entries, newest first. An empty instanceID
// returns events for every instance; limit <= 0 means no limit.
func (s *Store) Events(ctx context.Context, instanceID string, limit int) ([]models.PauseEvent, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, instance_id, owner_id, reason, at, hourly_rate, paused_seconds, savings
		 FROM pause_events
		 WHERE ? = '' OR instance_id = ?
		 ORDER BY at DESC, rowid DESC
		 LIMIT ?`, instanceID, instanceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.PauseEvent
	for rows.Next() {
		var ev models.PauseEvent
		var kind string
		var at int64
		if err := rows.Scan(&ev.ID, &kind, &ev.InstanceID, &ev.OwnerID, &ev.Reason,
			&at, &ev.HourlyRate, &ev.PausedSeconds, &ev.Savings); err != nil {
			return nil, err
		}
		ev.Kind = models.PauseEventKind(kind)
		ev.At = fromMillis(at)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// OwnerSavings aggregates the journal per owner, ordered by savings
// descending. An empty ownerID returns every owner.
func (s *Store) OwnerSavings(ctx context.Context, ownerID string) ([]models.OwnerSavings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id,
			COUNT(DISTINCT instance_id),
			COALESCE(SUM(CASE WHEN kind = 'pause' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(paused_seconds), 0),
			COALESCE(SUM(savings), 0),
			MAX(CASE WHEN kind = 'resume' THEN at END)
		 FROM pause_events
		 WHERE ? = '' OR owner_id = ?
		 GROUP BY owner_id
		 ORDER BY 5 DESC, owner_id`, ownerID, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OwnerSavings
	for rows.Next() {
		var o models.OwnerSavings
		var pausedSeconds float64
		var lastResume sql.NullInt64
		if err := rows.Scan(&o.OwnerID, &o.InstanceCount, &o.PauseCount,
			&pausedSeconds, &o.Savings, &lastResume); err != nil {
			return nil, err
		}
		o.PausedHours = pausedSeconds / 3600
		if lastResume.Valid {
			t := fromMillis(lastResume.Int64)
			o.LastResumeAt = &t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
