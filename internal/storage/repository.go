package storage

import (
	"context"
	"time"
)

type Repository struct {
	Store *Store
}

func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

// TagSamplesForPump returns the narrow samples for one pump within
// [from, to), newest first, joined to the tag table for the tag name.
func (r *Repository) TagSamplesForPump(ctx context.Context, pumpID int, from, to time.Time) ([]TagSampleRow, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT th.id, th.tag_id, t.name, th.pump_id, th.timestamp,
		       th.value_double, th.value_int, th.value_bool, th.value_string, th.quality
		FROM tag_histories th
		JOIN tags t ON t.id = th.tag_id
		WHERE th.pump_id=$1 AND th.timestamp >= $2 AND th.timestamp < $3
		ORDER BY th.timestamp DESC, th.id DESC`, pumpID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []TagSampleRow{}
	for rows.Next() {
		var rec TagSampleRow
		if err := rows.Scan(&rec.ID, &rec.TagID, &rec.TagName, &rec.PumpID, &rec.Timestamp,
			&rec.ValueDouble, &rec.ValueInt, &rec.ValueBool, &rec.ValueString, &rec.Quality); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// EventsInRange returns event log rows within [from, to), newest first.
// An empty or "all" eventType means no type filter.
func (r *Repository) EventsInRange(ctx context.Context, eventType string, from, to time.Time) ([]EventRecord, error) {
	query := `
		SELECT id, event_type, device, account, description, timestamp, error_code, processing_time_seconds
		FROM event_logs
		WHERE timestamp >= $1 AND timestamp < $2`
	args := []any{from, to}
	if eventType != "" && eventType != "all" {
		query += ` AND event_type=$3`
		args = append(args, eventType)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []EventRecord{}
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Device, &rec.Account, &rec.Description,
			&rec.Timestamp, &rec.ErrorCode, &rec.ProcessingTimeSeconds); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// LoginsInRange returns login log rows within [from, to), newest first.
func (r *Repository) LoginsInRange(ctx context.Context, from, to time.Time) ([]LoginRecord, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT id, user_id, username, ip_address, user_agent, is_success, failure_reason, timestamp
		FROM login_logs
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []LoginRecord{}
	for rows.Next() {
		var rec LoginRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Username, &rec.IPAddress, &rec.UserAgent,
			&rec.IsSuccess, &rec.FailureReason, &rec.Timestamp); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// TagByID returns the tag definition, or ErrNotFound.
func (r *Repository) TagByID(ctx context.Context, id int) (TagDefinition, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT id, name, description, unit, data_type, pump_id, is_active, created_at
		FROM tags WHERE id=$1`, id)
	var rec TagDefinition
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.Unit, &rec.DataType,
		&rec.PumpID, &rec.IsActive, &rec.CreatedAt); err != nil {
		return TagDefinition{}, ErrNotFound
	}
	return rec, nil
}

// ActivePumpIDs returns the distinct pump ids that own at least one active
// tag, ascending.
func (r *Repository) ActivePumpIDs(ctx context.Context) ([]int, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT DISTINCT pump_id FROM tags WHERE is_active ORDER BY pump_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		results = append(results, id)
	}
	return results, rows.Err()
}
