// ABOUTME: Episode CRUD and archive operations for SQLite storage.
// ABOUTME: Intensity history lives in episode_intensity, labels as JSON columns.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/migraine/internal/models"
)

const episodeColumns = `id, start_time, end_time, intensity, triggers, medicines, symptoms, notes, created_at, updated_at`

// CreateEpisode stores a new episode with its intensity history.
func (d *DB) CreateEpisode(e *models.Episode) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("create episode: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	args, err := episodeArgs(e)
	if err != nil {
		return fmt.Errorf("create episode: %w", err)
	}
	query := `
		INSERT INTO episodes (id, start_time, start_unix, end_time, intensity, triggers, medicines, symptoms, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("create episode: %w", err)
	}
	if err := insertHistory(tx, e); err != nil {
		return fmt.Errorf("create episode: %w", err)
	}
	return tx.Commit()
}

// GetEpisode retrieves an episode by ID or ID prefix.
func (d *DB) GetEpisode(idOrPrefix string) (*models.Episode, error) {
	id, err := d.resolveEpisodeID(idOrPrefix)
	if err != nil {
		return nil, err
	}

	e, err := d.scanEpisode(d.db.QueryRow(`SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(idOrPrefix)
		}
		return nil, err
	}
	if err := d.loadHistory(e); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEpisode rewrites an existing episode and replaces its history.
func (d *DB) UpdateEpisode(e *models.Episode) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	args, err := episodeArgs(e)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	query := `
		UPDATE episodes SET start_time = ?, start_unix = ?, end_time = ?, intensity = ?,
			triggers = ?, medicines = ?, symptoms = ?, notes = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := tx.Exec(query, append(args[1:], args[0])...)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	if affected == 0 {
		return notFound(e.ID.String())
	}

	if _, err := tx.Exec("DELETE FROM episode_intensity WHERE episode_id = ?", e.ID.String()); err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	if err := insertHistory(tx, e); err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	return tx.Commit()
}

// ListEpisodes retrieves episodes sorted by StartTime descending (most recent first).
func (d *DB) ListEpisodes(limit int) ([]*models.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes ORDER BY start_unix DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	episodes, err := d.scanEpisodes(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	for _, e := range episodes {
		if err := d.loadHistory(e); err != nil {
			return nil, err
		}
	}
	return episodes, nil
}

// DeleteEpisode removes an episode and its intensity history.
func (d *DB) DeleteEpisode(idOrPrefix string) error {
	id, err := d.resolveEpisodeID(idOrPrefix)
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM episode_intensity WHERE episode_id = ?", id); err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	result, err := tx.Exec("DELETE FROM episodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	if affected == 0 {
		return notFound(idOrPrefix)
	}
	return tx.Commit()
}

// ArchiveEpisodes moves episodes that started before the cutoff into the
// archive table and returns how many were moved.
func (d *DB) ArchiveEpisodes(before time.Time) (int, error) {
	rows, err := d.db.Query(`SELECT `+episodeColumns+` FROM episodes WHERE start_unix < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("archive episodes: %w", err)
	}
	episodes, err := d.scanEpisodes(rows)
	_ = rows.Close()
	if err != nil {
		return 0, err
	}
	if len(episodes) == 0 {
		return 0, nil
	}
	for _, e := range episodes {
		if err := d.loadHistory(e); err != nil {
			return 0, err
		}
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("archive episodes: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	archivedAt := formatTime(time.Now())
	for _, e := range episodes {
		data, err := json.Marshal(e)
		if err != nil {
			return 0, fmt.Errorf("marshal episode %s: %w", e.ID, err)
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO archived_episodes (id, start_unix, archived_at, data) VALUES (?, ?, ?, ?)`,
			e.ID.String(), e.StartTime.UnixNano(), archivedAt, string(data),
		); err != nil {
			return 0, fmt.Errorf("archive episode %s: %w", e.ID, err)
		}
		if _, err := tx.Exec("DELETE FROM episode_intensity WHERE episode_id = ?", e.ID.String()); err != nil {
			return 0, fmt.Errorf("archive episode %s: %w", e.ID, err)
		}
		if _, err := tx.Exec("DELETE FROM episodes WHERE id = ?", e.ID.String()); err != nil {
			return 0, fmt.Errorf("archive episode %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("archive episodes: %w", err)
	}
	return len(episodes), nil
}

// ListArchivedEpisodes returns archived episodes, most recent first.
func (d *DB) ListArchivedEpisodes() ([]*models.Episode, error) {
	rows, err := d.db.Query(`SELECT data FROM archived_episodes ORDER BY start_unix DESC`)
	if err != nil {
		return nil, fmt.Errorf("list archived episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*models.Episode
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan archived episode: %w", err)
		}
		var e models.Episode
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("unmarshal archived episode: %w", err)
		}
		episodes = append(episodes, &e)
	}
	return episodes, rows.Err()
}

// resolveEpisodeID finds the full ID from a prefix.
func (d *DB) resolveEpisodeID(idOrPrefix string) (string, error) {
	if len(idOrPrefix) == 36 && strings.Count(idOrPrefix, "-") == 4 {
		return idOrPrefix, nil
	}

	rows, err := d.db.Query(`SELECT id FROM episodes WHERE id LIKE ? || '%'`, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("resolve episode ID: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan episode ID: %w", err)
		}
		matches = append(matches, id)
	}

	if len(matches) == 0 {
		return "", notFound(idOrPrefix)
	}
	if len(matches) > 1 {
		return "", ambiguous(idOrPrefix)
	}
	return matches[0], nil
}

func episodeArgs(e *models.Episode) ([]interface{}, error) {
	triggers, err := json.Marshal(nonNil(e.Triggers))
	if err != nil {
		return nil, err
	}
	medicines, err := json.Marshal(nonNil(e.Medicines))
	if err != nil {
		return nil, err
	}
	symptoms, err := json.Marshal(e.Symptoms)
	if err != nil {
		return nil, err
	}
	var endTime *string
	if e.EndTime != nil {
		s := formatTime(*e.EndTime)
		endTime = &s
	}
	return []interface{}{
		e.ID.String(),
		formatTime(e.StartTime),
		e.StartTime.UnixNano(),
		endTime,
		e.Intensity,
		string(triggers),
		string(medicines),
		string(symptoms),
		e.Notes,
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	}, nil
}

func insertHistory(tx *sql.Tx, e *models.Episode) error {
	for i, entry := range e.IntensityHistory {
		var note *string
		if entry.Note != "" {
			note = &entry.Note
		}
		_, err := tx.Exec(
			`INSERT INTO episode_intensity (episode_id, seq, recorded_at, intensity, note) VALUES (?, ?, ?, ?, ?)`,
			e.ID.String(), i, formatTime(entry.Timestamp), entry.Intensity, note,
		)
		if err != nil {
			return fmt.Errorf("insert intensity entry: %w", err)
		}
	}
	return nil
}

func (d *DB) loadHistory(e *models.Episode) error {
	rows, err := d.db.Query(
		`SELECT recorded_at, intensity, note FROM episode_intensity WHERE episode_id = ? ORDER BY seq`,
		e.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("load intensity history: %w", err)
	}
	defer rows.Close()

	e.IntensityHistory = nil
	for rows.Next() {
		var recordedAt string
		var note sql.NullString
		var entry models.IntensityEntry
		if err := rows.Scan(&recordedAt, &entry.Intensity, &note); err != nil {
			return fmt.Errorf("scan intensity entry: %w", err)
		}
		entry.Timestamp = parseTime(recordedAt)
		entry.Note = note.String
		e.IntensityHistory = append(e.IntensityHistory, entry)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanEpisode scans a single row into an Episode without its history.
func (d *DB) scanEpisode(row rowScanner) (*models.Episode, error) {
	var e models.Episode
	var idStr, startTime, triggers, medicines, symptoms, createdAt, updatedAt string
	var endTime, notes sql.NullString

	err := row.Scan(&idStr, &startTime, &endTime, &e.Intensity, &triggers, &medicines, &symptoms, &notes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan episode: %w", err)
	}

	e.ID, _ = uuid.Parse(idStr)
	e.StartTime = parseTime(startTime)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	if endTime.Valid {
		t := parseTime(endTime.String)
		e.EndTime = &t
	}
	if notes.Valid {
		e.Notes = &notes.String
	}
	if err := json.Unmarshal([]byte(triggers), &e.Triggers); err != nil {
		return nil, fmt.Errorf("decode triggers: %w", err)
	}
	if err := json.Unmarshal([]byte(medicines), &e.Medicines); err != nil {
		return nil, fmt.Errorf("decode medicines: %w", err)
	}
	if err := json.Unmarshal([]byte(symptoms), &e.Symptoms); err != nil {
		return nil, fmt.Errorf("decode symptoms: %w", err)
	}
	return &e, nil
}

// scanEpisodes scans multiple rows into a slice of Episodes.
func (d *DB) scanEpisodes(rows *sql.Rows) ([]*models.Episode, error) {
	var episodes []*models.Episode
	for rows.Next() {
		e, err := d.scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
