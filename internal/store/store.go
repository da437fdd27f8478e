// Package store persists missions and their event streams in a local
// SQLite database. Missions are stored as camelCase JSON documents with a
// few denormalised columns for listing; events are append-only rows.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/calder/worldmind/internal/events"
	"github.com/calder/worldmind/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a mission id does not exist.
var ErrNotFound = errors.New("mission not found")

// MissionSummary is one row of a mission listing.
type MissionSummary struct {
	ID        string               `json:"id"`
	Request   string               `json:"request"`
	Status    models.MissionStatus `json:"status"`
	CreatedAt int64                `json:"createdAt"`
	UpdatedAt int64                `json:"updatedAt"`
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and initialises the schema.
// ":memory:" opens an ephemeral database for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// busy_timeout first so the remaining pragmas wait on locks held by a
	// concurrent orchestrator process.
	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveMission upserts the full mission document.
func (s *Store) SaveMission(ctx context.Context, m *models.Mission) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal mission %s: %w", m.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO missions (id, status, request, doc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			doc = excluded.doc,
			updated_at = excluded.updated_at`,
		m.ID, string(m.Status), m.Request, string(doc), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save mission %s: %w", m.ID, err)
	}
	return nil
}

// GetMission loads one mission document by id.
func (s *Store) GetMission(ctx context.Context, id string) (*models.Mission, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM missions WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load mission %s: %w", id, err)
	}

	var m models.Mission
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, fmt.Errorf("decode mission %s: %w", id, err)
	}
	return &m, nil
}

// ListMissions returns mission summaries, most recently updated first.
func (s *Store) ListMissions(ctx context.Context) ([]MissionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request, status, created_at, updated_at
		FROM missions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	var out []MissionSummary
	for rows.Next() {
		var ms MissionSummary
		if err := rows.Scan(&ms.ID, &ms.Request, &ms.Status, &ms.CreatedAt, &ms.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}

// DeleteMission removes a mission and its events.
func (s *Store) DeleteMission(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE mission_id = ?`, id); err != nil {
		return fmt.Errorf("delete events of %s: %w", id, err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM missions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mission %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// AppendEvent records one event of the mission stream.
func (s *Store) AppendEvent(ctx context.Context, evt events.Event) error {
	var payload []byte
	if len(evt.Payload) > 0 {
		var err error
		if payload, err = json.Marshal(evt.Payload); err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (mission_id, task_id, type, payload, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		evt.MissionID, evt.TaskID, string(evt.Type), string(payload), evt.Timestamp)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// EventsFor returns a mission's events in append order.
func (s *Store) EventsFor(ctx context.Context, missionID string) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, task_id, payload, timestamp
		FROM events WHERE mission_id = ? ORDER BY id`, missionID)
	if err != nil {
		return nil, fmt.Errorf("load events of %s: %w", missionID, err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			evt     events.Event
			taskID  sql.NullString
			payload sql.NullString
		)
		if err := rows.Scan(&evt.Type, &taskID, &payload, &evt.Timestamp); err != nil {
			return nil, err
		}
		evt.MissionID = missionID
		evt.TaskID = taskID.String
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &evt.Payload); err != nil {
				return nil, fmt.Errorf("decode event payload: %w", err)
			}
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// Consume drains an event bus into the store until the bus closes. It is
// meant to run on its own goroutine for the lifetime of a mission.
func (s *Store) Consume(ctx context.Context, bus *events.Bus) {
	for evt := range bus.Events() {
		if err := s.AppendEvent(ctx, evt); err != nil {
			// The stream is best-effort; a failed append never blocks the
			// pipeline.
			continue
		}
	}
}
