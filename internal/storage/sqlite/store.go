// Package sqlite persists learned thresholds and decision history for the
// host. The engine itself never touches disk; hosts load thresholds at
// startup, feed them through ImportThresholds, and save them back on exit.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/haven-media/sentinel/internal/category"
	"github.com/haven-media/sentinel/internal/signal"
)

type Store struct {
	*sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS thresholds (
			category TEXT PRIMARY KEY,
			threshold DOUBLE NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS decisions (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			confidence DOUBLE NOT NULL,
			should_warn BOOL NOT NULL,
			route TEXT,
			reasoning TEXT,
			sample_time TIMESTAMP,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			kind TEXT NOT NULL,
			detection_confidence DOUBLE,
			event_time TIMESTAMP,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %v", err)
	}

	return &Store{db}, nil
}

// SaveThresholds upserts the full threshold map in one transaction.
func (s *Store) SaveThresholds(m map[category.Category]float64) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin threshold save: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO thresholds (category, threshold, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(category) DO UPDATE SET
			threshold = excluded.threshold,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare threshold upsert: %v", err)
	}
	defer stmt.Close()

	for cat, v := range m {
		if _, err := stmt.Exec(string(cat), v); err != nil {
			return fmt.Errorf("failed to save threshold for %s: %v", cat, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thresholds: %v", err)
	}
	return nil
}

// LoadThresholds reads the persisted threshold map. Rows for categories no
// longer in the route table are returned as-is; the learner skips them on
// import.
func (s *Store) LoadThresholds() (map[category.Category]float64, error) {
	rows, err := s.Query(`SELECT category, threshold FROM thresholds`)
	if err != nil {
		return nil, fmt.Errorf("failed to query thresholds: %v", err)
	}
	defer rows.Close()

	m := make(map[category.Category]float64)
	for rows.Next() {
		var cat string
		var v float64
		if err := rows.Scan(&cat, &v); err != nil {
			return nil, fmt.Errorf("failed to scan threshold row: %v", err)
		}
		m[category.Category(cat)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read thresholds: %v", err)
	}
	return m, nil
}

// RecordDecision appends one decision to the history table.
func (s *Store) RecordDecision(d signal.Decision, sampleTime time.Time) error {
	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.Exec(`
		INSERT INTO decisions (id, category, confidence, should_warn, route, reasoning, sample_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, string(d.Category), d.Confidence, d.ShouldWarn, string(d.Route), strings.Join(d.Reasoning, "; "), sampleTime)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %v", err)
	}
	return nil
}

// DecisionEvent is one persisted decision row.
type DecisionEvent struct {
	ID         string            `json:"id"`
	Category   category.Category `json:"category"`
	Confidence float64           `json:"confidence"`
	ShouldWarn bool              `json:"should_warn"`
	Route      string            `json:"route"`
	Reasoning  string            `json:"reasoning"`
	SampleTime time.Time         `json:"sample_time"`
}

// RecentDecisions returns the newest rows first, capped at limit.
func (s *Store) RecentDecisions(limit int) ([]DecisionEvent, error) {
	rows, err := s.Query(`
		SELECT id, category, confidence, should_warn, route, reasoning, sample_time
		FROM decisions ORDER BY recorded_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %v", err)
	}
	defer rows.Close()

	var events []DecisionEvent
	for rows.Next() {
		var e DecisionEvent
		var cat string
		if err := rows.Scan(&e.ID, &cat, &e.Confidence, &e.ShouldWarn, &e.Route, &e.Reasoning, &e.SampleTime); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %v", err)
		}
		e.Category = category.Category(cat)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read decisions: %v", err)
	}
	return events, nil
}

// RecordFeedback appends one user feedback event.
func (s *Store) RecordFeedback(fb signal.UserFeedback) error {
	_, err := s.Exec(`
		INSERT INTO feedback (id, category, kind, detection_confidence, event_time)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), string(fb.Category), string(fb.Kind), fb.DetectionConfidence, fb.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %v", err)
	}
	return nil
}

// WarnCounts aggregates per-category warning totals from the history.
func (s *Store) WarnCounts() (map[category.Category]int, error) {
	rows, err := s.Query(`
		SELECT category, COUNT(*) FROM decisions
		WHERE should_warn GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query warn counts: %v", err)
	}
	defer rows.Close()

	counts := make(map[category.Category]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("failed to scan warn count: %v", err)
		}
		counts[category.Category(cat)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read warn counts: %v", err)
	}
	return counts, nil
}
