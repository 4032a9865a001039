// Package journal records every finished session and its submission outcome
// in the local database.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/questlab/player/internal/questlab"
)

const DefaultLimit = 50

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordResult stores one submission attempt.
func (s *Store) RecordResult(ctx context.Context, e questlab.JournalEntry) error {
	var points sql.NullInt64
	if e.PointsEarned != nil {
		points = sql.NullInt64{Int64: int64(*e.PointsEarned), Valid: true}
	}
	var submitErr sql.NullString
	if e.SubmitError != "" {
		submitErr = sql.NullString{String: e.SubmitError, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_results
			(session_id, game_id, game_type, score, bonus_points, time_taken, points_earned, submit_error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.GameID, string(e.GameType), e.Score, e.BonusPoints, e.TimeTaken,
		points, submitErr, e.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording result for session %s: %w", e.SessionID, err)
	}
	return nil
}

// List returns the newest entries first. An empty gameID lists all games; a
// non-positive limit means DefaultLimit.
func (s *Store) List(ctx context.Context, gameID string, limit int) ([]questlab.JournalEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, game_id, game_type, score, bonus_points, time_taken,
		       points_earned, submit_error, finished_at
		FROM session_results
		WHERE ? = '' OR game_id = ?
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	`, gameID, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	entries := []questlab.JournalEntry{}
	for rows.Next() {
		var (
			e          questlab.JournalEntry
			gameType   string
			points     sql.NullInt64
			submitErr  sql.NullString
			finishedAt string
		)
		if err := rows.Scan(&e.SessionID, &e.GameID, &gameType, &e.Score, &e.BonusPoints,
			&e.TimeTaken, &points, &submitErr, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		e.GameType = questlab.GameType(gameType)
		if points.Valid {
			p := int(points.Int64)
			e.PointsEarned = &p
		}
		e.SubmitError = submitErr.String
		if e.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
			return nil, fmt.Errorf("parsing finished_at %q: %w", finishedAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
