package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/arcadehub/apiserver/types"
	"github.com/lib/pq"
)

// Progression carries the user fields a score submission rewrites.
type Progression struct {
	UserID       int
	Level        int
	Experience   int
	Coins        int
	Achievements []string
}

// BestScore is one user's maximum score together with the id of their
// earliest qualifying record, used as the stable tie-break key.
type BestScore struct {
	UserID        int
	Score         int
	FirstRecordID int64
}

// ScoreRepository handles persistence for score records.
type ScoreRepository struct {
	db *sql.DB
}

func NewScoreRepository(db *sql.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// Create appends an immutable score record and applies the user's
// progression update in a single transaction, so a crash can never leave
// a recorded play without its experience/coin/level effects (or the
// reverse). The game's play counter advances in the same transaction.
func (r *ScoreRepository) Create(ctx context.Context, record types.ScoreRecord, progress Progression) (types.ScoreRecord, error) {
	record.CreatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.ScoreRecord{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertQuery = `
		INSERT INTO score_records (user_id, game_id, score, play_time, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		insertQuery,
		record.UserID,
		record.GameID,
		record.Score,
		record.PlayTime,
		record.CreatedAt,
	).Scan(&record.ID); err != nil {
		return types.ScoreRecord{}, err
	}

	const progressQuery = `
		UPDATE users
		SET level = $1,
			experience = $2,
			coins = $3,
			achievements = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := tx.ExecContext(
		ctx,
		progressQuery,
		progress.Level,
		progress.Experience,
		progress.Coins,
		pq.Array(progress.Achievements),
		record.CreatedAt,
		progress.UserID,
	)
	if err != nil {
		return types.ScoreRecord{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.ScoreRecord{}, err
	}
	if affected == 0 {
		return types.ScoreRecord{}, ErrNotFound
	}

	const playCountQuery = `
		UPDATE games
		SET play_count = play_count + 1, updated_at = $1
		WHERE id = $2`
	if _, err := tx.ExecContext(ctx, playCountQuery, record.CreatedAt, record.GameID); err != nil {
		return types.ScoreRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.ScoreRecord{}, err
	}
	return record, nil
}

// ListByUser returns all score records for a user, newest first.
func (r *ScoreRepository) ListByUser(ctx context.Context, userID int) ([]types.ScoreRecord, error) {
	const query = `
		SELECT id, user_id, game_id, score, play_time, created_at
		FROM score_records
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []types.ScoreRecord
	for rows.Next() {
		var record types.ScoreRecord
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.GameID,
			&record.Score,
			&record.PlayTime,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// BestScores returns each user's maximum score, optionally restricted to
// one game (gameID 0 means all games). Rows are ordered by score
// descending with earliest-first-record ascending as the secondary key;
// the caller re-sorts with the same contract before ranking.
func (r *ScoreRepository) BestScores(ctx context.Context, gameID int) ([]BestScore, error) {
	const baseQuery = `
		SELECT user_id, MAX(score) AS best_score, MIN(id) AS first_record_id
		FROM score_records`
	const tailQuery = `
		GROUP BY user_id
		ORDER BY best_score DESC, first_record_id ASC`

	var (
		rows *sql.Rows
		err  error
	)
	if gameID > 0 {
		rows, err = r.db.QueryContext(ctx, baseQuery+` WHERE game_id = $1`+tailQuery, gameID)
	} else {
		rows, err = r.db.QueryContext(ctx, baseQuery+tailQuery)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var best []BestScore
	for rows.Next() {
		var b BestScore
		if err := rows.Scan(&b.UserID, &b.Score, &b.FirstRecordID); err != nil {
			return nil, err
		}
		best = append(best, b)
	}
	return best, rows.Err()
}
