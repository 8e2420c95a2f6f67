package types

import "time"

// ScoreRecord represents one completed play of a game.
// Records are immutable once created; a user may have many records per game.
type ScoreRecord struct {
	// ID is the unique identifier of the score record.
	ID int64 `json:"id" db:"id"`

	// UserID identifies the user who played.
	UserID int `json:"user_id" db:"user_id"`

	// GameID identifies the game that was played.
	GameID int `json:"game_id" db:"game_id"`

	// Score is the final score of the play. Never negative.
	Score int `json:"score" db:"score"`

	// PlayTime is the duration of the play, expressed in milliseconds.
	PlayTime int64 `json:"play_time" db:"play_time"`

	// CreatedAt is the timestamp when the play completed.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LeaderboardEntry is a derived ranking row: a user's public record paired
// with their best score. Entries are recomputed on every read, never stored.
type LeaderboardEntry struct {
	// Rank is the 1-indexed position in the leaderboard.
	Rank int `json:"rank"`

	// User is the public projection of the ranked user.
	User User `json:"user"`

	// BestScore is the maximum score across the user's qualifying records.
	BestScore int `json:"best_score"`
}

// ScoreEvent is the message published on the event bus after a score
// submission commits.
type ScoreEvent struct {
	// EventID uniquely identifies the event.
	EventID string `json:"event_id"`

	// UserID identifies the submitting user.
	UserID int `json:"user_id"`

	// GameID identifies the game played.
	GameID int `json:"game_id"`

	// Score is the submitted score.
	Score int `json:"score"`

	// PlayTime is the play duration in milliseconds.
	PlayTime int64 `json:"play_time"`

	// NewLevel is the user's level after progression was applied.
	NewLevel int `json:"new_level"`

	// LevelsGained is how many levels the submission advanced the user.
	LevelsGained int `json:"levels_gained"`

	// SubmittedAt is when the submission was recorded.
	SubmittedAt time.Time `json:"submitted_at"`
}
