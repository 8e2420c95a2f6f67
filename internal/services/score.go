package services

import (
	"context"

	"github.com/arcadehub/apiserver/internal/store"
	"github.com/arcadehub/apiserver/types"
	"github.com/google/uuid"
)

// Progression tuning. Experience and coins derive from the raw score;
// each level gained pays a one-time bonus of level*50 coins.
const (
	experienceDivisor = 10
	coinDivisor       = 100
	levelBonusCoins   = 50

	firstScoreAchievement = "first_score"
	highScorerAchievement = "high_scorer"
	highScorerExperience  = 10000
)

var levelAchievements = map[int]string{
	5:  "level_5",
	10: "level_10",
	25: "level_25",
}

// ScoreRepository defines persistence operations for score records.
type ScoreRepository interface {
	Create(ctx context.Context, record types.ScoreRecord, progress store.Progression) (types.ScoreRecord, error)
	ListByUser(ctx context.Context, userID int) ([]types.ScoreRecord, error)
	BestScores(ctx context.Context, gameID int) ([]store.BestScore, error)
}

// GameGetter is the slice of the game repository the ledger needs.
type GameGetter interface {
	Get(ctx context.Context, id int) (types.Game, error)
}

// ScoreEventSink receives a notification after a submission commits.
// Implementations fan out to the event bus, cache, and websocket hub;
// failures there must not fail the submission.
type ScoreEventSink interface {
	ScoreSubmitted(ctx context.Context, event types.ScoreEvent)
}

// ScoreService is the score ledger: it records gameplay outcomes and
// translates them into account progression.
type ScoreService struct {
	repo  ScoreRepository
	users UserRepository
	games GameGetter
	sink  ScoreEventSink
}

// NewScoreService constructs a ScoreService. sink may be nil.
func NewScoreService(repo ScoreRepository, users UserRepository, games GameGetter, sink ScoreEventSink) *ScoreService {
	return &ScoreService{
		repo:  repo,
		users: users,
		games: games,
		sink:  sink,
	}
}

// Submit appends an immutable score record and applies the user's
// progression in one transaction:
//
//	experience += score/10
//	coins      += score/100
//	level       = experience/1000 + 1
//
// Each level gained pays a bonus of level*50 coins, summed over the full
// delta: a jump from level 3 to 6 pays (4+5+6)*50, not 6*50.
func (s *ScoreService) Submit(ctx context.Context, userID, gameID, score int, playTime int64) (types.ScoreRecord, error) {
	if score < 0 || playTime < 0 {
		return types.ScoreRecord{}, ErrValidation
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.ScoreRecord{}, err
	}
	if _, err := s.games.Get(ctx, gameID); err != nil {
		return types.ScoreRecord{}, err
	}

	oldLevel := user.Level
	experience := user.Experience + score/experienceDivisor
	coins := user.Coins + score/coinDivisor
	newLevel := types.LevelForExperience(experience)
	for level := oldLevel + 1; level <= newLevel; level++ {
		coins += level * levelBonusCoins
	}

	achievements := user.Achievements
	grant := func(tag string) {
		for _, a := range achievements {
			if a == tag {
				return
			}
		}
		achievements = append(achievements, tag)
	}
	grant(firstScoreAchievement)
	for level := oldLevel + 1; level <= newLevel; level++ {
		if tag, ok := levelAchievements[level]; ok {
			grant(tag)
		}
	}
	if experience >= highScorerExperience {
		grant(highScorerAchievement)
	}

	record, err := s.repo.Create(ctx, types.ScoreRecord{
		UserID:   userID,
		GameID:   gameID,
		Score:    score,
		PlayTime: playTime,
	}, store.Progression{
		UserID:       userID,
		Level:        newLevel,
		Experience:   experience,
		Coins:        coins,
		Achievements: achievements,
	})
	if err != nil {
		return types.ScoreRecord{}, err
	}

	if s.sink != nil {
		s.sink.ScoreSubmitted(ctx, types.ScoreEvent{
			EventID:      uuid.New().String(),
			UserID:       userID,
			GameID:       gameID,
			Score:        score,
			PlayTime:     playTime,
			NewLevel:     newLevel,
			LevelsGained: newLevel - oldLevel,
			SubmittedAt:  record.CreatedAt,
		})
	}
	return record, nil
}

// UserScores returns all score records for the user. No order is
// guaranteed to callers; they sort if they need one.
func (s *ScoreService) UserScores(ctx context.Context, userID int) ([]types.ScoreRecord, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, userID)
}
