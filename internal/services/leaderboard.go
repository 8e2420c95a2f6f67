package services

import (
	"context"
	"errors"
	"sort"

	"github.com/arcadehub/apiserver/internal/store"
	"github.com/arcadehub/apiserver/types"
)

// leaderboardSize is the fixed depth of every leaderboard view.
const leaderboardSize = 10

// LeaderboardCache holds rendered leaderboard views keyed by game id
// (0 = global). A miss returns ok=false; cache failures are treated as
// misses since the store remains authoritative.
type LeaderboardCache interface {
	Get(ctx context.Context, gameID int) ([]types.LeaderboardEntry, bool)
	Set(ctx context.Context, gameID int, entries []types.LeaderboardEntry)
}

// LeaderboardService is a read-only view over the score ledger: it owns no
// state and recomputes rankings on every uncached read.
type LeaderboardService struct {
	scores ScoreRepository
	users  UserRepository
	cache  LeaderboardCache
}

// NewLeaderboardService constructs a LeaderboardService. cache may be nil.
func NewLeaderboardService(scores ScoreRepository, users UserRepository, cache LeaderboardCache) *LeaderboardService {
	return &LeaderboardService{
		scores: scores,
		users:  users,
		cache:  cache,
	}
}

// Top returns the top 10 users by best score, optionally restricted to one
// game (gameID 0 means all games). Ordering is best score descending; ties
// rank the user whose qualifying record was inserted first above later
// ones — that stable tie-break is the contract, there is no secondary key.
// An empty leaderboard is an empty slice, not an error.
func (s *LeaderboardService) Top(ctx context.Context, gameID int) ([]types.LeaderboardEntry, error) {
	if s.cache != nil {
		if entries, ok := s.cache.Get(ctx, gameID); ok {
			return entries, nil
		}
	}

	best, err := s.scores.BestScores(ctx, gameID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(best, func(i, j int) bool {
		if best[i].Score != best[j].Score {
			return best[i].Score > best[j].Score
		}
		return best[i].FirstRecordID < best[j].FirstRecordID
	})

	entries := make([]types.LeaderboardEntry, 0, leaderboardSize)
	for _, b := range best {
		if len(entries) == leaderboardSize {
			break
		}
		user, err := s.users.GetByID(ctx, b.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, types.LeaderboardEntry{
			Rank:      len(entries) + 1,
			User:      user,
			BestScore: b.Score,
		})
	}

	if s.cache != nil {
		s.cache.Set(ctx, gameID, entries)
	}
	return entries, nil
}
