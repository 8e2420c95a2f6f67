package services

import (
	"context"
	"time"

	"github.com/arcadehub/apiserver/internal/store"
	"github.com/arcadehub/apiserver/types"
)

type fakeUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User)}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByIdentifier(ctx context.Context, identifier string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == identifier || user.Email == identifier {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.users {
		if id == user.ID {
			continue
		}
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) TouchLastLogin(ctx context.Context, id int, at time.Time) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.LastLogin = at
	r.users[id] = user
	return nil
}

type fakeScoreRepo struct {
	users   *fakeUserRepo
	nextID  int64
	records []types.ScoreRecord
	best    []store.BestScore
	bestErr error
}

func newFakeScoreRepo(users *fakeUserRepo) *fakeScoreRepo {
	return &fakeScoreRepo{users: users}
}

func (r *fakeScoreRepo) Create(ctx context.Context, record types.ScoreRecord, progress store.Progression) (types.ScoreRecord, error) {
	if r.users != nil {
		user, ok := r.users.users[progress.UserID]
		if !ok {
			return types.ScoreRecord{}, store.ErrNotFound
		}
		user.Level = progress.Level
		user.Experience = progress.Experience
		user.Coins = progress.Coins
		user.Achievements = progress.Achievements
		r.users.users[user.ID] = user
	}
	r.nextID++
	record.ID = r.nextID
	record.CreatedAt = time.Now()
	r.records = append(r.records, record)
	return record, nil
}

func (r *fakeScoreRepo) ListByUser(ctx context.Context, userID int) ([]types.ScoreRecord, error) {
	var out []types.ScoreRecord
	for _, record := range r.records {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeScoreRepo) BestScores(ctx context.Context, gameID int) ([]store.BestScore, error) {
	if r.bestErr != nil {
		return nil, r.bestErr
	}
	return r.best, nil
}

type fakeGameGetter struct {
	games map[int]types.Game
}

func (g *fakeGameGetter) Get(ctx context.Context, id int) (types.Game, error) {
	game, ok := g.games[id]
	if !ok {
		return types.Game{}, store.ErrNotFound
	}
	return game, nil
}

type recordingSink struct {
	events []types.ScoreEvent
}

func (s *recordingSink) ScoreSubmitted(ctx context.Context, event types.ScoreEvent) {
	s.events = append(s.events, event)
}

type fakeLeaderboardCache struct {
	entries map[int][]types.LeaderboardEntry
	gets    int
	sets    int
}

func newFakeLeaderboardCache() *fakeLeaderboardCache {
	return &fakeLeaderboardCache{entries: make(map[int][]types.LeaderboardEntry)}
}

func (c *fakeLeaderboardCache) Get(ctx context.Context, gameID int) ([]types.LeaderboardEntry, bool) {
	c.gets++
	entries, ok := c.entries[gameID]
	return entries, ok
}

func (c *fakeLeaderboardCache) Set(ctx context.Context, gameID int, entries []types.LeaderboardEntry) {
	c.sets++
	c.entries[gameID] = entries
}
