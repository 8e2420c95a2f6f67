package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arcadehub/apiserver/internal/services"
	"github.com/arcadehub/apiserver/internal/store"
	"github.com/arcadehub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type memUserRepo struct {
	nextID int
	users  map[int]types.User
}

func (r *memUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) GetByIdentifier(ctx context.Context, identifier string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == identifier || user.Email == identifier {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) TouchLastLogin(ctx context.Context, id int, at time.Time) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.LastLogin = at
	r.users[id] = user
	return nil
}

type memGameRepo struct {
	nextID int
	games  map[int]types.Game
}

func (r *memGameRepo) List(ctx context.Context, offset, limit int) ([]types.Game, int, error) {
	out := make([]types.Game, 0, len(r.games))
	for _, game := range r.games {
		out = append(out, game)
	}
	return out, len(out), nil
}

func (r *memGameRepo) Get(ctx context.Context, id int) (types.Game, error) {
	game, ok := r.games[id]
	if !ok {
		return types.Game{}, store.ErrNotFound
	}
	return game, nil
}

func (r *memGameRepo) GetBySlug(ctx context.Context, slug string) (types.Game, error) {
	for _, game := range r.games {
		if game.Slug == slug {
			return game, nil
		}
	}
	return types.Game{}, store.ErrNotFound
}

func (r *memGameRepo) Create(ctx context.Context, game types.Game) (types.Game, error) {
	for _, existing := range r.games {
		if existing.Slug == game.Slug {
			return types.Game{}, store.ErrDuplicate
		}
	}
	r.nextID++
	game.ID = r.nextID
	r.games[game.ID] = game
	return game, nil
}

func (r *memGameRepo) Update(ctx context.Context, game types.Game) (types.Game, error) {
	if _, ok := r.games[game.ID]; !ok {
		return types.Game{}, store.ErrNotFound
	}
	r.games[game.ID] = game
	return game, nil
}

func (r *memGameRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.games[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.games, id)
	return nil
}

type memScoreRepo struct {
	users   *memUserRepo
	nextID  int64
	records []types.ScoreRecord
}

func (r *memScoreRepo) Create(ctx context.Context, record types.ScoreRecord, progress store.Progression) (types.ScoreRecord, error) {
	user, ok := r.users.users[progress.UserID]
	if !ok {
		return types.ScoreRecord{}, store.ErrNotFound
	}
	user.Level = progress.Level
	user.Experience = progress.Experience
	user.Coins = progress.Coins
	user.Achievements = progress.Achievements
	r.users.users[user.ID] = user

	r.nextID++
	record.ID = r.nextID
	record.CreatedAt = time.Now()
	r.records = append(r.records, record)
	return record, nil
}

func (r *memScoreRepo) ListByUser(ctx context.Context, userID int) ([]types.ScoreRecord, error) {
	var out []types.ScoreRecord
	for _, record := range r.records {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *memScoreRepo) BestScores(ctx context.Context, gameID int) ([]store.BestScore, error) {
	best := make(map[int]store.BestScore)
	for _, record := range r.records {
		if gameID != 0 && record.GameID != gameID {
			continue
		}
		current, ok := best[record.UserID]
		if !ok || record.Score > current.Score {
			best[record.UserID] = store.BestScore{
				UserID:        record.UserID,
				Score:         record.Score,
				FirstRecordID: record.ID,
			}
		}
	}
	out := make([]store.BestScore, 0, len(best))
	for _, b := range best {
		out = append(out, b)
	}
	return out, nil
}

type testEnv struct {
	router    *chi.Mux
	userRepo  *memUserRepo
	gameRepo  *memGameRepo
	scoreRepo *memScoreRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	userRepo := &memUserRepo{users: make(map[int]types.User)}
	gameRepo := &memGameRepo{games: make(map[int]types.Game)}
	scoreRepo := &memScoreRepo{users: userRepo}

	tokens := services.NewTokenIssuer("test-secret", time.Hour)
	userService := services.NewUserService(userRepo, tokens, 0)
	gameService := services.NewGameService(gameRepo, nil)
	scoreService := services.NewScoreService(scoreRepo, userRepo, gameRepo, nil)
	leaderboardService := services.NewLeaderboardService(scoreRepo, userRepo, nil)

	authMiddleware := RequireAuth(tokens, logger)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, tokens, logger)
	})
	router.Route("/games", func(r chi.Router) {
		GameRouter(r, gameService, userService, authMiddleware)
	})
	router.Group(func(r chi.Router) {
		ScoreRouter(r, scoreService, leaderboardService, authMiddleware)
	})

	return &testEnv{
		router:    router,
		userRepo:  userRepo,
		gameRepo:  gameRepo,
		scoreRepo: scoreRepo,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) registerAndLogin(t *testing.T, username string) (types.User, string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter22",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"identifier": username,
		"password":   "hunter22",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}

	var parsed AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if parsed.Token == "" {
		t.Fatalf("missing token in login response")
	}
	return parsed.User, parsed.Token
}
