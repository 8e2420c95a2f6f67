package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/arcadehub/apiserver/types"
)

func (e *testEnv) seedGame(t *testing.T, slug string) types.Game {
	t.Helper()

	game, err := e.gameRepo.Create(context.Background(), types.Game{Slug: slug, Title: slug})
	if err != nil {
		t.Fatalf("seed game: %v", err)
	}
	return game
}

func TestSubmitScore(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, "snake")
	_, token := env.registerAndLogin(t, "alice")

	rec := env.do(t, http.MethodPost, "/scores", token, map[string]any{
		"game_id":   game.ID,
		"score":     250,
		"play_time": 60,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status %d: %s", rec.Code, rec.Body.String())
	}

	var record types.ScoreRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Score != 250 || record.GameID != game.ID {
		t.Fatalf("unexpected record: %+v", record)
	}

	// Progression is visible on the profile afterwards.
	rec = env.do(t, http.MethodGet, "/auth/me", token, nil)
	var me types.User
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Experience != 25 || me.Coins != 102 {
		t.Fatalf("progression not applied: %+v", me)
	}
}

func TestSubmitScoreValidation(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, "snake")
	_, token := env.registerAndLogin(t, "alice")

	rec := env.do(t, http.MethodPost, "/scores", "", map[string]any{
		"game_id": game.ID,
		"score":   10,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/scores", token, map[string]any{
		"game_id": game.ID,
		"score":   -5,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative score, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/scores", token, map[string]any{
		"game_id": 999,
		"score":   10,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown game, got %d", rec.Code)
	}
}

func TestMyScores(t *testing.T) {
	env := newTestEnv(t)
	game := env.seedGame(t, "snake")
	_, token := env.registerAndLogin(t, "alice")

	rec := env.do(t, http.MethodGet, "/scores/mine", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("my scores status %d", rec.Code)
	}
	if body := rec.Body.String(); body == "null\n" {
		t.Fatalf("empty history must be an empty array, got %q", body)
	}

	for _, score := range []int{10, 20} {
		rec = env.do(t, http.MethodPost, "/scores", token, map[string]any{
			"game_id": game.ID,
			"score":   score,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit status %d", rec.Code)
		}
	}

	rec = env.do(t, http.MethodGet, "/scores/mine", token, nil)
	var records []types.ScoreRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	env := newTestEnv(t)
	snake := env.seedGame(t, "snake")
	tetris := env.seedGame(t, "tetris")

	_, aliceToken := env.registerAndLogin(t, "alice")
	_, bobToken := env.registerAndLogin(t, "bob")

	submissions := []struct {
		token  string
		gameID int
		score  int
	}{
		{aliceToken, snake.ID, 300},
		{bobToken, snake.ID, 500},
		{aliceToken, tetris.ID, 900},
	}
	for _, s := range submissions {
		rec := env.do(t, http.MethodPost, "/scores", s.token, map[string]any{
			"game_id": s.gameID,
			"score":   s.score,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit status %d: %s", rec.Code, rec.Body.String())
		}
	}

	// Global board ranks alice first via her tetris 900.
	rec := env.do(t, http.MethodGet, "/leaderboard", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard status %d", rec.Code)
	}
	var parsed LeaderboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(parsed.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(parsed.Entries))
	}
	if parsed.Entries[0].User.Username != "alice" || parsed.Entries[0].BestScore != 900 {
		t.Fatalf("unexpected leader: %+v", parsed.Entries[0])
	}

	// Per-game board only counts snake scores.
	rec = env.do(t, http.MethodGet, "/leaderboard?game_id="+strconv.Itoa(snake.ID), "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if parsed.Entries[0].User.Username != "bob" || parsed.Entries[0].BestScore != 500 {
		t.Fatalf("unexpected snake leader: %+v", parsed.Entries[0])
	}

	rec = env.do(t, http.MethodGet, "/leaderboard?game_id=abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad game_id, got %d", rec.Code)
	}
}
