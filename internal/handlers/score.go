package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/arcadehub/apiserver/internal/services"
	"github.com/arcadehub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// ScoreHandler provides HTTP handlers for score submission and the
// leaderboard views derived from it.
type ScoreHandler struct {
	scoreService       *services.ScoreService
	leaderboardService *services.LeaderboardService
}

// NewScoreHandler constructs a handler with the provided services.
func NewScoreHandler(scoreService *services.ScoreService, leaderboardService *services.LeaderboardService) *ScoreHandler {
	return &ScoreHandler{
		scoreService:       scoreService,
		leaderboardService: leaderboardService,
	}
}

// ScoreRouter registers score and leaderboard routes on the given router.
func ScoreRouter(
	r chi.Router,
	scoreService *services.ScoreService,
	leaderboardService *services.LeaderboardService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewScoreHandler(scoreService, leaderboardService)

	r.With(authMiddleware).Post("/scores", handler.SubmitScore)
	r.With(authMiddleware).Get("/scores/mine", handler.MyScores)
	r.Get("/leaderboard", handler.Leaderboard)
}

// SubmitScore records a completed play for the authenticated user.
func (h *ScoreHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.GameID < 1 || req.Score < 0 || req.PlayTime < 0 {
		writeError(w, http.StatusBadRequest, "invalid score submission")
		return
	}

	record, err := h.scoreService.Submit(r.Context(), userID, req.GameID, req.Score, req.PlayTime)
	if err != nil {
		writeServiceError(w, err, "failed to record score")
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// MyScores returns every score record of the authenticated user.
func (h *ScoreHandler) MyScores(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	records, err := h.scoreService.UserScores(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "failed to list scores")
		return
	}
	if records == nil {
		records = []types.ScoreRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

// Leaderboard returns the top 10 by best score, optionally for one game
// via the game_id query parameter.
func (h *ScoreHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	gameID := 0
	if raw := r.URL.Query().Get("game_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid game_id")
			return
		}
		gameID = parsed
	}

	entries, err := h.leaderboardService.Top(r.Context(), gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries})
}

type SubmitScoreRequest struct {
	GameID   int   `json:"game_id"`
	Score    int   `json:"score"`
	PlayTime int64 `json:"play_time"`
}

type LeaderboardResponse struct {
	Entries []types.LeaderboardEntry `json:"entries"`
}
