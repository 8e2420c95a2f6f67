package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/arcadehub/apiserver/internal/services"
	"github.com/arcadehub/apiserver/internal/store"
	"github.com/arcadehub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	adminRole          = "admin"
	maxMultipartMemory = 32 << 20
	maxBundleBytes     = 256 << 20
	formFieldBundle    = "bundle"
	formFieldThumbnail = "thumbnail"
)

// GameHandler provides HTTP handlers for the game catalog.
type GameHandler struct {
	gameService *services.GameService
	userService *services.UserService
}

// NewGameHandler constructs a handler with the provided services.
func NewGameHandler(gameService *services.GameService, userService *services.UserService) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		userService: userService,
	}
}

// GameRouter registers catalog routes on the given router.
func GameRouter(
	r chi.Router,
	gameService *services.GameService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewGameHandler(gameService, userService)

	r.Get("/", handler.ListGames)
	r.With(authMiddleware, handler.requireAdmin).Post("/", handler.CreateGame)
	r.Route("/{gameID}", func(r chi.Router) {
		r.Get("/", handler.GetGame)
		r.Get("/bundle", handler.DownloadBundle)
		r.With(authMiddleware, handler.requireAdmin).Put("/", handler.UpdateGame)
		r.With(authMiddleware, handler.requireAdmin).Delete("/", handler.DeleteGame)
		r.With(authMiddleware, handler.requireAdmin).Post("/bundle", handler.UploadBundle)
		r.With(authMiddleware, handler.requireAdmin).Post("/thumbnail", handler.UploadThumbnail)
	})
}

func (h *GameHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := h.userService.GetByID(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != adminRole {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.gameService.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list games")
		return
	}
	if items == nil {
		items = []types.Game{}
	}

	writeJSON(w, http.StatusOK, GameListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.gameService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch game")
		return
	}

	writeJSON(w, http.StatusOK, game)
}

func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	game, err := h.gameService.Create(r.Context(), types.Game{
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "slug already exists")
			return
		}
		writeServiceError(w, err, "failed to create game")
		return
	}

	writeJSON(w, http.StatusCreated, game)
}

func (h *GameHandler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.gameService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch game")
		return
	}

	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Slug != "" {
		game.Slug = req.Slug
	}
	if req.Title != "" {
		game.Title = req.Title
	}
	game.Description = req.Description
	game.Category = req.Category

	updated, err := h.gameService.Update(r.Context(), game)
	if err != nil {
		writeServiceError(w, err, "failed to update game")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.gameService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "failed to delete game")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadBundle accepts a multipart upload of the game's playable archive.
func (h *GameHandler) UploadBundle(w http.ResponseWriter, r *http.Request) {
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename, data, err := readUpload(r, formFieldBundle)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.gameService.UploadBundle(r.Context(), id, filename, data)
	if err != nil {
		writeServiceError(w, err, "failed to store bundle")
		return
	}

	writeJSON(w, http.StatusOK, game)
}

// UploadThumbnail accepts a multipart upload of the game's thumbnail.
func (h *GameHandler) UploadThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename, data, err := readUpload(r, formFieldThumbnail)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.gameService.UploadThumbnail(r.Context(), id, filename, http.DetectContentType(data), data)
	if err != nil {
		writeServiceError(w, err, "failed to store thumbnail")
		return
	}

	writeJSON(w, http.StatusOK, game)
}

// DownloadBundle streams the game's playable archive from object storage.
func (h *GameHandler) DownloadBundle(w http.ResponseWriter, r *http.Request) {
	id, err := parseGameID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := h.gameService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to fetch game")
		return
	}
	if game.Bundle.ObjectKey == "" {
		writeError(w, http.StatusNotFound, "game has no bundle")
		return
	}

	reader, err := h.gameService.OpenBundle(r.Context(), game)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open bundle")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func readUpload(r *http.Request, field string) (string, []byte, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return "", nil, errors.New("invalid multipart form")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, errors.New("missing " + field + " file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBundleBytes+1))
	if err != nil {
		return "", nil, errors.New("failed to read upload")
	}
	if len(data) > maxBundleBytes {
		return "", nil, errors.New("upload too large")
	}
	return header.Filename, data, nil
}

func parseGameID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "gameID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid game id")
	}
	return id, nil
}

type GameRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type GameListResponse struct {
	Items []types.Game `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}
