package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/arcadehub/apiserver/internal/storage"
	"github.com/arcadehub/apiserver/types"
)

// GameRepository defines persistence operations for catalog games.
type GameRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Game, int, error)
	Get(ctx context.Context, id int) (types.Game, error)
	GetBySlug(ctx context.Context, slug string) (types.Game, error)
	Create(ctx context.Context, game types.Game) (types.Game, error)
	Update(ctx context.Context, game types.Game) (types.Game, error)
	Delete(ctx context.Context, id int) error
}

// GameService encapsulates catalog use-cases.
type GameService struct {
	repo    GameRepository
	storage *storage.Storage
}

// NewGameService constructs a GameService. storage may be nil, in which
// case bundle uploads are rejected.
func NewGameService(repo GameRepository, storage *storage.Storage) *GameService {
	return &GameService{repo: repo, storage: storage}
}

func (s *GameService) List(ctx context.Context, offset, limit int) ([]types.Game, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *GameService) Get(ctx context.Context, id int) (types.Game, error) {
	return s.repo.Get(ctx, id)
}

func (s *GameService) GetBySlug(ctx context.Context, slug string) (types.Game, error) {
	return s.repo.GetBySlug(ctx, slug)
}

func (s *GameService) Create(ctx context.Context, game types.Game) (types.Game, error) {
	game.Slug = strings.TrimSpace(game.Slug)
	game.Title = strings.TrimSpace(game.Title)
	if game.Slug == "" || game.Title == "" {
		return types.Game{}, ErrValidation
	}
	game.PlayCount = 0
	return s.repo.Create(ctx, game)
}

func (s *GameService) Update(ctx context.Context, game types.Game) (types.Game, error) {
	return s.repo.Update(ctx, game)
}

func (s *GameService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// UploadBundle stores a new playable asset bundle for the game and records
// its object key, hash, and bumped version. Re-uploading identical bytes
// is a no-op.
func (s *GameService) UploadBundle(ctx context.Context, gameID int, filename string, data []byte) (types.Game, error) {
	if s.storage == nil {
		return types.Game{}, errors.New("object storage is not configured")
	}
	if len(data) == 0 {
		return types.Game{}, ErrValidation
	}

	lower := strings.ToLower(strings.TrimSpace(filename))
	if !strings.HasSuffix(lower, ".tar.gz") && !strings.HasSuffix(lower, ".tgz") && !strings.HasSuffix(lower, ".zip") {
		return types.Game{}, fmt.Errorf("%w: unsupported bundle format", ErrValidation)
	}

	game, err := s.repo.Get(ctx, gameID)
	if err != nil {
		return types.Game{}, err
	}

	hash := sha256.Sum256(data)
	digest := hex.EncodeToString(hash[:])
	if game.Bundle.SHA256 == digest {
		return game, nil
	}

	key := path.Join("games", game.Slug, fmt.Sprintf("bundle-v%d-%s", game.Bundle.Version+1, path.Base(filename)))
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/octet-stream"); err != nil {
		return types.Game{}, err
	}

	game.Bundle = types.AssetBundle{
		ObjectKey: key,
		SHA256:    digest,
		SizeBytes: int64(len(data)),
		Version:   game.Bundle.Version + 1,
	}
	return s.repo.Update(ctx, game)
}

// OpenBundle streams the game's stored bundle from object storage.
func (s *GameService) OpenBundle(ctx context.Context, game types.Game) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, errors.New("object storage is not configured")
	}
	return s.storage.Get(ctx, game.Bundle.ObjectKey)
}

// UploadThumbnail stores the game's thumbnail image.
func (s *GameService) UploadThumbnail(ctx context.Context, gameID int, filename, contentType string, data []byte) (types.Game, error) {
	if s.storage == nil {
		return types.Game{}, errors.New("object storage is not configured")
	}
	if len(data) == 0 {
		return types.Game{}, ErrValidation
	}

	game, err := s.repo.Get(ctx, gameID)
	if err != nil {
		return types.Game{}, err
	}

	key := path.Join("games", game.Slug, "thumbnail"+path.Ext(filename))
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Game{}, err
	}

	game.ThumbnailKey = key
	return s.repo.Update(ctx, game)
}
