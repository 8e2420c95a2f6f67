package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/arcadehub/apiserver/types"
	"github.com/lib/pq"
)

// GameRepository handles persistence for catalog games.
type GameRepository struct {
	db *sql.DB
}

func NewGameRepository(db *sql.DB) *GameRepository {
	return &GameRepository{db: db}
}

const gameColumns = `id, slug, title, description, category, bundle_object_key, bundle_sha256, bundle_size_bytes, bundle_version, thumbnail_key, play_count, created_at, updated_at`

func scanGame(scan func(dest ...any) error) (types.Game, error) {
	var game types.Game
	err := scan(
		&game.ID,
		&game.Slug,
		&game.Title,
		&game.Description,
		&game.Category,
		&game.Bundle.ObjectKey,
		&game.Bundle.SHA256,
		&game.Bundle.SizeBytes,
		&game.Bundle.Version,
		&game.ThumbnailKey,
		&game.PlayCount,
		&game.CreatedAt,
		&game.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Game{}, ErrNotFound
		}
		return types.Game{}, err
	}
	return game, nil
}

func (r *GameRepository) List(ctx context.Context, offset, limit int) ([]types.Game, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `
		SELECT ` + gameColumns + `
		FROM games
		ORDER BY title ASC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var games []types.Game
	for rows.Next() {
		game, err := scanGame(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		games = append(games, game)
	}
	return games, total, rows.Err()
}

func (r *GameRepository) Get(ctx context.Context, id int) (types.Game, error) {
	const query = `
		SELECT ` + gameColumns + `
		FROM games
		WHERE id = $1`
	return scanGame(r.db.QueryRowContext(ctx, query, id).Scan)
}

func (r *GameRepository) GetBySlug(ctx context.Context, slug string) (types.Game, error) {
	const query = `
		SELECT ` + gameColumns + `
		FROM games
		WHERE slug = $1`
	return scanGame(r.db.QueryRowContext(ctx, query, slug).Scan)
}

func (r *GameRepository) Create(ctx context.Context, game types.Game) (types.Game, error) {
	now := time.Now()
	game.CreatedAt = now
	game.UpdatedAt = now

	const query = `
		INSERT INTO games (slug, title, description, category, bundle_object_key, bundle_sha256, bundle_size_bytes, bundle_version, thumbnail_key, play_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		game.Slug,
		game.Title,
		game.Description,
		game.Category,
		game.Bundle.ObjectKey,
		game.Bundle.SHA256,
		game.Bundle.SizeBytes,
		game.Bundle.Version,
		game.ThumbnailKey,
		game.PlayCount,
		game.CreatedAt,
		game.UpdatedAt,
	).Scan(&game.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return types.Game{}, ErrDuplicate
		}
		return types.Game{}, err
	}
	return game, nil
}

func (r *GameRepository) Update(ctx context.Context, game types.Game) (types.Game, error) {
	game.UpdatedAt = time.Now()

	const query = `
		UPDATE games
		SET slug = $1,
			title = $2,
			description = $3,
			category = $4,
			bundle_object_key = $5,
			bundle_sha256 = $6,
			bundle_size_bytes = $7,
			bundle_version = $8,
			thumbnail_key = $9,
			updated_at = $10
		WHERE id = $11`
	result, err := r.db.ExecContext(
		ctx,
		query,
		game.Slug,
		game.Title,
		game.Description,
		game.Category,
		game.Bundle.ObjectKey,
		game.Bundle.SHA256,
		game.Bundle.SizeBytes,
		game.Bundle.Version,
		game.ThumbnailKey,
		game.UpdatedAt,
		game.ID,
	)
	if err != nil {
		return types.Game{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Game{}, err
	}
	if affected == 0 {
		return types.Game{}, ErrNotFound
	}
	return game, nil
}

func (r *GameRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM games WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
