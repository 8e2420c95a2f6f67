package types

import "time"

// Game represents one catalog entry: an HTML5 game whose playable assets
// live in object storage.
type Game struct {
	// ID is the unique identifier of the game.
	ID int `json:"id" db:"id"`

	// Slug is the URL-safe unique short name of the game.
	Slug string `json:"slug" db:"slug"`

	// Title is the human-readable name of the game.
	Title string `json:"title" db:"title"`

	// Description is the catalog blurb shown on the game page.
	Description string `json:"description" db:"description"`

	// Category is the catalog section the game is listed under
	// (e.g., "arcade", "puzzle", "strategy").
	Category string `json:"category" db:"category"`

	// Bundle references the playable asset bundle in object storage.
	Bundle AssetBundle `json:"bundle" db:"bundle"`

	// ThumbnailKey is the object-storage key of the thumbnail image,
	// empty when no thumbnail has been uploaded.
	ThumbnailKey string `json:"thumbnail_key,omitempty" db:"thumbnail_key"`

	// PlayCount is the number of completed plays recorded for the game.
	PlayCount int64 `json:"play_count" db:"play_count"`

	// CreatedAt is the timestamp at which the game was added to the catalog.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the game.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AssetBundle references a versioned HTML5 asset bundle in object storage.
//
// The bundle is stored externally (MinIO or GCS) and referenced by
// ObjectKey. The SHA256 hash uniquely identifies the bundle contents and
// can be used for integrity verification and caching.
type AssetBundle struct {
	// ObjectKey is the identifier or path of the bundle in object storage.
	ObjectKey string `json:"object_key" db:"object_key"`

	// SHA256 is the cryptographic SHA-256 hash of the bundle contents,
	// encoded as a hexadecimal string.
	SHA256 string `json:"sha256" db:"sha256"`

	// SizeBytes is the size of the bundle archive.
	SizeBytes int64 `json:"size_bytes" db:"size_bytes"`

	// Version indicates the version number of this bundle.
	Version int `json:"version" db:"version"`
}
