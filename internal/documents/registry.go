// Package documents stores rendered PDFs and the metadata rows that point at
// them.
package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentfolio/rentfolio/internal/shared"
)

// Document is one stored file's metadata.
type Document struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	StorageKey string    `json:"storage_key"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists file contents under a key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// DiskStore keeps files under a root directory.
type DiskStore struct {
	root string
}

// NewDiskStore constructs a store rooted at dir.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{root: dir}
}

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.root, filepath.Clean("/"+key))
}

// Put writes the file, creating parent directories as needed.
func (s *DiskStore) Put(_ context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Get reads the file back.
func (s *DiskStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("documents: %s: %w", key, shared.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// Registry couples the metadata table with the file store.
type Registry struct {
	pool  *pgxpool.Pool
	store Store
}

// NewRegistry constructs a Registry.
func NewRegistry(pool *pgxpool.Pool, store Store) *Registry {
	return &Registry{pool: pool, store: store}
}

// Save writes the file and records its metadata.
func (r *Registry) Save(ctx context.Context, entityType string, entityID int64, storageKey, mimeType string, data []byte) (*Document, error) {
	if err := r.store.Put(ctx, storageKey, data); err != nil {
		return nil, err
	}
	doc := Document{
		EntityType: entityType,
		EntityID:   entityID,
		StorageKey: storageKey,
		MimeType:   mimeType,
		Size:       int64(len(data)),
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO documents (entity_type, entity_id, storage_key, mime_type, size)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		doc.EntityType, doc.EntityID, doc.StorageKey, doc.MimeType, doc.Size).
		Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByEntity returns an entity's documents, newest first.
func (r *Registry) ListByEntity(ctx context.Context, entityType string, entityID int64) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, entity_type, entity_id, storage_key, mime_type, size, created_at
FROM documents WHERE entity_type=$1 AND entity_id=$2 ORDER BY id DESC`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.EntityType, &d.EntityID, &d.StorageKey, &d.MimeType, &d.Size, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Get returns one document's metadata.
func (r *Registry) Get(ctx context.Context, id int64) (*Document, error) {
	var d Document
	err := r.pool.QueryRow(ctx, `SELECT id, entity_type, entity_id, storage_key, mime_type, size, created_at
FROM documents WHERE id=$1`, id).
		Scan(&d.ID, &d.EntityType, &d.EntityID, &d.StorageKey, &d.MimeType, &d.Size, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("documents: document %d: %w", id, shared.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}
