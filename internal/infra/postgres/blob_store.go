package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// kvEntry is a row of the kv_store table.
type kvEntry struct {
	bun.BaseModel `bun:"table:kv_store"`

	Key       string    `bun:"key,pk"`
	Value     []byte    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// BlobStore keeps blobs in the kv_store table.
type BlobStore struct {
	db *bun.DB
}

func NewBlobStore(db *bun.DB) *BlobStore {
	return &BlobStore{db: db}
}

func (s *BlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	entry := new(kvEntry)
	err := s.db.NewSelect().Model(entry).Where("key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *BlobStore) Save(ctx context.Context, key string, data []byte) error {
	entry := &kvEntry{Key: key, Value: data, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
