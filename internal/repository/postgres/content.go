package postgres

import (
	"context"
	"database/sql"

	"lecturegate/internal/domain"
	"lecturegate/pkg/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type ContentRepository struct {
	db *sqlx.DB
}

func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) FindByKey(ctx context.Context, key string) (*domain.ContentItem, error) {
	var item domain.ContentItem
	query := `SELECT key, title, urls, created_at FROM content_items WHERE key = $1`

	err := r.db.QueryRowxContext(ctx, query, key).Scan(
		&item.Key, &item.Title, pq.Array(&item.URLs), &item.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.ErrContentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find content item")
	}

	return &item, nil
}

func (r *ContentRepository) Upsert(ctx context.Context, item *domain.ContentItem) error {
	query := `
		INSERT INTO content_items (key, title, urls, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET
			title = EXCLUDED.title,
			urls = EXCLUDED.urls
	`
	_, err := r.db.ExecContext(ctx, query, item.Key, item.Title, pq.Array(item.URLs))
	if err != nil {
		return errors.Wrap(err, "failed to upsert content item")
	}
	return nil
}
