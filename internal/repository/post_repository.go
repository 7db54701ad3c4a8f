package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	ClaimForPublish(ctx context.Context, postID, userID int64) (bool, error)
	SaveResult(ctx context.Context, postID int64, platform string, result models.PlatformResult, status string) error
	FinalizePublish(ctx context.Context, postID int64, status string, results models.PlatformResults, publishedAt *time.Time) error
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

// Statuses a post may be claimed from. failed is included so a user can retry.
var claimableStatuses = []string{
	models.PostStatusDraft,
	models.PostStatusScheduled,
	models.PostStatusFailed,
}

const postColumns = `id, user_id, caption, COALESCE(title, ''), COALESCE(media_url, ''), media_type,
	platforms, platform_metadata, status, platform_results, scheduled_at, published_at, created_at, updated_at`

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var scheduledAt, publishedAt sql.NullTime
	err := row.Scan(&post.ID, &post.UserID, &post.Caption, &post.Title, &post.MediaURL, &post.MediaType,
		pq.Array(&post.Platforms), &post.PlatformMetadata, &post.Status, &post.PlatformResults,
		&scheduledAt, &publishedAt, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if scheduledAt.Valid {
		post.ScheduledAt = &scheduledAt.Time
	}
	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, caption, title, media_url, media_type, platforms, platform_metadata, status, scheduled_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9)
		RETURNING id
	`
	args := []any{post.UserID, post.Caption, post.Title, post.MediaURL, post.MediaType,
		pq.Array(post.Platforms), post.PlatformMetadata, post.Status, post.ScheduledAt}

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

// ListDue returns scheduled posts whose time has come, oldest first.
func (r *postRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
		LIMIT $3`
	return r.list(ctx, query, models.PostStatusScheduled, now, limit)
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// ClaimForPublish moves the post to publishing and clears previous results in
// one statement. It reports false when another run already holds the post or
// the post is in a terminal state.
func (r *postRepository) ClaimForPublish(ctx context.Context, postID, userID int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			platform_results = '{}'::jsonb,
			updated_at = $2
		WHERE id = $3 AND user_id = $4 AND status = ANY($5)
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusPublishing, time.Now(), postID, userID, pq.Array(claimableStatuses))
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// SaveResult merges a single platform entry into platform_results.
func (r *postRepository) SaveResult(ctx context.Context, postID int64, platform string, result models.PlatformResult, status string) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	query := `
		UPDATE posts
		SET platform_results = COALESCE(platform_results, '{}'::jsonb) || jsonb_build_object($1::text, $2::jsonb),
			status = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err = r.db.ExecContext(ctx, query, platform, string(payload), status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) FinalizePublish(ctx context.Context, postID int64, status string, results models.PlatformResults, publishedAt *time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			platform_results = $2,
			published_at = COALESCE($3, published_at),
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, status, results, publishedAt, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)

	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
