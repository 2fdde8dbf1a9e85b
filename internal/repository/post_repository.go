package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/hashipost/hashipost/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListRecentByUserID(ctx context.Context, userID int64, limit int) ([]*models.Post, error)
	SetResultPosted(ctx context.Context, resultID int64, externalPostID, postURL string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

// Create writes the post and all its per-platform outcomes in one
// transaction, after every platform attempt has settled. Result IDs are
// filled in on the passed-in structs.
func (r *postRepository) Create(ctx context.Context, post *models.Post) (int64, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	defer tx.Rollback()

	var id int64
	query := `
		INSERT INTO posts (user_id, content, media_url)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, query, post.UserID, post.Content, post.MediaURL).Scan(&id); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	resultQuery := `
		INSERT INTO post_results (post_id, platform, posted, external_post_id, post_url, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	for _, res := range post.Results {
		err := tx.QueryRowContext(ctx, resultQuery, id, res.Platform, res.Posted,
			res.ExternalPostID, res.PostURL, res.ErrorMessage).Scan(&res.ID)
		if err != nil {
			slog.Info(err.Error())
			return 0, err
		}
		res.PostID = id
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	post.ID = id
	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT id, user_id, content, media_url, created_at FROM posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var post models.Post
	err := row.Scan(&post.ID, &post.UserID, &post.Content, &post.MediaURL, &post.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	results, err := r.listResults(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.Results = results

	return &post, nil
}

func (r *postRepository) ListRecentByUserID(ctx context.Context, userID int64, limit int) ([]*models.Post, error) {
	query := `SELECT id, user_id, content, media_url, created_at
		FROM posts WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		err := rows.Scan(&post.ID, &post.UserID, &post.Content, &post.MediaURL, &post.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	for _, post := range posts {
		results, err := r.listResults(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		post.Results = results
	}

	return posts, nil
}

func (r *postRepository) listResults(ctx context.Context, postID int64) ([]*models.PostResult, error) {
	query := `SELECT id, post_id, platform, posted, external_post_id, post_url, error_message
		FROM post_results WHERE post_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var results []*models.PostResult
	for rows.Next() {
		var res models.PostResult
		err := rows.Scan(&res.ID, &res.PostID, &res.Platform, &res.Posted,
			&res.ExternalPostID, &res.PostURL, &res.ErrorMessage)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		results = append(results, &res)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return results, nil
}

// SetResultPosted marks one outcome row posted once the platform finishes
// processing. Used by the TikTok URL backfill worker; the post itself is
// never touched.
func (r *postRepository) SetResultPosted(ctx context.Context, resultID int64, externalPostID, postURL string) error {
	query := `
		UPDATE post_results
		SET posted = TRUE,
			external_post_id = COALESCE(NULLIF($2, ''), external_post_id),
			post_url = $3,
			error_message = ''
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, resultID, externalPostID, postURL)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return sql.ErrNoRows
	}

	return nil
}
