package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hashipost/hashipost/internal/models"
)

type OAuthStateRepository interface {
	Create(ctx context.Context, st *models.OAuthState) error
	Consume(ctx context.Context, state string) (*models.OAuthState, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type oauthStateRepository struct {
	db *sql.DB
}

func NewOAuthStateRepository(db *sql.DB) OAuthStateRepository {
	return &oauthStateRepository{db: db}
}

func (r *oauthStateRepository) Create(ctx context.Context, st *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, user_id, platform, code_verifier, code_challenge)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, st.State, st.UserID, st.Platform, st.CodeVerifier, st.CodeChallenge)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Consume deletes the pending row for the given state value and returns it.
// The delete-returning makes consumption atomic: a replayed callback or a
// state that was never issued finds no row and gets nil back. Because the
// lookup key is the state itself, a row existing at all implies the returned
// state equals the stored one.
func (r *oauthStateRepository) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	query := `
		DELETE FROM oauth_states
		WHERE state = $1
		RETURNING state, user_id, platform, code_verifier, code_challenge, created_at
	`

	var st models.OAuthState
	err := r.db.QueryRowContext(ctx, query, state).Scan(&st.State, &st.UserID, &st.Platform,
		&st.CodeVerifier, &st.CodeChallenge, &st.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &st, nil
}

// DeleteOlderThan sweeps states from abandoned link flows.
func (r *oauthStateRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE created_at < $1`, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return affected, nil
}
