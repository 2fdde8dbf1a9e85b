package service

import (
	"context"
	"sync"
	"time"

	"github.com/hashipost/hashipost/internal/models"
)

// In-memory stand-ins for the repositories and publishers, enough for the
// orchestration paths under test.

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts []*models.SocialAccount
	removed  []int64
	nextID   int64
}

func (f *fakeAccountRepo) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Same conflict target as the real table: (user_id, platform,
	// account_username) replaces the row in place and keeps its id.
	for i, acc := range f.accounts {
		if acc.UserID == sa.UserID && acc.Platform == sa.Platform && acc.AccountUsername == sa.AccountUsername {
			sa.ID = acc.ID
			f.accounts[i] = sa
			return sa.ID, nil
		}
	}
	sa.ID = f.nextID + 1
	f.nextID = sa.ID
	f.accounts = append(f.accounts, sa)
	return sa.ID, nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range f.accounts {
		if acc.ID == id {
			return acc, nil
		}
	}
	return nil, nil
}

func (f *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SocialAccount
	for _, acc := range f.accounts {
		if acc.UserID == userID {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) ListByUserAndPlatform(ctx context.Context, userID int64, platform string) ([]*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SocialAccount
	for _, acc := range f.accounts {
		if acc.UserID == userID && acc.Platform == platform {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) GetByUsername(ctx context.Context, userID int64, platform, username string) (*models.SocialAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, acc := range f.accounts {
		if acc.UserID == userID && acc.Platform == platform && acc.AccountUsername == username {
			return acc, nil
		}
	}
	return nil, nil
}

func (f *fakeAccountRepo) ListExpiring(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (f *fakeAccountRepo) SetToken(ctx context.Context, accountID int64, sa *models.SocialAccount) error {
	return nil
}

func (f *fakeAccountRepo) Remove(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	for i, acc := range f.accounts {
		if acc.ID == id {
			f.accounts = append(f.accounts[:i], f.accounts[i+1:]...)
			break
		}
	}
	return nil
}

type fakePostRepo struct {
	mu    sync.Mutex
	posts []*models.Post
}

func (f *fakePostRepo) Create(ctx context.Context, post *models.Post) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post.ID = int64(len(f.posts) + 1)
	for i, res := range post.Results {
		res.ID = post.ID*100 + int64(i)
		res.PostID = post.ID
	}
	f.posts = append(f.posts, post)
	return post.ID, nil
}

func (f *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePostRepo) ListRecentByUserID(ctx context.Context, userID int64, limit int) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Post
	for i := len(f.posts) - 1; i >= 0 && len(out) < limit; i-- {
		if f.posts[i].UserID == userID {
			out = append(out, f.posts[i])
		}
	}
	return out, nil
}

func (f *fakePostRepo) SetResultPosted(ctx context.Context, resultID int64, externalPostID, postURL string) error {
	return nil
}

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]*models.OAuthState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*models.OAuthState)}
}

func (f *fakeStateRepo) Create(ctx context.Context, st *models.OAuthState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	f.states[st.State] = st
	return nil
}

func (f *fakeStateRepo) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[state]
	if !ok {
		return nil, nil
	}
	delete(f.states, state)
	return st, nil
}

func (f *fakeStateRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for k, st := range f.states {
		if st.CreatedAt.Before(cutoff) {
			delete(f.states, k)
			deleted++
		}
	}
	return deleted, nil
}

type fakePublisher struct {
	result *PublishResult
	err    error
	calls  int
	mu     sync.Mutex
}

func (f *fakePublisher) Publish(ctx context.Context, acc *models.SocialAccount, content, mediaURL string) (*PublishResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.result, f.err
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []string
}

func (f *fakeEnqueuer) EnqueueBackfill(ctx context.Context, resultID, accountID int64, publishID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, publishID)
	return nil
}

type fakeRevoker struct {
	err     error
	revoked []int64
}

func (f *fakeRevoker) Revoke(ctx context.Context, acc *models.SocialAccount) error {
	f.revoked = append(f.revoked, acc.ID)
	return f.err
}
