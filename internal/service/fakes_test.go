package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/pkg/utils"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testCipher(t *testing.T) *utils.TokenCipher {
	t.Helper()
	c, err := utils.NewTokenCipher(testKey)
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}
	return c
}

func seal(t *testing.T, c *utils.TokenCipher, plain string) string {
	t.Helper()
	s, err := c.Seal(plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return s
}

func testConfig() config.Config {
	cfg := *config.LoadConfig()
	cfg.Polling.InstagramInterval = time.Millisecond
	cfg.Polling.ThreadsInterval = time.Millisecond
	cfg.Polling.InstagramAttempts = 3
	cfg.Polling.ThreadsAttempts = 3
	cfg.Polling.ThreadsVideoAttempts = 5
	cfg.Polling.TwitterStatusAttempts = 3
	cfg.Polling.TwitterStatusInterval = time.Millisecond
	return cfg
}

// fakePostRepo keeps one post in memory and records every write.
type fakePostRepo struct {
	mu         sync.Mutex
	posts      map[int64]*models.Post
	saves      []savedResult
	finalized  []string
	claimCalls int
	claimErr   error
}

type savedResult struct {
	platform string
	status   string
	entries  int
}

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: map[int64]*models.Post{}}
	for _, p := range posts {
		if p.PlatformResults == nil {
			p.PlatformResults = models.PlatformResults{}
		}
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = int64(len(r.posts) + 1)
	cp := *post
	r.posts[post.ID] = &cp
	return post.ID, nil
}

func (r *fakePostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	return nil, nil
}

func (r *fakePostRepo) ClaimForPublish(ctx context.Context, postID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimCalls++
	if r.claimErr != nil {
		return false, r.claimErr
	}
	p, ok := r.posts[postID]
	if !ok || p.UserID != userID {
		return false, nil
	}
	switch p.Status {
	case models.PostStatusDraft, models.PostStatusScheduled, models.PostStatusFailed:
		p.Status = models.PostStatusPublishing
		p.PlatformResults = models.PlatformResults{}
		return true, nil
	default:
		return false, nil
	}
}

func (r *fakePostRepo) SaveResult(ctx context.Context, postID int64, platform string, result models.PlatformResult, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[postID]
	p.PlatformResults[platform] = result
	p.Status = status
	r.saves = append(r.saves, savedResult{platform: platform, status: status, entries: len(p.PlatformResults)})
	return nil
}

func (r *fakePostRepo) FinalizePublish(ctx context.Context, postID int64, status string, results models.PlatformResults, publishedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.posts[postID]
	p.Status = status
	p.PlatformResults = results
	if publishedAt != nil {
		p.PublishedAt = publishedAt
	}
	r.finalized = append(r.finalized, status)
	return nil
}

func (r *fakePostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	p, _ := r.GetByID(ctx, postID)
	return p != nil && p.UserID == userID, nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

func (r *fakePostRepo) post(id int64) models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.posts[id]
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.SocialAccount
	patches  []models.TokenPatch
	statuses map[string]string
	listErr  error
}

func accountKey(userID int64, platform string) string {
	return fmt.Sprintf("%d:%s", userID, platform)
}

func newFakeAccountRepo(accounts ...*models.SocialAccount) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: map[string]*models.SocialAccount{}, statuses: map[string]string{}}
	for i, a := range accounts {
		if a.ID == 0 {
			a.ID = int64(i + 1)
		}
		r.accounts[accountKey(a.UserID, a.Platform)] = a
	}
	return r
}

func (r *fakeAccountRepo) Upsert(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[accountKey(sa.UserID, sa.Platform)] = sa
	return sa.ID, nil
}

func (r *fakeAccountRepo) byID(id int64) *models.SocialAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			cp := *a
			return &cp
		}
	}
	return nil
}

// byUserPlatform returns a copy of the stored credential.
func (r *fakeAccountRepo) byUserPlatform(userID int64, platform string) *models.SocialAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[accountKey(userID, platform)]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (r *fakeAccountRepo) ListByUserPlatforms(ctx context.Context, userID int64, platforms []string) ([]*models.SocialAccount, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*models.SocialAccount
	for _, p := range platforms {
		if a := r.byUserPlatform(userID, p); a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, a := range r.accounts {
		if a.UserID == userID {
			out = append(out, &models.SocialAccount{ID: a.ID, UserID: a.UserID, Platform: a.Platform, AccountName: a.AccountName})
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListByTimeInterval(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	a := r.byID(accountID)
	return a != nil && a.UserID == userID, nil
}

func (r *fakeAccountRepo) UpdateToken(ctx context.Context, userID int64, platform string, patch models.TokenPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountKey(userID, platform)]
	if !ok {
		return errors.New("no rows affected")
	}
	if patch.AccessToken != "" {
		a.AccessToken = patch.AccessToken
	}
	if patch.RefreshToken != "" {
		a.RefreshToken = patch.RefreshToken
	}
	if !patch.TokenExpiresAt.IsZero() {
		a.TokenExpiresAt = patch.TokenExpiresAt
	}
	r.patches = append(r.patches, patch)
	return nil
}

func (r *fakeAccountRepo) SetStatus(ctx context.Context, userID int64, platform, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[accountKey(userID, platform)] = status
	return nil
}

func (r *fakeAccountRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, a := range r.accounts {
		if a.ID == id {
			delete(r.accounts, k)
		}
	}
	return nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []*models.PostingHistory
}

func (r *fakeHistoryRepo) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, ph)
	return int64(len(r.entries)), nil
}

func (r *fakeHistoryRepo) GetByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PostingHistory
	for _, ph := range r.entries {
		if ph.PostID == postID {
			out = append(out, ph)
		}
	}
	return out, nil
}

type fakeMedia struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	deleteErr error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{objects: map[string][]byte{}}
}

func (m *fakeMedia) Upload(ctx context.Context, key string, file []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := "https://media.test/" + key
	m.objects[u] = file
	return u, nil
}

func (m *fakeMedia) Fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[mediaURL]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (m *fakeMedia) Delete(ctx context.Context, mediaURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, mediaURL)
	return m.deleteErr
}

func (m *fakeMedia) deletions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// stubPublisher lets a test decide each platform's outcome.
type stubPublisher struct {
	platform string
	calls    int
	mu       sync.Mutex
	fn       func(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error)
}

func (p *stubPublisher) Platform() string {
	return p.platform
}

func (p *stubPublisher) Publish(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.fn(ctx, post, acc)
}

func (p *stubPublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func succeeding(platform string) *stubPublisher {
	return &stubPublisher{platform: platform, fn: func(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
		return success(platform+"-id", ""), nil
	}}
}

func failing(platform string, err error) *stubPublisher {
	return &stubPublisher{platform: platform, fn: func(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
		return models.PlatformResult{}, err
	}}
}
