package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type harness struct {
	posts    *fakePostRepo
	accounts *fakeAccountRepo
	history  *fakeHistoryRepo
	media    *fakeMedia
	svc      PublishService
}

func newHarness(t *testing.T, post *models.Post, platforms []string, adapters ...Publisher) *harness {
	t.Helper()
	c := testCipher(t)
	var accounts []*models.SocialAccount
	for _, p := range platforms {
		accounts = append(accounts, &models.SocialAccount{
			UserID:         post.UserID,
			Platform:       p,
			AccountID:      p + "-account",
			AccessToken:    seal(t, c, p+"-token"),
			TokenExpiresAt: time.Now().Add(time.Hour),
			AccountStatus:  models.AccountStatusActive,
		})
	}

	h := &harness{
		posts:    newFakePostRepo(post),
		accounts: newFakeAccountRepo(accounts...),
		history:  &fakeHistoryRepo{},
		media:    newFakeMedia(),
	}
	tokens := NewTokenService(testConfig(), h.accounts, c, nil)
	h.svc = NewPublishService(h.posts, h.accounts, h.history, h.media, tokens, adapters...)
	return h
}

func draftPost() *models.Post {
	return &models.Post{
		ID:        10,
		UserID:    1,
		Caption:   "launch day",
		MediaURL:  "https://media.test/clip.mp4",
		MediaType: models.MediaTypeVideo,
		Status:    models.PostStatusDraft,
	}
}

func TestPublish_AdapterFailureDoesNotAffectOthers(t *testing.T) {
	panicking := &stubPublisher{platform: models.PlatformThreads, fn: func(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
		panic("boom")
	}}
	h := newHarness(t, draftPost(),
		[]string{models.PlatformLinkedIn, models.PlatformTwitter, models.PlatformThreads},
		succeeding(models.PlatformLinkedIn),
		failing(models.PlatformTwitter, errors.New("rate limited")),
		panicking,
	)

	resp, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin", "twitter", "threads"})
	if err != nil {
		t.Fatalf("Publish err=%v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %+v", resp.Results)
	}
	if !resp.Results[models.PlatformLinkedIn].Succeeded() || resp.Results[models.PlatformLinkedIn].PostID != "linkedin-id" {
		t.Fatalf("linkedin result changed by sibling failures: %+v", resp.Results[models.PlatformLinkedIn])
	}
	if got := resp.Results[models.PlatformTwitter]; got.Status != models.ResultStatusError || got.Error != "rate limited" {
		t.Fatalf("unexpected twitter result: %+v", got)
	}
	if got := resp.Results[models.PlatformThreads]; got.Status != models.ResultStatusError {
		t.Fatalf("panic must become an error result, got %+v", got)
	}
	if resp.Status != models.PostStatusPartial || !resp.Success {
		t.Fatalf("expected partial success, got %s success=%v", resp.Status, resp.Success)
	}
}

func TestPublish_AggregateStatus(t *testing.T) {
	pending := &stubPublisher{platform: models.PlatformInstagram, fn: func(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
		return pendingResult(models.PlatformInstagram, "c1"), nil
	}}

	cases := []struct {
		name     string
		adapters []Publisher
		want     string
	}{
		{"all succeed", []Publisher{succeeding("linkedin"), succeeding("instagram")}, models.PostStatusPublished},
		{"none succeed", []Publisher{failing("linkedin", errors.New("x")), failing("instagram", errors.New("y"))}, models.PostStatusFailed},
		{"pending is not success", []Publisher{succeeding("linkedin"), pending}, models.PostStatusPartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, draftPost(), []string{"linkedin", "instagram"}, tc.adapters...)
			resp, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin", "instagram"})
			if err != nil {
				t.Fatalf("Publish err=%v", err)
			}
			if resp.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, resp.Status)
			}
			stored := h.posts.post(10)
			if stored.Status != tc.want {
				t.Fatalf("stored status %s, want %s", stored.Status, tc.want)
			}
			if (stored.PublishedAt != nil) != (tc.want != models.PostStatusFailed) {
				t.Fatalf("published_at mismatch for %s: %v", tc.want, stored.PublishedAt)
			}
		})
	}
}

func TestPublish_MissingAccountsDispatchesNothing(t *testing.T) {
	linkedin := succeeding(models.PlatformLinkedIn)
	tiktok := succeeding(models.PlatformTiktok)
	h := newHarness(t, draftPost(), nil, linkedin, tiktok)

	_, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin", "tiktok"})

	var missing *MissingAccountsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingAccountsError, got %v", err)
	}
	if !reflect.DeepEqual(missing.Platforms, []string{"linkedin", "tiktok"}) {
		t.Fatalf("unexpected missing set: %v", missing.Platforms)
	}
	if linkedin.callCount() != 0 || tiktok.callCount() != 0 {
		t.Fatalf("no adapter may run when accounts are missing")
	}
	if h.posts.claimCalls != 0 || h.posts.post(10).Status != models.PostStatusDraft {
		t.Fatalf("post must stay untouched")
	}
}

func TestPublish_MissingOnlyTheUnconnectedPlatform(t *testing.T) {
	linkedin := succeeding(models.PlatformLinkedIn)
	h := newHarness(t, draftPost(), []string{"linkedin"}, linkedin, succeeding(models.PlatformYoutube))

	_, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin", "youtube"})

	var missing *MissingAccountsError
	if !errors.As(err, &missing) || !reflect.DeepEqual(missing.Platforms, []string{"youtube"}) {
		t.Fatalf("expected youtube missing, got %v", err)
	}
	if linkedin.callCount() != 0 {
		t.Fatalf("connected platform must not be dispatched either")
	}
}

func TestPublish_PersistsEachResultAsItSettles(t *testing.T) {
	platforms := []string{models.PlatformLinkedIn, models.PlatformTwitter, models.PlatformThreads}
	gates := map[string]chan struct{}{}
	var adapters []Publisher
	for _, p := range platforms {
		gate := make(chan struct{})
		gates[p] = gate
		platform := p
		adapters = append(adapters, &stubPublisher{platform: platform, fn: func(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
			<-gate
			return success(platform+"-id", ""), nil
		}})
	}
	h := newHarness(t, draftPost(), platforms, adapters...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := h.svc.Publish(context.Background(), 1, 10, platforms); err != nil {
			t.Errorf("Publish err=%v", err)
		}
	}()

	order := []string{models.PlatformTwitter, models.PlatformThreads, models.PlatformLinkedIn}
	for n, p := range order {
		close(gates[p])
		waitFor(t, func() bool {
			h.posts.mu.Lock()
			defer h.posts.mu.Unlock()
			return len(h.posts.saves) == n+1
		})

		h.posts.mu.Lock()
		save := h.posts.saves[n]
		h.posts.mu.Unlock()
		if save.platform != p || save.entries != n+1 {
			t.Fatalf("save %d: got %+v, want platform %s with %d entries", n, save, p, n+1)
		}
		wantStatus := models.PostStatusPublishing
		if n == len(order)-1 {
			wantStatus = models.PostStatusPublished
		}
		if save.status != wantStatus {
			t.Fatalf("save %d: status %s, want %s", n, save.status, wantStatus)
		}
	}
	<-done

	if got := len(h.history.entries); got != 3 {
		t.Fatalf("expected one history row per platform, got %d", got)
	}
}

func TestPublish_MediaCleanup(t *testing.T) {
	t.Run("deleted after a success", func(t *testing.T) {
		h := newHarness(t, draftPost(), []string{"linkedin", "twitter"},
			succeeding("linkedin"), failing("twitter", errors.New("nope")))
		if _, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin", "twitter"}); err != nil {
			t.Fatalf("Publish err=%v", err)
		}
		if got := h.media.deletions(); !reflect.DeepEqual(got, []string{"https://media.test/clip.mp4"}) {
			t.Fatalf("expected one deletion, got %v", got)
		}
	})

	t.Run("kept when nothing succeeded", func(t *testing.T) {
		h := newHarness(t, draftPost(), []string{"linkedin"}, failing("linkedin", errors.New("nope")))
		if _, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin"}); err != nil {
			t.Fatalf("Publish err=%v", err)
		}
		if got := h.media.deletions(); len(got) != 0 {
			t.Fatalf("media must be kept, deleted %v", got)
		}
	})

	t.Run("cleanup failure leaves outcome alone", func(t *testing.T) {
		h := newHarness(t, draftPost(), []string{"linkedin"}, succeeding("linkedin"))
		h.media.deleteErr = errors.New("bucket unavailable")
		resp, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin"})
		if err != nil {
			t.Fatalf("cleanup error must not surface: %v", err)
		}
		if resp.Status != models.PostStatusPublished || !resp.Results["linkedin"].Succeeded() {
			t.Fatalf("unexpected outcome: %+v", resp)
		}
		if h.posts.post(10).Status != models.PostStatusPublished {
			t.Fatalf("stored status changed by cleanup failure")
		}
	})

	t.Run("text post has nothing to clean", func(t *testing.T) {
		post := draftPost()
		post.MediaURL, post.MediaType = "", models.MediaTypeNone
		h := newHarness(t, post, []string{"linkedin"}, succeeding("linkedin"))
		if _, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin"}); err != nil {
			t.Fatalf("Publish err=%v", err)
		}
		if got := h.media.deletions(); len(got) != 0 {
			t.Fatalf("unexpected deletion: %v", got)
		}
	})
}

func TestPublish_RefusesWhenAlreadyPublishing(t *testing.T) {
	post := draftPost()
	post.Status = models.PostStatusPublishing
	linkedin := succeeding("linkedin")
	h := newHarness(t, post, []string{"linkedin"}, linkedin)

	_, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin"})
	if !errors.Is(err, ErrPublishInProgress) {
		t.Fatalf("expected ErrPublishInProgress, got %v", err)
	}
	if linkedin.callCount() != 0 {
		t.Fatalf("adapter ran despite lost claim")
	}
}

func TestPublish_FailedPostCanBeRetried(t *testing.T) {
	post := draftPost()
	post.Status = models.PostStatusFailed
	post.PlatformResults = models.PlatformResults{"twitter": {Status: models.ResultStatusError, Error: "old"}}
	h := newHarness(t, post, []string{"linkedin"}, succeeding("linkedin"))

	resp, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin"})
	if err != nil {
		t.Fatalf("Publish err=%v", err)
	}
	if len(resp.Results) != 1 || len(h.posts.post(10).PlatformResults) != 1 {
		t.Fatalf("previous run results must be cleared: %+v", h.posts.post(10).PlatformResults)
	}
}

func TestPublish_NotFound(t *testing.T) {
	h := newHarness(t, draftPost(), []string{"linkedin"}, succeeding("linkedin"))

	if _, err := h.svc.Publish(context.Background(), 1, 404, []string{"linkedin"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing post: expected ErrNotFound, got %v", err)
	}
	if _, err := h.svc.Publish(context.Background(), 2, 10, []string{"linkedin"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign post: expected ErrNotFound, got %v", err)
	}
}

func TestPublish_InvalidPlatforms(t *testing.T) {
	h := newHarness(t, draftPost(), []string{"linkedin"}, succeeding("linkedin"))

	for _, platforms := range [][]string{nil, {}, {" "}, {"myspace"}} {
		if _, err := h.svc.Publish(context.Background(), 1, 10, platforms); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%v: expected ErrInvalidInput, got %v", platforms, err)
		}
	}
}

func TestPublish_DeduplicatesPlatforms(t *testing.T) {
	linkedin := succeeding("linkedin")
	h := newHarness(t, draftPost(), []string{"linkedin"}, linkedin)

	resp, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin", "LinkedIn ", "linkedin"})
	if err != nil {
		t.Fatalf("Publish err=%v", err)
	}
	if linkedin.callCount() != 1 || len(resp.Results) != 1 {
		t.Fatalf("expected a single dispatch, got %d calls", linkedin.callCount())
	}
}

func TestPublish_UnreadableTokenRequiresReconnect(t *testing.T) {
	linkedin := succeeding("linkedin")
	h := newHarness(t, draftPost(), []string{"linkedin"}, linkedin)
	h.accounts.accounts[accountKey(1, "linkedin")].AccessToken = "not-a-sealed-token"

	resp, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin"})
	if err != nil {
		t.Fatalf("Publish err=%v", err)
	}
	got := resp.Results["linkedin"]
	if got.Status != models.ResultStatusError || !got.ReconnectRequired {
		t.Fatalf("expected reconnect-required error, got %+v", got)
	}
	if linkedin.callCount() != 0 {
		t.Fatalf("adapter must not run without a usable token")
	}
}

func TestPublish_AdaptersReceiveDecryptedTokenAndRunLogger(t *testing.T) {
	var token string
	var hasLogger bool
	probe := &stubPublisher{platform: "linkedin", fn: func(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
		token = acc.AccessToken
		hasLogger = ctx.Value(loggerKey{}) != nil
		return success("1", ""), nil
	}}
	h := newHarness(t, draftPost(), []string{"linkedin"}, probe)

	if _, err := h.svc.Publish(context.Background(), 1, 10, []string{"linkedin"}); err != nil {
		t.Fatalf("Publish err=%v", err)
	}
	if token != "linkedin-token" {
		t.Fatalf("expected decrypted token, got %q", token)
	}
	if !hasLogger {
		t.Fatalf("expected a run logger on the context")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
