package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type PublishService interface {
	Publish(ctx context.Context, userID, postID int64, platforms []string) (*transfer.PublishResponse, error)
}

type publishService struct {
	posts    repository.PostRepository
	accounts repository.SocialAccountRepository
	history  repository.PostingHistoryRepository
	media    MediaStore
	tokens   TokenService
	adapters map[string]Publisher
	now      func() time.Time
}

func NewPublishService(
	posts repository.PostRepository,
	accounts repository.SocialAccountRepository,
	history repository.PostingHistoryRepository,
	media MediaStore,
	tokens TokenService,
	adapters ...Publisher) PublishService {
	registry := make(map[string]Publisher, len(adapters))
	for _, a := range adapters {
		registry[a.Platform()] = a
	}
	return &publishService{
		posts:    posts,
		accounts: accounts,
		history:  history,
		media:    media,
		tokens:   tokens,
		adapters: registry,
		now:      time.Now,
	}
}

type settled struct {
	platform string
	result   models.PlatformResult
}

// Publish dispatches the post to every platform concurrently and records each
// outcome as soon as it arrives. Validation failures return an error before
// any adapter runs; platform failures only show up in the result map.
func (s *publishService) Publish(ctx context.Context, userID, postID int64, platforms []string) (*transfer.PublishResponse, error) {
	requested, err := s.normalize(platforms)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	if post == nil || post.UserID != userID {
		return nil, ErrNotFound
	}

	stored, err := s.accounts.ListByUserPlatforms(ctx, userID, requested)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	connected := make(map[string]*models.SocialAccount, len(stored))
	for _, acc := range stored {
		connected[acc.Platform] = acc
	}
	var missing []string
	for _, p := range requested {
		if _, ok := connected[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingAccountsError{Platforms: missing}
	}

	claimed, err := s.posts.ClaimForPublish(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("claim post: %w", err)
	}
	if !claimed {
		return nil, ErrPublishInProgress
	}

	logger := LoggerFrom(ctx).With("post_id", postID, "user_id", userID, "run_id", uuid.NewString())
	ctx = WithLogger(ctx, logger)
	logger.Info("publish started", "platforms", requested)

	out := make(chan settled, len(requested))
	for _, p := range requested {
		go func(platform string, acc *models.SocialAccount) {
			out <- settled{platform: platform, result: s.dispatch(ctx, s.adapters[platform], post, acc)}
		}(p, connected[p])
	}

	// This loop is the only writer to the post while the run is in flight.
	store := context.WithoutCancel(ctx)
	results := make(models.PlatformResults, len(requested))
	for range requested {
		r := <-out
		results[r.platform] = r.result

		status := models.PostStatusPublishing
		if len(results) == len(requested) {
			status = models.AggregateStatus(results)
		}
		if err := s.posts.SaveResult(store, postID, r.platform, r.result, status); err != nil {
			logger.Error("unable to save platform result", "platform", r.platform, "error", err)
		}
		s.recordHistory(store, logger, post, r)
		logger.Info("platform settled", "platform", r.platform, "status", r.result.Status, "settled", len(results), "total", len(requested))
	}

	status := models.AggregateStatus(results)
	succeeded := status != models.PostStatusFailed

	var publishedAt *time.Time
	if succeeded {
		now := s.now()
		publishedAt = &now
	}
	if err := s.posts.FinalizePublish(store, postID, status, results, publishedAt); err != nil {
		logger.Error("unable to finalize post", "status", status, "error", err)
	}

	if succeeded && post.MediaURL != "" {
		if err := s.media.Delete(store, post.MediaURL); err != nil {
			logger.Warn("media cleanup failed", "media_url", post.MediaURL, "error", err)
		}
	}

	logger.Info("publish finished", "status", status)
	return &transfer.PublishResponse{
		Success: succeeded,
		Status:  status,
		Results: results,
	}, nil
}

// dispatch runs one adapter and turns every failure, panics included, into
// an error result.
func (s *publishService) dispatch(ctx context.Context, adapter Publisher, post *models.Post, acc *models.SocialAccount) (result models.PlatformResult) {
	defer func() {
		if r := recover(); r != nil {
			LoggerFrom(ctx).Error("adapter panicked", "platform", acc.Platform, "panic", r)
			result = failure(fmt.Errorf("%s adapter panicked: %v", acc.Platform, r))
		}
	}()

	plain, err := s.tokens.Open(acc)
	if err != nil {
		return failure(err)
	}

	result, err = adapter.Publish(ctx, post, plain)
	if err != nil {
		LoggerFrom(ctx).Warn("platform publish failed", "platform", acc.Platform, "error", err)
		return failure(err)
	}
	if result.Status == "" {
		result.Status = models.ResultStatusSuccess
	}
	return result
}

func (s *publishService) recordHistory(ctx context.Context, logger *slog.Logger, post *models.Post, r settled) {
	entry := &models.PostingHistory{
		UserID:       post.UserID,
		PostID:       post.ID,
		Platform:     r.platform,
		Status:       r.result.Status,
		ErrorMessage: r.result.Error,
	}
	if _, err := s.history.Create(ctx, entry); err != nil {
		logger.Error("unable to save posting history", "platform", r.platform, "error", err)
	}
}

func (s *publishService) normalize(platforms []string) ([]string, error) {
	seen := make(map[string]bool, len(platforms))
	var requested []string
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		if _, ok := s.adapters[p]; !ok {
			return nil, fmt.Errorf("%w: unsupported platform %q", ErrInvalidInput, p)
		}
		seen[p] = true
		requested = append(requested, p)
	}
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: platforms are required", ErrInvalidInput)
	}
	return requested, nil
}

func failure(err error) models.PlatformResult {
	var reconnect *ReconnectRequiredError
	return models.PlatformResult{
		Status:            models.ResultStatusError,
		Error:             err.Error(),
		ReconnectRequired: errors.As(err, &reconnect),
	}
}
