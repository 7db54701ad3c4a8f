package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

const refreshLookahead = 30 * time.Minute

type TokenRefreshJob struct {
	sr     repository.SocialAccountRepository
	tokens service.TokenService
	limit  int
	now    func() time.Time
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, tokens service.TokenService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:     sr,
		tokens: tokens,
		limit:  10,
		now:    time.Now,
	}
}

// RefreshTokens renews every active credential that expires within the next
// 30 minutes. Failed refreshes flag the account for reconnection.
func (c *TokenRefreshJob) RefreshTokens() {
	c.Run(context.Background())
}

func (c *TokenRefreshJob) Run(ctx context.Context) int {
	currentTime := c.now()

	accounts, err := c.sr.ListByTimeInterval(ctx, currentTime, currentTime.Add(refreshLookahead))
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	refreshed := 0
	semaphore := make(chan struct{}, c.limit)

	for _, acc := range accounts {
		if !c.tokens.CanRefresh(acc.Platform) {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			logger := slog.With("user_id", acc.UserID, "platform", acc.Platform)
			plain, err := c.tokens.Open(acc)
			if err == nil {
				_, err = c.tokens.Refresh(service.WithLogger(ctx, logger), plain)
			}
			if err != nil {
				logger.Info("unable to refresh token", "error", err)
				return
			}

			mu.Lock()
			refreshed++
			mu.Unlock()
		}(acc)
	}

	wg.Wait()
	return refreshed
}
