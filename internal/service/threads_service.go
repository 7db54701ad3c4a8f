package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/retry"
)

type threadsService struct {
	cfg  config.Config
	flow containerFlow
}

func NewThreadsService(cfg config.Config, client *http.Client) Publisher {
	s := &threadsService{cfg: cfg}
	s.flow = containerFlow{
		platform:    models.PlatformThreads,
		client:      client,
		baseURL:     cfg.Platforms.ThreadsGraphURL,
		publishPath: "threads_publish",
		status:      s.containerStatus,
	}
	return s
}

func (s *threadsService) Platform() string {
	return models.PlatformThreads
}

func (s *threadsService) Publish(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
	params := url.Values{}
	params.Set("text", post.Caption)

	attempts := s.cfg.Polling.ThreadsAttempts
	switch {
	case post.HasMedia() && post.MediaType == models.MediaTypeVideo:
		params.Set("media_type", "VIDEO")
		params.Set("video_url", post.MediaURL)
		attempts = s.cfg.Polling.ThreadsVideoAttempts
	case post.HasMedia():
		params.Set("media_type", "IMAGE")
		params.Set("image_url", post.MediaURL)
	default:
		params.Set("media_type", "TEXT")
	}

	poll := retry.Options{MaxAttempts: attempts, Interval: s.cfg.Polling.ThreadsInterval}
	outcome, err := s.flow.run(ctx, acc.AccountID, acc.AccessToken, "threads", params, poll)
	if err != nil {
		return models.PlatformResult{}, err
	}
	if outcome.pending {
		return pendingResult(models.PlatformThreads, outcome.containerID), nil
	}

	return success(outcome.mediaID, threadsPostURL(acc.AccountUsername, outcome.mediaID)), nil
}

func (s *threadsService) containerStatus(ctx context.Context, containerID, accessToken string) (transfer.ContainerState, string, error) {
	var status transfer.ThreadsContainerStatus
	call := apiCall{
		platform: models.PlatformThreads,
		step:     "container status",
		method:   http.MethodGet,
		endpoint: graphStatusURL(s.cfg.Platforms.ThreadsGraphURL, containerID, "status,error_message", accessToken),
	}
	if _, err := call.do(ctx, s.flow.client, &status); err != nil {
		return transfer.ContainerCreated, "", err
	}
	return status.State(), status.ErrorMessage, nil
}

func threadsPostURL(handle, mediaID string) string {
	if handle == "" {
		return ""
	}
	return fmt.Sprintf("https://www.threads.net/@%s/post/%s", handle, mediaID)
}
