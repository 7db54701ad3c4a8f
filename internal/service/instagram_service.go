package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/retry"
)

type instagramService struct {
	cfg  config.Config
	flow containerFlow
}

func NewInstagramService(cfg config.Config, client *http.Client) Publisher {
	s := &instagramService{cfg: cfg}
	s.flow = containerFlow{
		platform:    models.PlatformInstagram,
		client:      client,
		baseURL:     cfg.Platforms.InstagramGraphURL,
		publishPath: "media_publish",
		status:      s.containerStatus,
	}
	return s
}

func (s *instagramService) Platform() string {
	return models.PlatformInstagram
}

func (s *instagramService) Publish(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
	if !post.HasMedia() {
		return models.PlatformResult{}, errors.New("instagram requires an image or video")
	}

	params := url.Values{}
	params.Set("caption", post.Caption)
	if post.MediaType == models.MediaTypeVideo {
		params.Set("media_type", "REELS")
		params.Set("video_url", post.MediaURL)
	} else {
		params.Set("image_url", post.MediaURL)
	}

	poll := retry.Options{
		MaxAttempts: s.cfg.Polling.InstagramAttempts,
		Interval:    s.cfg.Polling.InstagramInterval,
	}
	outcome, err := s.flow.run(ctx, acc.AccountID, acc.AccessToken, "media", params, poll)
	if err != nil {
		return models.PlatformResult{}, err
	}
	if outcome.pending {
		return pendingResult(models.PlatformInstagram, outcome.containerID), nil
	}

	return success(outcome.mediaID, "https://www.instagram.com/reel/"+outcome.mediaID), nil
}

func (s *instagramService) containerStatus(ctx context.Context, containerID, accessToken string) (transfer.ContainerState, string, error) {
	var status transfer.InstagramContainerStatus
	call := apiCall{
		platform: models.PlatformInstagram,
		step:     "container status",
		method:   http.MethodGet,
		endpoint: graphStatusURL(s.cfg.Platforms.InstagramGraphURL, containerID, "status_code,status", accessToken),
	}
	if _, err := call.do(ctx, s.flow.client, &status); err != nil {
		return transfer.ContainerCreated, "", err
	}
	return status.State(), status.Status, nil
}
