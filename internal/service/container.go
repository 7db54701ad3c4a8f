package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/retry"
)

// containerFlow is the create → poll → publish protocol shared by the
// Instagram and Threads graph APIs.
type containerFlow struct {
	platform    string
	client      *http.Client
	baseURL     string
	publishPath string
	// status reads the container once and returns its decoded state and
	// the platform's error message, if any.
	status func(ctx context.Context, containerID, accessToken string) (transfer.ContainerState, string, error)
}

type containerOutcome struct {
	containerID string
	mediaID     string
	pending     bool
}

func (f containerFlow) run(ctx context.Context, accountID, accessToken, createPath string, params url.Values, poll retry.Options) (containerOutcome, error) {
	logger := LoggerFrom(ctx).With("platform", f.platform)

	containerID, err := f.create(ctx, accountID, accessToken, createPath, params)
	if err != nil {
		return containerOutcome{}, err
	}
	logger.Info("container created", "container_id", containerID)

	var lastState transfer.ContainerState
	err = retry.Poll(ctx, poll, func(ctx context.Context, attempt int) (bool, time.Duration, error) {
		state, message, err := f.status(ctx, containerID, accessToken)
		if err != nil {
			return false, 0, err
		}
		lastState = state
		switch state {
		case transfer.ContainerErrored:
			if message == "" {
				message = "media processing failed"
			}
			return false, 0, fmt.Errorf("%s container %s errored: %s", f.platform, containerID, message)
		default:
			return state.Terminal(), 0, nil
		}
	})
	if errors.Is(err, retry.ErrExhausted) {
		logger.Warn("container still processing after poll budget", "container_id", containerID, "state", lastState.String(), "attempts", poll.MaxAttempts)
		return containerOutcome{containerID: containerID, pending: true}, nil
	}
	if err != nil {
		return containerOutcome{}, err
	}

	mediaID, err := f.publish(ctx, accountID, accessToken, containerID)
	if err != nil {
		return containerOutcome{}, err
	}
	logger.Info("container published", "container_id", containerID, "media_id", mediaID)
	return containerOutcome{containerID: containerID, mediaID: mediaID}, nil
}

func (f containerFlow) create(ctx context.Context, accountID, accessToken, createPath string, params url.Values) (string, error) {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("access_token", accessToken)

	var created transfer.GraphObject
	endpoint := fmt.Sprintf("%s/%s/%s", strings.TrimRight(f.baseURL, "/"), accountID, createPath)
	if _, err := formCall(f.platform, "create container", endpoint, form).do(ctx, f.client, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%s create container: no container id returned", f.platform)
	}
	return created.ID, nil
}

func (f containerFlow) publish(ctx context.Context, accountID, accessToken, containerID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", accessToken)

	var published transfer.GraphObject
	endpoint := fmt.Sprintf("%s/%s/%s", strings.TrimRight(f.baseURL, "/"), accountID, f.publishPath)
	if _, err := formCall(f.platform, "publish container", endpoint, form).do(ctx, f.client, &published); err != nil {
		return "", err
	}
	if published.ID == "" {
		return "", fmt.Errorf("%s publish container: no media id returned", f.platform)
	}
	return published.ID, nil
}

func pendingResult(platform, containerID string) models.PlatformResult {
	return models.PlatformResult{
		Status: models.ResultStatusPending,
		PostID: containerID,
		Note:   platform + " is still processing the media; the post may appear later",
	}
}

func graphStatusURL(baseURL, containerID, fields, accessToken string) string {
	params := url.Values{}
	params.Set("fields", fields)
	params.Set("access_token", accessToken)
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(baseURL, "/"), containerID, params.Encode())
}
