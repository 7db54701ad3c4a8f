package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/service"
)

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode publish payload: %v: %w", err, asynq.SkipRetry)
	}

	resp, err := q.publish.Publish(ctx, payload.UserID, payload.PostID, payload.Platforms)
	if err == nil {
		slog.Info("scheduled post processed", "post_id", payload.PostID, "status", resp.Status)
		return nil
	}

	var missing *service.MissingAccountsError
	switch {
	case errors.As(err, &missing):
		q.failPost(ctx, payload, missing.Platforms, "account not connected")
	case errors.Is(err, service.ErrInvalidInput):
		q.failPost(ctx, payload, payload.Platforms, err.Error())
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrPublishInProgress):
	default:
		// Storage errors before the claim are worth another attempt.
		return err
	}

	slog.Info("scheduled post skipped", "post_id", payload.PostID, "error", err)
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}

// failPost records why a scheduled post could not start so the sweep stops
// picking it up.
func (q *Queue) failPost(ctx context.Context, payload PublishPostPayload, platforms []string, reason string) {
	results := models.PlatformResults{}
	for _, p := range platforms {
		results[p] = models.PlatformResult{Status: models.ResultStatusError, Error: reason}
	}
	if err := q.pr.FinalizePublish(ctx, payload.PostID, models.PostStatusFailed, results, nil); err != nil {
		slog.Info(err.Error())
	}
}
