package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client used to schedule publish tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskID is stable per post so a post already waiting in the queue is not
// enqueued twice.
func TaskID(postID int64) string {
	return fmt.Sprintf("%s:%d", TaskTypePublishPost, postID)
}

// EnqueuePost schedules a publish task. It reports enqueued=false without an
// error when a task for the post is already queued.
func EnqueuePost(ctx context.Context, client Enqueuer, payload PublishPostPayload, delay time.Duration) (bool, error) {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	opts := []asynq.Option{asynq.TaskID(TaskID(payload.PostID)), asynq.MaxRetry(3)}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	_, err = client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	slog.Info("publish task enqueued", "post_id", payload.PostID, "user_id", payload.UserID, "platforms", payload.Platforms)
	return true, nil
}
