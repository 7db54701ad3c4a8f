package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
)

// ScheduledPostJob moves due scheduled posts onto the publish queue.
type ScheduledPostJob struct {
	pr     repository.PostRepository
	client queue.Enqueuer
	batch  int
	now    func() time.Time
}

func NewScheduledPostJob(pr repository.PostRepository, client queue.Enqueuer, batch int) *ScheduledPostJob {
	if batch <= 0 {
		batch = 10
	}
	return &ScheduledPostJob{
		pr:     pr,
		client: client,
		batch:  batch,
		now:    time.Now,
	}
}

func (j *ScheduledPostJob) EnqueueDuePosts() {
	j.Run(context.Background())
}

// Run enqueues up to one batch of due posts and returns how many were added
// to the queue. Posts already waiting in the queue are not counted.
func (j *ScheduledPostJob) Run(ctx context.Context) int {
	posts, err := j.pr.ListDue(ctx, j.now(), j.batch)
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	enqueued := 0
	for _, post := range posts {
		ok, err := queue.EnqueuePost(ctx, j.client, queue.PublishPostPayload{
			PostID:    post.ID,
			UserID:    post.UserID,
			Platforms: post.Platforms,
		}, 0)
		if err != nil {
			slog.Info("unable to enqueue scheduled post", "post_id", post.ID, "error", err)
			continue
		}
		if ok {
			enqueued++
		}
	}
	return enqueued
}
