package queue

import (
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

type Queue struct {
	pr      repository.PostRepository
	publish service.PublishService
}

func NewQueue(pr repository.PostRepository, publish service.PublishService) *Queue {
	return &Queue{
		pr:      pr,
		publish: publish,
	}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID    int64    `json:"post_id"`
	UserID    int64    `json:"user_id"`
	Platforms []string `json:"platforms"`
}
