package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type PostHandler struct {
	s       service.PostService
	publish service.PublishService
	queue   queue.Enqueuer
}

func NewPostHandler(s service.PostService, publish service.PublishService, q queue.Enqueuer) *PostHandler {
	return &PostHandler{s: s, publish: publish, queue: q}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	pc := &transfer.PostCreation{
		Caption:          c.FormValue("caption"),
		Title:            c.FormValue("title"),
		ScheduledAt:      c.FormValue("scheduled_at"),
		Platforms:        c.FormValue("platforms"),
		PlatformMetadata: c.FormValue("platform_metadata"),
	}

	// The file is optional; text posts are sent as a plain form.
	file, _ := c.FormFile("file")

	postID, err := h.s.CreatePost(c.Context(), userID, pc, file)
	if err != nil {
		slog.Info(err.Error())
		return serviceError(c, err, "Unable to create post")
	}

	if pc.ScheduledAt != "" {
		h.schedule(c, postID, userID)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":      postID,
		"message": "Post created successfully",
	})
}

// schedule queues the publish for the post's scheduled time. The scheduled
// post sweep picks the post up if this fails.
func (h *PostHandler) schedule(c *fiber.Ctx, postID, userID int64) {
	if h.queue == nil {
		return
	}
	post, err := h.s.PostInfo(c.Context(), postID, userID)
	if err != nil || post.ScheduledAt == nil {
		return
	}
	payload := queue.PublishPostPayload{PostID: post.ID, UserID: userID, Platforms: post.Platforms}
	if _, err := queue.EnqueuePost(c.Context(), h.queue, payload, time.Until(*post.ScheduledAt)); err != nil {
		slog.Info("unable to enqueue scheduled post", "post_id", postID, "error", err)
	}
}

func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := c.ParamsInt("id")
	if err != nil || postID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid post id",
		})
	}

	var req transfer.PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	resp, err := h.publish.Publish(c.Context(), userID, int64(postID), req.Platforms)
	if err != nil {
		slog.Info("publish rejected", "post_id", postID, "error", err)
		return serviceError(c, err, "Unable to publish post")
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userId := GetUserID(c)
	postId := c.QueryInt("id", 0)

	if postId != 0 {
		post, err := h.s.PostInfo(c.Context(), int64(postId), userId)
		if err != nil {
			return serviceError(c, err, "Unable to get post")
		}

		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userId)
	if err != nil {
		return serviceError(c, err, "Unable to list posts")
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postId := c.QueryInt("id", 0)

	err := h.s.Remove(c.Context(), userID, int64(postId))
	if err != nil {
		return serviceError(c, err, "Unable to remove post")
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) PostHistory(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := c.ParamsInt("id")
	if err != nil || postID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid post id",
		})
	}

	entries, err := h.s.History(c.Context(), userID, int64(postID))
	if err != nil {
		return serviceError(c, err, "Unable to get posting history")
	}

	return c.Status(fiber.StatusOK).JSON(entries)
}
