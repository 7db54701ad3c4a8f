package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var allowedMediaTypes = map[string]string{
	"mp4":  models.MediaTypeVideo,
	"mov":  models.MediaTypeVideo,
	"jpg":  models.MediaTypeImage,
	"jpeg": models.MediaTypeImage,
	"png":  models.MediaTypeImage,
	"gif":  models.MediaTypeImage,
}

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, file *multipart.FileHeader) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error)
	Remove(ctx context.Context, userID, postID int64) error
	History(ctx context.Context, userID, postID int64) ([]*models.PostingHistory, error)
}

type postService struct {
	pr    repository.PostRepository
	ph    repository.PostingHistoryRepository
	media MediaStore
	now   func() time.Time
}

func NewPostService(pr repository.PostRepository, ph repository.PostingHistoryRepository, media MediaStore) PostService {
	return &postService{
		pr:    pr,
		ph:    ph,
		media: media,
		now:   time.Now,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, file *multipart.FileHeader) (int64, error) {
	if pc == nil {
		return 0, fmt.Errorf("%w: post creation data is nil", ErrInvalidInput)
	}

	platforms, err := parsePlatforms(pc.Platforms)
	if err != nil {
		return 0, err
	}

	var metadata models.PlatformMetadata
	if strings.TrimSpace(pc.PlatformMetadata) != "" {
		if err := json.Unmarshal([]byte(pc.PlatformMetadata), &metadata); err != nil {
			return 0, fmt.Errorf("%w: invalid platform metadata: %v", ErrInvalidInput, err)
		}
	}

	post := models.Post{
		UserID:           userID,
		Caption:          pc.Caption,
		Title:            pc.Title,
		MediaType:        models.MediaTypeNone,
		Platforms:        platforms,
		PlatformMetadata: metadata,
		Status:           models.PostStatusDraft,
	}

	if pc.ScheduledAt != "" {
		scheduledAt, err := parseScheduledAt(pc.ScheduledAt)
		if err != nil {
			return 0, err
		}
		post.ScheduledAt = &scheduledAt
		post.Status = models.PostStatusScheduled
	}

	if file == nil && strings.TrimSpace(pc.Caption) == "" {
		return 0, fmt.Errorf("%w: a caption or a media file is required", ErrInvalidInput)
	}

	if file != nil {
		post.MediaURL, post.MediaType, err = s.storeFile(ctx, file)
		if err != nil {
			return 0, err
		}
	}

	postID, err := s.pr.Create(ctx, nil, &post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	return postID, nil
}

func (s *postService) storeFile(ctx context.Context, file *multipart.FileHeader) (string, string, error) {
	content, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("error opening file: %w", err)
	}
	defer content.Close()

	fileBytes, err := io.ReadAll(content)
	if err != nil {
		return "", "", fmt.Errorf("error reading file content: %w", err)
	}

	kind, err := filetype.Match(fileBytes)
	if err != nil || kind == types.Unknown {
		return "", "", fmt.Errorf("%w: unsupported file type", ErrInvalidInput)
	}
	mediaType, ok := allowedMediaTypes[kind.Extension]
	if !ok {
		return "", "", fmt.Errorf("%w: file type %s is not allowed", ErrInvalidInput, kind.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", "", err
	}

	mediaURL, err := s.media.Upload(ctx, id+"."+kind.Extension, fileBytes, kind.MIME.Value)
	if err != nil {
		return "", "", fmt.Errorf("error uploading file: %w", err)
	}
	return mediaURL, mediaType, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error) {
	if userID == 0 || postID == 0 {
		return nil, fmt.Errorf("%w: post id and user are required", ErrInvalidInput)
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}
	if post == nil || post.UserID != userID {
		return nil, ErrNotFound
	}

	return post, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

// History returns every platform attempt recorded for the post, oldest first.
func (s *postService) History(ctx context.Context, userID, postID int64) ([]*models.PostingHistory, error) {
	if _, err := s.PostInfo(ctx, postID, userID); err != nil {
		return nil, err
	}

	entries, err := s.ph.GetByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting posting history: %w", err)
	}
	if entries == nil {
		entries = []*models.PostingHistory{}
	}
	return entries, nil
}

// Remove deletes the post and, unless a publish is running, its media.
func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	post, err := s.PostInfo(ctx, postID, userID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPublishing {
		return ErrPublishInProgress
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}

	if post.MediaURL != "" {
		if err := s.media.Delete(ctx, post.MediaURL); err != nil {
			slog.Info("media cleanup failed", "post_id", postID, "error", err)
		}
	}
	return nil
}

// parsePlatforms accepts a JSON array or a comma separated list.
func parsePlatforms(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	var list []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("%w: invalid platforms: %v", ErrInvalidInput, err)
		}
	} else if raw != "" {
		list = strings.Split(raw, ",")
	}

	seen := map[string]bool{}
	var platforms []string
	for _, p := range list {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		if !models.IsValidPlatform(p) {
			return nil, fmt.Errorf("%w: unsupported platform %q", ErrInvalidInput, p)
		}
		seen[p] = true
		platforms = append(platforms, p)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: no platforms selected", ErrInvalidInput)
	}
	return platforms, nil
}

func parseScheduledAt(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid scheduled time format", ErrInvalidInput)
}
