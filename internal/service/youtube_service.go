package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/h2non/filetype"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"
)

type youtubeService struct {
	cfg    config.Config
	client *http.Client
	media  MediaStore
	tokens TokenService
}

func NewYoutubeService(cfg config.Config, client *http.Client, media MediaStore, tokens TokenService) Publisher {
	return &youtubeService{cfg: cfg, client: client, media: media, tokens: tokens}
}

func (s *youtubeService) Platform() string {
	return models.PlatformYoutube
}

func (s *youtubeService) Publish(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
	if !post.HasMedia() || post.MediaType != models.MediaTypeVideo {
		return models.PlatformResult{}, errors.New("youtube requires a video")
	}

	acc, err := s.tokens.EnsureFresh(ctx, acc)
	if err != nil {
		return models.PlatformResult{}, err
	}

	data, err := s.media.Fetch(ctx, post.MediaURL)
	if err != nil {
		return models.PlatformResult{}, fmt.Errorf("youtube: fetch media: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       YoutubeTitle(s.cfg.Youtube, post.Title, post.Caption),
			Description: YoutubeDescription(s.cfg.Youtube, post.Caption),
			CategoryId:  s.cfg.Youtube.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: s.cfg.Youtube.Privacy,
		},
	}

	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, s.client),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: acc.AccessToken, TokenType: "Bearer"}),
	)

	contentType := "video/*"
	if kind, err := filetype.Match(data); err == nil && strings.HasPrefix(kind.MIME.Value, "video/") {
		contentType = kind.MIME.Value
	}

	sessionURL, err := s.startSession(ctx, client, video, len(data), contentType)
	if err != nil {
		return models.PlatformResult{}, err
	}

	uploaded, err := s.uploadPayload(ctx, client, sessionURL, data, contentType)
	if err != nil {
		return models.PlatformResult{}, err
	}

	LoggerFrom(ctx).Info("youtube video uploaded", "platform", models.PlatformYoutube, "video_id", uploaded.Id, "bytes", len(data))
	return success(uploaded.Id, "https://youtube.com/shorts/"+uploaded.Id), nil
}

// startSession opens a resumable upload and returns the session URL.
func (s *youtubeService) startSession(ctx context.Context, client *http.Client, video *youtube.Video, size int, contentType string) (string, error) {
	meta, err := json.Marshal(video)
	if err != nil {
		return "", err
	}

	endpoint := s.cfg.Platforms.YoutubeUploadURL + "?uploadType=resumable&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(meta))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.Itoa(size))
	req.Header.Set("X-Upload-Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("youtube start upload: %w", err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return "", fmt.Errorf("youtube start upload: %w", err)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New("youtube start upload: no session url returned")
	}
	return location, nil
}

func (s *youtubeService) uploadPayload(ctx context.Context, client *http.Client, sessionURL string, data []byte, contentType string) (*youtube.Video, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube upload: %w", err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("youtube upload: %w", err)
	}

	var uploaded youtube.Video
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("youtube upload: decode response: %w", err)
	}
	if uploaded.Id == "" {
		return nil, errors.New("youtube upload: no video id returned")
	}
	return &uploaded, nil
}

// YoutubeTitle prefers an explicit title, then the first caption line, and
// truncates to the configured rune limit.
func YoutubeTitle(policy config.Youtube, title, caption string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		first, _, _ := strings.Cut(strings.TrimSpace(caption), "\n")
		t = strings.TrimSpace(first)
	}
	if t == "" {
		t = policy.DefaultTitle
	}
	if runes := []rune(t); policy.TitleMax > 0 && len(runes) > policy.TitleMax {
		t = strings.TrimSpace(string(runes[:policy.TitleMax]))
	}
	return t
}

// YoutubeDescription appends the shorts tag unless the caption already has it.
func YoutubeDescription(policy config.Youtube, caption string) string {
	if !policy.ForceShorts || policy.ShortsTag == "" {
		return caption
	}
	if strings.Contains(strings.ToLower(caption), strings.ToLower(policy.ShortsTag)) {
		return caption
	}
	trimmed := strings.TrimRight(caption, " \n\t")
	if trimmed == "" {
		return policy.ShortsTag
	}
	return trimmed + "\n\n" + policy.ShortsTag
}
