package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/retry"
)

type twitterService struct {
	cfg    config.Config
	client *http.Client
	media  MediaStore
}

func NewTwitterService(cfg config.Config, client *http.Client, media MediaStore) Publisher {
	return &twitterService{cfg: cfg, client: client, media: media}
}

func (s *twitterService) Platform() string {
	return models.PlatformTwitter
}

// Publish tweets the caption with the post's media. When the media upload
// fails the tweet goes out as text only and the result carries a note.
func (s *twitterService) Publish(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
	logger := LoggerFrom(ctx).With("platform", models.PlatformTwitter)

	var note string
	mediaID := post.PlatformMetadata.String(models.PlatformTwitter, "media_id")
	if mediaID == "" && post.HasMedia() {
		var err error
		mediaID, err = s.upload(ctx, post, acc.AccessToken)
		if err != nil {
			logger.Warn("media upload failed, falling back to text tweet", "error", err)
			note = "media upload failed, posted as text only: " + err.Error()
			mediaID = ""
		}
	}

	req := transfer.TwitterTweetRequest{Text: post.Caption}
	if mediaID != "" {
		req.Media = &transfer.TwitterTweetMedia{MediaIDs: []string{mediaID}}
	}

	call, err := jsonCall(models.PlatformTwitter, "create tweet", http.MethodPost, strings.TrimRight(s.cfg.Platforms.TwitterAPIURL, "/")+"/2/tweets", req)
	if err != nil {
		return models.PlatformResult{}, err
	}
	call.header.Set("Authorization", bearer(acc.AccessToken))

	var tweet transfer.TwitterTweetResponse
	if _, err := call.do(ctx, s.client, &tweet); err != nil {
		return models.PlatformResult{}, err
	}
	if tweet.Data.ID == "" {
		return models.PlatformResult{}, errors.New("twitter create tweet: no tweet id returned")
	}

	result := success(tweet.Data.ID, tweetURL(acc.AccountUsername, tweet.Data.ID))
	result.Note = note
	return result, nil
}

// upload runs INIT, APPEND for every chunk, FINALIZE and, when the media needs
// server-side processing, STATUS until it settles.
func (s *twitterService) upload(ctx context.Context, post *models.Post, accessToken string) (string, error) {
	data, err := s.media.Fetch(ctx, post.MediaURL)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("media is empty")
	}

	mimeType, category := twitterMediaType(post.MediaType, data)

	form := url.Values{}
	form.Set("command", "INIT")
	form.Set("total_bytes", strconv.Itoa(len(data)))
	form.Set("media_type", mimeType)
	form.Set("media_category", category)

	var initResp transfer.TwitterMediaResponse
	if err := s.mediaCommand(ctx, accessToken, "INIT", form, &initResp); err != nil {
		return "", err
	}
	mediaID := initResp.ID()
	if mediaID == "" {
		return "", errors.New("INIT returned no media id")
	}

	chunkSize := s.cfg.Polling.TwitterChunkSize
	if chunkSize <= 0 {
		chunkSize = 4 * 1024 * 1024
	}
	for segment, offset := 0, 0; offset < len(data); segment, offset = segment+1, offset+chunkSize {
		end := min(offset+chunkSize, len(data))
		form := url.Values{}
		form.Set("command", "APPEND")
		form.Set("media_id", mediaID)
		form.Set("segment_index", strconv.Itoa(segment))
		form.Set("media_data", base64.StdEncoding.EncodeToString(data[offset:end]))
		if err := s.mediaCommand(ctx, accessToken, "APPEND", form, nil); err != nil {
			return "", err
		}
	}

	form = url.Values{}
	form.Set("command", "FINALIZE")
	form.Set("media_id", mediaID)
	var finalized transfer.TwitterMediaResponse
	if err := s.mediaCommand(ctx, accessToken, "FINALIZE", form, &finalized); err != nil {
		return "", err
	}

	if err := s.awaitProcessing(ctx, accessToken, mediaID, finalized.Processing()); err != nil {
		return "", err
	}
	return mediaID, nil
}

func (s *twitterService) awaitProcessing(ctx context.Context, accessToken, mediaID string, info *transfer.TwitterProcessingInfo) error {
	if info.Failed() {
		return fmt.Errorf("media processing failed: %s", info.ErrorMessage())
	}
	if !info.InProgress() {
		return nil
	}

	fallback := s.cfg.Polling.TwitterStatusInterval
	poll := retry.Options{
		MaxAttempts: s.cfg.Polling.TwitterStatusAttempts,
		Interval:    info.CheckAfter(fallback),
		MaxInterval: time.Minute,
	}
	err := retry.Poll(ctx, poll, func(ctx context.Context, attempt int) (bool, time.Duration, error) {
		params := url.Values{}
		params.Set("command", "STATUS")
		params.Set("media_id", mediaID)

		var status transfer.TwitterMediaResponse
		call := apiCall{
			platform: models.PlatformTwitter,
			step:     "media STATUS",
			method:   http.MethodGet,
			endpoint: s.cfg.Platforms.TwitterUploadURL + "?" + params.Encode(),
			header:   twitterAuth(accessToken),
		}
		if _, err := call.do(ctx, s.client, &status); err != nil {
			return false, 0, err
		}
		info := status.Processing()
		switch {
		case info.Failed():
			return false, 0, fmt.Errorf("media processing failed: %s", info.ErrorMessage())
		case info.InProgress():
			return false, info.CheckAfter(fallback), nil
		default:
			return true, 0, nil
		}
	})
	if errors.Is(err, retry.ErrExhausted) {
		return errors.New("media processing did not finish in time")
	}
	return err
}

func (s *twitterService) mediaCommand(ctx context.Context, accessToken, command string, form url.Values, out any) error {
	call := formCall(models.PlatformTwitter, "media "+command, s.cfg.Platforms.TwitterUploadURL, form)
	call.header.Set("Authorization", bearer(accessToken))
	_, err := call.do(ctx, s.client, out)
	return err
}

func twitterAuth(accessToken string) http.Header {
	h := http.Header{}
	h.Set("Authorization", bearer(accessToken))
	return h
}

func twitterMediaType(mediaType string, data []byte) (string, string) {
	mimeType := "image/jpeg"
	if kind, err := filetype.Match(data); err == nil && kind != types.Unknown {
		mimeType = kind.MIME.Value
	} else if mediaType == models.MediaTypeVideo {
		mimeType = "video/mp4"
	}

	switch {
	case mediaType == models.MediaTypeVideo || strings.HasPrefix(mimeType, "video/"):
		return mimeType, "tweet_video"
	case mimeType == "image/gif":
		return mimeType, "tweet_gif"
	default:
		return mimeType, "tweet_image"
	}
}

func tweetURL(handle, id string) string {
	if handle == "" {
		return "https://x.com/i/web/status/" + id
	}
	return fmt.Sprintf("https://x.com/%s/status/%s", handle, id)
}
