package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

// linkedInContent is the single content variant chosen for a post before any
// request is made.
type linkedInContent interface {
	linkedInContent()
}

type linkedInText struct{}

type linkedInImage struct {
	mediaURL string
}

type linkedInPreuploadedVideo struct {
	urn string
}

type linkedInServerVideo struct {
	mediaURL string
}

func (linkedInText) linkedInContent()             {}
func (linkedInImage) linkedInContent()            {}
func (linkedInPreuploadedVideo) linkedInContent() {}
func (linkedInServerVideo) linkedInContent()      {}

func selectLinkedInContent(post *models.Post) linkedInContent {
	if urn := post.PlatformMetadata.String(models.PlatformLinkedIn, "video_urn"); urn != "" {
		return linkedInPreuploadedVideo{urn: urn}
	}
	if post.HasMedia() && post.MediaType == models.MediaTypeVideo {
		return linkedInServerVideo{mediaURL: post.MediaURL}
	}
	if post.HasMedia() && post.MediaType == models.MediaTypeImage {
		return linkedInImage{mediaURL: post.MediaURL}
	}
	return linkedInText{}
}

type linkedInService struct {
	cfg    config.Config
	client *http.Client
	media  MediaStore
}

func NewLinkedInService(cfg config.Config, client *http.Client, media MediaStore) Publisher {
	return &linkedInService{cfg: cfg, client: client, media: media}
}

func (s *linkedInService) Platform() string {
	return models.PlatformLinkedIn
}

func (s *linkedInService) Publish(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
	logger := LoggerFrom(ctx).With("platform", models.PlatformLinkedIn)
	author := linkedInAuthor(acc.AccountID)

	var mediaURN string
	var err error
	switch content := selectLinkedInContent(post).(type) {
	case linkedInPreuploadedVideo:
		mediaURN = content.urn
	case linkedInServerVideo:
		mediaURN, err = s.uploadVideo(ctx, acc, author, content.mediaURL)
	case linkedInImage:
		mediaURN, err = s.uploadImage(ctx, acc, author, content.mediaURL)
	case linkedInText:
	}
	if err != nil {
		return models.PlatformResult{}, err
	}

	body := transfer.LinkedInPostRequest{
		Author:     author,
		Commentary: post.Caption,
		Visibility: "PUBLIC",
		Distribution: transfer.LinkedInDistribution{
			FeedDistribution:               "MAIN_FEED",
			TargetEntities:                 []string{},
			ThirdPartyDistributionChannels: []string{},
		},
		LifecycleState: "PUBLISHED",
	}
	if mediaURN != "" {
		body.Content = &transfer.LinkedInContent{Media: transfer.LinkedInMedia{ID: mediaURN, Title: post.Title}}
	}

	call, err := s.jsonCall("create post", http.MethodPost, s.endpoint("/rest/posts"), acc.AccessToken, body)
	if err != nil {
		return models.PlatformResult{}, err
	}
	header, err := call.do(ctx, s.client, nil)
	if err != nil {
		return models.PlatformResult{}, err
	}

	postURN := header.Get("x-restli-id")
	if postURN == "" {
		return models.PlatformResult{}, errors.New("linkedin create post: response carried no x-restli-id")
	}
	logger.Info("linkedin post created", "post_urn", postURN, "media_urn", mediaURN)
	return success(postURN, "https://www.linkedin.com/feed/update/"+postURN), nil
}

// uploadVideo pulls the blob from the media store and pushes it to LinkedIn,
// one PUT per upload instruction, then finalizes with the collected ETags.
func (s *linkedInService) uploadVideo(ctx context.Context, acc *models.SocialAccount, owner, mediaURL string) (string, error) {
	data, err := s.media.Fetch(ctx, mediaURL)
	if err != nil {
		return "", fmt.Errorf("linkedin video: fetch media: %w", err)
	}

	var initReq transfer.LinkedInVideoInitRequest
	initReq.InitializeUploadRequest.Owner = owner
	initReq.InitializeUploadRequest.FileSizeBytes = int64(len(data))

	call, err := s.jsonCall("initialize video upload", http.MethodPost, s.endpoint("/rest/videos?action=initializeUpload"), acc.AccessToken, initReq)
	if err != nil {
		return "", err
	}
	var initResp transfer.LinkedInVideoInitResponse
	if _, err := call.do(ctx, s.client, &initResp); err != nil {
		return "", err
	}

	instructions := initResp.Value.UploadInstructions
	if initResp.Value.Video == "" || len(instructions) == 0 {
		return "", errors.New("linkedin initialize video upload: no upload instructions returned")
	}

	etags := make([]string, 0, len(instructions))
	for i, in := range instructions {
		if in.FirstByte < 0 || in.LastByte < in.FirstByte || in.LastByte >= int64(len(data)) {
			return "", fmt.Errorf("linkedin video part %d: byte range %d-%d outside %d-byte file", i, in.FirstByte, in.LastByte, len(data))
		}
		etag, err := s.put(ctx, fmt.Sprintf("upload video part %d", i+1), in.UploadURL, acc.AccessToken, data[in.FirstByte:in.LastByte+1])
		if err != nil {
			return "", err
		}
		if etag == "" {
			return "", fmt.Errorf("linkedin video part %d: response carried no ETag", i+1)
		}
		etags = append(etags, etag)
	}

	var finalizeReq transfer.LinkedInVideoFinalizeRequest
	finalizeReq.FinalizeUploadRequest.Video = initResp.Value.Video
	finalizeReq.FinalizeUploadRequest.UploadToken = initResp.Value.UploadToken
	finalizeReq.FinalizeUploadRequest.UploadedPartIDs = etags

	call, err = s.jsonCall("finalize video upload", http.MethodPost, s.endpoint("/rest/videos?action=finalizeUpload"), acc.AccessToken, finalizeReq)
	if err != nil {
		return "", err
	}
	if _, err := call.do(ctx, s.client, nil); err != nil {
		return "", err
	}

	LoggerFrom(ctx).Info("linkedin video uploaded", "video_urn", initResp.Value.Video, "parts", len(etags), "bytes", len(data))
	return initResp.Value.Video, nil
}

func (s *linkedInService) uploadImage(ctx context.Context, acc *models.SocialAccount, owner, mediaURL string) (string, error) {
	data, err := s.media.Fetch(ctx, mediaURL)
	if err != nil {
		return "", fmt.Errorf("linkedin image: fetch media: %w", err)
	}

	var initReq transfer.LinkedInImageInitRequest
	initReq.InitializeUploadRequest.Owner = owner

	call, err := s.jsonCall("initialize image upload", http.MethodPost, s.endpoint("/rest/images?action=initializeUpload"), acc.AccessToken, initReq)
	if err != nil {
		return "", err
	}
	var initResp transfer.LinkedInImageInitResponse
	if _, err := call.do(ctx, s.client, &initResp); err != nil {
		return "", err
	}
	if initResp.Value.UploadURL == "" || initResp.Value.Image == "" {
		return "", errors.New("linkedin initialize image upload: no upload url returned")
	}

	if _, err := s.put(ctx, "upload image", initResp.Value.UploadURL, acc.AccessToken, data); err != nil {
		return "", err
	}
	return initResp.Value.Image, nil
}

// put uploads one byte range and returns the ETag LinkedIn assigned to it.
func (s *linkedInService) put(ctx context.Context, step, uploadURL, accessToken string, chunk []byte) (string, error) {
	h := http.Header{}
	h.Set("Authorization", bearer(accessToken))
	h.Set("Content-Type", "application/octet-stream")
	call := apiCall{
		platform: models.PlatformLinkedIn,
		step:     step,
		method:   http.MethodPut,
		endpoint: uploadURL,
		header:   h,
		body:     bytes.NewReader(chunk),
	}
	header, err := call.do(ctx, s.client, nil)
	if err != nil {
		return "", err
	}
	return header.Get("ETag"), nil
}

func (s *linkedInService) jsonCall(step, method, endpoint, accessToken string, payload any) (apiCall, error) {
	call, err := jsonCall(models.PlatformLinkedIn, step, method, endpoint, payload)
	if err != nil {
		return call, err
	}
	call.header.Set("Authorization", bearer(accessToken))
	call.header.Set("LinkedIn-Version", s.cfg.Platforms.LinkedInVersion)
	call.header.Set("X-Restli-Protocol-Version", "2.0.0")
	return call, nil
}

func (s *linkedInService) endpoint(path string) string {
	return strings.TrimRight(s.cfg.Platforms.LinkedInAPIURL, "/") + path
}

func linkedInAuthor(accountID string) string {
	if strings.HasPrefix(accountID, "urn:li:") {
		return accountID
	}
	return "urn:li:person:" + accountID
}
