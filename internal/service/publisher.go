package service

import (
	"context"

	"github.com/maheshrc27/postflow/internal/models"
)

// Publisher drives one platform's publishing protocol for a post. The account
// it receives carries decrypted tokens. A returned error is recorded as that
// platform's failure; it never affects other platforms.
type Publisher interface {
	Platform() string
	Publish(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error)
}

func success(postID, url string) models.PlatformResult {
	return models.PlatformResult{Status: models.ResultStatusSuccess, PostID: postID, URL: url}
}
