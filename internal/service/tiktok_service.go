package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/utils"
)

const tiktokInboxNote = "delivered to the creator's TikTok inbox as a draft"

// tiktokService reports on uploads the client already pushed to the creator's
// inbox. The orchestrator never moves TikTok bytes itself.
type tiktokService struct {
	tokens TokenService
}

func NewTiktokService(tokens TokenService) Publisher {
	return &tiktokService{tokens: tokens}
}

func (s *tiktokService) Platform() string {
	return models.PlatformTiktok
}

func (s *tiktokService) Publish(ctx context.Context, post *models.Post, acc *models.SocialAccount) (models.PlatformResult, error) {
	if uploadErr := post.PlatformMetadata.String(models.PlatformTiktok, "upload_error"); uploadErr != "" {
		return models.PlatformResult{}, fmt.Errorf("tiktok upload failed: %s", uploadErr)
	}

	publishID := post.PlatformMetadata.String(models.PlatformTiktok, "publish_id")
	if publishID == "" {
		return models.PlatformResult{}, errors.New("tiktok requires a video uploaded to the inbox first: no publish_id")
	}

	// The upload itself is done, but a credential that can no longer be
	// refreshed must still be reported so the user reconnects.
	if _, err := s.tokens.EnsureFresh(ctx, acc); err != nil {
		return models.PlatformResult{}, err
	}

	LoggerFrom(ctx).Info("tiktok inbox upload recorded", "platform", models.PlatformTiktok, "publish_id", publishID)
	result := success(publishID, "")
	result.Note = tiktokInboxNote
	return result, nil
}

// PlanTiktokUpload builds the source_info block the client sends to TikTok's
// inbox video init endpoint, plus the byte range of every chunk it then uploads.
func PlanTiktokUpload(size int64) (transfer.TiktokUploadPlan, error) {
	if size <= 0 {
		return transfer.TiktokUploadPlan{}, fmt.Errorf("%w: video size must be positive", ErrInvalidInput)
	}
	plan := utils.PlanTikTokChunks(size)

	out := transfer.TiktokUploadPlan{
		TiktokInboxInitRequest: transfer.TiktokInboxInitRequest{
			SourceInfo: transfer.TiktokInboxSourceInfo{
				Source:          "FILE_UPLOAD",
				VideoSize:       plan.VideoSize,
				ChunkSize:       plan.ChunkSize,
				TotalChunkCount: plan.TotalChunkCount,
			},
		},
	}
	for _, r := range plan.Ranges() {
		out.Chunks = append(out.Chunks, transfer.TiktokChunk{
			FirstByte:    r[0],
			LastByte:     r[1],
			ContentRange: fmt.Sprintf("bytes %d-%d/%d", r[0], r[1], plan.VideoSize),
		})
	}
	return out, nil
}
