package transfer

import "github.com/maheshrc27/postflow/internal/models"

type PostCreation struct {
	Caption          string
	Title            string
	ScheduledAt      string
	Platforms        string
	PlatformMetadata string
}

type PublishRequest struct {
	Platforms []string `json:"platforms"`
}

type PublishResponse struct {
	Success bool                             `json:"success"`
	Status  string                           `json:"status"`
	Results map[string]models.PlatformResult `json:"results"`
}
