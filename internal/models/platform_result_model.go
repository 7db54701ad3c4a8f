package models

const (
	ResultStatusSuccess = "success"
	ResultStatusError   = "error"
	ResultStatusPending = "pending"
)

// PlatformResult is the normalized outcome of publishing a post to one platform.
type PlatformResult struct {
	Status            string `json:"status"`
	PostID            string `json:"post_id,omitempty"`
	URL               string `json:"url,omitempty"`
	Error             string `json:"error,omitempty"`
	Note              string `json:"note,omitempty"`
	ReconnectRequired bool   `json:"reconnect_required,omitempty"`
}

func (r PlatformResult) Succeeded() bool {
	return r.Status == ResultStatusSuccess
}

// AggregateStatus folds per-platform results into the post status:
// published when every platform succeeded, failed when none did, partial otherwise.
func AggregateStatus(results map[string]PlatformResult) string {
	if len(results) == 0 {
		return PostStatusFailed
	}
	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	switch succeeded {
	case len(results):
		return PostStatusPublished
	case 0:
		return PostStatusFailed
	default:
		return PostStatusPartial
	}
}
