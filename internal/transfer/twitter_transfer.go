package transfer

import (
	"strings"
	"time"
)

type TwitterProcessingInfo struct {
	State          string `json:"state"` // pending, in_progress, succeeded, failed
	CheckAfterSecs int    `json:"check_after_secs"`
	ProgressPct    int    `json:"progress_percent"`
	Error          *struct {
		Code    int    `json:"code"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// InProgress reports whether STATUS must be polled again.
func (p *TwitterProcessingInfo) InProgress() bool {
	if p == nil {
		return false
	}
	switch strings.ToLower(p.State) {
	case "pending", "in_progress":
		return true
	default:
		return false
	}
}

func (p *TwitterProcessingInfo) Failed() bool {
	return p != nil && strings.EqualFold(p.State, "failed")
}

func (p *TwitterProcessingInfo) ErrorMessage() string {
	if p == nil || p.Error == nil {
		return "media processing failed"
	}
	if p.Error.Message != "" {
		return p.Error.Message
	}
	return p.Error.Name
}

// TwitterMediaResponse accepts both the v1.1 flat body and the v2 body
// wrapped in "data".
type TwitterMediaResponse struct {
	MediaIDString    string                 `json:"media_id_string"`
	ExpiresAfterSecs int                    `json:"expires_after_secs"`
	ProcessingInfo   *TwitterProcessingInfo `json:"processing_info,omitempty"`
	Data             *TwitterMediaData      `json:"data,omitempty"`
}

type TwitterMediaData struct {
	ID               string                 `json:"id"`
	MediaKey         string                 `json:"media_key"`
	ExpiresAfterSecs int                    `json:"expires_after_secs"`
	ProcessingInfo   *TwitterProcessingInfo `json:"processing_info,omitempty"`
}

func (r TwitterMediaResponse) ID() string {
	if r.Data != nil && r.Data.ID != "" {
		return r.Data.ID
	}
	return r.MediaIDString
}

func (r TwitterMediaResponse) Processing() *TwitterProcessingInfo {
	if r.Data != nil && r.Data.ProcessingInfo != nil {
		return r.Data.ProcessingInfo
	}
	return r.ProcessingInfo
}

// CheckAfter is the delay X asks for before the next STATUS read, or
// fallback when it gives none.
func (p *TwitterProcessingInfo) CheckAfter(fallback time.Duration) time.Duration {
	if p == nil || p.CheckAfterSecs <= 0 {
		return fallback
	}
	return time.Duration(p.CheckAfterSecs) * time.Second
}

type TwitterTweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type TwitterTweetRequest struct {
	Text  string             `json:"text"`
	Media *TwitterTweetMedia `json:"media,omitempty"`
}

type TwitterTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}
