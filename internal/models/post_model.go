package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

type Post struct {
	ID               int64            `db:"id" json:"id"`
	UserID           int64            `db:"user_id" json:"user_id"`
	Caption          string           `db:"caption" json:"caption"`
	Title            string           `db:"title" json:"title,omitempty"`
	MediaURL         string           `db:"media_url" json:"media_url,omitempty"`
	MediaType        string           `db:"media_type" json:"media_type"`
	Platforms        []string         `db:"platforms" json:"platforms"`
	PlatformMetadata PlatformMetadata `db:"platform_metadata" json:"platform_metadata,omitempty"`
	Status           string           `db:"status" json:"status"` // draft, scheduled, publishing, published, partial, failed
	PlatformResults  PlatformResults  `db:"platform_results" json:"platform_results"`
	ScheduledAt      *time.Time       `db:"scheduled_at" json:"scheduled_at,omitempty"`
	PublishedAt      *time.Time       `db:"published_at" json:"published_at,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

func (p *Post) HasMedia() bool {
	return p.MediaURL != "" && p.MediaType != MediaTypeNone
}

const (
	PostStatusDraft      = "draft"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusPartial    = "partial"
	PostStatusFailed     = "failed"
)

const (
	MediaTypeNone  = "none"
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

const (
	PlatformLinkedIn  = "linkedin"
	PlatformInstagram = "instagram"
	PlatformTiktok    = "tiktok"
	PlatformTwitter   = "twitter"
	PlatformThreads   = "threads"
	PlatformYoutube   = "youtube"
)

var Platforms = []string{
	PlatformLinkedIn,
	PlatformInstagram,
	PlatformTiktok,
	PlatformTwitter,
	PlatformThreads,
	PlatformYoutube,
}

func IsValidPlatform(platform string) bool {
	for _, p := range Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// PlatformMetadata carries adapter-specific fields computed before publishing,
// keyed by platform (e.g. {"tiktok": {"publish_id": "..."}}).
type PlatformMetadata map[string]map[string]any

// String returns the string value stored under platform/key, or "".
func (m PlatformMetadata) String(platform, key string) string {
	fields, ok := m[platform]
	if !ok {
		return ""
	}
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func (m PlatformMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *PlatformMetadata) Scan(src any) error {
	return scanJSON(src, m)
}

type PlatformResults map[string]PlatformResult

func (r PlatformResults) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

func (r *PlatformResults) Scan(src any) error {
	return scanJSON(src, r)
}

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported jsonb source type")
	}
}
