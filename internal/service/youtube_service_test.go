package service

import (
	"context"
	"strings"
	"testing"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
)

func TestYoutubeTitle(t *testing.T) {
	policy := config.Youtube{TitleMax: 10, DefaultTitle: "Untitled"}
	tests := []struct {
		title, caption, want string
	}{
		{"Explicit", "caption", "Explicit"},
		{"", "first line\nsecond line", "first line"},
		{"", "   ", "Untitled"},
		{"", "a caption that is far too long", "a caption"},
		{"", "ééééééééééééé", "éééééééééé"},
	}
	for _, tt := range tests {
		if got := YoutubeTitle(policy, tt.title, tt.caption); got != tt.want {
			t.Fatalf("YoutubeTitle(%q, %q) = %q, want %q", tt.title, tt.caption, got, tt.want)
		}
	}
}

func TestYoutubeDescription(t *testing.T) {
	policy := config.Youtube{ForceShorts: true, ShortsTag: "#Shorts"}
	if got := YoutubeDescription(policy, "new video\n"); got != "new video\n\n#Shorts" {
		t.Fatalf("unexpected description %q", got)
	}
	if got := YoutubeDescription(policy, "already #shorts"); got != "already #shorts" {
		t.Fatalf("existing tag must not be repeated, got %q", got)
	}
	if got := YoutubeDescription(policy, ""); got != "#Shorts" {
		t.Fatalf("unexpected description for empty caption %q", got)
	}
	policy.ForceShorts = false
	if got := YoutubeDescription(policy, "plain"); got != "plain" {
		t.Fatalf("tag must not be added when disabled, got %q", got)
	}
}

func TestYoutube_RequiresVideo(t *testing.T) {
	post := draftPost()
	post.MediaType = models.MediaTypeImage
	tokens := NewTokenService(testConfig(), newFakeAccountRepo(), testCipher(t), nil)
	_, err := NewYoutubeService(testConfig(), nil, newFakeMedia(), tokens).Publish(context.Background(), post, &models.SocialAccount{Platform: models.PlatformYoutube})
	if err == nil || !strings.Contains(err.Error(), "video") {
		t.Fatalf("expected video requirement error, got %v", err)
	}
}
