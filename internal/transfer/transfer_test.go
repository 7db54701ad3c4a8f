package transfer

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseContainerStatus(t *testing.T) {
	tests := map[string]ContainerState{
		"FINISHED":    ContainerFinished,
		"PUBLISHED":   ContainerPublished,
		"ERROR":       ContainerErrored,
		"EXPIRED":     ContainerErrored,
		"":            ContainerCreated,
		"IN_PROGRESS": ContainerProcessing,
	}
	for code, want := range tests {
		if got := ParseContainerStatus(code); got != want {
			t.Fatalf("ParseContainerStatus(%q) = %s, want %s", code, got, want)
		}
	}
	if ContainerProcessing.Terminal() || !ContainerErrored.Terminal() {
		t.Fatalf("unexpected terminal states")
	}
}

func TestTwitterProcessingInfo(t *testing.T) {
	var resp TwitterMediaResponse
	data := `{"media_id_string":"1","processing_info":{"state":"in_progress","check_after_secs":5}}`
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.ProcessingInfo.InProgress() || resp.ProcessingInfo.CheckAfterSecs != 5 {
		t.Fatalf("unexpected processing info %+v", resp.ProcessingInfo)
	}

	if got := resp.Processing().CheckAfter(time.Second); got != 5*time.Second {
		t.Fatalf("expected server delay, got %v", got)
	}

	var v2 TwitterMediaResponse
	data = `{"data":{"id":"77","media_key":"7_77","processing_info":{"state":"pending"}}}`
	if err := json.Unmarshal([]byte(data), &v2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v2.ID() != "77" || !v2.Processing().InProgress() {
		t.Fatalf("unexpected v2 response %+v", v2)
	}
	if got := v2.Processing().CheckAfter(2 * time.Second); got != 2*time.Second {
		t.Fatalf("expected fallback delay, got %v", got)
	}

	var none *TwitterProcessingInfo
	if none.InProgress() || none.Failed() {
		t.Fatalf("absent processing info means the media is ready")
	}
}

func TestParseGraphError(t *testing.T) {
	tests := map[string]string{
		`{"error":{"message":"Invalid parameter","error_user_msg":"The video is too long"}}`: "The video is too long",
		`{"error":{"message":"Invalid parameter"}}`:                                         "Invalid parameter",
		`<html>bad gateway</html>`:                                                           "",
	}
	for body, want := range tests {
		if got := ParseGraphError([]byte(body)); got != want {
			t.Errorf("ParseGraphError(%s) = %q, want %q", body, got, want)
		}
	}
}
