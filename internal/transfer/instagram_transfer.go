package transfer

import (
	"encoding/json"
	"strings"
)

// GraphErrorResponse is the error envelope of the Instagram and Threads
// graph APIs.
type GraphErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}

// ParseGraphError extracts the user-facing message from a graph error body.
// It returns "" when the body is not a graph error.
func ParseGraphError(body []byte) string {
	var resp GraphErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	if resp.Error.ErrorUserMsg != "" {
		return resp.Error.ErrorUserMsg
	}
	return resp.Error.Message
}

// GraphObject is the `{"id": ...}` body returned by container creation and
// publish calls on both the Instagram and Threads graph APIs.
type GraphObject struct {
	ID string `json:"id"`
}

// ContainerState is the decoded processing state of an Instagram or Threads
// media container.
type ContainerState int

const (
	ContainerCreated ContainerState = iota
	ContainerProcessing
	ContainerFinished
	ContainerErrored
	ContainerPublished
)

func (s ContainerState) String() string {
	switch s {
	case ContainerCreated:
		return "created"
	case ContainerProcessing:
		return "processing"
	case ContainerFinished:
		return "finished"
	case ContainerErrored:
		return "errored"
	case ContainerPublished:
		return "published"
	default:
		return "unknown"
	}
}

// Terminal reports whether polling can stop at this state.
func (s ContainerState) Terminal() bool {
	return s == ContainerFinished || s == ContainerErrored || s == ContainerPublished
}

// ParseContainerStatus maps the graph API status strings onto ContainerState.
// Unknown values are treated as still processing.
func ParseContainerStatus(code string) ContainerState {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "FINISHED":
		return ContainerFinished
	case "PUBLISHED":
		return ContainerPublished
	case "ERROR", "EXPIRED":
		return ContainerErrored
	case "":
		return ContainerCreated
	default:
		return ContainerProcessing
	}
}

type InstagramContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

func (s InstagramContainerStatus) State() ContainerState {
	return ParseContainerStatus(s.StatusCode)
}

type ThreadsContainerStatus struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

func (s ThreadsContainerStatus) State() ContainerState {
	return ParseContainerStatus(s.Status)
}
