package transfer

type TiktokTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	OpenID           string `json:"open_id"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TiktokInboxSourceInfo is the source_info block of the inbox video init call
// the browser performs before publishing (see service.PlanTiktokUpload).
type TiktokInboxSourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int64  `json:"total_chunk_count"`
}

type TiktokInboxInitRequest struct {
	SourceInfo TiktokInboxSourceInfo `json:"source_info"`
}

// TiktokChunk is one PUT the client makes against the upload_url returned
// by the init call. ContentRange is the header value for that request.
type TiktokChunk struct {
	FirstByte    int64  `json:"first_byte"`
	LastByte     int64  `json:"last_byte"`
	ContentRange string `json:"content_range"`
}

type TiktokUploadPlan struct {
	TiktokInboxInitRequest
	Chunks []TiktokChunk `json:"chunks"`
}
