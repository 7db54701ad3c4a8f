package utils

const (
	MB = 1024 * 1024

	TiktokMinChunkSize     = 5 * MB
	TiktokMaxChunkSize     = 64 * MB
	TiktokDefaultChunkSize = 10 * MB
)

// ChunkPlan describes how a file is split for TikTok's FILE_UPLOAD init call.
type ChunkPlan struct {
	VideoSize       int64 `json:"video_size"`
	ChunkSize       int64 `json:"chunk_size"`
	TotalChunkCount int64 `json:"total_chunk_count"`
}

// PlanTikTokChunks uploads files up to the maximum chunk size as a single
// chunk; larger files are cut into default-sized chunks.
func PlanTikTokChunks(size int64) ChunkPlan {
	if size <= 0 {
		return ChunkPlan{}
	}
	if size <= TiktokMaxChunkSize {
		return ChunkPlan{VideoSize: size, ChunkSize: size, TotalChunkCount: 1}
	}
	chunk := int64(TiktokDefaultChunkSize)
	return ChunkPlan{
		VideoSize:       size,
		ChunkSize:       chunk,
		TotalChunkCount: (size + chunk - 1) / chunk,
	}
}

// Ranges returns the inclusive byte ranges of each chunk in upload order.
// The last range ends at VideoSize-1.
func (p ChunkPlan) Ranges() [][2]int64 {
	ranges := make([][2]int64, 0, p.TotalChunkCount)
	for i := int64(0); i < p.TotalChunkCount; i++ {
		first := i * p.ChunkSize
		last := first + p.ChunkSize - 1
		if last >= p.VideoSize {
			last = p.VideoSize - 1
		}
		ranges = append(ranges, [2]int64{first, last})
	}
	return ranges
}
