package bridge

// Actions understood by the background context and the page agents.
const (
	ActionGetVideoID = "getVideoId"
	ActionClearCache = "clearCache"
	ActionSeekTo     = "seekTo"
)

// VideoIDReply answers getVideoId. An empty VideoID means no video is open.
type VideoIDReply struct {
	VideoID string `json:"videoId"`
}

type ClearCacheRequest struct {
	VideoID string `json:"videoId,omitempty"`
}

// SeekRequest asks a page agent to move playback to Time seconds.
type SeekRequest struct {
	Time int `json:"time"`
}

type SeekReply struct {
	Success bool `json:"success"`
}
