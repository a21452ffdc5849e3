package youtube

import "fmt"

// 评论源错误分类，全部为终态错误，不做重试
var (
	ErrVideoNotFound    = fmt.Errorf("video not found or is private")
	ErrCommentsDisabled = fmt.Errorf("comments are disabled for this video")
	ErrQuotaExceeded    = fmt.Errorf("youtube api daily quota exceeded")
	ErrInvalidVideoID   = fmt.Errorf("invalid video url or id")
)

// APIError 包装无法归类的 YouTube API 错误
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube api error (status %d): %s", e.StatusCode, e.Message)
}
