package gemini

import (
	"errors"
	"fmt"
)

// LLM 错误分类。只有限流和过载是可重试的，
// 安全过滤和非法提示重试也不会有不同结果。
var (
	ErrRateLimited       = errors.New("gemini rate limit exceeded")
	ErrOverloaded        = errors.New("gemini model is overloaded")
	ErrSafetyFiltered    = errors.New("gemini response blocked by safety filter")
	ErrInvalidPrompt     = errors.New("gemini rejected the prompt")
	ErrEmptyResponse     = errors.New("gemini returned an empty response")
	ErrMalformedResponse = errors.New("gemini returned malformed json")
)

// IsRetryable 判断错误是否值得重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrOverloaded)
}

// APIError 包装无法归类的 Gemini API 错误
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini api error (status %d): %s", e.StatusCode, e.Message)
}
