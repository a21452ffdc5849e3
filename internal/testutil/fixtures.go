package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lently/lently_go_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	email := fmt.Sprintf("test_%d@example.com", time.Now().UnixNano())
	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Username:      fmt.Sprintf("testuser_%d", time.Now().UnixNano()%10000),
		Email:         &email,
		PasswordHash:  &passwordHash,
		Plan:          "free",
		EmailVerified: true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = &email
	}
}

// WithPlan 设置套餐
func WithPlan(plan string) func(*model.User) {
	return func(u *model.User) {
		u.Plan = plan
	}
}

// WithVideosUsed 设置本月已用视频数
func WithVideosUsed(used int) func(*model.User) {
	return func(u *model.User) {
		u.VideosUsedThisMonth = used
	}
}

// WithGoogleID 设置 Google 账号关联
func WithGoogleID(googleID string) func(*model.User) {
	return func(u *model.User) {
		u.GoogleID = &googleID
	}
}

// TestAnalysis 创建测试分析
func TestAnalysis(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Analysis)) *model.Analysis {
	t.Helper()

	analysis := &model.Analysis{
		UserID:      userID,
		JobID:       uuid.NewString(),
		VideoURL:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		VideoID:     "dQw4w9WgXcQ",
		VideoTitle:  fmt.Sprintf("Test Video %d", time.Now().UnixNano()%10000),
		MaxComments: 100,
		Status:      "completed",

		IncludeSentiment:      true,
		IncludeClassification: true,
		IncludeInsights:       true,
		IncludeSummary:        true,
	}

	for _, opt := range opts {
		opt(analysis)
	}

	if err := db.Create(analysis).Error; err != nil {
		t.Fatalf("Failed to create test analysis: %v", err)
	}

	return analysis
}

// WithStatus 设置状态
func WithStatus(status string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.Status = status
	}
}

// WithVideoID 设置视频 ID
func WithVideoID(videoID string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.VideoID = videoID
		a.VideoURL = "https://www.youtube.com/watch?v=" + videoID
	}
}

// WithJobID 设置任务 ID
func WithJobID(jobID string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.JobID = jobID
	}
}

// WithStartedAt 设置开始时间
func WithStartedAt(at time.Time) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.StartedAt = &at
	}
}

// WithCommentsJSON 设置入库评论 JSON 列
func WithCommentsJSON(raw string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.CommentsJSON = model.JSONField(raw)
	}
}

// WithSentimentJSON 设置情感结果 JSON 列
func WithSentimentJSON(raw string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.SentimentJSON = model.JSONField(raw)
	}
}

// WithClassificationJSON 设置分类结果 JSON 列
func WithClassificationJSON(raw string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.ClassificationJSON = model.JSONField(raw)
	}
}

// WithInsightsJSON 设置洞察结果 JSON 列
func WithInsightsJSON(raw string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.InsightsJSON = model.JSONField(raw)
	}
}
