package dto

import "encoding/json"

// CreateAnalysisRequest 提交分析请求
type CreateAnalysisRequest struct {
	VideoURL              string `json:"video_url" binding:"required,max=500"`
	MaxComments           int    `json:"max_comments,omitempty" binding:"omitempty,min=5,max=50000"`
	IncludeSentiment      *bool  `json:"include_sentiment,omitempty"`
	IncludeClassification *bool  `json:"include_classification,omitempty"`
	IncludeInsights       *bool  `json:"include_insights,omitempty"`
	IncludeSummary        *bool  `json:"include_summary,omitempty"`
}

// CreateAnalysisResponse 提交分析响应
type CreateAnalysisResponse struct {
	AnalysisID int64  `json:"analysis_id"`
	JobID      string `json:"job_id"`
}

// AnalysisListItem 分析历史列表项
type AnalysisListItem struct {
	ID               int64   `json:"id"`
	JobID            string  `json:"job_id"`
	VideoURL         string  `json:"video_url"`
	VideoID          string  `json:"video_id"`
	VideoTitle       string  `json:"video_title"`
	ChannelTitle     string  `json:"channel_title"`
	ThumbnailURL     string  `json:"thumbnail_url,omitempty"`
	Status           string  `json:"status"`
	CommentsAnalyzed int     `json:"comments_analyzed"`
	QualityScore     float64 `json:"quality_score"`
	CreatedAt        string  `json:"created_at"`
	CompletedAt      string  `json:"completed_at,omitempty"`
}

// AnalysisDetail 分析详情，各阶段结果为存储的原始 JSON
type AnalysisDetail struct {
	ID               int64           `json:"id"`
	JobID            string          `json:"job_id"`
	VideoURL         string          `json:"video_url"`
	VideoID          string          `json:"video_id"`
	VideoTitle       string          `json:"video_title"`
	ChannelTitle     string          `json:"channel_title"`
	ThumbnailURL     string          `json:"thumbnail_url,omitempty"`
	VideoViewCount   int64           `json:"video_view_count,omitempty"`
	Status           string          `json:"status"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CommentsAnalyzed int             `json:"comments_analyzed"`
	QualityScore     float64         `json:"quality_score"`
	Sentiment        json.RawMessage `json:"sentiment,omitempty"`
	Classification   json.RawMessage `json:"classification,omitempty"`
	Insights         json.RawMessage `json:"insights,omitempty"`
	ExecutiveSummary json.RawMessage `json:"executive_summary,omitempty"`
	MinedInsights    json.RawMessage `json:"mined_insights,omitempty"`
	ReportOSSURL     string          `json:"report_oss_url,omitempty"`
	StartedAt        string          `json:"started_at,omitempty"`
	CompletedAt      string          `json:"completed_at,omitempty"`
	CreatedAt        string          `json:"created_at"`
}

// UsageResponse 配额使用情况响应
type UsageResponse struct {
	Plan                string `json:"plan"`
	VideosPerMonth      int    `json:"videos_per_month"`
	VideosUsedThisMonth int    `json:"videos_used_this_month"`
	VideosRemaining     int    `json:"videos_remaining"`
	CommentsPerVideo    int    `json:"comments_per_video"`
	QuotaResetAt        string `json:"quota_reset_at,omitempty"`
}

// PlanInfo 套餐信息
type PlanInfo struct {
	Name             string  `json:"name"`
	VideosPerMonth   int     `json:"videos_per_month"`
	CommentsPerVideo int     `json:"comments_per_video"`
	Price            float64 `json:"price"`
}
