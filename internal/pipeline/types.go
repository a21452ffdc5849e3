// Package pipeline 把抓取、启发式挖掘和多阶段 LLM 分析
// 串成一次完整的评论分析，容忍批次级的局部失败。
package pipeline

import (
	"time"

	"github.com/lently/lently_go_server/internal/insight"
)

// 流水线固定设计常量
const (
	// 单次 LLM 调用的评论批次大小
	batchSize = 50
	// 洞察阶段的采样上限，控制提示词长度
	insightSampleCap = 75
	// 低于该数量不值得分析
	minCommentsRequired = 5
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Request 一次分析的参数，四个阶段各自可选
type Request struct {
	VideoURLOrID          string `json:"video_url_or_id"`
	MaxComments           int    `json:"max_comments"`
	IncludeSentiment      bool   `json:"include_sentiment"`
	IncludeClassification bool   `json:"include_classification"`
	IncludeInsights       bool   `json:"include_insights"`
	IncludeSummary        bool   `json:"include_summary"`
}

// VideoInfo 结果里携带的视频概要
type VideoInfo struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channel_title"`
	ViewCount    int64  `json:"view_count"`
	CommentCount int    `json:"comment_count"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// CommentSentiment 单条评论的情感判定
type CommentSentiment struct {
	CommentID  string  `json:"comment_id"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Emotion    string  `json:"emotion,omitempty"`
}

// SentimentSummary 情感阶段的整体概要
type SentimentSummary struct {
	PositivePercentage float64  `json:"positive_percentage"`
	NegativePercentage float64  `json:"negative_percentage"`
	NeutralPercentage  float64  `json:"neutral_percentage"`
	MixedPercentage    float64  `json:"mixed_percentage"`
	DominantSentiment  string   `json:"dominant_sentiment"`
	TopEmotions        []string `json:"top_emotions"`
	SentimentTrend     string   `json:"sentiment_trend,omitempty"`
}

// SentimentResult 情感阶段聚合结果
type SentimentResult struct {
	Comments []CommentSentiment `json:"comments"`
	Summary  SentimentSummary   `json:"summary"`
}

// CommentClassification 单条评论的分类判定
type CommentClassification struct {
	CommentID         string  `json:"comment_id"`
	PrimaryCategory   string  `json:"primary_category"`
	SecondaryCategory string  `json:"secondary_category,omitempty"`
	Confidence        float64 `json:"confidence"`
}

// ClassificationSummary 分类阶段的整体概要
type ClassificationSummary struct {
	CategoryCounts      map[string]int     `json:"category_counts"`
	CategoryPercentages map[string]float64 `json:"category_percentages"`
	TopCategory         string             `json:"top_category"`
	ActionableCount     int                `json:"actionable_count"`
}

// ClassificationResult 分类阶段聚合结果
type ClassificationResult struct {
	Comments []CommentClassification `json:"comments"`
	Summary  ClassificationSummary   `json:"summary"`
}

// KeyTheme 评论里反复出现的主题
type KeyTheme struct {
	Theme           string   `json:"theme"`
	MentionCount    int      `json:"mention_count"`
	Sentiment       string   `json:"sentiment"`
	ExampleComments []string `json:"example_comments"`
}

// ContentIdea 根据评论建议的后续选题
type ContentIdea struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	SourceType      string   `json:"source_type"`
	Confidence      float64  `json:"confidence"`
	RelatedComments []string `json:"related_comments"`
}

// AudienceInsight 对观众群体的洞察
type AudienceInsight struct {
	Insight    string `json:"insight"`
	Evidence   string `json:"evidence"`
	ActionItem string `json:"action_item,omitempty"`
}

// InsightsResult 洞察阶段结果
type InsightsResult struct {
	KeyThemes        []KeyTheme        `json:"key_themes"`
	ContentIdeas     []ContentIdea     `json:"content_ideas"`
	AudienceInsights []AudienceInsight `json:"audience_insights"`
}

// ExecutiveSummary 面向创作者的执行摘要
type ExecutiveSummary struct {
	SummaryText     string                 `json:"summary_text"`
	KeyMetrics      map[string]interface{} `json:"key_metrics"`
	KeyFindings     []string               `json:"key_findings,omitempty"`
	PriorityActions []string               `json:"priority_actions"`
}

// StoredComment 把情感和分类按评论 id 回填到原评论上的投影，
// 供后续的对话式问答使用
type StoredComment struct {
	CommentID  string `json:"comment_id"`
	Author     string `json:"author"`
	Text       string `json:"text"`
	LikeCount  int    `json:"like_count"`
	ReplyCount int    `json:"reply_count"`
	Sentiment  string `json:"sentiment,omitempty"`
	Category   string `json:"category,omitempty"`
	IsQuestion bool   `json:"is_question"`
	IsFeedback bool   `json:"is_feedback"`
}

// Result 流水线的统一产出。无论成败调用方总能拿到一个终态结果，
// 被禁用或失败的阶段对应字段为 nil。
type Result struct {
	AnalysisID       string                `json:"analysis_id"`
	Video            VideoInfo             `json:"video"`
	Status           string                `json:"status"`
	CreatedAt        time.Time             `json:"created_at"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
	CommentsAnalyzed int                   `json:"comments_analyzed"`
	QualityScore     float64               `json:"quality_score"`
	Sentiment        *SentimentResult      `json:"sentiment,omitempty"`
	Classification   *ClassificationResult `json:"classification,omitempty"`
	Insights         *InsightsResult       `json:"insights,omitempty"`
	ExecutiveSummary *ExecutiveSummary     `json:"executive_summary,omitempty"`
	MinedInsights    *insight.Summary      `json:"mined_insights,omitempty"`
	StoredComments   []StoredComment       `json:"stored_comments,omitempty"`
	Error            string                `json:"error,omitempty"`
}
