package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONField 存放分析阶段产出的 JSON 列
type JSONField json.RawMessage

func (f JSONField) Value() (driver.Value, error) {
	if len(f) == 0 {
		return nil, nil
	}
	return []byte(f), nil
}

func (f *JSONField) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*f = append((*f)[0:0], v...)
	case string:
		*f = JSONField(v)
	}
	return nil
}

func (f JSONField) MarshalJSON() ([]byte, error) {
	if len(f) == 0 {
		return []byte("null"), nil
	}
	return []byte(f), nil
}

func (f *JSONField) UnmarshalJSON(data []byte) error {
	*f = append((*f)[0:0], data...)
	return nil
}

type Analysis struct {
	ID             int64   `gorm:"primaryKey" json:"id"`
	UserID         int64   `gorm:"not null;index" json:"user_id"`
	JobID          string  `gorm:"size:64;uniqueIndex" json:"job_id"`
	VideoURL       string  `gorm:"size:500;not null" json:"video_url"`
	VideoID        string  `gorm:"size:20;index" json:"video_id"`
	VideoTitle     string  `gorm:"size:300" json:"video_title"`
	ChannelTitle   string  `gorm:"size:200" json:"channel_title"`
	ThumbnailURL   string  `gorm:"size:500" json:"thumbnail_url,omitempty"`
	VideoViewCount int64   `json:"video_view_count,omitempty"`
	MaxComments    int     `json:"max_comments"`

	IncludeSentiment      bool `gorm:"default:true" json:"include_sentiment"`
	IncludeClassification bool `gorm:"default:true" json:"include_classification"`
	IncludeInsights       bool `gorm:"default:true" json:"include_insights"`
	IncludeSummary        bool `gorm:"default:true" json:"include_summary"`

	CommentsAnalyzed int     `json:"comments_analyzed"`
	QualityScore     float64 `json:"quality_score"`

	SentimentJSON      JSONField `gorm:"type:json" json:"sentiment,omitempty"`
	ClassificationJSON JSONField `gorm:"type:json" json:"classification,omitempty"`
	InsightsJSON       JSONField `gorm:"type:json" json:"insights,omitempty"`
	SummaryJSON        JSONField `gorm:"type:json" json:"executive_summary,omitempty"`
	MinedInsightsJSON  JSONField `gorm:"type:json" json:"mined_insights,omitempty"`
	CommentsJSON       JSONField `gorm:"type:json" json:"-"`

	ReportOSSURL string `gorm:"size:500" json:"report_oss_url,omitempty"`

	Status       string     `gorm:"size:20;default:queued;index" json:"status"` // queued, processing, completed, failed
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Analysis) TableName() string {
	return "analyses"
}
