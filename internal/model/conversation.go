package model

import "time"

// Conversation 创作者与 AI 关于某个视频评论区的对话。
// 消息列表整体序列化存储，读写总是整条会话一起进行。
type Conversation struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	UserID        int64     `gorm:"not null;index" json:"user_id"`
	VideoID       string    `gorm:"size:20;index" json:"video_id"`
	MessagesJSON  JSONField `gorm:"type:json" json:"-"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}
