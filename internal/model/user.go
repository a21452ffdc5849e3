package model

import (
	"time"
)

type User struct {
	ID                    int64      `gorm:"primaryKey" json:"id"`
	Username              string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email                 *string    `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	PasswordHash          *string    `gorm:"size:255" json:"-"`
	AvatarURL             string     `gorm:"size:500" json:"avatar_url"`
	GoogleID              *string    `gorm:"column:google_id;size:50;uniqueIndex" json:"-"`
	Plan                  string     `gorm:"size:20;default:free" json:"plan"` // free, starter, pro, business
	VideosUsedThisMonth   int        `gorm:"default:0" json:"videos_used_this_month"`
	QuotaResetAt          *time.Time `json:"quota_reset_at,omitempty"`
	PlanExpiresAt         *time.Time `json:"plan_expires_at,omitempty"`
	EmailVerified         bool       `gorm:"default:false" json:"email_verified"`
	VerificationCode      *string    `gorm:"size:100" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
