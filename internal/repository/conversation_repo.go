package repository

import (
	"gorm.io/gorm"

	"github.com/lently/lently_go_server/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) GetByID(id string) (*model.Conversation, error) {
	var conversation model.Conversation
	err := r.db.Where("id = ?", id).First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// Save 创建或整体更新会话
func (r *ConversationRepository) Save(conversation *model.Conversation) error {
	return r.db.Save(conversation).Error
}

// ListByUserID 按最近活跃排序返回用户的会话
func (r *ConversationRepository) ListByUserID(userID int64, limit int) ([]*model.Conversation, error) {
	var conversations []*model.Conversation
	err := r.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&conversations).Error
	return conversations, err
}
