package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/lently/lently_go_server/internal/model"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(analysis *model.Analysis) error {
	return r.db.Create(analysis).Error
}

func (r *AnalysisRepository) GetByID(id int64) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.Where("id = ?", id).First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *AnalysisRepository) GetByJobID(jobID string) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.Where("job_id = ?", jobID).First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *AnalysisRepository) Update(analysis *model.Analysis) error {
	return r.db.Save(analysis).Error
}

func (r *AnalysisRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Analysis{}).Where("id = ?", id).Updates(fields).Error
}

func (r *AnalysisRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&model.Analysis{}).Where("id = ?", id).Update("status", status).Error
}

func (r *AnalysisRepository) Delete(id int64) error {
	return r.db.Delete(&model.Analysis{}, id).Error
}

// ListByUserID 获取用户的分析历史列表
func (r *AnalysisRepository) ListByUserID(userID int64, page, pageSize int, search, status string) ([]*model.Analysis, int64, error) {
	var analyses []*model.Analysis
	var total int64

	query := r.db.Model(&model.Analysis{}).Where("user_id = ?", userID)

	if search != "" {
		query = query.Where("video_title LIKE ?", "%"+search+"%")
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&analyses).Error; err != nil {
		return nil, 0, err
	}

	return analyses, total, nil
}

// GetLatestCompletedByVideoID 获取用户对某视频最近一次完成的分析
func (r *AnalysisRepository) GetLatestCompletedByVideoID(userID int64, videoID string) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.Where("user_id = ? AND video_id = ? AND status = ?", userID, videoID, "completed").
		Order("created_at DESC").
		First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// CountActiveByUserID 统计用户排队中或处理中的分析数
func (r *AnalysisRepository) CountActiveByUserID(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.Analysis{}).
		Where("user_id = ? AND status IN ?", userID, []string{"queued", "processing"}).
		Count(&count).Error
	return count, err
}

// ListStaleProcessing 查找卡死在处理中的分析（worker 崩溃遗留）
func (r *AnalysisRepository) ListStaleProcessing(olderThan time.Time) ([]*model.Analysis, error) {
	var analyses []*model.Analysis
	err := r.db.Where("status IN ? AND updated_at < ?", []string{"queued", "processing"}, olderThan).
		Find(&analyses).Error
	return analyses, err
}

// CountThisMonth 统计用户本月已完成提交的分析数
func (r *AnalysisRepository) CountThisMonth(userID int64, monthStart time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.Analysis{}).
		Where("user_id = ? AND created_at >= ?", userID, monthStart).
		Count(&count).Error
	return count, err
}
