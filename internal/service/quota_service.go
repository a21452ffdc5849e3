package service

import (
	"errors"
	"time"

	"github.com/lently/lently_go_server/config"
	"github.com/lently/lently_go_server/internal/model/dto"
	"github.com/lently/lently_go_server/internal/repository"
)

var (
	ErrQuotaExceeded = errors.New("本月视频分析额度已用完")
)

type QuotaService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
}

func NewQuotaService(userRepo *repository.UserRepository, cfg *config.Config) *QuotaService {
	return &QuotaService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// CheckQuota 检查月度视频配额
func (s *QuotaService) CheckQuota(userID int64) (bool, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return false, err
	}

	// 跨月自动重置
	if user.QuotaResetAt != nil && time.Now().After(*user.QuotaResetAt) {
		if err := s.resetUserQuota(userID); err != nil {
			return false, err
		}
		user, _ = s.userRepo.GetByID(userID)
	}

	plan := s.cfg.GetPlan(user.Plan)
	return user.VideosUsedThisMonth < plan.VideosPerMonth, nil
}

// UseQuota 使用一次视频配额
func (s *QuotaService) UseQuota(userID int64) error {
	return s.userRepo.IncrementVideosUsed(userID)
}

// RefundQuota 退还配额（入队失败等场景）
func (s *QuotaService) RefundQuota(userID int64) error {
	return s.userRepo.DecrementVideosUsed(userID)
}

// ClampMaxComments 把请求的评论数压到套餐上限以内
func (s *QuotaService) ClampMaxComments(plan string, requested int) int {
	p := s.cfg.GetPlan(plan)
	if requested <= 0 || requested > p.CommentsPerVideo {
		return p.CommentsPerVideo
	}
	return requested
}

func (s *QuotaService) resetUserQuota(userID int64) error {
	return s.userRepo.ResetQuota(userID, nextMonthStart(time.Now()))
}

// ResetAllQuotas 重置所有用户的月度配额
func (s *QuotaService) ResetAllQuotas() error {
	return s.userRepo.ResetAllQuotas(nextMonthStart(time.Now()))
}

// GetQuotaInfo 获取用户配额信息
func (s *QuotaService) GetQuotaInfo(userID int64) (*dto.QuotaInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if user.QuotaResetAt != nil && time.Now().After(*user.QuotaResetAt) {
		if err := s.resetUserQuota(userID); err != nil {
			return nil, err
		}
		user, _ = s.userRepo.GetByID(userID)
	}

	plan := s.cfg.GetPlan(user.Plan)
	remaining := plan.VideosPerMonth - user.VideosUsedThisMonth
	if remaining < 0 {
		remaining = 0
	}

	info := &dto.QuotaInfo{
		VideosPerMonth:      plan.VideosPerMonth,
		VideosUsedThisMonth: user.VideosUsedThisMonth,
		VideosRemaining:     remaining,
		CommentsPerVideo:    plan.CommentsPerVideo,
	}

	if user.QuotaResetAt != nil {
		info.QuotaResetAt = user.QuotaResetAt.Format(time.RFC3339)
	}

	return info, nil
}

// GetUsage 配额使用情况（usage 端点）
func (s *QuotaService) GetUsage(userID int64) (*dto.UsageResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	info, err := s.GetQuotaInfo(userID)
	if err != nil {
		return nil, err
	}

	return &dto.UsageResponse{
		Plan:                user.Plan,
		VideosPerMonth:      info.VideosPerMonth,
		VideosUsedThisMonth: info.VideosUsedThisMonth,
		VideosRemaining:     info.VideosRemaining,
		CommentsPerVideo:    info.CommentsPerVideo,
		QuotaResetAt:        info.QuotaResetAt,
	}, nil
}

// ListPlans 套餐列表
func (s *QuotaService) ListPlans() []*dto.PlanInfo {
	names := []string{"free", "starter", "pro", "business"}
	plans := make([]*dto.PlanInfo, 0, len(names))
	for _, name := range names {
		p, ok := s.cfg.Plans[name]
		if !ok {
			continue
		}
		plans = append(plans, &dto.PlanInfo{
			Name:             name,
			VideosPerMonth:   p.VideosPerMonth,
			CommentsPerVideo: p.CommentsPerVideo,
			Price:            p.Price,
		})
	}
	return plans
}
