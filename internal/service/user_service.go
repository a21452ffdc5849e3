package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/lently/lently_go_server/config"
	"github.com/lently/lently_go_server/internal/model"
	"github.com/lently/lently_go_server/internal/model/dto"
	"github.com/lently/lently_go_server/internal/pkg/oss"
	"github.com/lently/lently_go_server/internal/repository"
)

type UserService struct {
	userRepo     *repository.UserRepository
	quotaService *QuotaService
	ossClient    *oss.Client
	cfg          *config.Config
}

func NewUserService(userRepo *repository.UserRepository, quotaService *QuotaService, ossClient *oss.Client, cfg *config.Config) *UserService {
	return &UserService{
		userRepo:     userRepo,
		quotaService: quotaService,
		ossClient:    ossClient,
		cfg:          cfg,
	}
}

// GetProfile 获取用户详情（含配额信息）
func (s *UserService) GetProfile(userID int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return s.buildUserInfoWithQuota(user)
}

// UpdateProfile 更新用户信息
func (s *UserService) UpdateProfile(userID int64, req *dto.UpdateProfileRequest) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if req.Username != nil && *req.Username != user.Username {
		exists, err := s.userRepo.ExistsByUsername(*req.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrUsernameExists
		}
		user.Username = *req.Username
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	return s.buildUserInfoWithQuota(user)
}

// UpdateAvatar 上传并更新用户头像
func (s *UserService) UpdateAvatar(userID int64, data []byte, ext string) (string, error) {
	if s.ossClient == nil {
		return "", errors.New("oss is not configured")
	}

	url, err := s.ossClient.UploadAvatar(userID, data, ext)
	if err != nil {
		return "", err
	}

	if err := s.userRepo.UpdateFields(userID, map[string]interface{}{
		"avatar_url": url,
	}); err != nil {
		return "", err
	}

	return url, nil
}

func (s *UserService) buildUserInfoWithQuota(user *model.User) (*dto.UserInfo, error) {
	info := &dto.UserInfo{
		ID:            user.ID,
		Username:      user.Username,
		AvatarURL:     user.AvatarURL,
		Plan:          user.Plan,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	if user.Email != nil {
		info.Email = *user.Email
	}

	if s.quotaService != nil {
		quota, err := s.quotaService.GetQuotaInfo(user.ID)
		if err != nil {
			return nil, err
		}
		info.QuotaInfo = quota
	}

	return info, nil
}
