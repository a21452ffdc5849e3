package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lently/lently_go_server/config"
	"github.com/lently/lently_go_server/internal/model"
	"github.com/lently/lently_go_server/internal/model/dto"
	"github.com/lently/lently_go_server/internal/pkg/queue"
	"github.com/lently/lently_go_server/internal/progress"
	"github.com/lently/lently_go_server/internal/repository"
	"github.com/lently/lently_go_server/internal/youtube"
)

var (
	ErrAnalysisNotFound   = errors.New("分析记录不存在")
	ErrAnalysisPermission = errors.New("无权操作此分析记录")
	ErrAnalysisRunning    = errors.New("已有分析任务在进行中")
	ErrInvalidVideoURL    = errors.New("无法识别的视频链接")
)

type AnalysisService struct {
	analysisRepo *repository.AnalysisRepository
	userRepo     *repository.UserRepository
	quotaService *QuotaService
	jobQueue     *queue.Queue
	tracker      *progress.Manager
	cfg          *config.Config
}

func NewAnalysisService(
	analysisRepo *repository.AnalysisRepository,
	userRepo *repository.UserRepository,
	quotaService *QuotaService,
	jobQueue *queue.Queue,
	tracker *progress.Manager,
	cfg *config.Config,
) *AnalysisService {
	return &AnalysisService{
		analysisRepo: analysisRepo,
		userRepo:     userRepo,
		quotaService: quotaService,
		jobQueue:     jobQueue,
		tracker:      tracker,
		cfg:          cfg,
	}
}

// Submit 提交一次视频评论分析：校验配额、去重、建记录、入队
func (s *AnalysisService) Submit(ctx context.Context, userID int64, req *dto.CreateAnalysisRequest) (*dto.CreateAnalysisResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	videoID, err := youtube.ExtractVideoID(req.VideoURL)
	if err != nil {
		return nil, ErrInvalidVideoURL
	}

	// 同一用户同时只允许一个分析在跑
	if _, ok := s.tracker.GetActiveJobForUser(userID); ok {
		return nil, ErrAnalysisRunning
	}
	active, err := s.analysisRepo.CountActiveByUserID(userID)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, ErrAnalysisRunning
	}

	hasQuota, err := s.quotaService.CheckQuota(userID)
	if err != nil {
		return nil, err
	}
	if !hasQuota {
		return nil, ErrQuotaExceeded
	}

	maxComments := s.quotaService.ClampMaxComments(user.Plan, req.MaxComments)

	include := func(p *bool) bool {
		if p == nil {
			return true
		}
		return *p
	}

	analysis := &model.Analysis{
		UserID:      userID,
		JobID:       uuid.NewString(),
		VideoURL:    req.VideoURL,
		VideoID:     videoID,
		MaxComments: maxComments,
		Status:      "queued",

		IncludeSentiment:      include(req.IncludeSentiment),
		IncludeClassification: include(req.IncludeClassification),
		IncludeInsights:       include(req.IncludeInsights),
		IncludeSummary:        include(req.IncludeSummary),
	}

	if err := s.analysisRepo.Create(analysis); err != nil {
		return nil, err
	}

	if err := s.quotaService.UseQuota(userID); err != nil {
		return nil, err
	}

	msg := &queue.JobMessage{
		JobID:                 analysis.JobID,
		AnalysisID:            analysis.ID,
		UserID:                userID,
		VideoURL:              req.VideoURL,
		MaxComments:           maxComments,
		IncludeSentiment:      analysis.IncludeSentiment,
		IncludeClassification: analysis.IncludeClassification,
		IncludeInsights:       analysis.IncludeInsights,
		IncludeSummary:        analysis.IncludeSummary,
		Plan:                  user.Plan,
	}

	if err := s.jobQueue.Push(ctx, msg); err != nil {
		// 入队失败，回滚记录和配额
		if derr := s.analysisRepo.Delete(analysis.ID); derr != nil {
			log.Printf("Failed to rollback analysis %d: %v", analysis.ID, derr)
		}
		if rerr := s.quotaService.RefundQuota(userID); rerr != nil {
			log.Printf("Failed to refund quota for user %d: %v", userID, rerr)
		}
		return nil, err
	}

	// 本进程先登记作业，worker 的快照随后经 pubsub 镜像进来
	s.tracker.CreateJob(analysis.JobID, userID, req.VideoURL)

	return &dto.CreateAnalysisResponse{
		AnalysisID: analysis.ID,
		JobID:      analysis.JobID,
	}, nil
}

// GetByID 获取分析详情
func (s *AnalysisService) GetByID(userID, analysisID int64) (*dto.AnalysisDetail, error) {
	analysis, err := s.analysisRepo.GetByID(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}

	if analysis.UserID != userID {
		return nil, ErrAnalysisPermission
	}

	return s.buildAnalysisDetail(analysis), nil
}

// GetByJobID 按作业 ID 获取分析详情
func (s *AnalysisService) GetByJobID(userID int64, jobID string) (*dto.AnalysisDetail, error) {
	analysis, err := s.analysisRepo.GetByJobID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}

	if analysis.UserID != userID {
		return nil, ErrAnalysisPermission
	}

	return s.buildAnalysisDetail(analysis), nil
}

// List 获取分析历史列表
func (s *AnalysisService) List(userID int64, page, pageSize int, search, status string) ([]*dto.AnalysisListItem, int64, error) {
	analyses, total, err := s.analysisRepo.ListByUserID(userID, page, pageSize, search, status)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.AnalysisListItem, len(analyses))
	for i, a := range analyses {
		item := &dto.AnalysisListItem{
			ID:               a.ID,
			JobID:            a.JobID,
			VideoURL:         a.VideoURL,
			VideoID:          a.VideoID,
			VideoTitle:       a.VideoTitle,
			ChannelTitle:     a.ChannelTitle,
			ThumbnailURL:     a.ThumbnailURL,
			Status:           a.Status,
			CommentsAnalyzed: a.CommentsAnalyzed,
			QualityScore:     a.QualityScore,
			CreatedAt:        a.CreatedAt.Format(time.RFC3339),
		}
		if a.CompletedAt != nil {
			item.CompletedAt = a.CompletedAt.Format(time.RFC3339)
		}
		items[i] = item
	}

	return items, total, nil
}

// Delete 删除分析记录
func (s *AnalysisService) Delete(userID, analysisID int64) error {
	analysis, err := s.analysisRepo.GetByID(analysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnalysisNotFound
		}
		return err
	}

	if analysis.UserID != userID {
		return ErrAnalysisPermission
	}

	return s.analysisRepo.Delete(analysisID)
}

// GetProgress 获取进行中作业的进度快照；作业不在内存时回落到数据库状态
func (s *AnalysisService) GetProgress(userID int64, jobID string) (progress.Snapshot, error) {
	if snap, ok := s.tracker.GetSnapshot(jobID); ok {
		if job, ok := s.tracker.GetJob(jobID); ok && job.UserID != userID {
			return progress.Snapshot{}, ErrAnalysisPermission
		}
		return snap, nil
	}

	analysis, err := s.analysisRepo.GetByJobID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return progress.Snapshot{}, ErrAnalysisNotFound
		}
		return progress.Snapshot{}, err
	}
	if analysis.UserID != userID {
		return progress.Snapshot{}, ErrAnalysisPermission
	}

	snap := progress.Snapshot{
		AnalysisID: analysis.JobID,
		Status:     analysis.Status,
		VideoID:    analysis.VideoID,
		VideoTitle: analysis.VideoTitle,
		Error:      analysis.ErrorMessage,
	}
	switch analysis.Status {
	case "completed":
		snap.Step = progress.StepCompleted
		snap.StepLabel = progress.StepCompleted.Label()
		snap.Progress = 100
		snap.CompletedAt = analysis.CompletedAt
	case "failed":
		snap.Step = progress.StepFailed
		snap.StepLabel = progress.StepFailed.Label()
	default:
		snap.Step = progress.StepQueued
		snap.StepLabel = progress.StepQueued.Label()
	}
	return snap, nil
}

// Subscribe 订阅作业进度，供 SSE 流使用
func (s *AnalysisService) Subscribe(jobID string) (chan progress.Snapshot, bool) {
	return s.tracker.Subscribe(jobID)
}

// Unsubscribe 退订作业进度
func (s *AnalysisService) Unsubscribe(jobID string, ch chan progress.Snapshot) {
	s.tracker.Unsubscribe(jobID, ch)
}

func (s *AnalysisService) buildAnalysisDetail(a *model.Analysis) *dto.AnalysisDetail {
	detail := &dto.AnalysisDetail{
		ID:               a.ID,
		JobID:            a.JobID,
		VideoURL:         a.VideoURL,
		VideoID:          a.VideoID,
		VideoTitle:       a.VideoTitle,
		ChannelTitle:     a.ChannelTitle,
		ThumbnailURL:     a.ThumbnailURL,
		VideoViewCount:   a.VideoViewCount,
		Status:           a.Status,
		ErrorMessage:     a.ErrorMessage,
		CommentsAnalyzed: a.CommentsAnalyzed,
		QualityScore:     a.QualityScore,
		Sentiment:        []byte(a.SentimentJSON),
		Classification:   []byte(a.ClassificationJSON),
		Insights:         []byte(a.InsightsJSON),
		ExecutiveSummary: []byte(a.SummaryJSON),
		MinedInsights:    []byte(a.MinedInsightsJSON),
		ReportOSSURL:     a.ReportOSSURL,
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}

	if a.StartedAt != nil {
		detail.StartedAt = a.StartedAt.Format(time.RFC3339)
	}
	if a.CompletedAt != nil {
		detail.CompletedAt = a.CompletedAt.Format(time.RFC3339)
	}

	return detail
}
