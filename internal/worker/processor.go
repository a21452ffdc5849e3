package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lently/lently_go_server/internal/model"
	"github.com/lently/lently_go_server/internal/pipeline"
	"github.com/lently/lently_go_server/internal/pkg/email"
	"github.com/lently/lently_go_server/internal/pkg/oss"
	"github.com/lently/lently_go_server/internal/pkg/pubsub"
	"github.com/lently/lently_go_server/internal/pkg/queue"
	"github.com/lently/lently_go_server/internal/progress"
	"github.com/lently/lently_go_server/internal/repository"
)

// Processor 消费队列消息，驱动流水线并持久化结果。
// 进度经本地 tracker 流转，再转发到 Redis pubsub 供 API 进程镜像。
type Processor struct {
	analysisRepo *repository.AnalysisRepository
	userRepo     *repository.UserRepository
	coordinator  *pipeline.Coordinator
	tracker      *progress.Manager
	ossClient    *oss.Client
	publisher    *pubsub.Publisher
	emailSvc     *email.Service
}

func NewProcessor(
	analysisRepo *repository.AnalysisRepository,
	userRepo *repository.UserRepository,
	coordinator *pipeline.Coordinator,
	tracker *progress.Manager,
	ossClient *oss.Client,
	publisher *pubsub.Publisher,
	emailSvc *email.Service,
) *Processor {
	return &Processor{
		analysisRepo: analysisRepo,
		userRepo:     userRepo,
		coordinator:  coordinator,
		tracker:      tracker,
		ossClient:    ossClient,
		publisher:    publisher,
		emailSvc:     emailSvc,
	}
}

// Process 处理一条分析任务
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	analysis, err := p.analysisRepo.GetByJobID(msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to load analysis for job %s: %w", msg.JobID, err)
	}

	now := time.Now()
	if err := p.analysisRepo.UpdateFields(analysis.ID, map[string]interface{}{
		"status":     "processing",
		"started_at": &now,
	}); err != nil {
		log.Printf("Job %s: failed to mark processing: %v", msg.JobID, err)
	}

	p.tracker.CreateJob(msg.JobID, msg.UserID, msg.VideoURL)
	stopForward := p.startForwarder(ctx, msg)
	defer stopForward()

	result := p.coordinator.Run(ctx, msg.JobID, &pipeline.Request{
		VideoURLOrID:          msg.VideoURL,
		MaxComments:           msg.MaxComments,
		IncludeSentiment:      msg.IncludeSentiment,
		IncludeClassification: msg.IncludeClassification,
		IncludeInsights:       msg.IncludeInsights,
		IncludeSummary:        msg.IncludeSummary,
	})

	if result.Status == pipeline.StatusFailed {
		p.tracker.UpdateStep(msg.JobID, progress.StepFailed, &progress.Patch{Error: &result.Error})
		p.publishFinal(ctx, msg)

		if err := p.analysisRepo.UpdateFields(analysis.ID, map[string]interface{}{
			"status":        "failed",
			"error_message": result.Error,
			"completed_at":  timePtr(time.Now()),
		}); err != nil {
			return fmt.Errorf("failed to persist failed analysis %d: %w", analysis.ID, err)
		}
		return nil
	}

	p.tracker.UpdateStep(msg.JobID, progress.StepSaving, nil)

	fields, err := p.buildResultFields(analysis.ID, result)
	if err != nil {
		errMsg := "Failed to save analysis result"
		p.tracker.UpdateStep(msg.JobID, progress.StepFailed, &progress.Patch{Error: &errMsg})
		p.publishFinal(ctx, msg)
		p.analysisRepo.UpdateFields(analysis.ID, map[string]interface{}{
			"status":        "failed",
			"error_message": errMsg,
		})
		return fmt.Errorf("failed to build result fields: %w", err)
	}

	if err := p.analysisRepo.UpdateFields(analysis.ID, fields); err != nil {
		errMsg := "Failed to save analysis result"
		p.tracker.UpdateStep(msg.JobID, progress.StepFailed, &progress.Patch{Error: &errMsg})
		p.publishFinal(ctx, msg)
		return fmt.Errorf("failed to persist analysis %d: %w", analysis.ID, err)
	}

	p.tracker.UpdateStep(msg.JobID, progress.StepCompleted, nil)
	p.publishFinal(ctx, msg)

	p.notifyUser(msg.UserID, result, fields)

	log.Printf("Job %s: analysis %d completed (%d comments)", msg.JobID, analysis.ID, result.CommentsAnalyzed)
	return nil
}

// buildResultFields 把流水线结果序列化成数据库列，并归档完整报告到 OSS
func (p *Processor) buildResultFields(analysisID int64, result *pipeline.Result) (map[string]interface{}, error) {
	fields := map[string]interface{}{
		"status":            "completed",
		"error_message":     "",
		"comments_analyzed": result.CommentsAnalyzed,
		"quality_score":     result.QualityScore,
		"video_id":          result.Video.VideoID,
		"video_title":       result.Video.Title,
		"channel_title":     result.Video.ChannelTitle,
		"thumbnail_url":     result.Video.ThumbnailURL,
		"video_view_count":  result.Video.ViewCount,
		"completed_at":      result.CompletedAt,
	}

	put := func(column string, v interface{}) error {
		if v == nil {
			return nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", column, err)
		}
		fields[column] = model.JSONField(data)
		return nil
	}

	if result.Sentiment != nil {
		if err := put("sentiment_json", result.Sentiment); err != nil {
			return nil, err
		}
	}
	if result.Classification != nil {
		if err := put("classification_json", result.Classification); err != nil {
			return nil, err
		}
	}
	if result.Insights != nil {
		if err := put("insights_json", result.Insights); err != nil {
			return nil, err
		}
	}
	if result.ExecutiveSummary != nil {
		if err := put("summary_json", result.ExecutiveSummary); err != nil {
			return nil, err
		}
	}
	if result.MinedInsights != nil {
		if err := put("mined_insights_json", result.MinedInsights); err != nil {
			return nil, err
		}
	}
	if len(result.StoredComments) > 0 {
		if err := put("comments_json", result.StoredComments); err != nil {
			return nil, err
		}
	}

	// 完整报告归档到 OSS，失败不阻塞主流程
	if p.ossClient != nil {
		data, err := json.Marshal(result)
		if err == nil {
			url, uerr := p.ossClient.UploadReport(analysisID, data)
			if uerr != nil {
				log.Printf("Analysis %d: failed to archive report to OSS: %v", analysisID, uerr)
			} else {
				fields["report_oss_url"] = url
			}
		}
	}

	return fields, nil
}

// startForwarder 把本地进度快照转发到 Redis pubsub。
// 通道有界且满时丢弃，终态由 publishFinal 兜底。
func (p *Processor) startForwarder(ctx context.Context, msg *queue.JobMessage) func() {
	if p.publisher == nil {
		return func() {}
	}

	ch, ok := p.tracker.Subscribe(msg.JobID)
	if !ok {
		return func() {}
	}

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case snap := <-ch:
				if err := p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
					UserID:   msg.UserID,
					VideoURL: msg.VideoURL,
					Snapshot: snap,
				}); err != nil {
					log.Printf("Job %s: failed to publish progress: %v", msg.JobID, err)
				}
				if snap.Step.IsTerminal() {
					return
				}
			}
		}
	}()

	return func() {
		p.tracker.Unsubscribe(msg.JobID, ch)
		close(stop)
	}
}

// publishFinal 显式广播终态快照，避免转发通道丢掉最后一条
func (p *Processor) publishFinal(ctx context.Context, msg *queue.JobMessage) {
	if p.publisher == nil {
		return
	}
	snap, ok := p.tracker.GetSnapshot(msg.JobID)
	if !ok {
		return
	}
	if err := p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		UserID:   msg.UserID,
		VideoURL: msg.VideoURL,
		Snapshot: snap,
	}); err != nil {
		log.Printf("Job %s: failed to publish final progress: %v", msg.JobID, err)
	}
}

// notifyUser 分析完成后邮件通知
func (p *Processor) notifyUser(userID int64, result *pipeline.Result, fields map[string]interface{}) {
	if p.emailSvc == nil || p.userRepo == nil {
		return
	}

	user, err := p.userRepo.GetByID(userID)
	if err != nil || user.Email == nil {
		return
	}

	reportURL, _ := fields["report_oss_url"].(string)
	if err := p.emailSvc.SendAnalysisComplete(*user.Email, result.Video.Title, result.CommentsAnalyzed, reportURL); err != nil {
		log.Printf("Failed to send completion email to user %d: %v", userID, err)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
