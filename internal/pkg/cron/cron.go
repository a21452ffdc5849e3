package cron

import (
	"log"
	"time"

	"github.com/lently/lently_go_server/internal/repository"
	"github.com/lently/lently_go_server/internal/service"
)

type Service struct {
	quotaService *service.QuotaService
	analysisRepo *repository.AnalysisRepository
	staleAfter   time.Duration
	stopChan     chan struct{}
}

func NewService(
	quotaService *service.QuotaService,
	analysisRepo *repository.AnalysisRepository,
	staleAfter time.Duration,
) *Service {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &Service{
		quotaService: quotaService,
		analysisRepo: analysisRepo,
		staleAfter:   staleAfter,
		stopChan:     make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runMonthlyQuotaReset()
	go s.runStaleRepair()
	log.Println("Cron service started (quota reset + stale analysis repair)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Cron service stopped")
}

// runMonthlyQuotaReset 每月 1 号零点重置所有用户配额
func (s *Service) runMonthlyQuotaReset() {
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.resetMonthlyQuotas()
		}
	}
}

// resetMonthlyQuotas 重置所有用户的月度配额
func (s *Service) resetMonthlyQuotas() {
	if s.quotaService == nil {
		return
	}
	log.Println("Starting monthly quota reset...")
	if err := s.quotaService.ResetAllQuotas(); err != nil {
		log.Printf("Failed to reset monthly quotas: %v", err)
		return
	}
	log.Println("Monthly quota reset completed")
}

// runStaleRepair 每 10 分钟检查一次卡死的分析
func (s *Service) runStaleRepair() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RepairStaleAnalyses()
		}
	}
}

// RepairStaleAnalyses 把长时间停在 queued/processing 的分析标记为失败，
// worker 崩溃后用户才能重新提交
func (s *Service) RepairStaleAnalyses() int {
	if s.analysisRepo == nil {
		return 0
	}

	stale, err := s.analysisRepo.ListStaleProcessing(time.Now().Add(-s.staleAfter))
	if err != nil {
		log.Printf("Stale repair: failed to query: %v", err)
		return 0
	}

	repaired := 0
	for _, a := range stale {
		err := s.analysisRepo.UpdateFields(a.ID, map[string]interface{}{
			"status":        "failed",
			"error_message": "Analysis timed out",
		})
		if err != nil {
			log.Printf("Stale repair: failed to mark analysis %d: %v", a.ID, err)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		log.Printf("Stale repair: marked %d analyses as failed", repaired)
	}
	return repaired
}

// RunNow 立即执行配额重置（用于测试或手动触发）
func (s *Service) RunNow() error {
	log.Println("Manual quota reset triggered...")
	return s.quotaService.ResetAllQuotas()
}
