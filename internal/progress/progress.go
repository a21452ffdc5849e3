// Package progress 维护分析作业的内存进度状态，
// 提供有界通道的订阅推送和定期清理。
// 单实例部署下作业状态只存在于进程内存，跨实例同步依赖上层的
// Redis 发布订阅转发（见 Manager.Mirror）。
package progress

import (
	"context"
	"log"
	"sync"
	"time"
)

// Step 分析流水线步骤
type Step string

const (
	StepQueued             Step = "queued"
	StepConnecting         Step = "connecting"
	StepFetchingVideo      Step = "fetching_video"
	StepFetchingComments   Step = "fetching_comments"
	StepAnalyzingSentiment Step = "analyzing_sentiment"
	StepClassifying        Step = "classifying"
	StepExtractingInsights Step = "extracting_insights"
	StepGeneratingSummary  Step = "generating_summary"
	StepSaving             Step = "saving"
	StepCompleted          Step = "completed"
	StepFailed             Step = "failed"
)

// stepOrder 非终态步骤的固定顺序，进度按已完成步骤的权重累加
var stepOrder = []Step{
	StepQueued,
	StepConnecting,
	StepFetchingVideo,
	StepFetchingComments,
	StepAnalyzingSentiment,
	StepClassifying,
	StepExtractingInsights,
	StepGeneratingSummary,
	StepSaving,
	StepCompleted,
}

var stepWeights = map[Step]int{
	StepQueued:             0,
	StepConnecting:         2,
	StepFetchingVideo:      5,
	StepFetchingComments:   15,
	StepAnalyzingSentiment: 25,
	StepClassifying:        20,
	StepExtractingInsights: 15,
	StepGeneratingSummary:  10,
	StepSaving:             5,
	StepCompleted:          3,
}

var stepLabels = map[Step]string{
	StepQueued:             "Queued",
	StepConnecting:         "Connecting to YouTube",
	StepFetchingVideo:      "Fetching video metadata",
	StepFetchingComments:   "Selecting quality comments",
	StepAnalyzingSentiment: "Analyzing sentiment",
	StepClassifying:        "Categorizing comments",
	StepExtractingInsights: "Extracting insights",
	StepGeneratingSummary:  "Generating summary",
	StepSaving:             "Saving results",
	StepCompleted:          "Analysis complete",
	StepFailed:             "Analysis failed",
}

// Label 步骤的人类可读标签
func (s Step) Label() string {
	if label, ok := stepLabels[s]; ok {
		return label
	}
	return "Processing"
}

// IsTerminal 终态步骤不再允许任何转移
func (s Step) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed
}

func stepIndex(s Step) int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

const (
	// 订阅通道容量，满了直接丢弃，慢消费者丢中间态不丢终态
	subscriberCapacity = 50

	// 未到 COMPLETED 前进度封顶，避免界面提前显示完成
	progressCap = 97

	defaultRetention     = 30 * time.Minute
	defaultSweepInterval = 5 * time.Minute
)

// Snapshot 单次进度快照，每次状态转移向订阅者推送一份
type Snapshot struct {
	AnalysisID      string     `json:"analysis_id"`
	Status          string     `json:"status"`
	Step            Step       `json:"step"`
	StepLabel       string     `json:"step_label"`
	Progress        int        `json:"progress"`
	CommentsFetched int        `json:"comments_fetched"`
	TotalComments   int        `json:"total_comments"`
	VideoID         string     `json:"video_id,omitempty"`
	VideoTitle      string     `json:"video_title,omitempty"`
	VideoThumbnail  string     `json:"video_thumbnail,omitempty"`
	Error           string     `json:"error,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Patch 元数据局部更新，nil 字段不改动
type Patch struct {
	VideoID         *string
	VideoTitle      *string
	VideoThumbnail  *string
	CommentsFetched *int
	TotalComments   *int
	Error           *string
}

// Job 一个进行中的分析作业。
// 字段只通过 Manager 的方法修改，Manager 持锁保证互斥。
type Job struct {
	AnalysisID string
	UserID     int64
	VideoURL   string

	status          string
	step            Step
	progress        int
	commentsFetched int
	totalComments   int
	videoID         string
	videoTitle      string
	videoThumbnail  string
	errMsg          string
	createdAt       time.Time
	completedAt     *time.Time

	subscribers []chan Snapshot
}

func (j *Job) snapshot() Snapshot {
	return Snapshot{
		AnalysisID:      j.AnalysisID,
		Status:          j.status,
		Step:            j.step,
		StepLabel:       j.step.Label(),
		Progress:        j.progress,
		CommentsFetched: j.commentsFetched,
		TotalComments:   j.totalComments,
		VideoID:         j.videoID,
		VideoTitle:      j.videoTitle,
		VideoThumbnail:  j.videoThumbnail,
		Error:           j.errMsg,
		CompletedAt:     j.completedAt,
	}
}

// calculateProgress 累加当前步骤之前所有步骤的权重。
// FAILED 保留最后一次算出的进度，COMPLETED 强制 100。
func (j *Job) calculateProgress() int {
	switch j.step {
	case StepFailed:
		return j.progress
	case StepCompleted:
		return 100
	}

	idx := stepIndex(j.step)
	completed := 0
	for i, step := range stepOrder {
		if i < idx {
			completed += stepWeights[step]
		}
	}

	if completed > progressCap {
		return progressCap
	}
	return completed
}

// Manager 作业注册表。所有状态修改都经过它，以互斥锁保护。
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	userJobs map[int64][]string
}

func NewManager() *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		userJobs: make(map[int64][]string),
	}
}

// CreateJob 创建作业并登记到 id 索引和用户索引
func (m *Manager) CreateJob(analysisID string, userID int64, videoURL string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		AnalysisID: analysisID,
		UserID:     userID,
		VideoURL:   videoURL,
		status:     "processing",
		step:       StepQueued,
		createdAt:  time.Now(),
	}
	m.jobs[analysisID] = job
	m.userJobs[userID] = append(m.userJobs[userID], analysisID)

	log.Printf("Created analysis job %s for user %d", analysisID, userID)
	return job
}

func (m *Manager) GetJob(analysisID string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[analysisID]
	return job, ok
}

// GetSnapshot 读取作业当前快照
func (m *Manager) GetSnapshot(analysisID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[analysisID]
	if !ok {
		return Snapshot{}, false
	}
	return job.snapshot(), true
}

// GetUserJobs 返回用户全部在册作业的快照
func (m *Manager) GetUserJobs(userID int64) []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.userJobs[userID]
	snapshots := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		if job, ok := m.jobs[id]; ok {
			snapshots = append(snapshots, job.snapshot())
		}
	}
	return snapshots
}

// GetActiveJobForUser 返回用户最近创建的仍在处理中的作业
func (m *Manager) GetActiveJobForUser(userID int64) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *Job
	for _, id := range m.userJobs[userID] {
		job, ok := m.jobs[id]
		if !ok || job.status != "processing" {
			continue
		}
		if latest == nil || job.createdAt.After(latest.createdAt) {
			latest = job
		}
	}

	if latest == nil {
		return Snapshot{}, false
	}
	return latest.snapshot(), true
}

// UpdateStep 推进作业步骤并推送快照给全部订阅者。
// 终态之后的调用被忽略；patch 中的 nil 字段不改动原值。
func (m *Manager) UpdateStep(analysisID string, step Step, patch *Patch) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[analysisID]
	if !ok {
		return Snapshot{}, false
	}
	if job.step.IsTerminal() {
		return job.snapshot(), true
	}

	job.step = step
	m.applyPatch(job, patch)

	switch step {
	case StepCompleted:
		job.status = "completed"
		now := time.Now()
		job.completedAt = &now
	case StepFailed:
		job.status = "failed"
	}

	job.progress = job.calculateProgress()

	snap := job.snapshot()
	m.publishLocked(job, snap)
	return snap, true
}

func (m *Manager) applyPatch(job *Job, patch *Patch) {
	if patch == nil {
		return
	}
	if patch.VideoID != nil {
		job.videoID = *patch.VideoID
	}
	if patch.VideoTitle != nil {
		job.videoTitle = *patch.VideoTitle
	}
	if patch.VideoThumbnail != nil {
		job.videoThumbnail = *patch.VideoThumbnail
	}
	if patch.CommentsFetched != nil {
		job.commentsFetched = *patch.CommentsFetched
	}
	if patch.TotalComments != nil {
		job.totalComments = *patch.TotalComments
	}
	if patch.Error != nil {
		job.errMsg = *patch.Error
		job.status = "failed"
	}
}

// publishLocked 非阻塞推送，通道满了直接丢弃这条更新。
// 慢消费者丢中间态可以接受，重连后拉取即可拿到最新状态。
func (m *Manager) publishLocked(job *Job, snap Snapshot) {
	for _, ch := range job.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Mirror 把外部来源（如 Redis 订阅）的快照镜像进本地注册表。
// 作业不存在时先登记，用于服务进程跟踪 worker 进程驱动的作业。
func (m *Manager) Mirror(snap Snapshot, userID int64, videoURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[snap.AnalysisID]
	if !ok {
		job = &Job{
			AnalysisID: snap.AnalysisID,
			UserID:     userID,
			VideoURL:   videoURL,
			createdAt:  time.Now(),
		}
		m.jobs[snap.AnalysisID] = job
		m.userJobs[userID] = append(m.userJobs[userID], snap.AnalysisID)
	}
	if job.step.IsTerminal() {
		return
	}

	job.status = snap.Status
	job.step = snap.Step
	job.progress = snap.Progress
	job.commentsFetched = snap.CommentsFetched
	job.totalComments = snap.TotalComments
	if snap.VideoID != "" {
		job.videoID = snap.VideoID
	}
	if snap.VideoTitle != "" {
		job.videoTitle = snap.VideoTitle
	}
	if snap.VideoThumbnail != "" {
		job.videoThumbnail = snap.VideoThumbnail
	}
	if snap.Error != "" {
		job.errMsg = snap.Error
	}
	if snap.CompletedAt != nil {
		job.completedAt = snap.CompletedAt
	}

	m.publishLocked(job, job.snapshot())
}

// Subscribe 注册一个有界订阅通道
func (m *Manager) Subscribe(analysisID string) (chan Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[analysisID]
	if !ok {
		return nil, false
	}

	ch := make(chan Snapshot, subscriberCapacity)
	job.subscribers = append(job.subscribers, ch)
	return ch, true
}

// Unsubscribe 移除订阅通道，通道由调用方自行停止读取
func (m *Manager) Unsubscribe(analysisID string, ch chan Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[analysisID]
	if !ok {
		return
	}
	for i, sub := range job.subscribers {
		if sub == ch {
			job.subscribers = append(job.subscribers[:i], job.subscribers[i+1:]...)
			return
		}
	}
}

// Sweep 清理超过保留期的终态作业
func (m *Manager) Sweep(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, job := range m.jobs {
		if job.status != "completed" && job.status != "failed" {
			continue
		}
		if job.createdAt.After(cutoff) {
			continue
		}

		delete(m.jobs, id)
		ids := m.userJobs[job.UserID]
		for i, jid := range ids {
			if jid == id {
				m.userJobs[job.UserID] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		removed++
	}

	if removed > 0 {
		log.Printf("Swept %d expired analysis jobs", removed)
	}
	return removed
}

// StartSweepLoop 启动周期清理，ctx 取消后退出
func (m *Manager) StartSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(defaultRetention)
		}
	}
}
