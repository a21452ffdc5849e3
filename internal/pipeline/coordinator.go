package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lently/lently_go_server/internal/gemini"
	"github.com/lently/lently_go_server/internal/insight"
	"github.com/lently/lently_go_server/internal/progress"
	"github.com/lently/lently_go_server/internal/youtube"
)

// ErrNotEnoughComments 业务规则失败，评论不足不值得分析
var ErrNotEnoughComments = errors.New("Not enough comments to analyze (minimum 5 required)")

// CommentSource 评论来源，生产环境是带缓存的 YouTube 客户端
type CommentSource interface {
	FetchComments(ctx context.Context, req *youtube.FetchRequest) (*youtube.FetchResult, error)
}

// Coordinator 驱动一次完整分析的状态机。
// 所有依赖在构造时注入，Run 的公开契约是永不 panic 也永不返回 error：
// 调用方总能拿到一个 COMPLETED 或 FAILED 的终态 Result。
type Coordinator struct {
	source  CommentSource
	gen     gemini.Generator
	tracker *progress.Manager
}

func NewCoordinator(source CommentSource, gen gemini.Generator, tracker *progress.Manager) *Coordinator {
	return &Coordinator{source: source, gen: gen, tracker: tracker}
}

// Run 执行流水线。analysisID 必须是 tracker 里已创建的作业 id。
func (c *Coordinator) Run(ctx context.Context, analysisID string, req *Request) (result *Result) {
	createdAt := time.Now()

	// 意外错误收在协调器边界，转成 FAILED 结果
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] Pipeline panicked: %v", analysisID, r)
			result = c.fail(analysisID, createdAt, nil, fmt.Sprintf("internal error: %v", r))
		}
	}()

	c.tracker.UpdateStep(analysisID, progress.StepConnecting, nil)
	c.tracker.UpdateStep(analysisID, progress.StepFetchingVideo, nil)

	c.tracker.UpdateStep(analysisID, progress.StepFetchingComments, nil)
	fetch, err := c.source.FetchComments(ctx, &youtube.FetchRequest{
		VideoURLOrID: req.VideoURLOrID,
		MaxComments:  req.MaxComments,
		Order:        "relevance",
		ExcludeSpam:  true,
	})
	if err != nil {
		return c.fail(analysisID, createdAt, nil, sourceErrorMessage(err))
	}

	video := &fetch.Video
	comments := fetch.Ranked.Comments
	fetched := len(comments)

	c.tracker.UpdateStep(analysisID, progress.StepFetchingComments, &progress.Patch{
		VideoID:         &video.VideoID,
		VideoTitle:      &video.Title,
		VideoThumbnail:  &video.ThumbnailURL,
		CommentsFetched: &fetched,
		TotalComments:   &video.CommentCount,
	})

	log.Printf("[%s] Fetched %d comments for video %s", analysisID, fetched, video.VideoID)

	if fetched < minCommentsRequired {
		return c.fail(analysisID, createdAt, video, ErrNotEnoughComments.Error())
	}

	mined := insight.Preprocess(comments)

	var sentiment *SentimentResult
	var classification *ClassificationResult
	var insights *InsightsResult
	var summary *ExecutiveSummary

	if req.IncludeSentiment {
		c.tracker.UpdateStep(analysisID, progress.StepAnalyzingSentiment, nil)
		log.Printf("[%s] Analyzing sentiment...", analysisID)
		sentiment = runSentimentStage(ctx, c.gen, comments, video)
	}

	if req.IncludeClassification {
		c.tracker.UpdateStep(analysisID, progress.StepClassifying, nil)
		log.Printf("[%s] Classifying comments...", analysisID)
		classification = runClassificationStage(ctx, c.gen, comments, video)
	}

	if req.IncludeInsights {
		c.tracker.UpdateStep(analysisID, progress.StepExtractingInsights, nil)
		log.Printf("[%s] Extracting insights...", analysisID)
		insights = runInsightsStage(ctx, c.gen, comments, video)
	}

	// 摘要依赖情感和分类两者的数据，任一未跑则静默跳过
	if req.IncludeSummary && sentiment != nil && classification != nil {
		c.tracker.UpdateStep(analysisID, progress.StepGeneratingSummary, nil)
		log.Printf("[%s] Generating summary...", analysisID)
		summary = runSummaryStage(ctx, c.gen, video, fetched, sentiment, classification, insights)
	}

	completedAt := time.Now()
	log.Printf("[%s] Analysis complete", analysisID)

	return &Result{
		AnalysisID:       analysisID,
		Video:            videoInfo(video),
		Status:           StatusCompleted,
		CreatedAt:        createdAt,
		CompletedAt:      &completedAt,
		CommentsAnalyzed: fetched,
		QualityScore:     fetch.Ranked.QualityScore,
		Sentiment:        sentiment,
		Classification:   classification,
		Insights:         insights,
		ExecutiveSummary: summary,
		MinedInsights:    mined,
		StoredComments:   buildStoredComments(comments, sentiment, classification),
	}
}

func (c *Coordinator) fail(analysisID string, createdAt time.Time, video *youtube.VideoMetadata, message string) *Result {
	log.Printf("[%s] Analysis failed: %s", analysisID, message)

	info := VideoInfo{VideoID: "unknown", Title: "Unknown", ChannelTitle: "Unknown"}
	if video != nil {
		info = videoInfo(video)
	}

	return &Result{
		AnalysisID: analysisID,
		Video:      info,
		Status:     StatusFailed,
		CreatedAt:  createdAt,
		Error:      message,
	}
}

// sourceErrorMessage 评论源错误转成面向用户的文案
func sourceErrorMessage(err error) string {
	switch {
	case errors.Is(err, youtube.ErrVideoNotFound):
		return "Video not found or is private"
	case errors.Is(err, youtube.ErrCommentsDisabled):
		return "Comments are disabled for this video"
	case errors.Is(err, youtube.ErrQuotaExceeded):
		return "YouTube API quota exceeded, please try again later"
	case errors.Is(err, youtube.ErrInvalidVideoID):
		return "Invalid video URL or ID"
	default:
		return err.Error()
	}
}

func videoInfo(v *youtube.VideoMetadata) VideoInfo {
	return VideoInfo{
		VideoID:      v.VideoID,
		Title:        v.Title,
		ChannelTitle: v.ChannelTitle,
		ViewCount:    v.ViewCount,
		CommentCount: v.CommentCount,
		ThumbnailURL: v.ThumbnailURL,
	}
}

// storedCommentTextLimit 入库评论文本的截断长度
const storedCommentTextLimit = 1000

// buildStoredComments 把情感和分类按评论 id 回填到每条评论上
func buildStoredComments(comments []youtube.Comment,
	sentiment *SentimentResult, classification *ClassificationResult) []StoredComment {

	sentimentByID := map[string]string{}
	if sentiment != nil {
		for _, cs := range sentiment.Comments {
			sentimentByID[cs.CommentID] = cs.Sentiment
		}
	}

	categoryByID := map[string]string{}
	if classification != nil {
		for _, cc := range classification.Comments {
			categoryByID[cc.CommentID] = cc.PrimaryCategory
		}
	}

	stored := make([]StoredComment, 0, len(comments))
	for _, c := range comments {
		text := c.Text
		if runes := []rune(text); len(runes) > storedCommentTextLimit {
			text = string(runes[:storedCommentTextLimit])
		}
		stored = append(stored, StoredComment{
			CommentID:  c.ID,
			Author:     c.Author,
			Text:       text,
			LikeCount:  c.LikeCount,
			ReplyCount: c.ReplyCount,
			Sentiment:  sentimentByID[c.ID],
			Category:   categoryByID[c.ID],
			IsQuestion: c.IsQuestion,
			IsFeedback: c.IsFeedback,
		})
	}
	return stored
}
