package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"

	"github.com/lently/lently_go_server/internal/gemini"
	"github.com/lently/lently_go_server/internal/youtube"
)

// 情感类别的声明顺序，兜底概要的并列打破按此顺序取第一个
var sentimentOrder = []string{"positive", "negative", "neutral", "mixed"}

// 可行动类别，用于统计值得创作者跟进的评论数
var actionableCategories = []string{"question", "suggestion", "request", "feedback"}

type sentimentPayload struct {
	Comments []CommentSentiment `json:"comments"`
	Summary  SentimentSummary   `json:"summary"`
}

type classificationPayload struct {
	Comments []CommentClassification `json:"comments"`
}

// decodeStagePayload 对 LLM 输出做强类型解析。
// 结构不符直接按生成错误处理，绝不逐字段猜测修复。
func decodeStagePayload[P any](raw json.RawMessage) (P, error) {
	var payload P
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", gemini.ErrMalformedResponse, err)
	}
	return payload, nil
}

// runSentimentStage 分批做情感分析。
// 整体概要取自最后一个成功批次；最后一批失败时按各批次的
// 单条结果计数重算；全部批次失败则返回 100% 中性的默认概要。
func runSentimentStage(ctx context.Context, gen gemini.Generator,
	comments []youtube.Comment, video *youtube.VideoMetadata) *SentimentResult {

	results := RunBatched(ctx, comments, batchSize, func(ctx context.Context, batch []youtube.Comment) (sentimentPayload, error) {
		raw, err := gen.GenerateStructured(ctx, buildSentimentPrompt(video, batch), "")
		if err != nil {
			return sentimentPayload{}, err
		}
		return decodeStagePayload[sentimentPayload](raw)
	})

	var all []CommentSentiment
	for _, r := range results {
		if r.OK() {
			all = append(all, r.Payload.Comments...)
		}
	}

	summary := defaultSentimentSummary()
	if last, ok := lastSuccessful(results); ok {
		summary = last.Summary
		if summary.DominantSentiment == "" {
			summary.DominantSentiment = "neutral"
		}
	} else if len(all) > 0 {
		summary = recomputeSentimentSummary(all)
	}

	if failed := len(results) - successCount(results); failed > 0 {
		log.Printf("Sentiment stage finished with %d/%d batches failed", failed, len(results))
	}

	return &SentimentResult{Comments: all, Summary: summary}
}

func defaultSentimentSummary() SentimentSummary {
	return SentimentSummary{
		NeutralPercentage: 100,
		DominantSentiment: "neutral",
		TopEmotions:       []string{},
	}
}

// recomputeSentimentSummary 用单条结果简单计数重算概要
func recomputeSentimentSummary(all []CommentSentiment) SentimentSummary {
	counts := map[string]int{}
	for _, cs := range all {
		counts[cs.Sentiment]++
	}

	total := float64(len(all))
	dominant := sentimentOrder[0]
	for _, s := range sentimentOrder {
		if counts[s] > counts[dominant] {
			dominant = s
		}
	}

	return SentimentSummary{
		PositivePercentage: round1(float64(counts["positive"]) / total * 100),
		NegativePercentage: round1(float64(counts["negative"]) / total * 100),
		NeutralPercentage:  round1(float64(counts["neutral"]) / total * 100),
		MixedPercentage:    round1(float64(counts["mixed"]) / total * 100),
		DominantSentiment:  dominant,
		TopEmotions:        []string{},
	}
}

// runClassificationStage 分批分类。
// 概要完全由成功批次的单条结果计数得出，不信任模型自己的统计。
func runClassificationStage(ctx context.Context, gen gemini.Generator,
	comments []youtube.Comment, video *youtube.VideoMetadata) *ClassificationResult {

	results := RunBatched(ctx, comments, batchSize, func(ctx context.Context, batch []youtube.Comment) (classificationPayload, error) {
		raw, err := gen.GenerateStructured(ctx, buildClassificationPrompt(video, batch), "")
		if err != nil {
			return classificationPayload{}, err
		}
		return decodeStagePayload[classificationPayload](raw)
	})

	var all []CommentClassification
	counts := map[string]int{}
	for _, r := range results {
		if !r.OK() {
			continue
		}
		for _, cc := range r.Payload.Comments {
			all = append(all, cc)
			counts[cc.PrimaryCategory]++
		}
	}

	total := len(all)
	if total == 0 {
		total = 1
	}

	percentages := make(map[string]float64, len(counts))
	for cat, n := range counts {
		percentages[cat] = round1(float64(n) / float64(total) * 100)
	}

	actionable := 0
	for _, cat := range actionableCategories {
		actionable += counts[cat]
	}

	topCategory := "other"
	topCount := 0
	for cat, n := range counts {
		if n > topCount {
			topCategory = cat
			topCount = n
		}
	}

	return &ClassificationResult{
		Comments: all,
		Summary: ClassificationSummary{
			CategoryCounts:      counts,
			CategoryPercentages: percentages,
			TopCategory:         topCategory,
			ActionableCount:     actionable,
		},
	}
}

// runInsightsStage 单次调用提取主题和选题，只取有界采样控制提示词长度。
// 失败时返回空结果而不是中断流水线。
func runInsightsStage(ctx context.Context, gen gemini.Generator,
	comments []youtube.Comment, video *youtube.VideoMetadata) *InsightsResult {

	sample := comments
	if len(sample) > insightSampleCap {
		sample = sample[:insightSampleCap]
	}

	empty := &InsightsResult{
		KeyThemes:        []KeyTheme{},
		ContentIdeas:     []ContentIdea{},
		AudienceInsights: []AudienceInsight{},
	}

	raw, err := gen.GenerateStructured(ctx, buildInsightsPrompt(video, sample), "")
	if err != nil {
		log.Printf("Insights extraction failed: %v", err)
		return empty
	}

	payload, err := decodeStagePayload[InsightsResult](raw)
	if err != nil {
		log.Printf("Insights payload rejected: %v", err)
		return empty
	}

	if payload.KeyThemes == nil {
		payload.KeyThemes = []KeyTheme{}
	}
	if payload.ContentIdeas == nil {
		payload.ContentIdeas = []ContentIdea{}
	}
	if payload.AudienceInsights == nil {
		payload.AudienceInsights = []AudienceInsight{}
	}
	return &payload
}

type summaryPayload struct {
	ExecutiveSummary string                 `json:"executive_summary"`
	KeyMetrics       map[string]interface{} `json:"key_metrics"`
	KeyFindings      []string               `json:"key_findings"`
	PriorityActions  []string               `json:"priority_actions"`
}

// runSummaryStage 生成执行摘要，失败时用确定性的兜底文案
func runSummaryStage(ctx context.Context, gen gemini.Generator,
	video *youtube.VideoMetadata, commentsCount int,
	sentiment *SentimentResult, classification *ClassificationResult, insights *InsightsResult) *ExecutiveSummary {

	fallback := &ExecutiveSummary{
		SummaryText: fmt.Sprintf("Analyzed %d comments. Sentiment is %s.",
			commentsCount, sentiment.Summary.DominantSentiment),
		KeyMetrics: map[string]interface{}{
			"comments_analyzed":  commentsCount,
			"dominant_sentiment": sentiment.Summary.DominantSentiment,
		},
		PriorityActions: []string{},
	}

	prompt := buildSummaryPrompt(video, commentsCount, sentiment, classification, insights)

	raw, err := gen.GenerateStructured(ctx, prompt, "")
	if err != nil {
		log.Printf("Summary generation failed: %v", err)
		return fallback
	}

	payload, err := decodeStagePayload[summaryPayload](raw)
	if err != nil || payload.ExecutiveSummary == "" {
		log.Printf("Summary payload rejected: %v", err)
		return fallback
	}

	if payload.KeyMetrics == nil {
		payload.KeyMetrics = map[string]interface{}{}
	}
	if payload.PriorityActions == nil {
		payload.PriorityActions = []string{}
	}

	return &ExecutiveSummary{
		SummaryText:     payload.ExecutiveSummary,
		KeyMetrics:      payload.KeyMetrics,
		KeyFindings:     payload.KeyFindings,
		PriorityActions: payload.PriorityActions,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
