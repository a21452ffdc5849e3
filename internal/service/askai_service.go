package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lently/lently_go_server/internal/gemini"
	"github.com/lently/lently_go_server/internal/model"
	"github.com/lently/lently_go_server/internal/model/dto"
	"github.com/lently/lently_go_server/internal/pipeline"
	"github.com/lently/lently_go_server/internal/repository"
)

var (
	ErrNoAnalysisForVideo     = errors.New("该视频还没有完成的分析")
	ErrConversationNotFound   = errors.New("会话不存在")
	ErrConversationPermission = errors.New("无权访问此会话")
	ErrCommentNotFound        = errors.New("评论不在分析结果中")
)

const (
	// 会话最多保留 10 条消息（5 轮），提示词只带最近 6 条（3 轮）
	maxConversationMessages = 10
	maxHistoryInPrompt      = 6
	maxCommentsInPrompt     = 50
	maxSourceComments       = 5
	sourceTextRuneLimit     = 200

	answerFallback    = "I couldn't generate an answer. Please try rephrasing your question."
	defaultConfidence = 0.7
	sourceRelevance   = "Directly related to your question"

	defaultReplyTone      = "friendly"
	defaultReplyMaxLength = 280

	maxQuestionSuggestions = 6
)

// AskAIService 基于已完成的分析结果做对话式问答和回复草稿生成
type AskAIService struct {
	analysisRepo *repository.AnalysisRepository
	convRepo     *repository.ConversationRepository
	gen          gemini.Generator
}

func NewAskAIService(
	analysisRepo *repository.AnalysisRepository,
	convRepo *repository.ConversationRepository,
	gen gemini.Generator,
) *AskAIService {
	return &AskAIService{
		analysisRepo: analysisRepo,
		convRepo:     convRepo,
		gen:          gen,
	}
}

// Ask 就视频评论向 AI 提问。取该视频最近一次完成的分析作为上下文，
// 带上会话历史，并把答案连同提问追加进会话。
func (s *AskAIService) Ask(ctx context.Context, userID int64, req *dto.AskQuestionRequest) (*dto.AskQuestionResponse, error) {
	analysis, err := s.analysisRepo.GetLatestCompletedByVideoID(userID, req.VideoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoAnalysisForVideo
		}
		return nil, err
	}

	conversation, err := s.resolveConversation(userID, req)
	if err != nil {
		return nil, err
	}

	var messages []dto.ConversationMessage
	if len(conversation.MessagesJSON) > 0 {
		if err := json.Unmarshal([]byte(conversation.MessagesJSON), &messages); err != nil {
			return nil, err
		}
	}

	stored := decodeStoredComments(analysis)
	relevant := filterStoredComments(stored, req.ContextFilter)
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].LikeCount > relevant[j].LikeCount
	})
	if len(relevant) > maxCommentsInPrompt {
		relevant = relevant[:maxCommentsInPrompt]
	}

	prompt := s.buildAskPrompt(analysis, relevant, messages, req)

	raw, err := s.gen.GenerateStructured(ctx, prompt, "")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Answer            string   `json:"answer"`
		Confidence        float64  `json:"confidence"`
		Sources           []string `json:"sources"`
		KeyPoints         []string `json:"key_points"`
		FollowUpQuestions []string `json:"follow_up_questions"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", gemini.ErrMalformedResponse, err)
	}
	if payload.Answer == "" {
		payload.Answer = answerFallback
	}
	if payload.Confidence <= 0 {
		payload.Confidence = defaultConfidence
	}

	sources := buildSourceComments(relevant, payload.Sources)

	now := time.Now().UTC().Format(time.RFC3339)
	messages = append(messages,
		dto.ConversationMessage{Role: "user", Content: req.Question, Timestamp: now},
		dto.ConversationMessage{Role: "assistant", Content: payload.Answer, Timestamp: now},
	)
	if len(messages) > maxConversationMessages {
		messages = messages[len(messages)-maxConversationMessages:]
	}
	encoded, err := json.Marshal(messages)
	if err != nil {
		return nil, err
	}
	conversation.MessagesJSON = model.JSONField(encoded)
	conversation.QuestionCount++
	if err := s.convRepo.Save(conversation); err != nil {
		return nil, err
	}

	return &dto.AskQuestionResponse{
		Answer:            payload.Answer,
		Confidence:        payload.Confidence,
		Sources:           sources,
		KeyPoints:         payload.KeyPoints,
		FollowUpQuestions: payload.FollowUpQuestions,
		ConversationID:    conversation.ID,
	}, nil
}

func (s *AskAIService) resolveConversation(userID int64, req *dto.AskQuestionRequest) (*model.Conversation, error) {
	if req.ConversationID == "" {
		return &model.Conversation{
			ID:      uuid.NewString(),
			UserID:  userID,
			VideoID: req.VideoID,
		}, nil
	}

	conversation, err := s.convRepo.GetByID(req.ConversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, ErrConversationPermission
	}
	return conversation, nil
}

func (s *AskAIService) buildAskPrompt(
	analysis *model.Analysis,
	relevant []pipeline.StoredComment,
	history []dto.ConversationMessage,
	req *dto.AskQuestionRequest,
) string {
	type promptComment struct {
		ID        string `json:"id"`
		Author    string `json:"author"`
		Text      string `json:"text"`
		Likes     int    `json:"likes"`
		Sentiment string `json:"sentiment,omitempty"`
		Category  string `json:"category,omitempty"`
	}
	promptComments := make([]promptComment, len(relevant))
	for i, c := range relevant {
		promptComments[i] = promptComment{
			ID:        c.CommentID,
			Author:    c.Author,
			Text:      c.Text,
			Likes:     c.LikeCount,
			Sentiment: c.Sentiment,
			Category:  c.Category,
		}
	}
	commentsBlock, _ := json.MarshalIndent(promptComments, "", "  ")

	prompt := fmt.Sprintf(askQuestionPromptTemplate,
		analysis.VideoTitle,
		analysis.ChannelTitle,
		analysis.CommentsAnalyzed,
		sentimentSummaryLine(analysis),
		categorySummaryLine(analysis),
		string(commentsBlock),
		req.Question,
	)

	filter := req.ContextFilter
	if filter == "" {
		filter = "all"
	}
	if instruction, ok := askContextInstructions[filter]; ok {
		prompt = instruction + "\n\n" + prompt
	}

	if len(history) > 0 {
		recent := history
		if len(recent) > maxHistoryInPrompt {
			recent = recent[len(recent)-maxHistoryInPrompt:]
		}
		var b strings.Builder
		b.WriteString("## CONVERSATION SO FAR\n")
		for _, msg := range recent {
			if msg.Role == "user" {
				b.WriteString("Creator: " + msg.Content + "\n")
			} else {
				b.WriteString("Lently AI: " + msg.Content + "\n")
			}
		}
		prompt = strings.Replace(prompt, "## CREATOR'S QUESTION", b.String()+"\n## CREATOR'S QUESTION", 1)
	}

	return prompt
}

// GenerateReply 为分析结果里的某条评论生成 3 条回复草稿
func (s *AskAIService) GenerateReply(ctx context.Context, userID int64, req *dto.GenerateReplyRequest) (*dto.GenerateReplyResponse, error) {
	analysis, err := s.analysisRepo.GetByID(req.AnalysisID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	if analysis.UserID != userID {
		return nil, ErrAnalysisPermission
	}

	var comment *pipeline.StoredComment
	for _, c := range decodeStoredComments(analysis) {
		if c.CommentID == req.CommentID {
			found := c
			comment = &found
			break
		}
	}
	if comment == nil {
		return nil, ErrCommentNotFound
	}

	tone := req.Tone
	if tone == "" {
		tone = defaultReplyTone
	}
	maxLength := req.MaxLength
	if maxLength == 0 {
		maxLength = defaultReplyMaxLength
	}
	ctaInstruction := replyWithoutCTA
	if req.IncludeCTA {
		ctaInstruction = replyWithCTA
	}

	prompt := fmt.Sprintf(generateReplyPromptTemplate,
		analysis.VideoTitle,
		analysis.ChannelTitle,
		comment.Author,
		comment.Text,
		comment.LikeCount,
		replyToneDescriptions[tone],
		maxLength,
		ctaInstruction,
		tone, tone, tone,
	)

	raw, err := s.gen.GenerateStructured(ctx, prompt, "")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Replies []struct {
			Text   string `json:"text"`
			Tone   string `json:"tone"`
			HasCTA *bool  `json:"has_cta"`
		} `json:"replies"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", gemini.ErrMalformedResponse, err)
	}
	if len(payload.Replies) == 0 {
		return nil, fmt.Errorf("%w: no replies in response", gemini.ErrMalformedResponse)
	}

	replies := make([]dto.GeneratedReply, 0, len(payload.Replies))
	for _, r := range payload.Replies {
		if r.Text == "" {
			continue
		}
		reply := dto.GeneratedReply{
			Text:      r.Text,
			Tone:      tone,
			WordCount: len(strings.Fields(r.Text)),
			HasCTA:    req.IncludeCTA,
		}
		if r.Tone != "" {
			reply.Tone = r.Tone
		}
		if r.HasCTA != nil {
			reply.HasCTA = *r.HasCTA
		}
		replies = append(replies, reply)
	}
	if len(replies) == 0 {
		return nil, fmt.Errorf("%w: no usable replies in response", gemini.ErrMalformedResponse)
	}

	return &dto.GenerateReplyResponse{
		OriginalComment: comment.Text,
		Replies:         replies,
	}, nil
}

// SuggestQuestions 根据分析数据推荐值得问的问题。
// 纯规则生成，不调模型；没有完成的分析时返回通用问题。
func (s *AskAIService) SuggestQuestions(userID int64, videoID string) (*dto.QuestionSuggestionsResponse, error) {
	analysis, err := s.analysisRepo.GetLatestCompletedByVideoID(userID, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &dto.QuestionSuggestionsResponse{
				VideoID: videoID,
				Suggestions: []string{
					"What video should I make next based on these comments?",
					"What did viewers love most about this video?",
					"What are viewers asking about?",
					"Which comments should I reply to?",
				},
			}, nil
		}
		return nil, err
	}

	suggestions := []string{"What video should I make next based on these comments?"}

	questionCount := 0
	for _, c := range decodeStoredComments(analysis) {
		if c.IsQuestion {
			questionCount++
		}
	}
	if questionCount > 3 {
		suggestions = append(suggestions, fmt.Sprintf("What are the %d questions viewers asked?", questionCount))
	}

	var sentiment pipeline.SentimentResult
	if len(analysis.SentimentJSON) > 0 && json.Unmarshal([]byte(analysis.SentimentJSON), &sentiment) == nil {
		if sentiment.Summary.NegativePercentage > 15 {
			suggestions = append(suggestions, "What are viewers complaining about and how can I fix it?")
		}
		if sentiment.Summary.PositivePercentage > 40 {
			suggestions = append(suggestions, "What did viewers love most about this video?")
		}
	}

	var classification pipeline.ClassificationResult
	if len(analysis.ClassificationJSON) > 0 && json.Unmarshal([]byte(analysis.ClassificationJSON), &classification) == nil {
		counts := classification.Summary.CategoryCounts
		if counts["suggestion"]+counts["request"] > 3 {
			suggestions = append(suggestions, "What improvements are viewers suggesting?")
		}
	}

	var insights pipeline.InsightsResult
	if len(analysis.InsightsJSON) > 0 && json.Unmarshal([]byte(analysis.InsightsJSON), &insights) == nil {
		if len(insights.KeyThemes) > 0 && insights.KeyThemes[0].Theme != "" {
			suggestions = append(suggestions,
				fmt.Sprintf("Tell me more about what viewers said regarding '%s'", insights.KeyThemes[0].Theme))
		}
	}

	suggestions = append(suggestions, "Which comments should I reply to?")

	seen := make(map[string]struct{}, len(suggestions))
	deduped := suggestions[:0]
	for _, q := range suggestions {
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		deduped = append(deduped, q)
		if len(deduped) == maxQuestionSuggestions {
			break
		}
	}

	return &dto.QuestionSuggestionsResponse{VideoID: videoID, Suggestions: deduped}, nil
}

// ListConversations 按最近活跃返回会话列表
func (s *AskAIService) ListConversations(userID int64, limit int) ([]*dto.ConversationSummary, error) {
	conversations, err := s.convRepo.ListByUserID(userID, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]*dto.ConversationSummary, len(conversations))
	for i, conv := range conversations {
		summary := &dto.ConversationSummary{
			ConversationID: conv.ID,
			VideoID:        conv.VideoID,
			QuestionCount:  conv.QuestionCount,
			CreatedAt:      conv.CreatedAt.Format(time.RFC3339),
			UpdatedAt:      conv.UpdatedAt.Format(time.RFC3339),
		}
		var messages []dto.ConversationMessage
		if len(conv.MessagesJSON) > 0 && json.Unmarshal([]byte(conv.MessagesJSON), &messages) == nil && len(messages) > 0 {
			summary.LastMessage = truncateRunes(messages[len(messages)-1].Content, 100)
		}
		summaries[i] = summary
	}
	return summaries, nil
}

// GetConversation 获取会话完整历史
func (s *AskAIService) GetConversation(userID int64, conversationID string) (*dto.ConversationDetail, error) {
	conversation, err := s.convRepo.GetByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, ErrConversationPermission
	}

	var messages []dto.ConversationMessage
	if len(conversation.MessagesJSON) > 0 {
		if err := json.Unmarshal([]byte(conversation.MessagesJSON), &messages); err != nil {
			return nil, err
		}
	}

	return &dto.ConversationDetail{
		ConversationID: conversation.ID,
		VideoID:        conversation.VideoID,
		Messages:       messages,
		QuestionCount:  conversation.QuestionCount,
		CreatedAt:      conversation.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      conversation.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func decodeStoredComments(analysis *model.Analysis) []pipeline.StoredComment {
	if len(analysis.CommentsJSON) == 0 {
		return nil
	}
	var stored []pipeline.StoredComment
	if err := json.Unmarshal([]byte(analysis.CommentsJSON), &stored); err != nil {
		return nil
	}
	return stored
}

func filterStoredComments(comments []pipeline.StoredComment, filter string) []pipeline.StoredComment {
	keep := func(c pipeline.StoredComment) bool {
		switch filter {
		case "positive":
			return c.Sentiment == "positive"
		case "negative":
			return c.Sentiment == "negative"
		case "questions":
			return c.IsQuestion
		case "feedback":
			return c.IsFeedback
		default:
			return true
		}
	}

	filtered := make([]pipeline.StoredComment, 0, len(comments))
	for _, c := range comments {
		if keep(c) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// buildSourceComments 挑选答案的评论出处。模型点名的评论优先；
// 模型给的出处太少时直接取热度最高的几条
func buildSourceComments(relevant []pipeline.StoredComment, sourceIDs []string) []dto.SourceComment {
	cited := make(map[string]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		cited[id] = struct{}{}
	}

	sources := make([]dto.SourceComment, 0, maxSourceComments)
	for _, c := range relevant {
		if len(sources) == maxSourceComments {
			break
		}
		_, isCited := cited[c.CommentID]
		if !isCited && len(sourceIDs) >= 3 {
			continue
		}
		sources = append(sources, dto.SourceComment{
			CommentID: c.CommentID,
			Author:    c.Author,
			Text:      truncateRunes(c.Text, sourceTextRuneLimit),
			Relevance: sourceRelevance,
		})
	}
	return sources
}

func sentimentSummaryLine(analysis *model.Analysis) string {
	var result pipeline.SentimentResult
	if len(analysis.SentimentJSON) == 0 || json.Unmarshal([]byte(analysis.SentimentJSON), &result) != nil {
		return "unknown"
	}
	if result.Summary.DominantSentiment == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s overall (%.0f%% positive, %.0f%% negative)",
		result.Summary.DominantSentiment,
		result.Summary.PositivePercentage,
		result.Summary.NegativePercentage,
	)
}

func categorySummaryLine(analysis *model.Analysis) string {
	var result pipeline.ClassificationResult
	if len(analysis.ClassificationJSON) == 0 || json.Unmarshal([]byte(analysis.ClassificationJSON), &result) != nil {
		return "unknown"
	}
	if len(result.Summary.CategoryCounts) == 0 {
		return "unknown"
	}

	type categoryCount struct {
		name  string
		count int
	}
	counts := make([]categoryCount, 0, len(result.Summary.CategoryCounts))
	for name, count := range result.Summary.CategoryCounts {
		counts = append(counts, categoryCount{name, count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})
	if len(counts) > 3 {
		counts = counts[:3]
	}

	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s: %d", c.name, c.count)
	}
	return strings.Join(parts, ", ")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
