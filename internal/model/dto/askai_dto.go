package dto

// AskQuestionRequest 就某个视频的评论提问
type AskQuestionRequest struct {
	VideoID        string `json:"video_id" binding:"required,max=20"`
	Question       string `json:"question" binding:"required,min=3,max=500"`
	ConversationID string `json:"conversation_id,omitempty" binding:"omitempty,max=64"`
	ContextFilter  string `json:"context_filter,omitempty" binding:"omitempty,oneof=all positive negative questions feedback"`
}

// SourceComment 回答引用的评论出处
type SourceComment struct {
	CommentID string `json:"comment_id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Relevance string `json:"relevance"`
}

// AskQuestionResponse AI 的回答
type AskQuestionResponse struct {
	Answer            string          `json:"answer"`
	Confidence        float64         `json:"confidence"`
	Sources           []SourceComment `json:"sources"`
	KeyPoints         []string        `json:"key_points"`
	FollowUpQuestions []string        `json:"follow_up_questions"`
	ConversationID    string          `json:"conversation_id"`
}

// ConversationMessage 会话中的一条消息
type ConversationMessage struct {
	Role      string `json:"role"` // user / assistant
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ConversationSummary 会话列表项
type ConversationSummary struct {
	ConversationID string `json:"conversation_id"`
	VideoID        string `json:"video_id"`
	QuestionCount  int    `json:"question_count"`
	LastMessage    string `json:"last_message,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// ConversationDetail 会话完整历史
type ConversationDetail struct {
	ConversationID string                `json:"conversation_id"`
	VideoID        string                `json:"video_id"`
	Messages       []ConversationMessage `json:"messages"`
	QuestionCount  int                   `json:"question_count"`
	CreatedAt      string                `json:"created_at"`
	UpdatedAt      string                `json:"updated_at"`
}

// QuestionSuggestionsResponse 针对视频的推荐提问
type QuestionSuggestionsResponse struct {
	VideoID     string   `json:"video_id"`
	Suggestions []string `json:"suggestions"`
}

// GenerateReplyRequest 为分析结果里的某条评论生成回复草稿
type GenerateReplyRequest struct {
	AnalysisID int64  `json:"analysis_id" binding:"required"`
	CommentID  string `json:"comment_id" binding:"required,max=64"`
	Tone       string `json:"tone,omitempty" binding:"omitempty,oneof=professional friendly casual grateful helpful"`
	IncludeCTA bool   `json:"include_cta,omitempty"`
	MaxLength  int    `json:"max_length,omitempty" binding:"omitempty,min=50,max=500"`
}

// GeneratedReply 一条回复草稿
type GeneratedReply struct {
	Text      string `json:"text"`
	Tone      string `json:"tone"`
	WordCount int    `json:"word_count"`
	HasCTA    bool   `json:"has_cta"`
}

// GenerateReplyResponse 回复草稿集合
type GenerateReplyResponse struct {
	OriginalComment string           `json:"original_comment"`
	Replies         []GeneratedReply `json:"replies"`
}
