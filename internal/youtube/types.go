package youtube

// VideoMetadata 视频元数据
type VideoMetadata struct {
	VideoID      string   `json:"video_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ChannelTitle string   `json:"channel_title"`
	ChannelID    string   `json:"channel_id"`
	ThumbnailURL string   `json:"thumbnail_url"`
	PublishedAt  string   `json:"published_at"`
	ViewCount    int64    `json:"view_count"`
	LikeCount    int64    `json:"like_count"`
	CommentCount int      `json:"comment_count"`
	Tags         []string `json:"tags,omitempty"`
}

// RawComment API 返回的未经筛选的评论
type RawComment struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	Text        string `json:"text"`
	LikeCount   int    `json:"like_count"`
	ReplyCount  int    `json:"reply_count"`
	PublishedAt string `json:"published_at"`
}

// Comment 经过筛选打分后的评论，创建后不可变
type Comment struct {
	ID              string  `json:"id"`
	Author          string  `json:"author"`
	Text            string  `json:"text"`
	LikeCount       int     `json:"like_count"`
	ReplyCount      int     `json:"reply_count"`
	WordCount       int     `json:"word_count"`
	IsQuestion      bool    `json:"is_question"`
	IsFeedback      bool    `json:"is_feedback"`
	EngagementScore float64 `json:"engagement_score"`
	PublishedAt     string  `json:"published_at,omitempty"`
}

// RankedCommentSet 按互动分降序排列的评论集合，每次分析只生成一次
type RankedCommentSet struct {
	Comments []Comment `json:"comments"`
	// QualityScore 0-100，选中评论互动分均值的归一化
	QualityScore float64 `json:"quality_score"`
}

// FetchRequest 抓取评论的请求参数
type FetchRequest struct {
	VideoURLOrID string `json:"video_url_or_id"`
	MaxComments  int    `json:"max_comments"`
	Order        string `json:"order"`
	MinLikes     int    `json:"min_likes"`
	ExcludeSpam  bool   `json:"exclude_spam"`
}

// FetchResult 抓取结果：视频元数据 + 排序后的评论
type FetchResult struct {
	Video          VideoMetadata    `json:"video"`
	Ranked         RankedCommentSet `json:"ranked"`
	TotalFetched   int              `json:"total_fetched"`
	TotalAvailable int              `json:"total_available"`
}
