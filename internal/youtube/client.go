package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lently/lently_go_server/config"
)

const (
	defaultBaseURL        = "https://www.googleapis.com/youtube/v3"
	maxCommentsPerRequest = 100
	// 多抓 3 倍再择优，但封顶避免过量消耗 API 配额
	oversampleFactor = 3
	oversampleCap    = 5000
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
}

var bareVideoID = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Client YouTube Data API v3 客户端
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.YouTubeConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ExtractVideoID 从各种 YouTube 链接格式中提取视频 ID
func ExtractVideoID(urlOrID string) (string, error) {
	urlOrID = strings.TrimSpace(urlOrID)

	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(urlOrID); m != nil {
			return m[1], nil
		}
	}

	if bareVideoID.MatchString(urlOrID) {
		return urlOrID, nil
	}

	return "", fmt.Errorf("%w: %s", ErrInvalidVideoID, urlOrID)
}

// GetVideoMetadata 获取视频元数据
func (c *Client) GetVideoMetadata(ctx context.Context, videoID string) (*VideoMetadata, error) {
	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("id", videoID)

	var resp videoListResponse
	if err := c.get(ctx, "/videos", params, &resp); err != nil {
		return nil, err
	}

	if len(resp.Items) == 0 {
		return nil, ErrVideoNotFound
	}

	item := resp.Items[0]
	thumbnail := item.Snippet.Thumbnails.High.URL
	if thumbnail == "" {
		thumbnail = item.Snippet.Thumbnails.Default.URL
	}

	viewCount, _ := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
	likeCount, _ := strconv.ParseInt(item.Statistics.LikeCount, 10, 64)
	commentCount, _ := strconv.Atoi(item.Statistics.CommentCount)

	return &VideoMetadata{
		VideoID:      videoID,
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		ChannelTitle: item.Snippet.ChannelTitle,
		ChannelID:    item.Snippet.ChannelID,
		ThumbnailURL: thumbnail,
		PublishedAt:  item.Snippet.PublishedAt,
		ViewCount:    viewCount,
		LikeCount:    likeCount,
		CommentCount: commentCount,
		Tags:         item.Snippet.Tags,
	}, nil
}

// FetchComments 抓取并择优筛选评论。
// 先按相关性抓取超量评论，再交给 Rank 做垃圾过滤、打分和截断。
func (c *Client) FetchComments(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	videoID, err := ExtractVideoID(req.VideoURLOrID)
	if err != nil {
		return nil, err
	}

	video, err := c.GetVideoMetadata(ctx, videoID)
	if err != nil {
		return nil, err
	}

	order := req.Order
	if order == "" {
		order = "relevance"
	}

	fetchTarget := req.MaxComments * oversampleFactor
	if fetchTarget > oversampleCap {
		fetchTarget = oversampleCap
	}

	var raw []RawComment
	pageToken := ""

	for len(raw) < fetchTarget {
		pageSize := fetchTarget - len(raw)
		if pageSize > maxCommentsPerRequest {
			pageSize = maxCommentsPerRequest
		}

		params := url.Values{}
		params.Set("part", "snippet")
		params.Set("videoId", videoID)
		params.Set("order", order)
		params.Set("maxResults", strconv.Itoa(pageSize))
		params.Set("textFormat", "plainText")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var resp commentThreadsResponse
		if err := c.get(ctx, "/commentThreads", params, &resp); err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			snippet := item.Snippet.TopLevelComment.Snippet
			raw = append(raw, RawComment{
				ID:          item.ID,
				Author:      snippet.AuthorDisplayName,
				Text:        CleanHTML(snippet.TextDisplay),
				LikeCount:   snippet.LikeCount,
				ReplyCount:  item.Snippet.TotalReplyCount,
				PublishedAt: snippet.PublishedAt,
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	ranked := Rank(raw, req.MaxComments, req.MinLikes, req.ExcludeSpam)

	log.Printf("Fetched %d high-value comments for video %s (filtered from %d raw, quality score: %.1f)",
		len(ranked.Comments), videoID, len(raw), ranked.QualityScore)

	return &FetchResult{
		Video:          *video,
		Ranked:         ranked,
		TotalFetched:   len(ranked.Comments),
		TotalAvailable: video.CommentCount,
	}, nil
}

// CleanHTML 去掉 HTML 标签并还原实体
func CleanHTML(text string) string {
	clean := htmlTagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(html.UnescapeString(clean))
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("key", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("youtube request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return c.mapError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// mapError 把 HTTP 错误映射到评论源错误分类
func (c *Client) mapError(status int, body []byte) error {
	bodyStr := string(body)

	switch status {
	case http.StatusNotFound:
		return ErrVideoNotFound
	case http.StatusForbidden:
		if strings.Contains(bodyStr, "commentsDisabled") {
			return ErrCommentsDisabled
		}
		if strings.Contains(bodyStr, "quotaExceeded") {
			return ErrQuotaExceeded
		}
	case http.StatusBadRequest:
		if strings.Contains(bodyStr, "invalid") {
			return ErrInvalidVideoID
		}
	}

	return &APIError{StatusCode: status, Message: truncate(bodyStr, 200)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// API 响应结构，仅保留用到的字段

type videoListResponse struct {
	Items []struct {
		Snippet struct {
			Title        string   `json:"title"`
			Description  string   `json:"description"`
			ChannelID    string   `json:"channelId"`
			ChannelTitle string   `json:"channelTitle"`
			PublishedAt  string   `json:"publishedAt"`
			Tags         []string `json:"tags"`
			Thumbnails   struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type commentThreadsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID      string `json:"id"`
		Snippet struct {
			TotalReplyCount int `json:"totalReplyCount"`
			TopLevelComment struct {
				Snippet struct {
					AuthorDisplayName string `json:"authorDisplayName"`
					TextDisplay       string `json:"textDisplay"`
					LikeCount         int    `json:"likeCount"`
					PublishedAt       string `json:"publishedAt"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}
