// Package insight 从已排序的评论集合中做确定性的启发式挖掘，
// 不依赖任何 LLM 调用：低价值过滤、@提及匿名化、问题聚类、
// 铁杆粉丝识别、内容请求挖掘。
package insight

import (
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/lently/lently_go_server/internal/youtube"
)

const (
	// 低于该词数的评论视为低价值
	minWordCount = 5

	topGroupLimit   = 10
	topFanLimit     = 10
	topRequestLimit = 10

	keywordsPerComment = 5
	groupKeySize       = 3
	dedupeKeyLength    = 50
)

// 低价值评论模式，与 youtube 包的垃圾过滤列表有重叠但独立维护
var lowValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^first[!.\s]*$`),
	regexp.MustCompile(`(?i)^(nice|cool|wow|lol|great)[!.\s]*$`),
	regexp.MustCompile(`(?i)sub4sub`),
	regexp.MustCompile(`(?i)check out my`),
	regexp.MustCompile(`(?i)who'?s watching`),
	regexp.MustCompile(`(?i)like if you`),
}

var mentionPattern = regexp.MustCompile(`@[\w.\-]+`)

// 内容请求模式，按顺序匹配，第一个命中的生效
var requestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)make a video (?:about|on) (.+)`),
	regexp.MustCompile(`(?i)(?:a )?tutorial (?:about|on) (.+)`),
	regexp.MustCompile(`(?i)i(?:'d| would) love to see (.+)`),
	regexp.MustCompile(`(?i)next video should be (?:about |on )?(.+)`),
	regexp.MustCompile(`(?i)can you (?:cover|explain|do a video on) (.+)`),
	regexp.MustCompile(`(?i)please (?:cover|make|do) (?:a video (?:about|on) )?(.+)`),
}

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "what": {},
	"when": {}, "where": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"your": {}, "about": {}, "there": {}, "their": {}, "they": {}, "been": {},
	"were": {}, "does": {}, "very": {}, "just": {}, "like": {}, "make": {},
	"video": {}, "videos": {}, "please": {}, "thanks": {}, "thank": {},
	"really": {}, "much": {}, "more": {}, "some": {}, "можно": {},
}

// QuestionGroup 相似提问的聚类
type QuestionGroup struct {
	Question string   `json:"question"`
	Count    int      `json:"count"`
	Examples []string `json:"examples"`
	// Demand 等级: low / medium / high
	Demand string `json:"demand"`
}

// Superfan 高互动评论作者
type Superfan struct {
	Author          string `json:"author"`
	EngagementScore int    `json:"engagement_score"`
	CommentCount    int    `json:"comment_count"`
	TotalLikes      int    `json:"total_likes"`
	Reason          string `json:"reason"`
}

// ContentRequest 观众点播的内容主题
type ContentRequest struct {
	Topic          string `json:"topic"`
	Count          int    `json:"count"`
	ExampleComment string `json:"example_comment"`
	Priority       string `json:"priority"`
	SuggestedTitle string `json:"suggested_title"`
}

// Summary 启发式挖掘的聚合结果，作为下游分析的 LLM 无关上下文
type Summary struct {
	ValuableComments []youtube.Comment `json:"valuable_comments"`
	QuestionGroups   []QuestionGroup   `json:"question_groups"`
	Superfans        []Superfan        `json:"superfans"`
	ContentRequests  []ContentRequest  `json:"content_requests"`
}

// Preprocess 运行全部启发式挖掘。四个子操作相互独立，顺序无关。
func Preprocess(comments []youtube.Comment) *Summary {
	valuable := FilterLowValue(comments)
	return &Summary{
		ValuableComments: valuable,
		QuestionGroups:   GroupQuestions(valuable),
		Superfans:        IdentifySuperfans(valuable),
		ContentRequests:  ExtractContentRequests(valuable),
	}
}

// FilterLowValue 丢弃词数不足或命中低价值模式的评论
func FilterLowValue(comments []youtube.Comment) []youtube.Comment {
	kept := make([]youtube.Comment, 0, len(comments))
	removed := 0

	for _, c := range comments {
		if c.WordCount < minWordCount || matchesLowValue(c.Text) {
			removed++
			continue
		}
		kept = append(kept, c)
	}

	if removed > 0 {
		log.Printf("Filtered %d low-value comments, %d remaining", removed, len(kept))
	}
	return kept
}

func matchesLowValue(text string) bool {
	for _, p := range lowValuePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// AnonymizeMentions 把 @handle 形式的提及替换为统一称呼，其余内容不变
func AnonymizeMentions(text string) string {
	return mentionPattern.ReplaceAllString(text, "a viewer")
}

// GroupQuestions 对提问类评论做关键词聚类。
// 共享前三关键词（按集合比较，与顺序无关）的评论归为一组。
func GroupQuestions(comments []youtube.Comment) []QuestionGroup {
	type group struct {
		representative string
		count          int
		examples       []string
	}

	groups := make(map[string]*group)
	order := make([]string, 0)

	for _, c := range comments {
		if !c.IsQuestion {
			continue
		}

		keywords := extractKeywords(c.Text, keywordsPerComment)
		if len(keywords) < groupKeySize {
			continue
		}

		key := groupKey(keywords[:groupKeySize])
		g, ok := groups[key]
		if !ok {
			g = &group{representative: c.Text}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		if len(g.examples) < 3 {
			g.examples = append(g.examples, c.Text)
		}
	}

	result := make([]QuestionGroup, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		if g.count < 2 {
			continue
		}
		result = append(result, QuestionGroup{
			Question: g.representative,
			Count:    g.count,
			Examples: g.examples,
			Demand:   demandTier(g.count),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})

	if len(result) > topGroupLimit {
		result = result[:topGroupLimit]
	}
	return result
}

func demandTier(count int) string {
	switch {
	case count >= 10:
		return "high"
	case count >= 5:
		return "medium"
	default:
		return "low"
	}
}

// extractKeywords 提取长度大于 3 的非停用词，最多 limit 个
func extractKeywords(text string, limit int) []string {
	words := strings.Fields(strings.ToLower(text))
	keywords := make([]string, 0, limit)

	for _, w := range words {
		w = strings.Trim(w, "?!.,:;\"'()[]")
		if len(w) <= 3 {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == limit {
			break
		}
	}
	return keywords
}

// groupKey 对关键词排序后拼接，保证与出现顺序无关
func groupKey(keywords []string) string {
	sorted := make([]string, len(keywords))
	copy(sorted, keywords)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// IdentifySuperfans 按作者聚合互动数据，识别铁杆粉丝
func IdentifySuperfans(comments []youtube.Comment) []Superfan {
	type authorStats struct {
		commentCount int
		totalWords   int
		totalLikes   int
		anyQuestion  bool
		anyFeedback  bool
	}

	stats := make(map[string]*authorStats)
	order := make([]string, 0)

	for _, c := range comments {
		author := strings.TrimSpace(c.Author)
		if author == "" || author == "a viewer" || strings.EqualFold(author, "unknown") {
			continue
		}
		s, ok := stats[author]
		if !ok {
			s = &authorStats{}
			stats[author] = s
			order = append(order, author)
		}
		s.commentCount++
		s.totalWords += c.WordCount
		s.totalLikes += c.LikeCount
		s.anyQuestion = s.anyQuestion || c.IsQuestion
		s.anyFeedback = s.anyFeedback || c.IsFeedback
	}

	fans := make([]Superfan, 0)
	for _, author := range order {
		s := stats[author]
		if s.commentCount < 2 {
			continue
		}

		words := s.totalWords
		if words > 500 {
			words = 500
		}
		score := s.commentCount*10 + words/10 + s.totalLikes*2
		if s.anyQuestion {
			score += 20
		}
		if s.anyFeedback {
			score += 20
		}

		fans = append(fans, Superfan{
			Author:          author,
			EngagementScore: score,
			CommentCount:    s.commentCount,
			TotalLikes:      s.totalLikes,
			Reason:          fanReason(s.commentCount, s.totalLikes, s.anyQuestion, s.anyFeedback),
		})
	}

	sort.SliceStable(fans, func(i, j int) bool {
		return fans[i].EngagementScore > fans[j].EngagementScore
	})

	if len(fans) > topFanLimit {
		fans = fans[:topFanLimit]
	}
	return fans
}

func fanReason(commentCount, totalLikes int, anyQuestion, anyFeedback bool) string {
	reasons := make([]string, 0, 4)
	if commentCount >= 3 {
		reasons = append(reasons, "frequent commenter")
	}
	if totalLikes >= 10 {
		reasons = append(reasons, "high engagement")
	}
	if anyQuestion {
		reasons = append(reasons, "asks questions")
	}
	if anyFeedback {
		reasons = append(reasons, "gives feedback")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "active viewer")
	}
	return strings.Join(reasons, ", ")
}

// ExtractContentRequests 用固定模式挖掘观众点播的内容主题
func ExtractContentRequests(comments []youtube.Comment) []ContentRequest {
	type request struct {
		topic   string
		count   int
		example string
	}

	requests := make(map[string]*request)
	order := make([]string, 0)

	for _, c := range comments {
		topic, ok := matchRequest(c.Text)
		if !ok {
			continue
		}

		key := strings.ToLower(topic)
		if runes := []rune(key); len(runes) > dedupeKeyLength {
			key = string(runes[:dedupeKeyLength])
		}

		r, exists := requests[key]
		if !exists {
			r = &request{topic: topic, example: c.Text}
			requests[key] = r
			order = append(order, key)
		}
		r.count++
	}

	result := make([]ContentRequest, 0, len(requests))
	for _, key := range order {
		r := requests[key]
		result = append(result, ContentRequest{
			Topic:          r.topic,
			Count:          r.count,
			ExampleComment: r.example,
			Priority:       priorityTier(r.count),
			SuggestedTitle: fmt.Sprintf("Complete Guide to %s", capitalize(r.topic)),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})

	if len(result) > topRequestLimit {
		result = result[:topRequestLimit]
	}
	return result
}

func priorityTier(count int) string {
	switch {
	case count >= 5:
		return "high"
	case count >= 3:
		return "medium"
	default:
		return "low"
	}
}

func matchRequest(text string) (string, bool) {
	for _, p := range requestPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		topic := normalizeTopic(m[1])
		if topic != "" {
			return topic, true
		}
	}
	return "", false
}

// normalizeTopic 去掉尾部标点并检查长度边界（5-100 字符）
func normalizeTopic(topic string) string {
	topic = strings.TrimSpace(topic)
	topic = strings.TrimRight(topic, "?!.,:;")
	topic = strings.TrimSpace(topic)

	if len(topic) < 5 || len(topic) > 100 {
		return ""
	}
	return topic
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
