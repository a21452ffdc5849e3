package youtube

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// 评论质量筛选常量，均为固定设计值而非配置
const (
	minCommentLength = 10
	maxCommentLength = 2000
	maxEmojiCount    = 10
	upperRatioLimit  = 0.7
)

// 垃圾评论关键词，命中即丢弃
var spamIndicators = []string{
	"check out my channel",
	"sub4sub",
	"subscribe to me",
	"first!",
	"who's watching in",
	"like if you",
	"👇 check",
}

var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\?`),
	regexp.MustCompile(`\bhow\b`),
	regexp.MustCompile(`\bwhat\b`),
	regexp.MustCompile(`\bwhy\b`),
	regexp.MustCompile(`\bwhen\b`),
	regexp.MustCompile(`\bwhere\b`),
	regexp.MustCompile(`\bcan you\b`),
	regexp.MustCompile(`\bcould you\b`),
	regexp.MustCompile(`\bwould you\b`),
	regexp.MustCompile(`\bdo you\b`),
	regexp.MustCompile(`\bis there\b`),
}

var feedbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bshould\b`),
	regexp.MustCompile(`\bcould\b`),
	regexp.MustCompile(`\bwould be\b`),
	regexp.MustCompile(`\bsuggestion\b`),
	regexp.MustCompile(`\bidea\b`),
	regexp.MustCompile(`\btry\b.*\bnext\b`),
	regexp.MustCompile(`\bmake.*video\b`),
	regexp.MustCompile(`\bplease\b.*\bmake\b`),
	regexp.MustCompile(`\bloved\b`),
	regexp.MustCompile(`\bhated\b`),
	regexp.MustCompile(`\bbest\b`),
	regexp.MustCompile(`\bworst\b`),
	regexp.MustCompile(`\bimprove\b`),
	regexp.MustCompile(`\bfeedback\b`),
}

// Rank 对原始评论做垃圾过滤、互动打分和择优截断。
// 纯函数，不发起任何网络调用。
func Rank(raw []RawComment, maxResults, minLikes int, excludeSpam bool) RankedCommentSet {
	if maxResults <= 0 {
		return RankedCommentSet{}
	}

	scored := make([]Comment, 0, len(raw))
	for _, rc := range raw {
		if excludeSpam && IsSpam(rc.Text) {
			continue
		}
		if rc.LikeCount < minLikes {
			continue
		}

		wordCount := len(strings.Fields(rc.Text))
		isQuestion := IsQuestion(rc.Text)
		isFeedback := IsFeedback(rc.Text)

		c := Comment{
			ID:          rc.ID,
			Author:      rc.Author,
			Text:        rc.Text,
			LikeCount:   rc.LikeCount,
			ReplyCount:  rc.ReplyCount,
			WordCount:   wordCount,
			IsQuestion:  isQuestion,
			IsFeedback:  isFeedback,
			PublishedAt: rc.PublishedAt,
		}
		c.EngagementScore = EngagementScore(c)
		scored = append(scored, c)
	}

	// 互动分降序，同分保持原始顺序
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].EngagementScore > scored[j].EngagementScore
	})

	if len(scored) > maxResults {
		scored = scored[:maxResults]
	}

	var quality float64
	if len(scored) > 0 {
		var sum float64
		for _, c := range scored {
			sum += c.EngagementScore
		}
		quality = math.Min(100, sum/float64(len(scored))*2)
		quality = math.Round(quality*10) / 10
	}

	return RankedCommentSet{Comments: scored, QualityScore: quality}
}

// EngagementScore 计算互动分。
// 点赞取平方根抑制头部评论的权重，回复代表讨论价值，
// 提问和反馈类评论额外加分，长度适中（30-200词）再加分。
func EngagementScore(c Comment) float64 {
	score := math.Sqrt(float64(c.LikeCount+1)) * 10
	score += float64(c.ReplyCount) * 5
	if c.IsQuestion {
		score += 15
	}
	if c.IsFeedback {
		score += 10
	}
	if c.WordCount >= 30 && c.WordCount <= 200 {
		score += 5
	}
	return math.Round(score*100) / 100
}

// IsSpam 垃圾评论启发式判定
func IsSpam(text string) bool {
	lower := strings.ToLower(text)
	for _, indicator := range spamIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	runes := []rune(text)
	if len(runes) < minCommentLength || len(runes) > maxCommentLength {
		return true
	}

	if countEmojis(runes) > maxEmojiCount {
		return true
	}

	// 长评论大部分是大写字母的，多为刷屏
	if len(runes) > 20 {
		upper := 0
		for _, r := range runes {
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if float64(upper)/float64(len(runes)) > upperRatioLimit {
			return true
		}
	}

	return false
}

// IsQuestion 检测评论是否包含提问
func IsQuestion(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range questionPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

// IsFeedback 检测评论是否包含反馈或建议
func IsFeedback(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range feedbackPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

func countEmojis(runes []rune) int {
	count := 0
	for _, r := range runes {
		switch {
		case r >= 0x1F600 && r <= 0x1F64F, // emoticons
			r >= 0x1F300 && r <= 0x1F5FF, // symbols & pictographs
			r >= 0x1F680 && r <= 0x1F6FF, // transport
			r >= 0x1F1E0 && r <= 0x1F1FF: // flags
			count++
		}
	}
	return count
}
