package insight

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/lently/lently_go_server/internal/youtube"
)

func makeComment(author, text string, likes int, isQuestion, isFeedback bool) youtube.Comment {
	return youtube.Comment{
		Author:     author,
		Text:       text,
		LikeCount:  likes,
		WordCount:  len(splitWords(text)),
		IsQuestion: isQuestion,
		IsFeedback: isFeedback,
	}
}

func splitWords(s string) []string {
	var words []string
	word := ""
	for _, r := range s {
		if r == ' ' {
			if word != "" {
				words = append(words, word)
				word = ""
			}
			continue
		}
		word += string(r)
	}
	if word != "" {
		words = append(words, word)
	}
	return words
}

func TestFilterLowValue(t *testing.T) {
	comments := []youtube.Comment{
		makeComment("a", "This tutorial helped me understand pointers finally", 3, false, false),
		makeComment("b", "First!", 0, false, false),
		makeComment("c", "nice", 0, false, false),
		makeComment("d", "short one here", 0, false, false), // 3 词，低于阈值
		makeComment("e", "Check out my channel for more amazing content everyone", 0, false, false),
	}

	kept := FilterLowValue(comments)

	assert.Len(t, kept, 1)
	assert.Equal(t, "a", kept[0].Author)
}

func TestFilterLowValueKeepsEmptyInput(t *testing.T) {
	kept := FilterLowValue(nil)
	assert.NotNil(t, kept)
	assert.Empty(t, kept)
}

func TestAnonymizeMentions(t *testing.T) {
	assert.Equal(t, "a viewer said this already", AnonymizeMentions("@john.doe said this already"))
	assert.Equal(t, "thanks a viewer and a viewer", AnonymizeMentions("thanks @alice and @bob-123"))
	assert.Equal(t, "no mentions here", AnonymizeMentions("no mentions here"))
}

func TestGroupQuestions(t *testing.T) {
	comments := []youtube.Comment{
		makeComment("a", "How do you configure docker networking properly?", 0, true, false),
		makeComment("b", "Do you configure docker networking differently?", 0, true, false),
		makeComment("c", "What editor theme is that?", 0, true, false),
		makeComment("d", "Great video, loved it", 5, false, true),
	}

	groups := GroupQuestions(comments)

	// 只有 docker networking 组达到最小数量 2
	assert.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "low", groups[0].Demand)
	assert.Contains(t, groups[0].Question, "docker networking")
	assert.Len(t, groups[0].Examples, 2)
}

func TestGroupQuestionsDemandTiers(t *testing.T) {
	var comments []youtube.Comment
	for i := 0; i < 6; i++ {
		comments = append(comments, makeComment("a", "How does kubernetes ingress routing work exactly?", 0, true, false))
	}

	groups := GroupQuestions(comments)

	assert.Len(t, groups, 1)
	assert.Equal(t, 6, groups[0].Count)
	assert.Equal(t, "medium", groups[0].Demand)
}

func TestGroupQuestionsIgnoresNonQuestions(t *testing.T) {
	comments := []youtube.Comment{
		makeComment("a", "Loved the kubernetes ingress routing explanation here", 0, false, true),
		makeComment("b", "Loved the kubernetes ingress routing explanation here", 0, false, true),
	}

	assert.Empty(t, GroupQuestions(comments))
}

func TestIdentifySuperfans(t *testing.T) {
	comments := []youtube.Comment{
		makeComment("alice", "How do you handle database migrations in production environments?", 8, true, false),
		makeComment("alice", "You should make a follow-up covering rollback strategies too", 4, false, true),
		makeComment("bob", "Single comment from this person right here", 2, false, false),
	}

	fans := IdentifySuperfans(comments)

	// bob 只有一条评论，不算铁杆粉丝
	assert.Len(t, fans, 1)
	assert.Equal(t, "alice", fans[0].Author)
	assert.Equal(t, 2, fans[0].CommentCount)
	assert.Equal(t, 12, fans[0].TotalLikes)

	// 2条*10 + 19词/10 + 12赞*2 + 20提问 + 20反馈 = 85
	assert.Equal(t, 85, fans[0].EngagementScore)
	assert.Contains(t, fans[0].Reason, "high engagement")
	assert.Contains(t, fans[0].Reason, "asks questions")
	assert.Contains(t, fans[0].Reason, "gives feedback")
}

func TestIdentifySuperfansWordCap(t *testing.T) {
	long := ""
	for i := 0; i < 400; i++ {
		long += "word "
	}

	comments := []youtube.Comment{
		makeComment("carol", long, 0, false, false),
		makeComment("carol", long, 0, false, false),
	}

	fans := IdentifySuperfans(comments)

	assert.Len(t, fans, 1)
	// 800 词封顶到 500: 2*10 + 500/10 = 70
	assert.Equal(t, 70, fans[0].EngagementScore)
}

func TestIdentifySuperfansSkipsAnonymous(t *testing.T) {
	comments := []youtube.Comment{
		makeComment("", "some anonymous comment with enough words", 0, false, false),
		makeComment("", "another anonymous comment with enough words", 0, false, false),
		makeComment("Unknown", "unknown author comment with enough words", 0, false, false),
		makeComment("Unknown", "second unknown author comment with words", 0, false, false),
	}

	assert.Empty(t, IdentifySuperfans(comments))
}

func TestExtractContentRequests(t *testing.T) {
	comments := []youtube.Comment{
		makeComment("a", "Can you do a video on docker networking?", 0, true, true),
		makeComment("b", "Please make a video about Docker Networking", 0, false, true),
		makeComment("c", "I would love to see rust async internals", 0, false, true),
		makeComment("d", "Nothing requested in this comment at all", 0, false, false),
	}

	requests := ExtractContentRequests(comments)

	assert.Len(t, requests, 2)

	// 大小写不敏感去重后 docker networking 排第一
	assert.Equal(t, 2, requests[0].Count)
	assert.Contains(t, requests[0].Topic, "docker networking")
	assert.Equal(t, "low", requests[0].Priority)
	assert.Contains(t, requests[0].SuggestedTitle, "Complete Guide to")
	assert.Equal(t, "Can you do a video on docker networking?", requests[0].ExampleComment)

	assert.Equal(t, "rust async internals", requests[1].Topic)
}

func TestExtractContentRequestsPriorityTiers(t *testing.T) {
	var comments []youtube.Comment
	for i := 0; i < 5; i++ {
		comments = append(comments, makeComment("a", "Please cover graphql subscriptions", 0, false, true))
	}

	requests := ExtractContentRequests(comments)

	assert.Len(t, requests, 1)
	assert.Equal(t, "high", requests[0].Priority)
}

// 去重键按 rune 截断：多字节主题不能在字节边界上被切开误判为同一主题
func TestExtractContentRequestsMultibyteTopics(t *testing.T) {
	prefix := strings.Repeat("区块链", 6) // 18 字 54 字节，共同前缀超过 50 字节
	comments := []youtube.Comment{
		makeComment("a", "Please make a video about "+prefix+"入门教程", 0, false, true),
		makeComment("b", "Please make a video about "+prefix+"进阶实战", 0, false, true),
	}

	requests := ExtractContentRequests(comments)

	assert.Len(t, requests, 2)
	assert.NotEqual(t, requests[0].Topic, requests[1].Topic)
	for _, r := range requests {
		assert.True(t, utf8.ValidString(r.Topic))
	}
}

func TestExtractContentRequestsTopicBounds(t *testing.T) {
	comments := []youtube.Comment{
		makeComment("a", "Can you cover go?", 0, true, false), // 主题过短
	}

	assert.Empty(t, ExtractContentRequests(comments))
}

func TestPreprocess(t *testing.T) {
	comments := []youtube.Comment{
		makeComment("alice", "How do you configure docker networking properly?", 3, true, false),
		makeComment("alice", "Can you make a video about docker networking?", 1, true, true),
		makeComment("bob", "Do you configure docker networking the same?", 0, true, false),
		makeComment("c", "First!", 0, false, false),
	}

	summary := Preprocess(comments)

	assert.Len(t, summary.ValuableComments, 3)
	assert.NotEmpty(t, summary.QuestionGroups)
	assert.Len(t, summary.Superfans, 1)
	assert.Equal(t, "alice", summary.Superfans[0].Author)
	assert.NotEmpty(t, summary.ContentRequests)
}
