package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/lently/lently_go_server/internal/insight"
	"github.com/lently/lently_go_server/internal/youtube"
)

// 提示词里单条评论文本的截断长度
const promptCommentTextLimit = 500

const sentimentPromptTemplate = `Analyze the sentiment of these YouTube comments with high accuracy.

## VIDEO CONTEXT
Title: %s
Channel: %s

## COMMENTS TO ANALYZE
%s

## SENTIMENT CLASSIFICATION GUIDELINES
Classify each comment's sentiment as:

**POSITIVE** - gratitude, excitement, praise, support, agreement, love for the content.
**NEGATIVE** - frustration, criticism, disagreement, clearly negative sarcasm, aggressive demands.
**NEUTRAL** - questions without emotional charge, objective statements, observations without judgment.
**MIXED** - the comment contains BOTH clear positive AND negative elements.

## ACCURACY RULES
1. Read the entire comment before deciding
2. Consider context and tone, not just keywords
3. Sarcasm should be detected and classified by true intent
4. Emojis strongly indicate sentiment
5. ALL CAPS often indicates strong emotion (usually frustration)
6. Be precise - don't default to neutral if there's clear emotion

## RESPONSE FORMAT (JSON)
{
  "comments": [
    {"comment_id": "...", "sentiment": "positive", "confidence": 0.9, "emotion": "excited"}
  ],
  "summary": {
    "positive_percentage": 65.0,
    "negative_percentage": 15.0,
    "neutral_percentage": 15.0,
    "mixed_percentage": 5.0,
    "dominant_sentiment": "positive",
    "top_emotions": ["excited", "curious", "grateful"],
    "sentiment_trend": "The audience is highly engaged and enthusiastic"
  }
}

Respond ONLY with valid JSON, no additional text.`

const classificationPromptTemplate = `Classify these YouTube comments into categories.

## VIDEO CONTEXT
Title: %s
Channel: %s

## COMMENTS TO CLASSIFY
%s

## CATEGORIES (use these exact category names)
- **question**: Asks something, wants information, expresses curiosity
- **appreciation**: Thanks, praise, positive reaction, expressing love for content
- **complaint**: Negative feedback, criticism, expressing disappointment or frustration
- **suggestion**: Ideas for future content, recommendations, feature requests
- **discussion**: Adds to the conversation, shares personal experience, general commentary
- **spam**: Promotional content, off-topic, bot-like, self-promotion
- **other**: Doesn't fit other categories

## INSTRUCTIONS
For each comment assign a primary_category, optionally a secondary_category,
and rate your confidence 0.0-1.0.

## RESPONSE FORMAT (JSON)
{
  "comments": [
    {"comment_id": "...", "primary_category": "question", "secondary_category": "suggestion", "confidence": 0.85}
  ]
}

Respond ONLY with valid JSON, no additional text.`

const insightsPromptTemplate = `Extract actionable insights from these YouTube comments.

## VIDEO CONTEXT (CRITICAL - ALL INSIGHTS MUST RELATE TO THIS)
Title: %s
Channel: %s
Description: %s

## COMMENTS DATA
%s

## CRITICAL RULES
1. ALL content ideas MUST be directly related to the video's topic shown above
2. DO NOT suggest unrelated video topics - stay within the video's domain
3. Base suggestions ONLY on what viewers explicitly request or ask about in comments
4. If comments don't contain clear requests, extract themes from the video topic itself

## EXTRACT THE FOLLOWING
1. KEY THEMES (3-5): recurring topics, how many comments mention each, sentiment toward it, 2-3 example comments.
2. CONTENT IDEAS (3-5): follow-up videos grounded in actual comment evidence, each a logical continuation of the video's topic.
3. AUDIENCE INSIGHTS (3-5): what the comments reveal about the audience, with evidence and a recommended action.

## RESPONSE FORMAT (JSON)
{
  "key_themes": [
    {"theme": "...", "mention_count": 12, "sentiment": "mixed", "example_comments": ["..."]}
  ],
  "content_ideas": [
    {"title": "...", "description": "...", "source_type": "feedback", "confidence": 0.85, "related_comments": ["..."]}
  ],
  "audience_insights": [
    {"insight": "...", "evidence": "...", "action_item": "..."}
  ]
}

Respond ONLY with valid JSON, no additional text.`

const summaryPromptTemplate = `Create an executive summary of this YouTube video's comment section.

## VIDEO INFO
Title: %s
Channel: %s
Views: %d
Total Comments: %d
Comments Analyzed: %d

## SENTIMENT DATA
%s

## CLASSIFICATION DATA
%s

## KEY THEMES
%s

## YOUR TASK
Write a clear, professional executive summary for a YouTube creator.
1. Opening statement (1 sentence) naming the dominant sentiment with the EXACT percentages from the data.
2. Key findings: 2-3 complete sentences, each containing a specific number.
3. Top priority: one specific, actionable recommendation supported by the data.

## CRITICAL RULES
- Every sentence must be complete (subject + verb + object)
- Include specific percentages and numbers from the data
- Plain text only, no formatting tags

## RESPONSE FORMAT (JSON)
{
  "executive_summary": "...",
  "key_metrics": {
    "sentiment_score": 65,
    "engagement_quality": "high",
    "actionable_comments_percentage": 40
  },
  "key_findings": ["...", "..."],
  "priority_actions": ["...", "..."]
}

Respond ONLY with valid JSON, no additional text.`

// promptComment 提示词里的评论投影，文本已截断并做过提及匿名化
type promptComment struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Text    string `json:"text"`
	Likes   int    `json:"likes"`
	Replies int    `json:"replies"`
}

// buildCommentsJSON 把评论编码为提示词用的 JSON。
// 文本先做 @提及匿名化再截断，避免把观众 ID 送进模型。
func buildCommentsJSON(comments []youtube.Comment) string {
	data := make([]promptComment, 0, len(comments))
	for _, c := range comments {
		text := insight.AnonymizeMentions(c.Text)
		if runes := []rune(text); len(runes) > promptCommentTextLimit {
			text = string(runes[:promptCommentTextLimit])
		}
		data = append(data, promptComment{
			ID:      c.ID,
			Author:  c.Author,
			Text:    text,
			Likes:   c.LikeCount,
			Replies: c.ReplyCount,
		})
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

func buildSentimentPrompt(video *youtube.VideoMetadata, comments []youtube.Comment) string {
	return fmt.Sprintf(sentimentPromptTemplate, video.Title, video.ChannelTitle, buildCommentsJSON(comments))
}

func buildClassificationPrompt(video *youtube.VideoMetadata, comments []youtube.Comment) string {
	return fmt.Sprintf(classificationPromptTemplate, video.Title, video.ChannelTitle, buildCommentsJSON(comments))
}

func buildInsightsPrompt(video *youtube.VideoMetadata, comments []youtube.Comment) string {
	description := video.Description
	if runes := []rune(description); len(runes) > promptCommentTextLimit {
		description = string(runes[:promptCommentTextLimit])
	}
	return fmt.Sprintf(insightsPromptTemplate, video.Title, video.ChannelTitle, description, buildCommentsJSON(comments))
}

func buildSummaryPrompt(video *youtube.VideoMetadata, commentsCount int,
	sentiment *SentimentResult, classification *ClassificationResult, insights *InsightsResult) string {

	sentimentJSON, _ := json.Marshal(map[string]interface{}{
		"positive":     sentiment.Summary.PositivePercentage,
		"negative":     sentiment.Summary.NegativePercentage,
		"neutral":      sentiment.Summary.NeutralPercentage,
		"dominant":     sentiment.Summary.DominantSentiment,
		"top_emotions": sentiment.Summary.TopEmotions,
	})

	classificationJSON, _ := json.Marshal(map[string]interface{}{
		"counts":           classification.Summary.CategoryCounts,
		"top_category":     classification.Summary.TopCategory,
		"actionable_count": classification.Summary.ActionableCount,
	})

	type themeRef struct {
		Theme    string `json:"theme"`
		Mentions int    `json:"mentions"`
	}
	themes := make([]themeRef, 0)
	if insights != nil {
		for _, t := range insights.KeyThemes {
			themes = append(themes, themeRef{Theme: t.Theme, Mentions: t.MentionCount})
		}
	}
	themesJSON, _ := json.Marshal(themes)

	return fmt.Sprintf(summaryPromptTemplate,
		video.Title, video.ChannelTitle, video.ViewCount, video.CommentCount, commentsCount,
		string(sentimentJSON), string(classificationJSON), string(themesJSON))
}
