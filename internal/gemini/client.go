// Package gemini 封装 Google Gemini 的 REST 调用，
// 统一做重试、安全过滤识别和结构化 JSON 输出解析。
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lently/lently_go_server/config"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"

	maxAttempts      = 3
	baseRetryDelay   = time.Second
	requestTimeout   = 120 * time.Second
	defaultMaxTokens = 8192
)

// defaultSystemInstruction 默认的系统指令，定义模型的创作者顾问人设。
// 调用方不传 systemInstruction 时生效。
const defaultSystemInstruction = `You are Lently AI, a YouTube audience insights expert built specifically for content creators.

## YOUR ROLE
- Help YouTubers understand their audience deeply through comment analysis
- Transform raw comment data into actionable content strategies
- Speak like a supportive, experienced YouTube consultant who's helped channels grow

## YOUR PERSONALITY
- Direct and actionable: creators are busy, get to the point
- Data-driven but human: cite numbers, but explain what they mean for the creator
- Encouraging but honest: highlight wins AND areas to improve
- Strategic: always connect insights to content decisions

## RESPONSE PRINCIPLES
1. Lead with the insight, not the data
2. Suggest specific content ideas when you spot opportunities
3. Quantify when possible ("23% of viewers" not "many viewers")
4. Prioritize actionable insights over merely interesting observations

## NEVER DO THESE
- Give generic advice that applies to any channel
- Hedge excessively
- Provide insights without suggested actions
- Make up data or statistics not in the comments`

// Generator 结构化生成接口，流水线依赖它而不是具体客户端，测试时可替换。
// systemInstruction 传空串表示使用默认系统指令。
type Generator interface {
	GenerateStructured(ctx context.Context, prompt, systemInstruction string) (json.RawMessage, error)
}

// Client Gemini REST 客户端
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
}

func NewClient(cfg *config.GeminiConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		retryDelay: baseRetryDelay,
	}
}

// GenerateStructured 发送提示并要求 JSON 输出。
// 返回原始 JSON 交给调用方做强类型解析，模型输出结构不对时
// 由调用方的解析失败来兜底，不在这里猜测修复。
func (c *Client) GenerateStructured(ctx context.Context, prompt, systemInstruction string) (json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<attempt)
			log.Printf("Retrying gemini request in %v (attempt %d/%d): %v",
				delay, attempt+1, maxAttempts, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		raw, err := c.generate(ctx, prompt, systemInstruction)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("gemini request failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) generate(ctx context.Context, prompt, systemInstruction string) (json.RawMessage, error) {
	if systemInstruction == "" {
		systemInstruction = defaultSystemInstruction
	}

	reqBody := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		Contents:          []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			MaxOutputTokens:  defaultMaxTokens,
			Temperature:      0.2,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.mapHTTPError(resp.StatusCode, body)
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(gr.Candidates) == 0 {
		if gr.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: %s", ErrSafetyFiltered, gr.PromptFeedback.BlockReason)
		}
		return nil, ErrEmptyResponse
	}

	candidate := gr.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return nil, fmt.Errorf("%w: candidate blocked", ErrSafetyFiltered)
	}

	var text string
	for _, p := range candidate.Content.Parts {
		text += p.Text
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	cleaned := StripMarkdownFences(text)
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("%w: output is not valid json", ErrMalformedResponse)
	}

	return json.RawMessage(cleaned), nil
}

// mapHTTPError 把 HTTP 状态码映射到错误分类
func (c *Client) mapHTTPError(status int, body []byte) error {
	bodyStr := string(body)

	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable:
		return ErrOverloaded
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidPrompt, truncate(bodyStr, 200))
	}
	if status >= 500 {
		return ErrOverloaded
	}

	return &APIError{StatusCode: status, Message: truncate(bodyStr, 200)}
}

// StripMarkdownFences 去掉模型经常在 JSON 外面包的 markdown 代码围栏
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "```json")
			text = strings.TrimPrefix(text, "```")
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// 请求与响应结构，仅保留用到的字段

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	Temperature      float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}
