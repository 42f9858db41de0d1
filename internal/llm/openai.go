package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOpenAIBaseURL はOpenAI互換APIのデフォルトのベースURL。
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider はOpenAI互換のChat Completions APIを使うプロバイダ。
// Groqなど互換エンドポイントもベースURLの差し替えで利用できる。
type OpenAIProvider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewOpenAIProvider はOpenAIProviderを生成する。baseURLが空の場合はDefaultOpenAIBaseURLを使う。
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		model:      model,
		endpoint:   strings.TrimRight(baseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// Name はプロバイダ名を返す。
func (p *OpenAIProvider) Name() string {
	return "openai"
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
	File     *openAIFile     `json:"file,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Generate はChat Completions APIにリクエストを送信する。
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	reqBody := openAIRequest{
		Model:       p.model,
		Messages:    []openAIMessage{{Role: "user", Content: buildOpenAIContent(req)}},
		Temperature: 0.4,
	}
	if req.JSON {
		reqBody.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed openAIResponse
	decodeErr := json.Unmarshal(bodyBytes, &parsed)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Code == "content_filter" {
			return "", &BlockedError{Reason: "CONTENT_FILTER"}
		}
		return "", fmt.Errorf("openai API returned status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 512))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	choice := parsed.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", &BlockedError{Reason: "CONTENT_FILTER"}
	}
	if choice.Message.Refusal != "" {
		return "", &BlockedError{Reason: "REFUSAL"}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return choice.Message.Content, nil
}

// buildOpenAIContent は添付が無ければ文字列、あればコンテンツパート配列を返す。
func buildOpenAIContent(req Request) any {
	text := promptText(req)
	if len(req.Parts) == 0 {
		return text
	}

	parts := []openAIContentPart{{Type: "text", Text: text}}
	for i, part := range req.Parts {
		dataURL := "data:" + part.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(part.Data)
		if strings.HasPrefix(part.MIMEType, "image/") {
			parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{URL: dataURL}})
			continue
		}
		parts = append(parts, openAIContentPart{
			Type: "file",
			File: &openAIFile{Filename: fmt.Sprintf("attachment-%d", i+1), FileData: dataURL},
		})
	}
	return parts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Provider = (*OpenAIProvider)(nil)
