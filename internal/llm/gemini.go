package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider はGemini API（APIキー認証）を使うプロバイダ。
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

// NewGeminiProvider はGeminiProviderを生成する。
func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, modelName: modelName}, nil
}

// Name はプロバイダ名を返す。
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Generate はGeminiにリクエストを送信する。
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	model := p.client.GenerativeModel(p.modelName)
	model.SetTemperature(0.4)
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	parts := []genai.Part{genai.Text(promptText(req))}
	for _, part := range req.Parts {
		parts = append(parts, genai.Blob{MIMEType: part.MIMEType, Data: part.Data})
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", &BlockedError{Reason: geminiBlockReason(blocked)}
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", &BlockedError{Reason: geminiBlockReason(&genai.BlockedError{PromptFeedback: resp.PromptFeedback})}
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonSafety:
		return "", &BlockedError{Reason: "SAFETY"}
	case genai.FinishReasonRecitation:
		return "", &BlockedError{Reason: "RECITATION"}
	}

	if candidate.Content == nil {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// Close はクライアントを閉じる。
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func geminiBlockReason(e *genai.BlockedError) string {
	if e.PromptFeedback != nil && e.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		switch e.PromptFeedback.BlockReason {
		case genai.BlockReasonSafety:
			return "SAFETY"
		case genai.BlockReasonOther:
			return "OTHER"
		}
		return strings.ToUpper(strings.TrimPrefix(fmt.Sprint(e.PromptFeedback.BlockReason), "BlockReason"))
	}
	if e.Candidate != nil {
		switch e.Candidate.FinishReason {
		case genai.FinishReasonSafety:
			return "SAFETY"
		case genai.FinishReasonRecitation:
			return "RECITATION"
		}
	}
	return "OTHER"
}

var _ Provider = (*GeminiProvider)(nil)
