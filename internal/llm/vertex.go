package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// VertexProvider はVertex AI上のGeminiを使うプロバイダ。
// 認証はApplication Default Credentialsを使う。
type VertexProvider struct {
	client    *genai.Client
	modelName string
	projectID string
	location  string
}

// NewVertexProvider はVertexProviderを生成する。
func NewVertexProvider(ctx context.Context, projectID, location, modelName string) (*VertexProvider, error) {
	if projectID == "" {
		return nil, fmt.Errorf("vertex project id is empty")
	}
	if location == "" {
		location = "us-central1"
	}
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}
	return &VertexProvider{
		client:    client,
		modelName: modelName,
		projectID: projectID,
		location:  location,
	}, nil
}

// Name はプロバイダ名を返す。
func (p *VertexProvider) Name() string {
	return "vertex"
}

// Generate はVertex AIにリクエストを送信する。
func (p *VertexProvider) Generate(ctx context.Context, req Request) (string, error) {
	model := p.client.GenerativeModel(p.modelName)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)
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
			return "", &BlockedError{Reason: vertexBlockReason(blocked)}
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
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
	var result string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			result += string(text)
		}
	}
	if strings.TrimSpace(result) == "" {
		return "", ErrEmptyResponse
	}
	return result, nil
}

// Close はクライアントを閉じる。
func (p *VertexProvider) Close() error {
	return p.client.Close()
}

func vertexBlockReason(e *genai.BlockedError) string {
	if e.PromptFeedback != nil && e.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		switch e.PromptFeedback.BlockReason {
		case genai.BlockedReasonSafety:
			return "SAFETY"
		case genai.BlockedReasonOther:
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

var _ Provider = (*VertexProvider)(nil)
