// Package render は構造化された職務経歴を文書（HTML/PDF）に変換する。
package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/hitoshi/jobassist/internal/model"
)

//go:embed templates/resume.html
var templateFS embed.FS

var resumeTemplate = template.Must(
	template.New("resume.html").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/resume.html"),
)

// ErrEmptyResume は描画対象の職務経歴が無い場合のエラー。
var ErrEmptyResume = errors.New("structured resume is empty")

// PDFRenderer はHTMLをPDFに変換するインターフェース。
type PDFRenderer interface {
	RenderHTMLToPDF(ctx context.Context, html string) ([]byte, error)
}

// ResumeHTML は職務経歴をA4印刷用のHTMLに描画する。
func ResumeHTML(resume *model.StructuredResume) (string, error) {
	if resume == nil {
		return "", ErrEmptyResume
	}
	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, resume); err != nil {
		return "", fmt.Errorf("failed to execute resume template: %w", err)
	}
	return buf.String(), nil
}

// Service は職務経歴のPDF出力を提供する。
type Service struct {
	renderer PDFRenderer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(renderer PDFRenderer) *Service {
	return &Service{renderer: renderer}
}

// ResumePDF は職務経歴をHTMLに描画し、PDFに変換する。
func (s *Service) ResumePDF(ctx context.Context, resume *model.StructuredResume) ([]byte, error) {
	html, err := ResumeHTML(resume)
	if err != nil {
		return nil, err
	}
	pdf, err := s.renderer.RenderHTMLToPDF(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("failed to render resume pdf: %w", err)
	}
	return pdf, nil
}
