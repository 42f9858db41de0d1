// Package generation は生成AIを使った各種ドメイン操作のゲートウェイを提供する。
//
// 各操作はプロンプトを組み立てて llm.Provider に送り、応答を型付きの結果に変換する。
// 失敗は必ず *model.AppError（blocked, empty, parse, unavailable, validation）に変換し、
// プロバイダの生の応答は呼び出し側に返さずログにのみ残す。
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/jobassist/internal/llm"
	"github.com/hitoshi/jobassist/internal/metrics"
	"github.com/hitoshi/jobassist/internal/model"
)

// 生成結果の集計ラベル
const (
	resultSuccess  = "success"
	resultDegraded = "degraded"
)

// Gateway は生成AIゲートウェイ。
type Gateway struct {
	provider llm.Provider
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time
}

// Option はGatewayのオプション。
type Option func(*Gateway)

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithClock は現在時刻の取得関数を差し替える。ID生成に使う。
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New はGatewayを生成する。
func New(provider llm.Provider, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		provider: provider,
		metrics:  metrics.Nop{},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// call はプロバイダを呼び出し、失敗を AppError に変換する。
// failMsg は操作ごとのユーザー向けメッセージ。失敗時のみメトリクスを記録する。
func (g *Gateway) call(ctx context.Context, op string, req llm.Request, failMsg string) (string, time.Duration, error) {
	if g.provider == nil {
		g.metrics.RecordGeneration(op, string(model.KindUnavailable), 0)
		return "", 0, model.NewAppError(model.KindUnavailable, failMsg, errors.New("generation provider is not configured"))
	}

	start := g.now()
	text, err := g.provider.Generate(ctx, req)
	elapsed := g.now().Sub(start)

	if err == nil {
		return text, elapsed, nil
	}

	appErr := classify(err, failMsg)
	g.metrics.RecordGeneration(op, string(appErr.Kind), elapsed)
	g.logger.Warn("生成リクエストに失敗しました",
		slog.String("operation", op),
		slog.String("provider", g.provider.Name()),
		slog.String("kind", string(appErr.Kind)),
		slog.String("error", err.Error()),
	)
	return "", elapsed, appErr
}

// classify はプロバイダのエラーを種別付きエラーに変換する。
func classify(err error, failMsg string) *model.AppError {
	if reason, ok := llm.IsBlocked(err); ok {
		return model.NewAppError(model.KindBlocked, fmt.Sprintf("AI request was blocked due to %s.", reason), err)
	}
	if errors.Is(err, llm.ErrEmptyResponse) {
		return model.NewAppError(model.KindEmpty, failMsg, err)
	}
	return model.NewAppError(model.KindUnavailable, failMsg, err)
}

// parseFailure は応答の解釈失敗をログに残し、parse 種別のエラーを返す。
// 生の応答はデバッグログにのみ出力する。
func (g *Gateway) parseFailure(op, raw string, elapsed time.Duration, err error, failMsg string) error {
	g.metrics.RecordGeneration(op, string(model.KindParse), elapsed)
	g.logger.Warn("生成結果の解釈に失敗しました",
		slog.String("operation", op),
		slog.String("error", err.Error()),
		slog.Int("response_length", len(raw)),
	)
	g.logger.Debug("解釈できなかった生成結果",
		slog.String("operation", op),
		slog.String("response", raw),
	)
	return model.NewAppError(model.KindParse, failMsg, err)
}

// generateObject は JSON オブジェクトを返す操作の共通処理。
// 検索モードではJSON出力の指定をプロバイダに渡さない。
func (g *Gateway) generateObject(ctx context.Context, op string, req llm.Request, failMsg string) (map[string]any, time.Duration, error) {
	req.JSON = !req.Search
	text, elapsed, err := g.call(ctx, op, req, failMsg)
	if err != nil {
		return nil, elapsed, err
	}
	obj, err := parseObject(text)
	if err != nil {
		return nil, elapsed, g.parseFailure(op, text, elapsed, err, failMsg)
	}
	return obj, elapsed, nil
}

// generateArray は JSON 配列を返す操作の共通処理。
func (g *Gateway) generateArray(ctx context.Context, op string, req llm.Request, failMsg string, keys ...string) ([]any, time.Duration, error) {
	req.JSON = !req.Search
	text, elapsed, err := g.call(ctx, op, req, failMsg)
	if err != nil {
		return nil, elapsed, err
	}
	arr, err := parseArray(text, keys...)
	if err != nil {
		return nil, elapsed, g.parseFailure(op, text, elapsed, err, failMsg)
	}
	return arr, elapsed, nil
}

// generateText はプレーンテキストを返す操作の共通処理。
func (g *Gateway) generateText(ctx context.Context, op string, req llm.Request, failMsg string) (string, error) {
	text, elapsed, err := g.call(ctx, op, req, failMsg)
	if err != nil {
		return "", err
	}
	g.succeeded(op, elapsed)
	return strings.TrimSpace(text), nil
}

func (g *Gateway) succeeded(op string, elapsed time.Duration) {
	g.metrics.RecordGeneration(op, resultSuccess, elapsed)
}

func validationError(msg string) error {
	return model.NewAppError(model.KindValidation, msg, nil)
}
