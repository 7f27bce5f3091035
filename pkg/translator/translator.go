// Package translator 按批次驱动翻译引擎翻译整部文档，负责预算检查、术语保护、暂停、进度保存和翻译报告。
package translator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/novel-translator/pkg/document"
	"github.com/nerdneilsfield/novel-translator/pkg/engine"
)

// Translator 文档翻译器。同一时刻只应有一个翻译器处理同一文档。
type Translator struct {
	engine engine.Engine
	opts   Options
	logger *zap.Logger
}

// New 创建翻译器
func New(e engine.Engine, opts Options) (*Translator, error) {
	if e == nil {
		return nil, NewConfigError("engine", "no translation engine configured")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	return &Translator{
		engine: e,
		opts:   opts,
		logger: opts.Logger.With(zap.String("engine", e.GetName())),
	}, nil
}

// Engine 返回使用的引擎
func (t *Translator) Engine() engine.Engine {
	return t.engine
}

// ProgressPath 返回文档的进度文件路径，未配置缓存目录时返回空字符串
func (t *Translator) ProgressPath(doc *document.Document) string {
	if t.opts.CacheDir == "" {
		return ""
	}
	return document.ProgressPath(t.opts.CacheDir, doc.ID)
}

// TranslateDocument 翻译文档中所有未翻译的段落，原地修改 doc。
//
// 引擎失败只影响所在批次：批内段落的 attempts 加一，随后继续下一批。
// ctx 只在批次之间检查；取消时会先保存进度，再返回包装了 ErrInterrupted 的错误和部分报告。
func (t *Translator) TranslateDocument(ctx context.Context, doc *document.Document) (*Report, error) {
	name := t.engine.GetName()
	estimate := t.opts.Estimator.Estimate(doc, name)

	if t.opts.BudgetLimit > 0 && estimate.Cost > t.opts.BudgetLimit {
		return nil, &BudgetExceededError{Estimate: estimate, Limit: t.opts.BudgetLimit}
	}

	progressPath := t.ProgressPath(doc)
	if progressPath != "" {
		unlock, err := t.lock(progressPath)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	logger := t.logger.With(zap.String("doc_id", doc.ID))
	report := newReport(doc, name, estimate)
	report.ProgressFile = progressPath

	pending := doc.Untranslated()
	batches := splitBatches(pending, t.opts.BatchSize)

	logger.Info("translation started",
		zap.Int("paragraphs", len(pending)),
		zap.Int("batches", len(batches)),
		zap.Float64("estimated_cost", estimate.Cost),
		zap.String("currency", estimate.Currency))

	// 批次进行中不响应取消，避免半批结果
	engineCtx := context.WithoutCancel(ctx)
	sinceSave := 0

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return t.interrupt(doc, report, progressPath, err)
		}

		if err := t.translateBatch(engineCtx, i, batch); err != nil {
			report.FailedBatches++
			logger.Warn("batch failed, continuing", zap.Error(err))
		} else {
			for _, p := range batch {
				report.SessionChars += utf8.RuneCountInString(p.Content)
			}
		}
		report.ProcessedBatches++

		sinceSave += len(batch)
		if sinceSave >= t.opts.SaveInterval || i == len(batches)-1 {
			t.save(doc, progressPath)
			sinceSave = 0
		}

		if err := t.notify(ctx, doc, batch); err != nil {
			return t.interrupt(doc, report, progressPath, err)
		}
	}

	report.finish(doc, t.opts.Estimator)
	t.writeReport(report)

	logger.Info("translation finished",
		zap.Int("translated", report.TranslatedParagraphs),
		zap.Int("failed", report.FailedParagraphs),
		zap.Duration("duration", report.Duration))

	return report, nil
}

func (t *Translator) translateBatch(ctx context.Context, index int, batch []*document.Paragraph) error {
	texts := make([]string, len(batch))
	ids := make([]int, len(batch))
	for i, p := range batch {
		texts[i] = t.opts.Glossary.Apply(p.Content)
		ids[i] = p.ID
	}

	var (
		results []string
		tokens  []int
		err     error
	)
	if ut, ok := t.engine.(engine.UsageTranslator); ok {
		results, tokens, err = ut.BatchTranslateWithUsage(ctx, texts)
	} else {
		results, err = t.engine.BatchTranslate(ctx, texts)
	}
	if err == nil && len(results) != len(batch) {
		err = fmt.Errorf("%w: got %d, want %d", engine.ErrResultMismatch, len(results), len(batch))
	}
	if err != nil {
		for _, p := range batch {
			p.Attempts++
		}
		return &EngineError{Engine: t.engine.GetName(), Batch: index, ParagraphIDs: ids, Cause: err}
	}

	now := time.Now().UTC()
	for i, p := range batch {
		p.Translated = t.opts.Glossary.Restore(results[i])
		p.IsTranslated = true
		p.TranslationTime = now
		if i < len(tokens) {
			p.Tokens = tokens[i]
		}
	}
	return nil
}

// notify 调用进度回调；回调返回 false 时按固定间隔轮询，直到返回 true 或 ctx 被取消
func (t *Translator) notify(ctx context.Context, doc *document.Document, batch []*document.Paragraph) error {
	if t.opts.Progress == nil {
		return nil
	}

	current := doc.Statistics().Translated
	total := len(doc.Paragraphs)
	preview := ""
	if len(batch) > 0 {
		preview = batch[len(batch)-1].Text()
	}

	if t.opts.Progress(current, total, preview) {
		return nil
	}

	t.logger.Info("translation paused")
	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if t.opts.Progress(current, total, preview) {
				t.logger.Info("translation resumed")
				return nil
			}
		}
	}
}

func (t *Translator) interrupt(doc *document.Document, report *Report, progressPath string, cause error) (*Report, error) {
	t.save(doc, progressPath)
	report.Interrupted = true
	report.finish(doc, t.opts.Estimator)
	t.logger.Warn("translation interrupted, progress saved",
		zap.String("doc_id", doc.ID),
		zap.String("progress_file", progressPath))
	return report, fmt.Errorf("%w: %w", ErrInterrupted, cause)
}

// save 保存进度，失败只记录日志
func (t *Translator) save(doc *document.Document, path string) {
	if path == "" {
		return
	}
	if err := doc.SaveProgress(path); err != nil {
		t.logger.Error("failed to save progress", zap.String("path", path), zap.Error(err))
		return
	}
	t.logger.Debug("progress saved", zap.String("path", path))
}

func (t *Translator) lock(progressPath string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(progressPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	fileLock := flock.New(progressPath + ".lock")
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock progress file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrDocumentLocked, progressPath)
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			t.logger.Warn("failed to release progress lock", zap.Error(err))
		}
	}, nil
}

func (t *Translator) writeReport(report *Report) {
	if t.opts.OutputDir == "" {
		return
	}
	path := filepath.Join(t.opts.OutputDir, report.DocumentID+"_report.md")
	if err := report.WriteMarkdown(path); err != nil {
		t.logger.Error("failed to write report", zap.String("path", path), zap.Error(err))
		return
	}
	report.ReportFile = path
	t.logger.Info("report written", zap.String("path", path))
}

func splitBatches(paragraphs []*document.Paragraph, size int) [][]*document.Paragraph {
	var batches [][]*document.Paragraph
	for start := 0; start < len(paragraphs); start += size {
		end := min(start+size, len(paragraphs))
		batches = append(batches, paragraphs[start:end])
	}
	return batches
}
