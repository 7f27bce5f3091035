package translator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/novel-translator/pkg/document"
	"github.com/nerdneilsfield/novel-translator/pkg/glossary"
)

// fakeEngine 记录每次批量调用的输入，并用 translate 生成结果
type fakeEngine struct {
	name      string
	calls     [][]string
	translate func(texts []string) ([]string, error)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		name: "fake",
		translate: func(texts []string) ([]string, error) {
			out := make([]string, len(texts))
			for i, s := range texts {
				out[i] = "EN:" + s
			}
			return out, nil
		},
	}
}

func (f *fakeEngine) Translate(ctx context.Context, text string) (string, error) {
	out, err := f.BatchTranslate(ctx, []string{text})
	if err != nil {
		return "", err
	}
	return out[0], nil
}

func (f *fakeEngine) BatchTranslate(_ context.Context, texts []string) ([]string, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	return f.translate(texts)
}

func (f *fakeEngine) GetName() string { return f.name }

func (f *fakeEngine) EstimateCost(string) float64 { return 0 }

type usageEngine struct {
	*fakeEngine
}

func (u usageEngine) BatchTranslateWithUsage(ctx context.Context, texts []string) ([]string, []int, error) {
	out, err := u.BatchTranslate(ctx, texts)
	if err != nil {
		return nil, nil, err
	}
	tokens := make([]int, len(texts))
	for i := range tokens {
		tokens[i] = 10 + i
	}
	return out, tokens, nil
}

func newDoc(paragraphs ...string) *document.Document {
	doc := document.New("Test Novel", "zh", "en")
	for _, p := range paragraphs {
		doc.AddParagraph(p, false, nil)
	}
	return doc
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	opts := DefaultOptions()
	opts.BatchSize = -1
	_, err = New(newFakeEngine(), opts)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "batch_size", cfgErr.Field)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	opts = DefaultOptions()
	opts.BudgetLimit = -1
	_, err = New(newFakeEngine(), opts)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTranslateDocument(t *testing.T) {
	e := newFakeEngine()
	opts := DefaultOptions()
	opts.BatchSize = 2
	tr, err := New(e, opts)
	require.NoError(t, err)

	doc := newDoc("一", "二", "三", "四", "五")
	report, err := tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Len(t, e.calls, 3)
	assert.Equal(t, []string{"一", "二"}, e.calls[0])
	assert.Equal(t, []string{"五"}, e.calls[2])

	for _, p := range doc.SortedParagraphs() {
		assert.True(t, p.IsTranslated)
		assert.Equal(t, "EN:"+p.Content, p.Translated)
		assert.False(t, p.TranslationTime.IsZero())
		assert.Zero(t, p.Attempts)
	}

	assert.Equal(t, 5, report.TotalParagraphs)
	assert.Equal(t, 5, report.TranslatedParagraphs)
	assert.Equal(t, 3, report.ProcessedBatches)
	assert.Zero(t, report.FailedBatches)
	assert.True(t, report.Complete())
	assert.InDelta(t, 100.0, report.Progress(), 0.001)
	assert.False(t, report.Interrupted)
}

func TestSessionCharsExcludePreviousRuns(t *testing.T) {
	e := newFakeEngine()
	tr, err := New(e, DefaultOptions())
	require.NoError(t, err)

	doc := newDoc("一二三四五六七八九十", "龙在飞")
	doc.Paragraphs[0].IsTranslated = true
	doc.Paragraphs[0].Translated = "one to ten"

	report, err := tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 13, report.TranslatedChars)
	assert.Equal(t, 3, report.SessionChars)
	if report.Duration > 0 {
		assert.InDelta(t, 3/report.Duration.Seconds(), report.CharsPerSecond, 1e-6)
	}
}

func TestTranslateDocumentIdempotent(t *testing.T) {
	e := newFakeEngine()
	tr, err := New(e, DefaultOptions())
	require.NoError(t, err)

	doc := newDoc("一", "二")
	_, err = tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, e.calls, 1)

	report, err := tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Len(t, e.calls, 1)
	assert.Zero(t, report.ProcessedBatches)
	assert.Equal(t, 2, report.TranslatedParagraphs)
}

func TestBudgetExceeded(t *testing.T) {
	e := newFakeEngine()
	opts := DefaultOptions()
	opts.BudgetLimit = 0.5
	tr, err := New(e, opts)
	require.NoError(t, err)

	// 默认费率 0.5/千字符，2000 字符约 1.0
	doc := newDoc(strings.Repeat("字", 2000))
	report, err := tr.TranslateDocument(context.Background(), doc)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrBudgetExceeded)

	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.InDelta(t, 1.0, budgetErr.Estimate.Cost, 0.001)
	assert.Empty(t, e.calls)
	assert.False(t, doc.Paragraphs[0].IsTranslated)
}

func TestBatchFailureIsolation(t *testing.T) {
	e := newFakeEngine()
	succeed := e.translate
	e.translate = func(texts []string) ([]string, error) {
		for _, s := range texts {
			if s == "三" {
				return nil, errors.New("upstream unavailable")
			}
		}
		return succeed(texts)
	}

	opts := DefaultOptions()
	opts.BatchSize = 2
	tr, err := New(e, opts)
	require.NoError(t, err)

	doc := newDoc("一", "二", "三", "四", "五", "六")
	report, err := tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 3, report.ProcessedBatches)
	assert.Equal(t, 1, report.FailedBatches)
	assert.Equal(t, 4, report.TranslatedParagraphs)
	assert.Equal(t, 2, report.FailedParagraphs)
	assert.False(t, report.Complete())

	for _, id := range []int{2, 3} {
		p := doc.Paragraphs[id]
		assert.False(t, p.IsTranslated)
		assert.True(t, p.Failed())
		assert.Equal(t, 1, p.Attempts)
		assert.Empty(t, p.Translated)
	}
	for _, id := range []int{0, 1, 4, 5} {
		assert.True(t, doc.Paragraphs[id].IsTranslated)
		assert.Zero(t, doc.Paragraphs[id].Attempts)
	}

	// 第二次运行只重试失败段落
	e.translate = succeed
	e.calls = nil
	report, err = tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, e.calls, 1)
	assert.Equal(t, []string{"三", "四"}, e.calls[0])
	assert.True(t, report.Complete())
	assert.Equal(t, 1, doc.Paragraphs[2].Attempts)
}

func TestResultCountMismatch(t *testing.T) {
	e := newFakeEngine()
	e.translate = func(texts []string) ([]string, error) {
		return []string{"only one"}, nil
	}
	opts := DefaultOptions()
	opts.BatchSize = 2
	tr, err := New(e, opts)
	require.NoError(t, err)

	doc := newDoc("一", "二")
	report, err := tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FailedBatches)
	assert.Equal(t, 2, report.FailedParagraphs)
}

func TestGlossaryProtection(t *testing.T) {
	e := newFakeEngine()
	e.translate = func(texts []string) ([]string, error) {
		return texts, nil
	}
	opts := DefaultOptions()
	opts.Glossary = glossary.Glossary{"龙": "Dragon"}
	tr, err := New(e, opts)
	require.NoError(t, err)

	doc := newDoc("龙在天上飞")
	_, err = tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, e.calls, 1)
	assert.Equal(t, "<term>Dragon</term>在天上飞", e.calls[0][0])
	assert.Equal(t, "Dragon在天上飞", doc.Paragraphs[0].Translated)
	assert.Equal(t, "龙在天上飞", doc.Paragraphs[0].Content)
}

func TestUsageTokens(t *testing.T) {
	e := usageEngine{newFakeEngine()}
	opts := DefaultOptions()
	opts.BatchSize = 2
	tr, err := New(e, opts)
	require.NoError(t, err)

	doc := newDoc("一", "二", "三")
	report, err := tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 10, doc.Paragraphs[0].Tokens)
	assert.Equal(t, 11, doc.Paragraphs[1].Tokens)
	assert.Equal(t, 10, doc.Paragraphs[2].Tokens)
	assert.Equal(t, 31, report.Tokens)
}

func TestProgressCallback(t *testing.T) {
	type call struct {
		current, total int
		preview        string
	}
	var calls []call

	opts := DefaultOptions()
	opts.BatchSize = 2
	opts.Progress = func(current, total int, preview string) bool {
		calls = append(calls, call{current, total, preview})
		return true
	}
	tr, err := New(newFakeEngine(), opts)
	require.NoError(t, err)

	_, err = tr.TranslateDocument(context.Background(), newDoc("一", "二", "三"))
	require.NoError(t, err)

	assert.Equal(t, []call{
		{2, 3, "EN:二"},
		{3, 3, "EN:三"},
	}, calls)
}

func TestPauseAndResume(t *testing.T) {
	e := newFakeEngine()
	invocations := 0
	opts := DefaultOptions()
	opts.BatchSize = 1
	opts.PollInterval = 5 * time.Millisecond
	opts.Progress = func(current, total int, preview string) bool {
		invocations++
		// 第一批之后暂停两次轮询
		return invocations != 1 && invocations != 2
	}
	tr, err := New(e, opts)
	require.NoError(t, err)

	doc := newDoc("一", "二")
	report, err := tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 4, invocations)
	assert.Len(t, e.calls, 2)
	assert.True(t, report.Complete())
}

func TestInterruptSavesProgress(t *testing.T) {
	cacheDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := newFakeEngine()
	opts := DefaultOptions()
	opts.BatchSize = 1
	opts.SaveInterval = 10
	opts.CacheDir = cacheDir
	opts.Progress = func(current, total int, preview string) bool {
		cancel()
		return true
	}
	tr, err := New(e, opts)
	require.NoError(t, err)

	doc := newDoc("一", "二", "三")
	report, err := tr.TranslateDocument(ctx, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, report)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.TranslatedParagraphs)
	assert.Len(t, e.calls, 1)

	loaded, err := document.LoadProgress(tr.ProgressPath(doc))
	require.NoError(t, err)
	assert.True(t, loaded.Paragraphs[0].IsTranslated)
	assert.False(t, loaded.Paragraphs[1].IsTranslated)

	// 中断后锁已释放，可以继续翻译
	report, err = tr.TranslateDocument(context.Background(), loaded)
	require.NoError(t, err)
	assert.True(t, report.Complete())
}

func TestInterruptWhilePaused(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := DefaultOptions()
	opts.PollInterval = time.Millisecond
	opts.CacheDir = t.TempDir()
	opts.Progress = func(current, total int, preview string) bool {
		cancel()
		return false
	}
	tr, err := New(newFakeEngine(), opts)
	require.NoError(t, err)

	doc := newDoc("一")
	report, err := tr.TranslateDocument(ctx, doc)
	assert.ErrorIs(t, err, ErrInterrupted)
	require.NotNil(t, report)
	assert.True(t, report.Interrupted)
	assert.FileExists(t, tr.ProgressPath(doc))
}

func TestSaveInterval(t *testing.T) {
	cacheDir := t.TempDir()
	var saved []int

	opts := DefaultOptions()
	opts.BatchSize = 1
	opts.SaveInterval = 3
	opts.CacheDir = cacheDir

	var tr *Translator
	var doc *document.Document
	opts.Progress = func(current, total int, preview string) bool {
		loaded, err := document.LoadProgress(tr.ProgressPath(doc))
		if err != nil {
			saved = append(saved, -1)
			return true
		}
		saved = append(saved, loaded.Statistics().Translated)
		return true
	}

	var err error
	tr, err = New(newFakeEngine(), opts)
	require.NoError(t, err)

	doc = newDoc("一", "二", "三", "四", "五")
	_, err = tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, []int{-1, -1, 3, 3, 5}, saved)
}

func TestDocumentLocked(t *testing.T) {
	opts := DefaultOptions()
	opts.CacheDir = t.TempDir()
	e := newFakeEngine()
	tr, err := New(e, opts)
	require.NoError(t, err)

	doc := newDoc("一")
	other := flock.New(tr.ProgressPath(doc) + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	_, err = tr.TranslateDocument(context.Background(), doc)
	assert.ErrorIs(t, err, ErrDocumentLocked)
	assert.Empty(t, e.calls)
}

func TestReportWritten(t *testing.T) {
	outputDir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = outputDir
	e := newFakeEngine()
	e.translate = func(texts []string) ([]string, error) {
		return nil, errors.New("boom")
	}
	tr, err := New(e, opts)
	require.NoError(t, err)

	doc := newDoc("第一段内容")
	report, err := tr.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outputDir, doc.ID+"_report.md"), report.ReportFile)
	data, err := os.ReadFile(report.ReportFile)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "# 翻译报告: Test Novel")
	assert.Contains(t, content, "| 翻译引擎 | fake |")
	assert.Contains(t, content, "## 失败段落")
	assert.Contains(t, content, "第一段内容")
}

func TestReportFormatTable(t *testing.T) {
	tr, err := New(newFakeEngine(), DefaultOptions())
	require.NoError(t, err)

	report, err := tr.TranslateDocument(context.Background(), newDoc("一", "二"))
	require.NoError(t, err)

	out := report.FormatTable()
	assert.Contains(t, out, "翻译报告")
	assert.Contains(t, out, "100.00%")
	assert.NotContains(t, out, "resume")
}

func TestSplitBatches(t *testing.T) {
	doc := newDoc("a", "b", "c", "d", "e")
	batches := splitBatches(doc.SortedParagraphs(), 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)

	assert.Empty(t, splitBatches(nil, 2))
}
