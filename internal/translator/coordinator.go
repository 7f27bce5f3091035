// Package translator 把读取、分段、翻译、导出和统计串成完整的文件翻译流程。
package translator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/novel-translator/internal/config"
	"github.com/nerdneilsfield/novel-translator/internal/stats"
	"github.com/nerdneilsfield/novel-translator/internal/textio"
	"github.com/nerdneilsfield/novel-translator/pkg/cost"
	"github.com/nerdneilsfield/novel-translator/pkg/document"
	"github.com/nerdneilsfield/novel-translator/pkg/engine"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/factory"
	"github.com/nerdneilsfield/novel-translator/pkg/export"
	"github.com/nerdneilsfield/novel-translator/pkg/glossary"
	"github.com/nerdneilsfield/novel-translator/pkg/segmenter"
	"github.com/nerdneilsfield/novel-translator/pkg/translator"
)

// TranslationResult 一次文件翻译的结果
type TranslationResult struct {
	InputFile  string
	OutputFile string
	Format     string
	Report     *translator.Report
}

// RunOptions 单次运行的参数，空值使用配置中的默认值
type RunOptions struct {
	// Engine 引擎名称
	Engine string
	// Format 导出格式，为空时按输出文件扩展名推断
	Format string
	// Output 输出文件路径
	Output string
	// Title 文档标题，为空时使用输入文件名
	Title string
	// Glossary 术语表路径
	Glossary string
	// Progress 进度回调
	Progress translator.ProgressFunc
}

// Coordinator 翻译协调器
type Coordinator struct {
	config   *config.Config
	registry *engine.Registry
	statsDB  *stats.Database
	logger   *zap.Logger
}

// Option 协调器选项
type Option func(*Coordinator)

// WithRegistry 使用自定义引擎注册表
func WithRegistry(r *engine.Registry) Option {
	return func(c *Coordinator) {
		c.registry = r
	}
}

// WithStats 使用指定的统计数据库，传 nil 关闭统计
func WithStats(db *stats.Database) Option {
	return func(c *Coordinator) {
		c.statsDB = db
	}
}

// NewCoordinator 创建翻译协调器
func NewCoordinator(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Coordinator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Coordinator{
		config:   cfg,
		registry: factory.NewRegistry(),
		logger:   logger,
	}

	if cfg.CacheDir != "" {
		db, err := stats.NewDatabase(stats.PathFor(cfg.CacheDir), logger)
		if err != nil {
			// 统计失败不阻止翻译
			logger.Warn("failed to initialize statistics database", zap.Error(err))
		} else {
			c.statsDB = db
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config 返回使用的配置
func (c *Coordinator) Config() *config.Config {
	return c.config
}

// Registry 返回引擎注册表
func (c *Coordinator) Registry() *engine.Registry {
	return c.registry
}

// Stats 返回统计数据库，可能为 nil
func (c *Coordinator) Stats() *stats.Database {
	return c.statsDB
}

// LoadDocument 读取并分段输入文件。Markdown 文件按块结构分段，其余按空行分段。
func (c *Coordinator) LoadDocument(input, title string) (*document.Document, error) {
	text, err := textio.ReadFile(input, c.config.InputEncoding)
	if err != nil {
		return nil, err
	}

	seg, err := segmenter.New(
		segmenter.WithPatterns(c.config.HeadingPatterns...),
		segmenter.WithTitleMaxLength(c.config.TitleMaxLength),
		segmenter.WithLanguages(c.config.SourceLanguage, c.config.TargetLanguage),
		segmenter.WithLogger(c.logger),
	)
	if err != nil {
		return nil, translator.NewConfigError("heading_patterns", "%v", err)
	}

	var doc *document.Document
	switch strings.ToLower(filepath.Ext(input)) {
	case ".md", ".markdown":
		doc = seg.ProcessMarkdown([]byte(text))
	default:
		doc = seg.Process(text)
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	doc.Title = title
	doc.Metadata["input_file"] = input

	c.logger.Info("document loaded",
		zap.String("input", input),
		zap.String("title", doc.Title),
		zap.String("doc_id", doc.ID),
		zap.Int("paragraphs", len(doc.Paragraphs)),
		zap.Int("chapters", len(doc.Chapters)))
	return doc, nil
}

// NewTranslator 按配置创建指定引擎的文档翻译器
func (c *Coordinator) NewTranslator(engineName string, opts RunOptions) (*translator.Translator, error) {
	if engineName == "" {
		engineName = c.config.DefaultEngine
	}

	e, err := c.registry.Create(engineName, c.config.EngineOptions(engineName, c.logger))
	if err != nil {
		return nil, err
	}

	glossaryPath := opts.Glossary
	if glossaryPath == "" {
		glossaryPath = c.config.GlossaryFile
	}

	topts := c.config.TranslatorOptions(c.logger)
	topts.Glossary = glossary.LoadOrEmpty(glossaryPath, c.logger)
	topts.Progress = opts.Progress
	return translator.New(e, topts)
}

// TranslateFile 翻译文件：读取、分段、翻译并导出
func (c *Coordinator) TranslateFile(ctx context.Context, input string, opts RunOptions) (*TranslationResult, error) {
	formatter, err := c.resolveFormat(opts.Format, opts.Output)
	if err != nil {
		return nil, err
	}

	doc, err := c.LoadDocument(input, opts.Title)
	if err != nil {
		return nil, err
	}

	return c.run(ctx, doc, input, formatter, opts)
}

// Resume 从进度文件继续翻译，完成后导出
func (c *Coordinator) Resume(ctx context.Context, progressPath string, opts RunOptions) (*TranslationResult, error) {
	formatter, err := c.resolveFormat(opts.Format, opts.Output)
	if err != nil {
		return nil, err
	}

	doc, err := document.LoadProgress(progressPath)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if opts.Title != "" {
		doc.Title = opts.Title
	}

	// 进度文件不在缓存目录时，在原位置继续保存
	dir := filepath.Dir(progressPath)
	if document.ProgressPath(dir, doc.ID) == filepath.Clean(progressPath) && dir != filepath.Clean(c.config.CacheDir) {
		cfg := *c.config
		cfg.CacheDir = dir
		sub := *c
		sub.config = &cfg
		c = &sub
	}

	input, _ := doc.Metadata["input_file"].(string)
	c.logger.Info("resuming translation",
		zap.String("progress_file", progressPath),
		zap.String("doc_id", doc.ID),
		zap.Int("untranslated", len(doc.Untranslated())))

	return c.run(ctx, doc, input, formatter, opts)
}

func (c *Coordinator) run(ctx context.Context, doc *document.Document, input string, formatter export.Formatter, opts RunOptions) (*TranslationResult, error) {
	t, err := c.NewTranslator(opts.Engine, opts)
	if err != nil {
		return nil, err
	}

	result := &TranslationResult{
		InputFile: input,
		Format:    formatter.Name(),
	}

	report, err := t.TranslateDocument(ctx, doc)
	result.Report = report
	if err != nil {
		if report != nil {
			c.record(result)
		}
		return result, err
	}

	output := opts.Output
	if output == "" {
		output = c.DefaultOutputPath(doc, formatter)
	}
	result.OutputFile, err = formatter.Format(doc, c.config.ExportOptions(), output)
	if err != nil {
		return result, fmt.Errorf("export %s: %w", formatter.Name(), err)
	}

	c.logger.Info("document exported",
		zap.String("output", result.OutputFile),
		zap.String("format", formatter.Name()))

	c.record(result)
	return result, nil
}

// Export 把文档导出到 output，format 为空时按扩展名推断
func (c *Coordinator) Export(doc *document.Document, output, format string) (string, error) {
	formatter, err := c.resolveFormat(format, output)
	if err != nil {
		return "", err
	}
	if output == "" {
		output = c.DefaultOutputPath(doc, formatter)
	}
	return formatter.Format(doc, c.config.ExportOptions(), output)
}

// Estimate 估算翻译输入文件的费用，不调用引擎
func (c *Coordinator) Estimate(input, engineName string) (*document.Document, cost.Estimate, error) {
	if engineName == "" {
		engineName = c.config.DefaultEngine
	}
	doc, err := c.LoadDocument(input, "")
	if err != nil {
		return nil, cost.Estimate{}, err
	}
	estimator := cost.NewEstimator(c.config.Pricing)
	return doc, estimator.Estimate(doc, strings.ToLower(engineName)), nil
}

// DefaultOutputPath 默认输出路径：<output_dir>/<标题>_<目标语言>.<扩展名>
func (c *Coordinator) DefaultOutputPath(doc *document.Document, formatter export.Formatter) string {
	name := fmt.Sprintf("%s_%s.%s", sanitizeFileName(doc.Title), doc.TargetLanguage, formatter.Extension())
	return filepath.Join(c.config.OutputDir, name)
}

func (c *Coordinator) resolveFormat(format, output string) (export.Formatter, error) {
	if format != "" {
		return export.Get(format)
	}
	if output != "" {
		if f, err := export.FormatForPath(output); err == nil {
			return f, nil
		}
	}
	return export.Get(c.config.OutputFormat)
}

func (c *Coordinator) record(result *TranslationResult) {
	if c.statsDB == nil {
		return
	}
	rec := stats.NewRecord(result.Report, result.InputFile, result.OutputFile, result.Format)
	if err := c.statsDB.AddTranslationRecord(rec); err != nil {
		c.logger.Warn("failed to record statistics", zap.Error(err))
	}
}

func sanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return "untitled"
	}
	return name
}
