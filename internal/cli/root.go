// Package cli 实现 novel-translator 命令行。
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/novel-translator/internal/config"
	"github.com/nerdneilsfield/novel-translator/internal/logger"
	"github.com/nerdneilsfield/novel-translator/internal/translator"
	"github.com/nerdneilsfield/novel-translator/pkg/export"
	ptranslator "github.com/nerdneilsfield/novel-translator/pkg/translator"
)

// ExitInterrupted 用户中断时的退出码
const ExitInterrupted = 130

// rootOptions 命令行标志
type rootOptions struct {
	cfgFile        string
	debug          bool
	output         string
	format         string
	engine         string
	sourceLang     string
	targetLang     string
	glossaryPath   string
	bilingual      bool
	title          string
	budget         float64
	batchSize      int
	inputEncoding  string
	outputEncoding string
	saveConfig     bool
	batch          bool
}

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "novel-translator [flags] <input>",
		Short: "小说翻译工具，按段落批量翻译并导出为 txt、Markdown、EPUB 或 DOCX",
		Long: `小说翻译工具把长篇小说切分为章节和段落，按批次交给翻译引擎翻译。
翻译过程中定期保存进度，中断后可以用 resume 子命令继续。

支持的翻译引擎:
  - caiyun: 彩云小译
  - openai: OpenAI GPT 模型
  - compatible: 兼容 OpenAI 协议的服务
  - deeplx: 自建 DeepLX 服务
  - raw: 不做翻译，用于演练流程`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runTranslate(cmd, args)
		},
	}

	opts.addGlobalFlags(rootCmd)

	flags := rootCmd.Flags()
	flags.StringVar(&opts.title, "title", "", "文档标题，默认使用输入文件名")
	flags.StringVar(&opts.inputEncoding, "input-encoding", "", "输入文件编码，默认自动检测")
	flags.BoolVar(&opts.saveConfig, "save-config", false, "把当前有效配置保存到配置文件")
	flags.BoolVar(&opts.batch, "batch", false, "批量翻译目录中的所有 .txt 和 .md 文件")

	rootCmd.AddCommand(
		newResumeCommand(opts),
		newExportCommand(opts),
		newEstimateCommand(opts),
		newEnginesCommand(opts),
		newStatsCommand(opts),
	)

	return rootCmd
}

// addGlobalFlags 添加所有子命令共享的标志
func (o *rootOptions) addGlobalFlags(rootCmd *cobra.Command) {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&o.cfgFile, "config", "", "配置文件路径")
	pf.BoolVar(&o.debug, "debug", false, "启用调试模式")
	pf.StringVarP(&o.output, "output", "o", "", "输出文件路径（批量模式下为输出目录）")
	pf.StringVarP(&o.format, "format", "f", "", "输出格式 ("+strings.Join(export.List(), ", ")+")")
	pf.StringVarP(&o.engine, "engine", "e", "", "翻译引擎")
	pf.StringVarP(&o.sourceLang, "source", "s", "", "源语言")
	pf.StringVarP(&o.targetLang, "target", "t", "", "目标语言")
	pf.StringVarP(&o.glossaryPath, "glossary", "g", "", "术语表文件路径")
	pf.BoolVarP(&o.bilingual, "bilingual", "b", false, "输出双语对照")
	pf.Float64Var(&o.budget, "budget", 0, "预算上限，0 表示不限制")
	pf.IntVar(&o.batchSize, "batch-size", 0, "每批翻译的段落数")
	pf.StringVar(&o.outputEncoding, "output-encoding", "", "txt/md 输出编码，默认 UTF-8")
}

// loadConfig 加载配置并用命令行标志覆盖
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	o.updateConfigFromFlags(cmd, cfg)
	return cfg, nil
}

// updateConfigFromFlags 使用命令行参数更新配置
func (o *rootOptions) updateConfigFromFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.DefaultEngine = strings.ToLower(o.engine)
	}
	if flags.Changed("source") {
		cfg.SourceLanguage = o.sourceLang
	}
	if flags.Changed("target") {
		cfg.TargetLanguage = o.targetLang
	}
	if flags.Changed("glossary") {
		cfg.GlossaryFile = o.glossaryPath
	}
	if flags.Changed("bilingual") {
		cfg.BilingualOutput = o.bilingual
	}
	if flags.Changed("budget") {
		cfg.BudgetLimit = o.budget
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = o.batchSize
	}
	if flags.Changed("format") {
		cfg.OutputFormat = o.format
	}
	if flags.Changed("input-encoding") {
		cfg.InputEncoding = o.inputEncoding
	}
	if flags.Changed("output-encoding") {
		cfg.OutputEncoding = o.outputEncoding
	}
	if flags.Changed("debug") {
		cfg.Debug = o.debug
	}
}

// newLogger 按配置创建日志记录器，配置了 log_dir 时同时写日志文件
func newLogger(cfg *config.Config) (*zap.Logger, func()) {
	if cfg.LogDir != "" {
		log, _, closeFn, err := logger.NewLoggerWithFile(cfg.Debug, cfg.LogDir)
		if err == nil {
			return log, closeFn
		}
		fallback := logger.NewLogger(cfg.Debug)
		fallback.Warn("failed to open log file, logging to console only", zap.Error(err))
		return fallback, func() { _ = fallback.Sync() }
	}
	log := logger.NewLogger(cfg.Debug)
	return log, func() { _ = log.Sync() }
}

// setup 加载并校验配置，创建日志和协调器
func (o *rootOptions) setup(cmd *cobra.Command) (*translator.Coordinator, func(), error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log, closeFn := newLogger(cfg)
	coordinator, err := translator.NewCoordinator(cfg, log)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return coordinator, closeFn, nil
}

func (o *rootOptions) runTranslate(cmd *cobra.Command, args []string) error {
	if o.saveConfig {
		cfg, err := o.loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := config.SaveConfig(cfg, o.cfgFile); err != nil {
			return fmt.Errorf("保存配置失败: %w", err)
		}
		printSuccess(cmd.OutOrStdout(), "配置已保存")
		if len(args) == 0 {
			return nil
		}
	}

	if len(args) == 0 {
		return errors.New("缺少输入文件参数，使用 --help 查看用法")
	}
	input := args[0]

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("输入文件不存在: %w", err)
	}
	if info.IsDir() != o.batch {
		if o.batch {
			return fmt.Errorf("批量模式需要目录参数: %s", input)
		}
		return fmt.Errorf("%s 是目录，使用 --batch 批量翻译", input)
	}

	coordinator, closeFn, err := o.setup(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if o.batch {
		return o.translateDir(cmd, coordinator, input)
	}

	result, err := o.translateFile(cmd, coordinator, input, o.output, o.title)
	return reportResult(cmd, result, err)
}

func (o *rootOptions) translateFile(cmd *cobra.Command, c *translator.Coordinator, input, output, title string) (*translator.TranslationResult, error) {
	printHeading(cmd.OutOrStdout(), "翻译: "+filepath.Base(input))

	view := newProgressView(cmd.ErrOrStderr(), filepath.Base(input))
	defer view.finish()

	return c.TranslateFile(cmd.Context(), input, translator.RunOptions{
		Format:   o.formatFlag(cmd),
		Output:   output,
		Title:    title,
		Progress: view.callback,
	})
}

// translateDir 逐个翻译目录中的文本文件，单个文件失败不影响其余文件
func (o *rootOptions) translateDir(cmd *cobra.Command, c *translator.Coordinator, dir string) error {
	files, err := novelFiles(dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "找到 %d 个文件需要翻译\n", len(files))

	formatter, err := export.Get(c.Config().OutputFormat)
	if err != nil {
		return err
	}
	outputDir := o.output
	if outputDir == "" {
		outputDir = c.Config().OutputDir
	}

	success, failed := 0, 0
	for i, file := range files {
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(files), filepath.Base(file))

		stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		output := filepath.Join(outputDir, fmt.Sprintf("%s_%s.%s", stem, c.Config().TargetLanguage, formatter.Extension()))

		result, err := o.translateFile(cmd, c, file, output, "")
		if err := reportResult(cmd, result, err); err != nil {
			if errors.Is(err, ptranslator.ErrInterrupted) {
				return err
			}
			printError(cmd.ErrOrStderr(), err)
			failed++
			continue
		}
		success++
	}

	fmt.Fprintf(out, "批量翻译完成: %d 个成功, %d 个失败\n", success, failed)
	if failed > 0 {
		return fmt.Errorf("%d 个文件翻译失败", failed)
	}
	return nil
}

// formatFlag 只有显式指定 --format 时才覆盖按扩展名推断的格式
func (o *rootOptions) formatFlag(cmd *cobra.Command) string {
	if cmd.Flags().Changed("format") {
		return o.format
	}
	return ""
}

func novelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".txt", ".md", ".markdown":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ExitCode 把命令返回的错误映射为进程退出码
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ptranslator.ErrInterrupted):
		return ExitInterrupted
	default:
		return 1
	}
}

// Execute 运行命令行，SIGINT/SIGTERM 转为 context 取消，返回退出码
func Execute(version, commit, buildDate string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCommand(version, commit, buildDate)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, ptranslator.ErrInterrupted) {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return ExitCode(err)
}
