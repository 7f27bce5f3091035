package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/novel-translator/internal/stats"
)

// statsOptions stats 命令的标志
type statsOptions struct {
	recentLimit int
	exportPath  string
	reset       bool
	yes         bool
	engines     bool
	languages   bool
	formats     bool
}

// newStatsCommand 创建 stats 命令
func newStatsCommand(opts *rootOptions) *cobra.Command {
	so := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "查看翻译统计",
		Long: `查看历次翻译的统计数据，包括:
- 总体统计与累计费用
- 各翻译引擎的用量
- 语言对统计
- 导出格式统计
- 最近的翻译记录

Examples:
  # 显示总览和最近的翻译
  novel-translator stats

  # 显示最近 20 次翻译
  novel-translator stats --recent 20

  # 只显示引擎统计
  novel-translator stats --engines

  # 导出统计数据为 JSON
  novel-translator stats --export stats.json

  # 清空统计
  novel-translator stats --reset`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return so.run(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&so.recentLimit, "recent", 10, "显示最近的翻译记录数")
	cmd.Flags().StringVar(&so.exportPath, "export", "", "把统计数据导出为 JSON 文件")
	cmd.Flags().BoolVar(&so.reset, "reset", false, "清空所有统计（需要确认）")
	cmd.Flags().BoolVarP(&so.yes, "yes", "y", false, "跳过确认")
	cmd.Flags().BoolVar(&so.engines, "engines", false, "只显示引擎统计")
	cmd.Flags().BoolVar(&so.languages, "languages", false, "只显示语言对统计")
	cmd.Flags().BoolVar(&so.formats, "formats", false, "只显示导出格式统计")

	return cmd
}

func (so *statsOptions) run(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	log, closeFn := newLogger(cfg)
	defer closeFn()

	db, err := stats.NewDatabase(stats.PathFor(cfg.CacheDir), log)
	if err != nil {
		return fmt.Errorf("failed to initialize statistics database: %w", err)
	}

	out := cmd.OutOrStdout()

	if so.reset {
		return so.handleReset(cmd, db, log)
	}

	if so.exportPath != "" {
		if err := db.Export(so.exportPath); err != nil {
			return err
		}
		printSuccess(out, "统计数据已导出: "+so.exportPath)
		return nil
	}

	if err := db.UpdateProgressStats(cfg.CacheDir); err != nil {
		log.Warn("failed to update progress stats", zap.Error(err))
	}

	visualizer := stats.NewVisualizer(db, out)
	switch {
	case so.engines:
		visualizer.ShowEngines()
	case so.languages:
		visualizer.ShowLanguagePairs()
	case so.formats:
		visualizer.ShowFormatStats()
	default:
		visualizer.ShowOverview()
		fmt.Fprintln(out)
		visualizer.ShowEngines()
		fmt.Fprintln(out)
		visualizer.ShowRecentTranslations(so.recentLimit)
	}
	return nil
}

// handleReset 处理统计重置
func (so *statsOptions) handleReset(cmd *cobra.Command, db *stats.Database, log *zap.Logger) error {
	out := cmd.OutOrStdout()
	if !so.yes {
		fmt.Fprint(out, "确定要清空所有统计数据吗？此操作无法撤销。(y/N): ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
		default:
			fmt.Fprintln(out, "已取消。")
			return nil
		}
	}

	if err := db.Reset(); err != nil {
		return fmt.Errorf("failed to reset statistics: %w", err)
	}
	printSuccess(out, "统计数据已清空")
	log.Info("statistics reset", zap.String("path", db.Path()))
	return nil
}
