package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/novel-translator/internal/translator"
	"github.com/nerdneilsfield/novel-translator/pkg/cost"
	"github.com/nerdneilsfield/novel-translator/pkg/document"
	"github.com/nerdneilsfield/novel-translator/pkg/engine/factory"
)

// newResumeCommand 创建 resume 命令
func newResumeCommand(opts *rootOptions) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "resume <progress.json>",
		Short: "从进度文件继续翻译，完成后导出",
		Long: `从进度文件继续翻译。已翻译的段落会被跳过，之前失败的段落会重新翻译。

Examples:
  novel-translator resume ~/.cache/novel-translator/novel_0192f3a4-7b1c-7d2e-8f90-123456789abc_progress.json
  novel-translator resume progress.json -e openai -f epub -o out/novel.epub`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coordinator, closeFn, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			printHeading(cmd.OutOrStdout(), "继续翻译: "+args[0])
			view := newProgressView(cmd.ErrOrStderr(), "继续翻译")
			result, err := coordinator.Resume(cmd.Context(), args[0], translator.RunOptions{
				Format:   opts.formatFlag(cmd),
				Output:   opts.output,
				Title:    title,
				Progress: view.callback,
			})
			view.finish()
			return reportResult(cmd, result, err)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "覆盖文档标题")
	return cmd
}

// newExportCommand 创建 export 命令
func newExportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <progress.json>",
		Short: "把进度文件中的文档导出为指定格式，不调用翻译引擎",
		Long: `把进度文件中的文档导出为指定格式。未翻译的段落使用原文。

Examples:
  novel-translator export progress.json -f docx -o novel.docx
  novel-translator export progress.json -f txt --bilingual`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			log, closeFn := newLogger(cfg)
			defer closeFn()

			doc, err := document.LoadProgress(args[0])
			if err != nil {
				return err
			}
			coordinator, err := translator.NewCoordinator(cfg, log, translator.WithStats(nil))
			if err != nil {
				return err
			}

			output, err := coordinator.Export(doc, opts.output, opts.formatFlag(cmd))
			if err != nil {
				return err
			}

			stats := doc.Statistics()
			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("已导出 %d/%d 个已翻译段落: %s",
				stats.Translated, stats.Paragraphs, output))
			return nil
		},
	}
}

// newEstimateCommand 创建 estimate 命令
func newEstimateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <input>",
		Short: "估算翻译费用，不调用翻译引擎",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			log, closeFn := newLogger(cfg)
			defer closeFn()

			coordinator, err := translator.NewCoordinator(cfg, log, translator.WithStats(nil))
			if err != nil {
				return err
			}
			doc, est, err := coordinator.Estimate(args[0], "")
			if err != nil {
				return err
			}

			stats := doc.Statistics()
			tw := table.NewWriter()
			tw.SetStyle(table.StyleLight)
			tw.SetTitle("费用估算")
			tw.Style().Title.Align = text.AlignCenter
			tw.AppendHeader(table.Row{"项目", "值"})
			tw.AppendRows([]table.Row{
				{"文档标题", doc.Title},
				{"章节数", stats.Chapters},
				{"段落数", stats.Paragraphs},
				{"总字符数", est.TotalChars},
				{"翻译引擎", est.Engine},
				{"估算费用", fmt.Sprintf("%.2f %s", est.Cost, est.Currency)},
			})
			if cfg.BudgetLimit > 0 {
				verdict := "在预算内"
				if est.Cost > cfg.BudgetLimit {
					verdict = "超出预算"
				}
				tw.AppendRow(table.Row{"预算上限", fmt.Sprintf("%.2f %s (%s)", cfg.BudgetLimit, est.Currency, verdict)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return nil
		},
	}
}

// newEnginesCommand 创建 engines 命令
func newEnginesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "列出可用的翻译引擎及计费方式",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			estimator := cost.NewEstimator(cfg.Pricing)

			tw := table.NewWriter()
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"引擎", "说明", "计费", "默认"})
			for _, name := range factory.NewRegistry().List() {
				def := ""
				if name == cfg.DefaultEngine {
					def = "✓"
				}
				tw.AppendRow(table.Row{name, factory.Descriptions[name], describeRate(estimator.Rate(name)), def})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
			return nil
		},
	}
}

func describeRate(r cost.Rate) string {
	if r.Unit == cost.UnitTokens {
		return fmt.Sprintf("输入 %.4f / 输出 %.4f %s 每千 token",
			r.InputPerThousandTokens, r.OutputPerThousandTokens, r.Currency)
	}
	if r.PerThousandChars == 0 {
		return "免费"
	}
	return fmt.Sprintf("%.2f %s 每千字符", r.PerThousandChars, r.Currency)
}
