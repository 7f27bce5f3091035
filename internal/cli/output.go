package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/novel-translator/internal/translator"
	ptranslator "github.com/nerdneilsfield/novel-translator/pkg/translator"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func printHeading(w io.Writer, title string) {
	headingColor.Fprintf(w, "📖 %s\n", title)
}

func printSuccess(w io.Writer, msg string) {
	successColor.Fprintf(w, "✓ %s\n", msg)
}

func printWarning(w io.Writer, msg string) {
	warningColor.Fprintf(w, "⚠ %s\n", msg)
}

func printError(w io.Writer, err error) {
	errorColor.Fprintf(w, "✗ %v\n", err)
}

// isTerminal 判断输出是否为终端
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// progressView 在第一次回调时才知道段落总数，因此延迟创建进度展示
type progressView struct {
	out         io.Writer
	description string
	interactive bool
	display     translator.ProgressDisplay
}

func newProgressView(w io.Writer, description string) *progressView {
	return &progressView{
		out:         w,
		description: description,
		interactive: isTerminal(w),
	}
}

func (v *progressView) callback(current, total int, preview string) bool {
	if v.display == nil {
		v.display = translator.NewProgressDisplay(v.out, total, v.description, v.interactive)
	}
	return v.display.Callback()(current, total, preview)
}

func (v *progressView) finish() {
	if v.display != nil {
		v.display.Finish()
	}
}

// reportResult 输出翻译结果。中断和预算超限给出提示，错误原样返回。
func reportResult(cmd *cobra.Command, result *translator.TranslationResult, err error) error {
	out := cmd.OutOrStdout()

	var budgetErr *ptranslator.BudgetExceededError
	switch {
	case errors.As(err, &budgetErr):
		printWarning(out, fmt.Sprintf("估算费用 %.2f %s 超出预算 %.2f，未进行翻译",
			budgetErr.Estimate.Cost, budgetErr.Estimate.Currency, budgetErr.Limit))
		return err
	case errors.Is(err, ptranslator.ErrInterrupted):
		if result != nil && result.Report != nil {
			fmt.Fprintln(out, result.Report.FormatTable())
			printWarning(out, fmt.Sprintf("翻译已中断，进度已保存: %s", result.Report.ProgressFile))
			printWarning(out, fmt.Sprintf("使用 novel-translator resume %s 继续翻译", result.Report.ProgressFile))
		}
		return err
	case err != nil:
		return err
	}

	report := result.Report
	fmt.Fprintln(out, report.FormatTable())
	if report.FailedParagraphs > 0 {
		printWarning(out, fmt.Sprintf("%d 个段落翻译失败，已用原文代替；进度文件: %s",
			report.FailedParagraphs, report.ProgressFile))
	}
	printSuccess(out, "输出文件: "+result.OutputFile)
	if report.ReportFile != "" {
		fmt.Fprintf(out, "  翻译报告: %s\n", report.ReportFile)
	}
	return nil
}
