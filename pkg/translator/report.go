package translator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nerdneilsfield/novel-translator/pkg/cost"
	"github.com/nerdneilsfield/novel-translator/pkg/document"
)

// Report 翻译报告
type Report struct {
	// 基本信息
	DocumentID     string
	Title          string
	SourceLanguage string
	TargetLanguage string
	Engine         string

	// 段落统计
	TotalParagraphs      int
	TranslatedParagraphs int
	FailedParagraphs     int
	Chapters             int

	// 字符统计
	TotalChars      int
	TranslatedChars int
	// SessionChars 本次运行新翻译的字符数，不含之前运行已翻译的段落
	SessionChars    int
	Tokens          int

	// 批次统计
	ProcessedBatches int
	FailedBatches    int

	// 时间统计
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	CharsPerSecond float64

	// 费用
	Estimate   cost.Estimate
	ActualCost float64

	Interrupted  bool
	ProgressFile string
	ReportFile   string

	Document *document.Document
}

func newReport(doc *document.Document, engineName string, estimate cost.Estimate) *Report {
	return &Report{
		DocumentID:     doc.ID,
		Title:          doc.Title,
		SourceLanguage: doc.SourceLanguage,
		TargetLanguage: doc.TargetLanguage,
		Engine:         engineName,
		StartTime:      time.Now(),
		Estimate:       estimate,
		Document:       doc,
	}
}

func (r *Report) finish(doc *document.Document, estimator *cost.Estimator) {
	stats := doc.Statistics()
	r.TotalParagraphs = stats.Paragraphs
	r.TranslatedParagraphs = stats.Translated
	r.FailedParagraphs = stats.Failed
	r.Chapters = stats.Chapters
	r.TotalChars = stats.TotalChars
	r.TranslatedChars = stats.TranslatedChars
	r.Tokens = stats.Tokens

	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	if secs := r.Duration.Seconds(); secs > 0 {
		r.CharsPerSecond = float64(r.SessionChars) / secs
	}

	var translated []*document.Paragraph
	for _, p := range doc.SortedParagraphs() {
		if p.IsTranslated {
			translated = append(translated, p)
		}
	}
	r.ActualCost = estimator.EstimateParagraphs(translated, r.Engine).Cost
}

// Progress 已翻译段落的百分比
func (r *Report) Progress() float64 {
	if r.TotalParagraphs == 0 {
		return 0
	}
	return float64(r.TranslatedParagraphs) / float64(r.TotalParagraphs) * 100
}

// Complete 判断是否所有段落都已翻译
func (r *Report) Complete() bool {
	return r.TranslatedParagraphs == r.TotalParagraphs
}

// UnitCost 每千字符的估算费用
func (r *Report) UnitCost() float64 {
	if r.TotalChars == 0 {
		return 0
	}
	return cost.Round(r.Estimate.Cost / float64(r.TotalChars) * 1000)
}

type reportRow struct {
	label string
	value string
}

func (r *Report) rows() []reportRow {
	rows := []reportRow{
		{"文档标题", r.Title},
		{"文档ID", r.DocumentID},
		{"源语言", r.SourceLanguage},
		{"目标语言", r.TargetLanguage},
		{"翻译引擎", r.Engine},
		{"章节数", fmt.Sprintf("%d", r.Chapters)},
		{"段落数", fmt.Sprintf("%d", r.TotalParagraphs)},
		{"已翻译段落", fmt.Sprintf("%d", r.TranslatedParagraphs)},
		{"失败段落", fmt.Sprintf("%d", r.FailedParagraphs)},
		{"翻译进度", fmt.Sprintf("%.2f%%", r.Progress())},
		{"总字符数", fmt.Sprintf("%d", r.TotalChars)},
		{"已翻译字符", fmt.Sprintf("%d", r.TranslatedChars)},
		{"耗时", r.Duration.Round(time.Millisecond).String()},
		{"翻译速度", fmt.Sprintf("%.2f 字符/秒", r.CharsPerSecond)},
		{"估算费用", fmt.Sprintf("%.2f %s", r.Estimate.Cost, r.Estimate.Currency)},
		{"已翻译部分费用", fmt.Sprintf("%.2f %s", r.ActualCost, r.Estimate.Currency)},
		{"每千字费用", fmt.Sprintf("%.2f %s", r.UnitCost(), r.Estimate.Currency)},
	}
	if r.Tokens > 0 {
		rows = append(rows, reportRow{"Token 用量", fmt.Sprintf("%d", r.Tokens)})
	}
	if r.Interrupted {
		rows = append(rows, reportRow{"状态", "已中断"})
	}
	return rows
}

// FormatTable 渲染为终端表格
func (r *Report) FormatTable() string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("翻译报告")
	tw.Style().Title.Align = text.AlignCenter
	tw.AppendHeader(table.Row{"项目", "值"})
	for _, row := range r.rows() {
		tw.AppendRow(table.Row{row.label, row.value})
	}
	if r.FailedParagraphs > 0 {
		tw.AppendFooter(table.Row{"提示", "重新运行 resume 可重试失败段落"})
	}
	return tw.Render()
}

// FormatMarkdown 渲染为 Markdown 报告
func (r *Report) FormatMarkdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# 翻译报告: %s\n\n", r.Title)
	fmt.Fprintf(&b, "生成时间: %s\n\n", r.EndTime.Format("2006-01-02 15:04:05"))

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"项目", "值"})
	for _, row := range r.rows() {
		tw.AppendRow(table.Row{row.label, row.value})
	}
	b.WriteString(tw.RenderMarkdown())
	b.WriteString("\n")

	if r.FailedParagraphs > 0 {
		b.WriteString("\n## 失败段落\n\n")
		if r.Document != nil {
			for _, p := range r.Document.SortedParagraphs() {
				if p.Failed() {
					fmt.Fprintf(&b, "- #%d (尝试 %d 次): %s\n", p.ID, p.Attempts, preview(p.Content, 40))
				}
			}
		}
	}

	b.WriteString("\n费用为按字符数估算的近似值，实际费用以服务商账单为准。\n")
	return b.String()
}

// WriteMarkdown 把 Markdown 报告写入文件
func (r *Report) WriteMarkdown(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	return os.WriteFile(path, []byte(r.FormatMarkdown()), 0o644)
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
