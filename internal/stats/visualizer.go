package stats

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
)

// Visualizer 统计数据可视化器
type Visualizer struct {
	db  *Database
	out io.Writer
}

// NewVisualizer 创建可视化器，输出写到 w
func NewVisualizer(db *Database, w io.Writer) *Visualizer {
	return &Visualizer{db: db, out: w}
}

// ShowOverview 显示总览
func (v *Visualizer) ShowOverview() {
	stats := v.db.GetStats()

	v.heading(color.New(color.FgCyan, color.Bold), "📊 翻译统计总览")

	rows := [][]string{
		{"翻译次数", formatNumber(stats.TotalTranslations)},
		{"翻译段落", formatNumber(stats.TotalParagraphs)},
		{"翻译字符", formatNumber(stats.TotalCharacters)},
		{"Token 用量", formatNumber(stats.TotalTokens)},
		{"有失败的翻译", formatNumber(stats.TotalErrors)},
		{"累计耗时", formatDuration(stats.TotalDuration)},
	}
	for _, currency := range sortedKeys(stats.TotalCost) {
		rows = append(rows, []string{"累计费用 (" + currency + ")", fmt.Sprintf("%.2f", stats.TotalCost[currency])})
	}
	rows = append(rows,
		[]string{"创建时间", formatTime(stats.CreatedAt)},
		[]string{"最后更新", formatTime(stats.LastUpdated)},
	)
	v.printSection("🎯 总体统计", rows)

	fmt.Fprintln(v.out)
	v.printSection("⚡ 性能统计", [][]string{
		{"平均速度", fmt.Sprintf("%.2f 字符/秒", stats.PerformanceStats.AverageCharsPerSecond)},
		{"平均段落速度", fmt.Sprintf("%.2f 段/秒", stats.PerformanceStats.AverageParagraphsPerSecond)},
		{"最快一次", formatDuration(stats.PerformanceStats.FastestTranslation)},
		{"最慢一次", formatDuration(stats.PerformanceStats.SlowestTranslation)},
	})

	if ps := stats.ProgressStats; ps.CacheDir != "" {
		fmt.Fprintln(v.out)
		v.printSection("💾 进度文件", [][]string{
			{"缓存目录", ps.CacheDir},
			{"进度文件", formatNumber(ps.ProgressFiles)},
			{"占用空间", formatBytes(ps.TotalSize)},
			{"最早", formatTime(ps.OldestProgress)},
			{"最新", formatTime(ps.NewestProgress)},
		})
	}
}

// ShowEngines 显示各引擎的用量
func (v *Visualizer) ShowEngines() {
	stats := v.db.GetStats()
	v.heading(color.New(color.FgMagenta, color.Bold), "🔧 引擎统计")

	if len(stats.EngineStats) == 0 {
		fmt.Fprintln(v.out, "暂无引擎统计数据。")
		return
	}

	engines := make([]*EngineStats, 0, len(stats.EngineStats))
	for _, es := range stats.EngineStats {
		engines = append(engines, es)
	}
	sort.Slice(engines, func(i, j int) bool {
		return engines[i].TranslationCount > engines[j].TranslationCount
	})

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"引擎", "次数", "段落", "失败", "字符", "Token", "费用", "最后使用"})
	for _, es := range engines {
		tw.AppendRow(table.Row{
			es.Engine,
			formatNumber(es.TranslationCount),
			formatNumber(es.ParagraphCount),
			formatNumber(es.FailedParagraphs),
			formatNumber(es.CharacterCount),
			formatNumber(es.Tokens),
			fmt.Sprintf("%.2f %s", es.Cost, es.Currency),
			formatTime(es.LastUsed),
		})
	}
	fmt.Fprintln(v.out, tw.Render())
}

// ShowLanguagePairs 显示语言对统计
func (v *Visualizer) ShowLanguagePairs() {
	stats := v.db.GetStats()
	v.heading(color.New(color.FgMagenta, color.Bold), "🌍 语言对统计")

	if len(stats.LanguagePairs) == 0 {
		fmt.Fprintln(v.out, "暂无语言对统计数据。")
		return
	}

	pairs := make([]*LanguagePairStats, 0, len(stats.LanguagePairs))
	for _, pair := range stats.LanguagePairs {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].TranslationCount > pairs[j].TranslationCount
	})

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"语言", "次数", "字符", "成功率", "平均耗时", "最后使用"})
	for _, pair := range pairs {
		successRate := float64(pair.TranslationCount-pair.ErrorCount) / float64(pair.TranslationCount) * 100
		tw.AppendRow(table.Row{
			fmt.Sprintf("%s → %s", pair.SourceLanguage, pair.TargetLanguage),
			formatNumber(pair.TranslationCount),
			formatNumber(pair.CharacterCount),
			fmt.Sprintf("%.1f%%", successRate),
			formatDuration(pair.AverageDuration),
			formatTime(pair.LastUsed),
		})
	}
	fmt.Fprintln(v.out, tw.Render())
}

// ShowFormatStats 显示导出格式统计
func (v *Visualizer) ShowFormatStats() {
	stats := v.db.GetStats()
	v.heading(color.New(color.FgGreen, color.Bold), "📄 导出格式统计")

	if len(stats.FormatStats) == 0 {
		fmt.Fprintln(v.out, "暂无格式统计数据。")
		return
	}

	formats := make([]*FormatStats, 0, len(stats.FormatStats))
	for _, f := range stats.FormatStats {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool {
		return formats[i].FileCount > formats[j].FileCount
	})

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"格式", "文件数", "字符", "完成率", "最后使用"})
	for _, f := range formats {
		tw.AppendRow(table.Row{
			strings.ToUpper(f.Format),
			formatNumber(f.FileCount),
			formatNumber(f.CharacterCount),
			fmt.Sprintf("%.1f%%", f.SuccessRate*100),
			formatTime(f.LastUsed),
		})
	}
	fmt.Fprintln(v.out, tw.Render())
}

// ShowRecentTranslations 显示最近的翻译
func (v *Visualizer) ShowRecentTranslations(limit int) {
	records := v.db.GetRecentTranslations(limit)
	v.heading(color.New(color.FgBlue, color.Bold), fmt.Sprintf("🕒 最近的翻译 (%d)", len(records)))

	if len(records) == 0 {
		fmt.Fprintln(v.out, "暂无翻译记录。")
		return
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"", "时间", "标题", "引擎", "语言", "进度", "耗时", "费用"})
	for _, r := range records {
		status := "✅"
		switch {
		case r.Status == StatusInterrupted:
			status = "⏸"
		case r.Failed():
			status = "❌"
		}
		tw.AppendRow(table.Row{
			status,
			formatTime(r.Timestamp),
			runewidth.Truncate(r.Title, 24, "..."),
			r.Engine,
			fmt.Sprintf("%s → %s", r.SourceLanguage, r.TargetLanguage),
			fmt.Sprintf("%.1f%% (%d/%d)", r.Progress, r.TranslatedParagraphs, r.TotalParagraphs),
			formatDuration(r.Duration),
			fmt.Sprintf("%.2f %s", r.Cost, r.Currency),
		})
	}
	fmt.Fprintln(v.out, tw.Render())
}

func (v *Visualizer) heading(c *color.Color, title string) {
	c.Fprintln(v.out, title)
	c.Fprintln(v.out, strings.Repeat("=", 50))
}

// printSection 打印一个统计部分
func (v *Visualizer) printSection(title string, data [][]string) {
	sectionColor := color.New(color.FgYellow, color.Bold)
	sectionColor.Fprintf(v.out, "%s\n", title)

	// 按显示宽度对齐标签
	maxLabelLen := 0
	for _, row := range data {
		maxLabelLen = max(maxLabelLen, runewidth.StringWidth(row[0]))
	}

	labelColor := color.New(color.FgCyan)
	valueColor := color.New(color.FgWhite, color.Bold)
	for _, row := range data {
		label := "  " + runewidth.FillRight(row[0], maxLabelLen)
		labelColor.Fprintf(v.out, "%s: ", label)
		valueColor.Fprintln(v.out, row[1])
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatNumber 格式化数字（添加千位分隔符）
func formatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(char)
	}
	return result.String()
}

// formatBytes 格式化字节数
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

// formatDuration 格式化持续时间
func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0s"
	case d < time.Second:
		return fmt.Sprintf("%.0fms", float64(d.Nanoseconds())/1e6)
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// formatTime 格式化时间
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}

	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04:05")
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 02 15:04")
	}
	return t.Format("2006-01-02 15:04")
}
