package translator

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/schollz/progressbar/v3"

	"github.com/nerdneilsfield/novel-translator/pkg/translator"
)

const previewWidth = 30

// ProgressDisplay 在终端展示翻译进度
type ProgressDisplay interface {
	// Callback 返回交给翻译器的进度回调
	Callback() translator.ProgressFunc
	// Finish 结束展示并输出汇总
	Finish()
}

// NewProgressDisplay 根据输出是否为终端选择进度条或逐行输出
func NewProgressDisplay(w io.Writer, total int, description string, interactive bool) ProgressDisplay {
	if interactive {
		return NewProgressBar(w, total, description)
	}
	return NewSimpleProgressBar(w, total)
}

// ProgressBar 翻译进度条
type ProgressBar struct {
	bar       *progressbar.ProgressBar
	out       io.Writer
	total     int
	started   int
	current   int
	startTime time.Time
	mu        sync.Mutex
}

// NewProgressBar 创建新的进度条，total 为段落总数
func NewProgressBar(w io.Writer, total int, description string) *ProgressBar {
	bar := progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	return &ProgressBar{
		bar:       bar,
		out:       w,
		total:     total,
		started:   -1,
		startTime: time.Now(),
	}
}

// Callback 返回进度回调，回调总是返回 true
func (pb *ProgressBar) Callback() translator.ProgressFunc {
	return func(current, total int, preview string) bool {
		pb.Update(current, preview)
		return true
	}
}

// Update 更新已翻译段落数和预览
func (pb *ProgressBar) Update(current int, preview string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	// 续译时进度条从已完成的位置开始
	if pb.started < 0 {
		pb.started = current
	}
	pb.current = current
	if preview != "" {
		pb.bar.Describe(truncatePreview(preview, previewWidth))
	}
	_ = pb.bar.Set(current)
}

// Finish 完成进度条
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	_ = pb.bar.Finish()

	done := pb.current - max(pb.started, 0)
	duration := time.Since(pb.startTime)
	speed := 0.0
	if duration > 0 {
		speed = float64(done) / duration.Seconds()
	}

	fmt.Fprintf(pb.out, "\n✓ 翻译完成: %d/%d 段落, 本次 %d 段, 耗时: %s, 速度: %.1f 段/秒\n",
		pb.current, pb.total, done, duration.Round(time.Second), speed)
}

// SimpleProgressBar 简单的文本进度显示，用于非终端输出
type SimpleProgressBar struct {
	out        io.Writer
	total      int
	current    int
	interval   time.Duration
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewSimpleProgressBar 创建简单进度条
func NewSimpleProgressBar(w io.Writer, total int) *SimpleProgressBar {
	return &SimpleProgressBar{
		out:      w,
		total:    total,
		interval: time.Second,
	}
}

// Callback 返回进度回调
func (spb *SimpleProgressBar) Callback() translator.ProgressFunc {
	return func(current, total int, preview string) bool {
		spb.Update(current, total)
		return true
	}
}

// Update 更新进度，每秒最多输出一行
func (spb *SimpleProgressBar) Update(current, total int) {
	spb.mu.Lock()
	defer spb.mu.Unlock()

	spb.current = current
	if total > 0 {
		spb.total = total
	}

	if time.Since(spb.lastUpdate) < spb.interval && spb.current < spb.total {
		return
	}
	spb.print()
	spb.lastUpdate = time.Now()
}

// Finish 完成
func (spb *SimpleProgressBar) Finish() {
	spb.mu.Lock()
	defer spb.mu.Unlock()
	spb.print()
}

func (spb *SimpleProgressBar) print() {
	percentage := 0.0
	if spb.total > 0 {
		percentage = float64(spb.current) * 100 / float64(spb.total)
	}
	fmt.Fprintf(spb.out, "翻译进度: [%d/%d] %.1f%%\n", spb.current, spb.total, percentage)
}

// truncatePreview 按显示宽度截断预览，换行替换为空格
func truncatePreview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "...")
}
