package export

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/nerdneilsfield/novel-translator/internal/textio"
	"github.com/nerdneilsfield/novel-translator/pkg/document"
)

// TextFormatter 纯文本导出
type TextFormatter struct{}

func (TextFormatter) Name() string      { return "txt" }
func (TextFormatter) Extension() string { return "txt" }

// Format 写出纯文本。双语模式下主文件原文译文交替，另外写出 _source 和 _target 两个文件。
func (f TextFormatter) Format(doc *document.Document, opts Options, path string) (string, error) {
	secs := sections(doc, opts)

	if !opts.BilingualOutput {
		return path, f.write(path, render(doc.Title, secs, pickTarget), opts)
	}

	if err := f.write(path, render(doc.Title, secs, pickBoth), opts); err != nil {
		return "", err
	}
	if err := f.write(siblingPath(path, "_source"), render(doc.Title, secs, pickSource), opts); err != nil {
		return "", err
	}
	if err := f.write(siblingPath(path, "_target"), render(doc.Title, secs, pickTarget), opts); err != nil {
		return "", err
	}
	return path, nil
}

func (TextFormatter) write(path, content string, opts Options) error {
	if err := textio.WriteFile(path, content, opts.Encoding); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type picker func(e entry) []string

func pickTarget(e entry) []string { return []string{e.target} }
func pickSource(e entry) []string { return []string{e.source} }
func pickBoth(e entry) []string {
	if e.source == e.target {
		return []string{e.source}
	}
	return []string{e.source, e.target}
}

func render(title string, secs []section, pick picker) string {
	var b strings.Builder
	b.WriteString(underline(title, "="))

	for _, sec := range secs {
		if sec.title != nil {
			b.WriteString("\n")
			b.WriteString(underline(strings.Join(pick(*sec.title), " / "), "-"))
		}
		for _, e := range sec.entries {
			b.WriteString("\n")
			for _, line := range pick(e) {
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// underline 按显示宽度生成标题下划线，全角字符占两列
func underline(s, mark string) string {
	width := runewidth.StringWidth(s)
	if width == 0 {
		width = 1
	}
	return s + "\n" + strings.Repeat(mark, width) + "\n"
}
