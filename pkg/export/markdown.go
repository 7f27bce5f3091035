package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Kunde21/markdownfmt/v3"

	"github.com/nerdneilsfield/novel-translator/internal/textio"
	"github.com/nerdneilsfield/novel-translator/pkg/document"
)

// MarkdownFormatter Markdown 导出，输出经过 markdownfmt 统一格式
type MarkdownFormatter struct{}

func (MarkdownFormatter) Name() string      { return "md" }
func (MarkdownFormatter) Extension() string { return "md" }

// 行首会被解析成 Markdown 块语法的标记
var (
	leadingMarker  = regexp.MustCompile(`^(#|>|[-*+]\s|={3,}|-{3,})`)
	leadingOrdinal = regexp.MustCompile(`^(\d+)([.)]\s)`)
)

func escapeLeading(s string) string {
	if leadingOrdinal.MatchString(s) {
		return leadingOrdinal.ReplaceAllString(s, `$1\$2`)
	}
	if leadingMarker.MatchString(s) {
		return `\` + s
	}
	return s
}

// Format 写出 Markdown。双语模式下原文以引用块放在译文之前。
func (MarkdownFormatter) Format(doc *document.Document, opts Options, path string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", doc.Title)

	for _, sec := range sections(doc, opts) {
		if sec.title != nil {
			fmt.Fprintf(&b, "\n## %s\n", sec.title.target)
			if opts.BilingualOutput && sec.title.source != sec.title.target {
				fmt.Fprintf(&b, "\n> %s\n", sec.title.source)
			}
		}
		for _, e := range sec.entries {
			if opts.BilingualOutput && e.source != e.target {
				fmt.Fprintf(&b, "\n> %s\n", e.source)
			}
			fmt.Fprintf(&b, "\n%s\n", escapeLeading(e.target))
		}
	}

	formatted, err := markdownfmt.Process("", []byte(b.String()))
	if err != nil {
		return "", fmt.Errorf("format markdown: %w", err)
	}

	if err := textio.WriteFile(path, string(formatted), opts.Encoding); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
