// Package export 把翻译后的文档导出为 txt、Markdown、EPUB 和 DOCX。
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/nerdneilsfield/novel-translator/pkg/document"
)

// DefaultAuthor 默认作者
const DefaultAuthor = "Novel Translator"

// ErrUnknownFormat 不支持的导出格式
var ErrUnknownFormat = errors.New("unknown export format")

// Options 导出选项
type Options struct {
	// BilingualOutput 同时输出原文和译文
	BilingualOutput bool
	// IncludeTitles 是否输出章节标题
	IncludeTitles bool
	// Author 作者，写入 EPUB/DOCX 元数据
	Author string
	// Language 输出语言，为空时使用文档目标语言
	Language string
	// Encoding 文本格式的输出编码，为空时使用 UTF-8
	Encoding string
}

// DefaultOptions 返回默认导出选项
func DefaultOptions() Options {
	return Options{
		IncludeTitles: true,
		Author:        DefaultAuthor,
	}
}

func (o Options) language(doc *document.Document) string {
	if o.Language != "" {
		return o.Language
	}
	if doc.TargetLanguage != "" {
		return doc.TargetLanguage
	}
	return "en"
}

func (o Options) author() string {
	if o.Author == "" {
		return DefaultAuthor
	}
	return o.Author
}

// Formatter 导出格式
type Formatter interface {
	// Name 格式名称
	Name() string
	// Extension 默认文件扩展名，不含点
	Extension() string
	// Format 把文档写入 path，返回实际写入的主文件路径
	Format(doc *document.Document, opts Options, path string) (string, error)
}

var formatters = map[string]Formatter{}

var aliases = map[string]string{
	"text":     "txt",
	"markdown": "md",
	"word":     "docx",
}

func register(f Formatter) {
	formatters[f.Name()] = f
}

func init() {
	register(TextFormatter{})
	register(MarkdownFormatter{})
	register(EPUBFormatter{})
	register(DOCXFormatter{})
}

// Get 按名称获取导出格式，名称不区分大小写
func Get(name string) (Formatter, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	if f, ok := formatters[key]; ok {
		return f, nil
	}

	names := List()
	if matches := fuzzy.RankFindFold(key, names); len(matches) > 0 {
		sort.Sort(matches)
		return nil, fmt.Errorf("%w: %q, did you mean %q?", ErrUnknownFormat, name, matches[0].Target)
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownFormat, name, strings.Join(names, ", "))
}

// List 返回所有导出格式名称
func List() []string {
	names := make([]string, 0, len(formatters))
	for name := range formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatForPath 根据文件扩展名推断导出格式
func FormatForPath(path string) (Formatter, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return nil, fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, path)
	}
	return Get(ext)
}

// entry 一个待输出的段落
type entry struct {
	paragraph *document.Paragraph
	source    string
	target    string
	isTitle   bool
}

// section 输出时的分节，Title 为空表示第一章之前的内容
type section struct {
	title   *entry
	entries []entry
}

func newEntry(p *document.Paragraph) entry {
	return entry{
		paragraph: p,
		source:    p.Content,
		target:    p.Text(),
		isTitle:   p.IsTitle,
	}
}

// sections 按段落 ID 升序把文档切成分节
func sections(doc *document.Document, opts Options) []section {
	var (
		out     []section
		current *section
		chapter *int
	)
	started := false

	for _, p := range doc.SortedParagraphs() {
		sameChapter := started && ((chapter == nil && p.Chapter == nil) ||
			(chapter != nil && p.Chapter != nil && *chapter == *p.Chapter))
		if !sameChapter || (p.IsTitle && p.Chapter != nil) {
			out = append(out, section{})
			current = &out[len(out)-1]
			chapter = p.Chapter
			started = true
		}

		e := newEntry(p)
		if p.IsTitle && p.Chapter != nil {
			if opts.IncludeTitles {
				current.title = &e
			}
			continue
		}
		current.entries = append(current.entries, e)
	}
	return out
}

// siblingPath 在扩展名前加后缀，如 novel.txt → novel_source.txt
func siblingPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}
