// Package segmenter 把原始小说文本切分为标题、章节和段落。
package segmenter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/nerdneilsfield/novel-translator/pkg/document"
)

const (
	// DefaultTitleMaxLength 首段短于该长度（按字符计）时被视为书名
	DefaultTitleMaxLength = 100
	// DefaultTitle 未识别出书名时使用的占位标题
	DefaultTitle = "Untitled Novel"
)

// DefaultHeadingPatterns 默认的章节标题模式，按顺序匹配，先匹配者生效
var DefaultHeadingPatterns = []string{
	`^第\s*[0-9零〇一二两三四五六七八九十百千万]+\s*[章节回集卷]`,
	`^(?i:chapter)\s*[0-9]+`,
	`^[0-9]+\.`,
	`^[一二三四五六七八九十]+、`,
}

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t\f\v\r\p{Zs}]*\n`)
	quoteReplacer  = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
)

// Segmenter 文本分段器
type Segmenter struct {
	patterns       []*regexp2.Regexp
	titleMaxLength int
	defaultTitle   string
	sourceLanguage string
	targetLanguage string
	logger         *zap.Logger
}

// Option 分段器选项
type Option func(*Segmenter) error

// WithPatterns 追加自定义章节模式，自定义模式优先于默认模式
func WithPatterns(patterns ...string) Option {
	return func(s *Segmenter) error {
		compiled := make([]*regexp2.Regexp, 0, len(patterns))
		for _, p := range patterns {
			re, err := regexp2.Compile(p, 0)
			if err != nil {
				return err
			}
			compiled = append(compiled, re)
		}
		s.patterns = append(compiled, s.patterns...)
		return nil
	}
}

// WithTitleMaxLength 设置书名识别的长度上限
func WithTitleMaxLength(n int) Option {
	return func(s *Segmenter) error {
		if n > 0 {
			s.titleMaxLength = n
		}
		return nil
	}
}

// WithDefaultTitle 设置占位标题
func WithDefaultTitle(title string) Option {
	return func(s *Segmenter) error {
		s.defaultTitle = title
		return nil
	}
}

// WithLanguages 设置生成文档的源语言和目标语言
func WithLanguages(source, target string) Option {
	return func(s *Segmenter) error {
		s.sourceLanguage = source
		s.targetLanguage = target
		return nil
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(s *Segmenter) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// New 创建分段器
func New(opts ...Option) (*Segmenter, error) {
	s := &Segmenter{
		titleMaxLength: DefaultTitleMaxLength,
		defaultTitle:   DefaultTitle,
		sourceLanguage: "zh",
		targetLanguage: "en",
		logger:         zap.NewNop(),
	}
	for _, p := range DefaultHeadingPatterns {
		s.patterns = append(s.patterns, regexp2.MustCompile(p, 0))
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Normalize 对单个段落做 NFKC 规范化，合并空白，统一引号并去除首尾空白
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.Join(strings.Fields(text), " ")
	text = quoteReplacer.Replace(text)
	return strings.TrimSpace(text)
}

// Split 按空行切分段落并逐段规范化，丢弃空段落
func Split(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var out []string
	for _, part := range paragraphBreak.Split(raw, -1) {
		if p := Normalize(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsHeading 判断段落是否为章节标题
func (s *Segmenter) IsHeading(paragraph string) bool {
	for _, re := range s.patterns {
		ok, err := re.MatchString(paragraph)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Process 把原始文本转换为文档
func (s *Segmenter) Process(raw string) *document.Document {
	paragraphs := Split(raw)

	title := s.defaultTitle
	if len(paragraphs) > 0 && utf8.RuneCountInString(paragraphs[0]) < s.titleMaxLength {
		title = paragraphs[0]
		paragraphs = paragraphs[1:]
	}

	doc := document.New(title, s.sourceLanguage, s.targetLanguage)

	var current *int
	for _, p := range paragraphs {
		if s.IsHeading(p) {
			id := doc.AddChapter(p, s.chapterNumber(p))
			current = &id
			continue
		}
		doc.AddParagraph(p, false, current)
	}

	s.logger.Debug("text segmented",
		zap.String("title", title),
		zap.Int("paragraphs", len(doc.Paragraphs)),
		zap.Int("chapters", len(doc.Chapters)))

	return doc
}

func (s *Segmenter) chapterNumber(heading string) *int {
	n, ok := ExtractChapterNumber(heading)
	if !ok {
		s.logger.Debug("chapter number not recognized", zap.String("heading", heading))
		return nil
	}
	return &n
}
