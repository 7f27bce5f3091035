package segmenter

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/novel-translator/pkg/document"
)

// ProcessMarkdown 解析 Markdown 格式的小说。
// 书名优先取 front matter 中的 title，其次取第一个一级标题；其余标题成为章节。
func (s *Segmenter) ProcessMarkdown(source []byte) *document.Document {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	pctx := parser.NewContext()
	root := md.Parser().Parse(text.NewReader(source), parser.WithContext(pctx))

	title := ""
	if v, ok := meta.Get(pctx)["title"]; ok {
		title = Normalize(fmt.Sprint(v))
	}

	type block struct {
		heading int
		content string
	}

	var blocks []block
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if c := Normalize(string(blockText(node, source))); c != "" {
				blocks = append(blocks, block{heading: node.Level, content: c})
			}
		case *ast.Paragraph, *ast.Blockquote, *ast.List:
			if c := Normalize(string(blockText(node, source))); c != "" {
				blocks = append(blocks, block{content: c})
			}
		}
	}

	if title == "" && len(blocks) > 0 && blocks[0].heading == 1 {
		title = blocks[0].content
		blocks = blocks[1:]
	}
	if title == "" {
		title = s.defaultTitle
	}

	doc := document.New(title, s.sourceLanguage, s.targetLanguage)
	var current *int
	for _, b := range blocks {
		if b.heading > 0 || s.IsHeading(b.content) {
			id := doc.AddChapter(b.content, s.chapterNumber(b.content))
			current = &id
			continue
		}
		doc.AddParagraph(b.content, false, current)
	}

	s.logger.Debug("markdown segmented",
		zap.String("title", title),
		zap.Int("paragraphs", len(doc.Paragraphs)),
		zap.Int("chapters", len(doc.Chapters)))

	return doc
}

// blockText 收集块节点（含子块）的原始行
func blockText(n ast.Node, source []byte) []byte {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || child.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := child.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
			if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return bytes.TrimSpace(buf.Bytes())
}
