package segmenter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSegmenter(t *testing.T, opts ...Option) *Segmenter {
	t.Helper()
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

func TestProcessBasicNovel(t *testing.T) {
	s := newSegmenter(t)
	doc := s.Process("My Title\n\nChapter 1\n\nHello world.\n\nChapter 2\n\nGoodbye.")

	assert.Equal(t, "My Title", doc.Title)
	require.Len(t, doc.Chapters, 2)
	require.Len(t, doc.Paragraphs, 4)

	assert.Equal(t, "Chapter 1", doc.Chapters[0].Title)
	assert.Equal(t, []int{0, 1}, doc.Chapters[0].Paragraphs)
	assert.Equal(t, []int{2, 3}, doc.Chapters[1].Paragraphs)

	assert.True(t, doc.Paragraphs[0].IsTitle)
	assert.Equal(t, "Hello world.", doc.Paragraphs[1].Content)
	assert.False(t, doc.Paragraphs[1].IsTitle)
	assert.Equal(t, "Goodbye.", doc.Paragraphs[3].Content)

	require.NotNil(t, doc.Chapters[1].Number)
	assert.Equal(t, 2, *doc.Chapters[1].Number)
	assert.NoError(t, doc.Validate())
}

func TestProcessTitleDetection(t *testing.T) {
	s := newSegmenter(t)

	t.Run("Long First Paragraph", func(t *testing.T) {
		long := strings.Repeat("很长的开头", 30)
		doc := s.Process(long + "\n\n第二段")
		assert.Equal(t, DefaultTitle, doc.Title)
		assert.Len(t, doc.Paragraphs, 2)
	})

	t.Run("Empty Input", func(t *testing.T) {
		doc := s.Process("   \n\n  ")
		assert.Equal(t, DefaultTitle, doc.Title)
		assert.Empty(t, doc.Paragraphs)
		assert.Empty(t, doc.Chapters)
	})

	t.Run("Custom Default Title", func(t *testing.T) {
		custom := newSegmenter(t, WithDefaultTitle("无题"), WithTitleMaxLength(3))
		doc := custom.Process("四个字的\n\n正文")
		assert.Equal(t, "无题", doc.Title)
	})
}

func TestProcessPreamble(t *testing.T) {
	s := newSegmenter(t)
	doc := s.Process("书名\n\n楔子一\n\n楔子二\n\n第一章 初见\n\n正文")

	require.Len(t, doc.Paragraphs, 4)
	assert.Nil(t, doc.Paragraphs[0].Chapter)
	assert.Nil(t, doc.Paragraphs[1].Chapter)
	require.NotNil(t, doc.Paragraphs[3].Chapter)
	assert.Equal(t, 0, *doc.Paragraphs[3].Chapter)
	assert.Len(t, doc.Preamble(), 2)
}

func TestChineseHeadings(t *testing.T) {
	s := newSegmenter(t)
	raw := "江湖\n\n第一百零五章 风云\n\n他走了。\n\n第 3 回\n\n又来了。\n\n十二、尾声\n\n完。"
	doc := s.Process(raw)

	chapters := doc.SortedChapters()
	require.Len(t, chapters, 3)

	expected := []int{105, 3, 12}
	for i, ch := range chapters {
		require.NotNil(t, ch.Number, ch.Title)
		assert.Equal(t, expected[i], *ch.Number)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Whitespace", "  hello \t  world \n again ", "hello world again"},
		{"Curly Quotes", "“Hi,” she said, ‘ok’", `"Hi," she said, 'ok'`},
		{"Fullwidth Digits", "第１２章", "第12章"},
		{"Empty", " \n\t ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSplitKeepsParagraphs(t *testing.T) {
	parts := Split("第一段\r\n第一段续\r\n\r\n  \n第二段\n \t \n\n第三段")
	assert.Equal(t, []string{"第一段 第一段续", "第二段", "第三段"}, parts)
}

func TestCustomPatterns(t *testing.T) {
	s := newSegmenter(t, WithPatterns(`^Part\s+(?=[IVX]+$)`))
	doc := s.Process("Book\n\nPart IV\n\nText\n\nPart of the story")

	require.Len(t, doc.Chapters, 1)
	assert.Equal(t, "Part IV", doc.Chapters[0].Title)
	assert.Nil(t, doc.Chapters[0].Number)
	assert.Equal(t, "Part of the story", doc.Paragraphs[2].Content)

	_, err := New(WithPatterns(`(`))
	assert.Error(t, err)
}

func TestLowercaseChapterHeading(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	doc := s.Process("My Title\n\nchapter 3\n\nHello.\n\nCHAPTER 4\n\nBye.")
	require.Len(t, doc.Chapters, 2)
	assert.Equal(t, "chapter 3", doc.Chapters[0].Title)
	require.NotNil(t, doc.Chapters[0].Number)
	assert.Equal(t, 3, *doc.Chapters[0].Number)
}

func TestExtractChapterNumber(t *testing.T) {
	tests := []struct {
		title string
		want  int
		ok    bool
	}{
		{"第12章 归来", 12, true},
		{"第二十章", 20, true},
		{"第三千零一回", 3001, true},
		{"第两万章", 20000, true},
		{"Chapter 7", 7, true},
		{"CHAPTER 42: The End", 42, true},
		{"3. Beginning", 3, true},
		{"十一、风", 11, true},
		{"Prologue", 0, false},
		{"chapter 5", 5, true},
		{"第99999999999999999999章", 0, false},
		{"Chapter 99999999999999999999", 0, false},
		{"第九九九九九九九九九九九九九九九九九九九九章", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			n, ok := ExtractChapterNumber(tt.title)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestProcessMarkdown(t *testing.T) {
	s := newSegmenter(t)

	t.Run("Front Matter Title", func(t *testing.T) {
		src := "---\ntitle: 星河\n---\n\n## 第一章\n\n夜色很深。\n\n> 引言\n\n## 第二章\n\n- 甲\n- 乙\n"
		doc := s.ProcessMarkdown([]byte(src))

		assert.Equal(t, "星河", doc.Title)
		require.Len(t, doc.Chapters, 2)
		require.Len(t, doc.Paragraphs, 5)
		assert.Equal(t, "夜色很深。", doc.Paragraphs[1].Content)
		assert.Equal(t, "引言", doc.Paragraphs[2].Content)
		assert.Equal(t, "甲 乙", doc.Paragraphs[4].Content)
	})

	t.Run("Heading Title", func(t *testing.T) {
		doc := s.ProcessMarkdown([]byte("# Star River\n\nIntro line.\n\n## One\n\nBody."))
		assert.Equal(t, "Star River", doc.Title)
		require.Len(t, doc.Chapters, 1)
		assert.Nil(t, doc.Paragraphs[0].Chapter)
		assert.Equal(t, "One", doc.Chapters[0].Title)
	})
}
