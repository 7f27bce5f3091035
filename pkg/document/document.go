// Package document 定义小说翻译的数据模型：文档、章节与段落，以及进度文件的读写。
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidDocument 文档结构不满足约束
var ErrInvalidDocument = errors.New("invalid document")

// Paragraph 段落，翻译的最小单位
type Paragraph struct {
	ID              int            `json:"id"`
	Content         string         `json:"content"`
	Translated      string         `json:"translated"`
	Chapter         *int           `json:"chapter"`
	IsTitle         bool           `json:"is_title"`
	IsTranslated    bool           `json:"is_translated"`
	TranslationTime time.Time      `json:"translation_time"`
	Tokens          int            `json:"tokens"`
	Attempts        int            `json:"attempts"`
	Metadata        map[string]any `json:"metadata"`
}

// Failed 判断段落是否尝试过但仍未翻译
func (p *Paragraph) Failed() bool {
	return p.Attempts > 0 && !p.IsTranslated
}

// Text 返回用于展示的文本，未翻译时回退到原文
func (p *Paragraph) Text() string {
	if p.IsTranslated {
		return p.Translated
	}
	return p.Content
}

// Chapter 章节
type Chapter struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Paragraphs []int  `json:"paragraphs"`
	// Number 从章节标题中解析出的章节号，未知时为 nil
	Number *int `json:"number,omitempty"`
}

// Document 一部待翻译的小说
type Document struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	SourceLanguage string             `json:"source_language"`
	TargetLanguage string             `json:"target_language"`
	Paragraphs     map[int]*Paragraph `json:"paragraphs"`
	Chapters       map[int]*Chapter   `json:"chapters"`
	Metadata       map[string]any     `json:"metadata"`
}

// New 创建一个空文档，ID 使用按时间排序的 UUIDv7
func New(title, sourceLanguage, targetLanguage string) *Document {
	return &Document{
		ID:             NewID(),
		Title:          title,
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
		Paragraphs:     make(map[int]*Paragraph),
		Chapters:       make(map[int]*Chapter),
		Metadata:       make(map[string]any),
	}
}

// NewID 生成文档 ID
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "novel_" + id.String()
}

// AddParagraph 追加段落并返回其 ID。
// chapterID 指向已存在的章节时，段落 ID 会被追加到该章节的段落列表；
// 章节不存在时段落不属于任何章节。
func (d *Document) AddParagraph(content string, isTitle bool, chapterID *int) int {
	id := len(d.Paragraphs)

	var chapter *int
	if chapterID != nil {
		if ch, ok := d.Chapters[*chapterID]; ok {
			c := ch.ID
			chapter = &c
			ch.Paragraphs = append(ch.Paragraphs, id)
		}
	}

	d.Paragraphs[id] = &Paragraph{
		ID:       id,
		Content:  content,
		Chapter:  chapter,
		IsTitle:  isTitle,
		Metadata: make(map[string]any),
	}

	return id
}

// AddChapter 创建章节，并把标题作为该章节的第一个段落
func (d *Document) AddChapter(title string, number *int) int {
	id := len(d.Chapters)
	d.Chapters[id] = &Chapter{
		ID:         id,
		Title:      title,
		Paragraphs: []int{},
		Number:     number,
	}
	d.AddParagraph(title, true, &id)
	return id
}

// SortedParagraphs 按 ID 升序返回所有段落
func (d *Document) SortedParagraphs() []*Paragraph {
	ids := make([]int, 0, len(d.Paragraphs))
	for id := range d.Paragraphs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]*Paragraph, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.Paragraphs[id])
	}
	return out
}

// SortedChapters 按 ID 升序返回所有章节
func (d *Document) SortedChapters() []*Chapter {
	ids := make([]int, 0, len(d.Chapters))
	for id := range d.Chapters {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]*Chapter, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.Chapters[id])
	}
	return out
}

// Untranslated 按 ID 升序返回尚未翻译的段落
func (d *Document) Untranslated() []*Paragraph {
	var out []*Paragraph
	for _, p := range d.SortedParagraphs() {
		if !p.IsTranslated {
			out = append(out, p)
		}
	}
	return out
}

// Preamble 返回第一个章节之前的段落
func (d *Document) Preamble() []*Paragraph {
	var out []*Paragraph
	for _, p := range d.SortedParagraphs() {
		if p.Chapter == nil {
			out = append(out, p)
		}
	}
	return out
}

// ChapterParagraphs 返回章节内的段落，保持章节记录的顺序
func (d *Document) ChapterParagraphs(ch *Chapter) []*Paragraph {
	out := make([]*Paragraph, 0, len(ch.Paragraphs))
	for _, id := range ch.Paragraphs {
		if p, ok := d.Paragraphs[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Progress 返回已翻译段落的百分比
func (d *Document) Progress() float64 {
	if len(d.Paragraphs) == 0 {
		return 0
	}
	translated := 0
	for _, p := range d.Paragraphs {
		if p.IsTranslated {
			translated++
		}
	}
	return float64(translated) / float64(len(d.Paragraphs)) * 100
}

// Stats 文档统计信息
type Stats struct {
	Paragraphs      int
	Chapters        int
	Translated      int
	Failed          int
	TotalChars      int
	TranslatedChars int
	Tokens          int
}

// Statistics 汇总文档统计信息，字符数按 rune 计算
func (d *Document) Statistics() Stats {
	s := Stats{
		Paragraphs: len(d.Paragraphs),
		Chapters:   len(d.Chapters),
	}
	for _, p := range d.Paragraphs {
		n := len([]rune(p.Content))
		s.TotalChars += n
		s.Tokens += p.Tokens
		if p.IsTranslated {
			s.Translated++
			s.TranslatedChars += n
		}
		if p.Failed() {
			s.Failed++
		}
	}
	return s
}

// Validate 检查段落 ID 连续且章节引用有效
func (d *Document) Validate() error {
	for i := 0; i < len(d.Paragraphs); i++ {
		p, ok := d.Paragraphs[i]
		if !ok || p == nil {
			return fmt.Errorf("%w: paragraph ids are not dense, missing %d", ErrInvalidDocument, i)
		}
		if p.ID != i {
			return fmt.Errorf("%w: paragraph key %d holds id %d", ErrInvalidDocument, i, p.ID)
		}
		if p.Chapter != nil {
			if _, ok := d.Chapters[*p.Chapter]; !ok {
				return fmt.Errorf("%w: paragraph %d references unknown chapter %d", ErrInvalidDocument, i, *p.Chapter)
			}
		}
	}
	for id, ch := range d.Chapters {
		if ch == nil || ch.ID != id {
			return fmt.Errorf("%w: chapter key %d is inconsistent", ErrInvalidDocument, id)
		}
		for _, pid := range ch.Paragraphs {
			if _, ok := d.Paragraphs[pid]; !ok {
				return fmt.Errorf("%w: chapter %d references unknown paragraph %d", ErrInvalidDocument, id, pid)
			}
		}
	}
	return nil
}

// ProgressPath 返回文档在缓存目录中的进度文件路径
func ProgressPath(dir, docID string) string {
	return filepath.Join(dir, docID+"_progress.json")
}

// SaveProgress 把文档完整序列化到 path。先写临时文件再重命名，避免中断留下半个文件。
func (d *Document) SaveProgress(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create progress dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close progress: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod progress: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename progress: %w", err)
	}
	return nil
}

// LoadProgress 从进度文件恢复文档
func LoadProgress(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read progress: %w", err)
	}

	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}

	if d.Paragraphs == nil {
		d.Paragraphs = make(map[int]*Paragraph)
	}
	if d.Chapters == nil {
		d.Chapters = make(map[int]*Chapter)
	}
	if d.Metadata == nil {
		d.Metadata = make(map[string]any)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
